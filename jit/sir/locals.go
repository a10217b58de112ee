package sir

// MaybeDefinedLocals returns the locals s may define.
// Whether it actually does depends on whether it is the first write.
func MaybeDefinedLocals(s Statement) (l []Local) {
	switch s := s.(type) {
	case Nop, Leave, StorageDead, Unimplemented:
	case Assign:
		l = append(l, s.Place.Local)
	case Enter:
		// Arguments land in the callee's $1..$n.
		for i := range s.Args {
			l = append(l, Local(s.Offset+uint32(i)+1))
		}
	case Call:
		if s.Dest != nil {
			l = append(l, s.Dest.Local)
		}
	case Store:
		l = appendIPlaceLocal(l, s.Dst)
	case MkRef:
		l = appendIPlaceLocal(l, s.Dst)
	default:
		panic(s)
	}

	return l
}

// UsedLocals returns the locals s reads.
func UsedLocals(s Statement) (l []Local) {
	switch s := s.(type) {
	case Nop, Leave, StorageDead, Unimplemented:
	case Assign:
		l = RvalueLocals(l, s.Rvalue)
		l = append(l, s.Place.Local)
	case Enter:
		// Inlined statements use the arguments, not Enter itself.
	case Call:
		for _, a := range s.Args {
			l = OperandLocals(l, a)
		}
	case Store:
		l = appendIPlaceLocal(l, s.Src)

		if _, ok := s.Dst.(Indirect); ok {
			l = appendIPlaceLocal(l, s.Dst)
		}
	case MkRef:
		l = appendIPlaceLocal(l, s.Src)
	default:
		panic(s)
	}

	return l
}

// ReferencedLocals returns the locals s either uses or defines.
func ReferencedLocals(s Statement) []Local {
	return append(MaybeDefinedLocals(s), UsedLocals(s)...)
}

func RvalueLocals(l []Local, r Rvalue) []Local {
	switch r := r.(type) {
	case Use:
		l = OperandLocals(l, r.Op)
	case BinaryOp:
		l = OperandLocals(l, r.L)
		l = OperandLocals(l, r.R)
	case CheckedBinaryOp:
		l = OperandLocals(l, r.L)
		l = OperandLocals(l, r.R)
	case Ref:
		l = append(l, r.Place.Local)
	case UnimplementedRvalue:
	default:
		panic(r)
	}

	return l
}

func OperandLocals(l []Local, op Operand) []Local {
	if p, ok := op.(Place); ok {
		l = append(l, p.Local)
	}

	return l
}

func appendIPlaceLocal(l []Local, p IPlace) []Local {
	if x, ok := IPlaceLocal(p); ok {
		l = append(l, x)
	}

	return l
}
