package sir

import (
	"fmt"
	"strings"
)

type (
	// Operand is a Place or a Constant.
	Operand interface {
		isOperand()
		String() string
	}

	// CallOperand is a call target: a symbol name, or nothing known.
	CallOperand struct {
		Symbol string
	}

	BinOp uint8

	Rvalue interface {
		isRvalue()
		String() string
	}

	Use struct {
		Op Operand
	}

	BinaryOp struct {
		Op   BinOp
		L, R Operand
	}

	CheckedBinaryOp struct {
		Op   BinOp
		L, R Operand
	}

	Ref struct {
		Place Place
	}

	UnimplementedRvalue string
)

type (
	Statement interface {
		isStatement()
		String() string
	}

	Nop struct{}

	Assign struct {
		Place  Place
		Rvalue Rvalue
	}

	// Enter marks the start of an inlined call in a trace.
	// Offset is the renaming offset applied to the callee's locals.
	Enter struct {
		Fn     CallOperand
		Args   []Operand
		Dest   *Place
		Offset uint32
	}

	// Leave marks the return from an inlined call in a trace.
	Leave struct{}

	StorageDead struct {
		Local Local
	}

	// Call is a native, non-inlined call emitted into a trace.
	Call struct {
		Fn   CallOperand
		Args []Operand
		Dest *Place
	}

	Unimplemented string

	// Store copies Src into Dst. Resolved form executed by the interpreter.
	Store struct {
		Dst, Src IPlace
	}

	// MkRef writes the address of Src into Dst.
	MkRef struct {
		Dst, Src IPlace
	}
)

type (
	Terminator interface {
		isTerminator()
		String() string
	}

	Goto struct {
		Target BasicBlockIndex
	}

	SwitchInt struct {
		Discr     Place
		Values    []U128
		Targets   []BasicBlockIndex
		Otherwise BasicBlockIndex
	}

	Return struct{}

	Unreachable struct{}

	Drop struct {
		Location Place
		Target   BasicBlockIndex
	}

	DropAndReplace struct {
		Location Place
		Value    Operand
		Target   BasicBlockIndex
	}

	// CallTerm calls Fn. Dest is nil if the call diverges.
	// IArgs are Args resolved for the interpreter.
	CallTerm struct {
		Fn    CallOperand
		Args  []Operand
		Dest  *CallDest
		IArgs []IPlace
	}

	CallDest struct {
		Place  Place
		IPlace IPlace
		Target BasicBlockIndex
	}

	// Assert continues to Target if Cond equals Expected.
	Assert struct {
		Cond     Place
		Expected bool
		Target   BasicBlockIndex
	}

	UnimplementedTerm string
)

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Rem
	BitXor
	BitAnd
	BitOr
	Shl
	Shr
	Eq
	Lt
	Le
	Ne
	Ge
	Gt
	Offset
)

var binOpNames = []string{
	Add:    "add",
	Sub:    "sub",
	Mul:    "mul",
	Div:    "div",
	Rem:    "rem",
	BitXor: "bit_xor",
	BitAnd: "bit_and",
	BitOr:  "bit_or",
	Shl:    "shl",
	Shr:    "shr",
	Eq:     "eq",
	Lt:     "lt",
	Le:     "le",
	Ne:     "ne",
	Ge:     "ge",
	Gt:     "gt",
	Offset: "offset",
}

func (Place) isOperand() {}

func (Use) isRvalue()                 {}
func (BinaryOp) isRvalue()            {}
func (CheckedBinaryOp) isRvalue()     {}
func (Ref) isRvalue()                 {}
func (UnimplementedRvalue) isRvalue() {}

func (Nop) isStatement()           {}
func (Assign) isStatement()        {}
func (Enter) isStatement()         {}
func (Leave) isStatement()         {}
func (StorageDead) isStatement()   {}
func (Call) isStatement()          {}
func (Unimplemented) isStatement() {}
func (Store) isStatement()         {}
func (MkRef) isStatement()         {}

func (Goto) isTerminator()              {}
func (SwitchInt) isTerminator()         {}
func (Return) isTerminator()            {}
func (Unreachable) isTerminator()       {}
func (Drop) isTerminator()              {}
func (DropAndReplace) isTerminator()    {}
func (CallTerm) isTerminator()          {}
func (Assert) isTerminator()            {}
func (UnimplementedTerm) isTerminator() {}

func Fn(sym string) CallOperand { return CallOperand{Symbol: sym} }

func (c CallOperand) Known() bool { return c.Symbol != "" }

func (c CallOperand) String() string {
	if c.Symbol == "" {
		return "<unknown>"
	}

	return c.Symbol
}

func (o BinOp) String() string {
	if int(o) < len(binOpNames) {
		return binOpNames[o]
	}

	return fmt.Sprintf("binop(%d)", int(o))
}

func (x Use) String() string             { return x.Op.String() }
func (x BinaryOp) String() string        { return fmt.Sprintf("%v(%v, %v)", x.Op, x.L, x.R) }
func (x CheckedBinaryOp) String() string { return fmt.Sprintf("checked_%v(%v, %v)", x.Op, x.L, x.R) }
func (x Ref) String() string             { return "&" + x.Place.String() }

func (x UnimplementedRvalue) String() string { return fmt.Sprintf("unimplemented rvalue: %s", string(x)) }

func (Nop) String() string             { return "nop" }
func (x Assign) String() string        { return fmt.Sprintf("%v = %v", x.Place, x.Rvalue) }
func (Leave) String() string           { return "leave" }
func (x StorageDead) String() string   { return fmt.Sprintf("dead(%v)", x.Local) }
func (x Unimplemented) String() string { return "unimplemented_stmt: " + string(x) }
func (x Store) String() string         { return fmt.Sprintf("store(%v, %v)", x.Dst, x.Src) }
func (x MkRef) String() string         { return fmt.Sprintf("mkref(%v, %v)", x.Dst, x.Src) }

func (x Enter) String() string {
	return fmt.Sprintf("enter(%v, [%s], %s, %d)", x.Fn, joinOperands(x.Args), optPlace(x.Dest), x.Offset)
}

func (x Call) String() string {
	return fmt.Sprintf("%s = call(%v, [%s])", optPlace(x.Dest), x.Fn, joinOperands(x.Args))
}

func (x Goto) String() string        { return fmt.Sprintf("goto bb%d", x.Target) }
func (Return) String() string        { return "return" }
func (Unreachable) String() string   { return "unreachable" }
func (x Drop) String() string        { return fmt.Sprintf("drop %v, bb%d", x.Location, x.Target) }
func (x Assert) String() string      { return fmt.Sprintf("assert %v, %v, bb%d", x.Cond, x.Expected, x.Target) }
func (x DropAndReplace) String() string {
	return fmt.Sprintf("drop_and_replace %v, %v, bb%d", x.Location, x.Value, x.Target)
}

func (x UnimplementedTerm) String() string { return "unimplemented: " + string(x) }

func (x SwitchInt) String() string {
	vals := make([]string, len(x.Values))
	for i, v := range x.Values {
		vals[i] = v.String()
	}

	bbs := make([]string, len(x.Targets))
	for i, bb := range x.Targets {
		bbs[i] = fmt.Sprintf("bb%d", bb)
	}

	return fmt.Sprintf("switch_int %v, [%s], [%s], bb%d", x.Discr, strings.Join(vals, ", "), strings.Join(bbs, ", "), x.Otherwise)
}

func (x CallTerm) String() string {
	s := fmt.Sprintf("call %v(%s)", x.Fn, joinOperands(x.Args))

	if x.Dest != nil {
		s = fmt.Sprintf("%v = %s -> bb%d", x.Dest.Place, s, x.Dest.Target)
	}

	return s
}

func joinOperands(ops []Operand) string {
	l := make([]string, len(ops))

	for i, op := range ops {
		l[i] = op.String()
	}

	return strings.Join(l, ", ")
}

func optPlace(p *Place) string {
	if p == nil {
		return "none"
	}

	return p.String()
}
