package pack

import (
	"bytes"
	"context"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"

	"github.com/slowlang/metatrace/jit/sir"
)

type (
	rawPack struct {
		Types  []rawTypes `yaml:"types"`
		Bodies []rawBody  `yaml:"bodies"`
	}

	rawTypes struct {
		Crate uint64      `yaml:"crate"`
		Types []yaml.Node `yaml:"types"`
	}

	rawBody struct {
		Symbol      string     `yaml:"symbol"`
		Flags       []string   `yaml:"flags"`
		TraceInputs *uint32    `yaml:"trace_inputs"`
		Locals      []tyRef    `yaml:"locals"`
		Blocks      []rawBlock `yaml:"blocks"`
	}

	rawBlock struct {
		Stmts []yaml.Node `yaml:"stmts"`
		Term  yaml.Node   `yaml:"term"`
	}

	rawAggregate struct {
		Offsets []int   `yaml:"offsets"`
		Tys     []tyRef `yaml:"tys"`
		Size    int     `yaml:"size"`
		Align   int     `yaml:"align"`
	}

	rawSwitch struct {
		Discr     string      `yaml:"discr"`
		Values    []yaml.Node `yaml:"values"`
		Targets   []uint32    `yaml:"targets"`
		Otherwise uint32      `yaml:"otherwise"`
	}

	rawCall struct {
		Fn     string      `yaml:"fn"`
		Args   []string    `yaml:"args"`
		Dest   string      `yaml:"dest"`
		IDest  yaml.Node   `yaml:"idest"`
		IArgs  []yaml.Node `yaml:"iargs"`
		Target uint32      `yaml:"target"`
	}

	rawAssert struct {
		Cond     string `yaml:"cond"`
		Expected bool   `yaml:"expected"`
		Target   uint32 `yaml:"target"`
	}

	rawDrop struct {
		Place  string `yaml:"place"`
		Value  string `yaml:"value"`
		Target uint32 `yaml:"target"`
	}

	// tyRef is a TypeID written as [crate, index].
	tyRef sir.TypeID
)

var scalarTypes = map[string]sir.Ty{
	"bool":  sir.BoolTy{},
	"u8":    sir.UnsignedIntTy{Width: sir.Width8},
	"u16":   sir.UnsignedIntTy{Width: sir.Width16},
	"u32":   sir.UnsignedIntTy{Width: sir.Width32},
	"u64":   sir.UnsignedIntTy{Width: sir.Width64},
	"u128":  sir.UnsignedIntTy{Width: sir.Width128},
	"usize": sir.UnsignedIntTy{Width: sir.WidthPtr},
	"i8":    sir.SignedIntTy{Width: sir.Width8},
	"i16":   sir.SignedIntTy{Width: sir.Width16},
	"i32":   sir.SignedIntTy{Width: sir.Width32},
	"i64":   sir.SignedIntTy{Width: sir.Width64},
	"i128":  sir.SignedIntTy{Width: sir.Width128},
	"isize": sir.SignedIntTy{Width: sir.WidthPtr},
}

// LoadFile reads a pack from a yaml file.
func LoadFile(ctx context.Context, name string) (*Pack, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read pack")
	}

	p, err := Load(ctx, data)
	if err != nil {
		return nil, errors.Wrap(err, "%v", name)
	}

	return p, nil
}

// Load decodes a yaml pack and builds it with New.
func Load(ctx context.Context, data []byte) (*Pack, error) {
	types, bodies, err := Decode(data)
	if err != nil {
		return nil, err
	}

	return New(ctx, types, bodies)
}

// Decode parses a yaml pack without building it.
func Decode(data []byte) (types []sir.Types, bodies []*sir.Body, err error) {
	var raw rawPack

	d := yaml.NewDecoder(bytes.NewReader(data))
	d.KnownFields(true)

	err = d.Decode(&raw)
	if err != nil {
		return nil, nil, errors.Wrap(err, "decode yaml")
	}

	for _, rt := range raw.Types {
		ts := sir.Types{Crate: rt.Crate}

		for i := range rt.Types {
			t, err := decodeTy(&rt.Types[i])
			if err != nil {
				return nil, nil, errors.Wrap(err, "crate %d: type %d", rt.Crate, i)
			}

			ts.Types = append(ts.Types, t)
		}

		types = append(types, ts)
	}

	for _, rb := range raw.Bodies {
		b, err := decodeBody(rb)
		if err != nil {
			return nil, nil, errors.Wrap(err, "body %v", rb.Symbol)
		}

		bodies = append(bodies, b)
	}

	return types, bodies, nil
}

func (t *tyRef) UnmarshalYAML(n *yaml.Node) error {
	var v []uint64

	err := n.Decode(&v)
	if err != nil {
		return errors.Wrap(err, "type id")
	}

	if len(v) != 2 || v[1] > 1<<32-1 {
		return errors.New("type id: want [crate, index], got %v (line %d)", v, n.Line)
	}

	*t = tyRef{Crate: v[0], Index: uint32(v[1])}

	return nil
}

func decodeTy(n *yaml.Node) (sir.Ty, error) {
	tag, v, err := variant(n)
	if err != nil {
		return nil, err
	}

	if v == nil {
		t, ok := scalarTypes[tag]
		if !ok {
			return nil, errors.New("unknown type %q (line %d)", tag, n.Line)
		}

		return t, nil
	}

	switch tag {
	case "struct", "tuple":
		var a rawAggregate

		err = v.Decode(&a)
		if err != nil {
			return nil, errors.Wrap(err, "%v", tag)
		}

		f := sir.Fields{Offsets: a.Offsets, Tys: typeIDs(a.Tys)}
		sa := sir.SizeAlign{Size: a.Size, Align: a.Align}

		if tag == "struct" {
			return sir.StructTy{Fields: f, SizeAlign: sa}, nil
		}

		return sir.TupleTy{Fields: f, SizeAlign: sa}, nil
	case "ref":
		var r tyRef

		err = v.Decode(&r)
		if err != nil {
			return nil, errors.Wrap(err, "ref")
		}

		return sir.RefTy{Pointee: sir.TypeID(r)}, nil
	case "unimplemented":
		return sir.UnimplementedTy(v.Value), nil
	default:
		return nil, errors.New("unknown type kind %q (line %d)", tag, n.Line)
	}
}

func decodeBody(rb rawBody) (b *sir.Body, err error) {
	b = &sir.Body{
		Symbol: rb.Symbol,
	}

	if b.Symbol == "" {
		return nil, errors.New("no symbol")
	}

	for _, f := range rb.Flags {
		x, ok := sir.ParseFlag(f)
		if !ok {
			return nil, errors.New("unknown flag %q", f)
		}

		b.Flags |= x
	}

	if rb.TraceInputs != nil {
		l := sir.Local(*rb.TraceInputs)
		b.TraceInputs = &l
	}

	for _, t := range rb.Locals {
		b.Locals = append(b.Locals, sir.LocalDecl{Ty: sir.TypeID(t)})
	}

	for i, rbb := range rb.Blocks {
		var bb sir.BasicBlock

		for j := range rbb.Stmts {
			s, err := decodeStmt(&rbb.Stmts[j])
			if err != nil {
				return nil, errors.Wrap(err, "bb%d: stmt %d", i, j)
			}

			bb.Stmts = append(bb.Stmts, s)
		}

		bb.Term, err = decodeTerm(&rbb.Term)
		if err != nil {
			return nil, errors.Wrap(err, "bb%d: term", i)
		}

		b.Blocks = append(b.Blocks, bb)
	}

	return b, nil
}

func decodeStmt(n *yaml.Node) (sir.Statement, error) {
	tag, v, err := variant(n)
	if err != nil {
		return nil, err
	}

	switch tag {
	case "nop":
		return sir.Nop{}, nil
	case "assign":
		args, err := seq(v, 2)
		if err != nil {
			return nil, errors.Wrap(err, "assign")
		}

		p, err := sir.ParsePlace(args[0].Value)
		if err != nil {
			return nil, errors.Wrap(err, "assign")
		}

		r, err := decodeRvalue(args[1])
		if err != nil {
			return nil, errors.Wrap(err, "assign")
		}

		return sir.Assign{Place: p, Rvalue: r}, nil
	case "dead":
		var l uint32

		err = v.Decode(&l)
		if err != nil {
			return nil, errors.Wrap(err, "dead")
		}

		return sir.StorageDead{Local: sir.Local(l)}, nil
	case "store", "mkref":
		args, err := seq(v, 2)
		if err != nil {
			return nil, errors.Wrap(err, "%v", tag)
		}

		dst, err := decodeIPlace(args[0])
		if err != nil {
			return nil, errors.Wrap(err, "%v: dst", tag)
		}

		src, err := decodeIPlace(args[1])
		if err != nil {
			return nil, errors.Wrap(err, "%v: src", tag)
		}

		if tag == "store" {
			return sir.Store{Dst: dst, Src: src}, nil
		}

		return sir.MkRef{Dst: dst, Src: src}, nil
	case "unimplemented":
		return sir.Unimplemented(value(v)), nil
	default:
		return nil, errors.New("unknown statement %q (line %d)", tag, n.Line)
	}
}

func decodeRvalue(n *yaml.Node) (sir.Rvalue, error) {
	tag, v, err := variant(n)
	if err != nil {
		return nil, err
	}

	if v == nil {
		op, err := sir.ParseOperand(tag)
		if err != nil {
			return nil, err
		}

		return sir.Use{Op: op}, nil
	}

	switch tag {
	case "ref":
		p, err := sir.ParsePlace(v.Value)
		if err != nil {
			return nil, errors.Wrap(err, "ref")
		}

		return sir.Ref{Place: p}, nil
	case "unimplemented":
		return sir.UnimplementedRvalue(v.Value), nil
	}

	name, checked := strings.CutPrefix(tag, "checked_")

	op, ok := sir.ParseBinOp(name)
	if !ok {
		return nil, errors.New("unknown rvalue %q (line %d)", tag, n.Line)
	}

	args, err := seq(v, 2)
	if err != nil {
		return nil, errors.Wrap(err, "%v", tag)
	}

	l, err := sir.ParseOperand(args[0].Value)
	if err != nil {
		return nil, errors.Wrap(err, "%v", tag)
	}

	r, err := sir.ParseOperand(args[1].Value)
	if err != nil {
		return nil, errors.Wrap(err, "%v", tag)
	}

	if checked {
		return sir.CheckedBinaryOp{Op: op, L: l, R: r}, nil
	}

	return sir.BinaryOp{Op: op, L: l, R: r}, nil
}

func decodeIPlace(n *yaml.Node) (sir.IPlace, error) {
	tag, v, err := variant(n)
	if err != nil {
		return nil, err
	}

	if v == nil {
		return nil, errors.New("bare iplace %q (line %d)", tag, n.Line)
	}

	switch tag {
	case "val":
		args, err := seq(v, 3)
		if err != nil {
			return nil, errors.Wrap(err, "val")
		}

		var x struct {
			l   uint32
			off int
			ty  tyRef
		}

		err = decodeAll(args, &x.l, &x.off, &x.ty)
		if err != nil {
			return nil, errors.Wrap(err, "val")
		}

		return sir.Val{Local: sir.Local(x.l), Off: x.off, Ty: sir.TypeID(x.ty)}, nil
	case "indirect":
		args, err := seq(v, 4)
		if err != nil {
			return nil, errors.Wrap(err, "indirect")
		}

		var x struct {
			l      uint32
			ptrOff int
			off    int
			ty     tyRef
		}

		err = decodeAll(args, &x.l, &x.ptrOff, &x.off, &x.ty)
		if err != nil {
			return nil, errors.Wrap(err, "indirect")
		}

		return sir.Indirect{
			Ptr: sir.PtrLoc{Local: sir.Local(x.l), Off: x.ptrOff},
			Off: x.off,
			Ty:  sir.TypeID(x.ty),
		}, nil
	case "const":
		args, err := seq(v, 2)
		if err != nil {
			return nil, errors.Wrap(err, "const")
		}

		c, err := sir.ParseConstant(args[0].Value)
		if err != nil {
			return nil, errors.Wrap(err, "const")
		}

		var ty tyRef

		err = args[1].Decode(&ty)
		if err != nil {
			return nil, errors.Wrap(err, "const")
		}

		return sir.Const{Val: c, Ty: sir.TypeID(ty)}, nil
	default:
		return nil, errors.New("unknown iplace %q (line %d)", tag, n.Line)
	}
}

func decodeTerm(n *yaml.Node) (sir.Terminator, error) {
	if n.Kind == 0 {
		return nil, errors.New("missing terminator")
	}

	tag, v, err := variant(n)
	if err != nil {
		return nil, err
	}

	switch tag {
	case "return":
		return sir.Return{}, nil
	case "unreachable":
		return sir.Unreachable{}, nil
	case "goto":
		var bb uint32

		err = v.Decode(&bb)
		if err != nil {
			return nil, errors.Wrap(err, "goto")
		}

		return sir.Goto{Target: sir.BasicBlockIndex(bb)}, nil
	case "switch":
		var r rawSwitch

		err = v.Decode(&r)
		if err != nil {
			return nil, errors.Wrap(err, "switch")
		}

		return decodeSwitch(r)
	case "call":
		var r rawCall

		err = v.Decode(&r)
		if err != nil {
			return nil, errors.Wrap(err, "call")
		}

		return decodeCall(r)
	case "assert":
		var r rawAssert

		err = v.Decode(&r)
		if err != nil {
			return nil, errors.Wrap(err, "assert")
		}

		p, err := sir.ParsePlace(r.Cond)
		if err != nil {
			return nil, errors.Wrap(err, "assert")
		}

		return sir.Assert{Cond: p, Expected: r.Expected, Target: sir.BasicBlockIndex(r.Target)}, nil
	case "drop":
		var r rawDrop

		err = v.Decode(&r)
		if err != nil {
			return nil, errors.Wrap(err, "drop")
		}

		p, err := sir.ParsePlace(r.Place)
		if err != nil {
			return nil, errors.Wrap(err, "drop")
		}

		if r.Value == "" {
			return sir.Drop{Location: p, Target: sir.BasicBlockIndex(r.Target)}, nil
		}

		op, err := sir.ParseOperand(r.Value)
		if err != nil {
			return nil, errors.Wrap(err, "drop")
		}

		return sir.DropAndReplace{Location: p, Value: op, Target: sir.BasicBlockIndex(r.Target)}, nil
	case "unimplemented":
		return sir.UnimplementedTerm(value(v)), nil
	default:
		return nil, errors.New("unknown terminator %q (line %d)", tag, n.Line)
	}
}

func decodeSwitch(r rawSwitch) (sir.Terminator, error) {
	discr, err := sir.ParsePlace(r.Discr)
	if err != nil {
		return nil, errors.Wrap(err, "switch")
	}

	if len(r.Values) != len(r.Targets) {
		return nil, errors.New("switch: %d values for %d targets", len(r.Values), len(r.Targets))
	}

	t := sir.SwitchInt{
		Discr:     discr,
		Otherwise: sir.BasicBlockIndex(r.Otherwise),
	}

	for _, v := range r.Values {
		x, ok := sir.ParseU128(v.Value)
		if !ok {
			return nil, errors.New("switch: bad value %q (line %d)", v.Value, v.Line)
		}

		t.Values = append(t.Values, x)
	}

	for _, bb := range r.Targets {
		t.Targets = append(t.Targets, sir.BasicBlockIndex(bb))
	}

	return t, nil
}

func decodeCall(r rawCall) (sir.Terminator, error) {
	t := sir.CallTerm{
		Fn: sir.Fn(r.Fn),
	}

	for _, a := range r.Args {
		op, err := sir.ParseOperand(a)
		if err != nil {
			return nil, errors.Wrap(err, "call: arg")
		}

		t.Args = append(t.Args, op)
	}

	for i := range r.IArgs {
		ip, err := decodeIPlace(&r.IArgs[i])
		if err != nil {
			return nil, errors.Wrap(err, "call: iarg %d", i)
		}

		t.IArgs = append(t.IArgs, ip)
	}

	if r.Dest == "" {
		return t, nil
	}

	p, err := sir.ParsePlace(r.Dest)
	if err != nil {
		return nil, errors.Wrap(err, "call: dest")
	}

	t.Dest = &sir.CallDest{
		Place:  p,
		Target: sir.BasicBlockIndex(r.Target),
	}

	if r.IDest.Kind != 0 {
		t.Dest.IPlace, err = decodeIPlace(&r.IDest)
		if err != nil {
			return nil, errors.Wrap(err, "call: idest")
		}
	}

	return t, nil
}

// variant splits a tagged node: a bare scalar is a tag without a value,
// a single-key mapping is a tag with a value.
func variant(n *yaml.Node) (string, *yaml.Node, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Value, nil, nil
	case yaml.MappingNode:
		if len(n.Content) != 2 {
			return "", nil, errors.New("want single-key mapping, got %d keys (line %d)", len(n.Content)/2, n.Line)
		}

		return n.Content[0].Value, n.Content[1], nil
	default:
		return "", nil, errors.New("unexpected yaml node kind %v (line %d)", n.Kind, n.Line)
	}
}

func seq(n *yaml.Node, l int) ([]*yaml.Node, error) {
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil, errors.New("want sequence")
	}

	if len(n.Content) != l {
		return nil, errors.New("want %d elements, got %d (line %d)", l, len(n.Content), n.Line)
	}

	return n.Content, nil
}

func decodeAll(ns []*yaml.Node, dst ...any) error {
	for i, n := range ns {
		err := n.Decode(dst[i])
		if err != nil {
			return errors.Wrap(err, "element %d", i)
		}
	}

	return nil
}

func value(v *yaml.Node) string {
	if v == nil {
		return ""
	}

	return v.Value
}

func typeIDs(l []tyRef) []sir.TypeID {
	r := make([]sir.TypeID, len(l))

	for i, t := range l {
		r[i] = sir.TypeID(t)
	}

	return r
}
