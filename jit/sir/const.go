package sir

import (
	"fmt"
	"strconv"
)

type (
	Constant interface {
		Operand
		isConstant()
	}

	// ConstInt is an integer constant. Bits holds the two's complement
	// representation truncated to Width.
	ConstInt struct {
		Signed bool
		Width  IntWidth
		Bits   U128
	}

	ConstBool bool

	// ConstTuple is the value of a zero-sized tuple type.
	ConstTuple TypeID

	UnimplementedConst string
)

func (ConstInt) isOperand()           {}
func (ConstBool) isOperand()          {}
func (ConstTuple) isOperand()         {}
func (UnimplementedConst) isOperand() {}

func (ConstInt) isConstant()           {}
func (ConstBool) isConstant()          {}
func (ConstTuple) isConstant()         {}
func (UnimplementedConst) isConstant() {}

// IntFromBits builds an integer constant from raw bits, truncating to the width.
func IntFromBits(signed bool, w IntWidth, bits U128) ConstInt {
	return ConstInt{Signed: signed, Width: w, Bits: bits.Trunc(w.Bytes())}
}

func Uint(w IntWidth, v uint64) ConstInt { return IntFromBits(false, w, U128From64(v)) }
func Int(w IntWidth, v int64) ConstInt   { return IntFromBits(true, w, U128FromInt64(v)) }

func U8(v uint8) ConstInt      { return Uint(Width8, uint64(v)) }
func Usize(v uint64) ConstInt  { return Uint(WidthPtr, v) }
func I32(v int32) ConstInt     { return Int(Width32, int64(v)) }
func Isize(v int64) ConstInt   { return Int(WidthPtr, v) }
func Bool(v bool) ConstBool    { return ConstBool(v) }
func Unit(t TypeID) ConstTuple { return ConstTuple(t) }

// Ty returns the type of an integer constant.
func (c ConstInt) Ty() Ty {
	if c.Signed {
		return SignedIntTy{Width: c.Width}
	}

	return UnsignedIntTy{Width: c.Width}
}

// I64Cast returns a value suitable for a 64-bit register, sign-extended if signed.
func (c ConstInt) I64Cast() int64 {
	if c.Width == Width128 {
		panic(fmt.Sprintf("i64 cast of 128-bit constant %v", c))
	}

	if c.Signed {
		return int64(c.Bits.SignExtend(c.Width.Bytes()).Lo)
	}

	return int64(c.Bits.Lo)
}

func (c ConstBool) I64Cast() int64 {
	if c {
		return 1
	}

	return 0
}

func (c ConstInt) String() string {
	v := c.Bits.String()

	if c.Signed {
		x := c.Bits.SignExtend(c.Width.Bytes())
		if x.Negative() {
			v = "-" + x.Neg().String()
		}
	}

	return v + c.Ty().String()
}

func (c ConstBool) String() string          { return strconv.FormatBool(bool(c)) }
func (c ConstTuple) String() string         { return "()" + TypeID(c).String() }
func (c UnimplementedConst) String() string { return fmt.Sprintf("unimplemented constant: %q", string(c)) }
