package sir

import (
	"fmt"
	"strings"
	"unsafe"
)

type (
	// Ty is the type of a local variable.
	// Size and Align are in bytes and must agree with the producing compiler.
	Ty interface {
		Size() int
		Align() int
		String() string
	}

	IntWidth uint8

	SignedIntTy struct {
		Width IntWidth
	}

	UnsignedIntTy struct {
		Width IntWidth
	}

	BoolTy struct{}

	StructTy struct {
		Fields    Fields
		SizeAlign SizeAlign
	}

	TupleTy struct {
		Fields    Fields
		SizeAlign SizeAlign
	}

	RefTy struct {
		Pointee TypeID
	}

	// UnimplementedTy is a type the producer had no lowering for.
	// It must never reach execution.
	UnimplementedTy string

	Fields struct {
		Offsets []int
		Tys     []TypeID
	}

	SizeAlign struct {
		Size  int
		Align int
	}

	// Types is the type table of one crate.
	Types struct {
		Crate uint64
		Types []Ty
	}
)

const (
	WidthPtr IntWidth = iota
	Width8
	Width16
	Width32
	Width64
	Width128
)

const PtrSize = int(unsafe.Sizeof(uintptr(0)))

func (w IntWidth) Bytes() int {
	switch w {
	case WidthPtr:
		return PtrSize
	case Width8:
		return 1
	case Width16:
		return 2
	case Width32:
		return 4
	case Width64:
		return 8
	case Width128:
		return 16
	default:
		panic(w)
	}
}

func (w IntWidth) suffix() string {
	switch w {
	case WidthPtr:
		return "size"
	case Width8:
		return "8"
	case Width16:
		return "16"
	case Width32:
		return "32"
	case Width64:
		return "64"
	case Width128:
		return "128"
	default:
		return fmt.Sprintf("?%d", int(w))
	}
}

func (x SignedIntTy) Size() int  { return x.Width.Bytes() }
func (x SignedIntTy) Align() int { return x.Width.Bytes() }

func (x UnsignedIntTy) Size() int  { return x.Width.Bytes() }
func (x UnsignedIntTy) Align() int { return x.Width.Bytes() }

func (x BoolTy) Size() int  { return 1 }
func (x BoolTy) Align() int { return 1 }

func (x StructTy) Size() int  { return x.SizeAlign.Size }
func (x StructTy) Align() int { return x.SizeAlign.Align }

func (x TupleTy) Size() int  { return x.SizeAlign.Size }
func (x TupleTy) Align() int { return x.SizeAlign.Align }

func (x RefTy) Size() int  { return PtrSize }
func (x RefTy) Align() int { return PtrSize }

func (x UnimplementedTy) Size() int  { panic(fmt.Sprintf("size of unimplemented type: %s", string(x))) }
func (x UnimplementedTy) Align() int { panic(fmt.Sprintf("align of unimplemented type: %s", string(x))) }

func (x SignedIntTy) String() string   { return "i" + x.Width.suffix() }
func (x UnsignedIntTy) String() string { return "u" + x.Width.suffix() }
func (x BoolTy) String() string        { return "bool" }
func (x RefTy) String() string         { return "&" + x.Pointee.String() }

func (x UnimplementedTy) String() string { return "unimplemented: " + string(x) }

func (x StructTy) String() string {
	return fmt.Sprintf("struct { %v, %v }", x.Fields, x.SizeAlign)
}

func (x TupleTy) String() string {
	return fmt.Sprintf("tuple { %v, %v }", x.Fields, x.SizeAlign)
}

func (f Fields) String() string {
	var b strings.Builder

	b.WriteString("offsets: [")

	for i, o := range f.Offsets {
		if i != 0 {
			b.WriteString(", ")
		}

		fmt.Fprintf(&b, "%d", o)
	}

	b.WriteString("], tys: [")

	for i, t := range f.Tys {
		if i != 0 {
			b.WriteString(", ")
		}

		b.WriteString(t.String())
	}

	b.WriteString("]")

	return b.String()
}

func (s SizeAlign) String() string {
	return fmt.Sprintf("align: %d, size: %d", s.Align, s.Size)
}

// IsZeroSized reports whether values of t occupy no memory.
func IsZeroSized(t Ty) bool {
	if _, ok := t.(UnimplementedTy); ok {
		return false
	}

	return t.Size() == 0
}
