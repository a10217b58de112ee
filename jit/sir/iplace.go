package sir

import "fmt"

type (
	// IPlace is a place resolved to byte offsets, as consumed by the interpreter.
	IPlace interface {
		TypeID() TypeID
		String() string
	}

	// Val lives directly in the frame at Local+Off.
	Val struct {
		Local Local
		Off   int
		Ty    TypeID
	}

	// Indirect is reached through the pointer stored at Ptr.
	// Off is added to the pointer value after dereferencing.
	Indirect struct {
		Ptr PtrLoc
		Off int
		Ty  TypeID
	}

	// PtrLoc is where the pointer of an Indirect is stored.
	PtrLoc struct {
		Local Local
		Off   int
	}

	// Const is an embedded constant. It has no address.
	Const struct {
		Val Constant
		Ty  TypeID
	}
)

func (x Val) TypeID() TypeID      { return x.Ty }
func (x Indirect) TypeID() TypeID { return x.Ty }
func (x Const) TypeID() TypeID    { return x.Ty }

func (x Val) String() string      { return fmt.Sprintf("%v+%d", x.Local, x.Off) }
func (x Indirect) String() string { return fmt.Sprintf("*(%v+%d)+%d", x.Ptr.Local, x.Ptr.Off, x.Off) }
func (x Const) String() string    { return x.Val.String() }

// IPlaceLocal returns the frame local an IPlace reads, if any.
func IPlaceLocal(p IPlace) (Local, bool) {
	switch p := p.(type) {
	case Val:
		return p.Local, true
	case Indirect:
		return p.Ptr.Local, true
	case Const:
		return 0, false
	default:
		panic(p)
	}
}

// WithIPlaceLocal rebases p onto l.
func WithIPlaceLocal(p IPlace, l Local) IPlace {
	switch p := p.(type) {
	case Val:
		p.Local = l
		return p
	case Indirect:
		p.Ptr.Local = l
		return p
	case Const:
		return p
	default:
		panic(p)
	}
}
