package sir

import (
	"tlog.app/go/errors"
)

type TypeLookup interface {
	Ty(id TypeID) (Ty, bool)
}

// LayOut computes the activation record of b: locals are placed like the fields
// of a struct in declaration order.
func (b *Body) LayOut(tys TypeLookup) error {
	offsets := make([]int, len(b.Locals))
	size, align := 0, 1

	for i, d := range b.Locals {
		t, ok := tys.Ty(d.Ty)
		if !ok {
			return errors.New("local $%d: unknown type %v", i, d.Ty)
		}

		if u, ok := t.(UnimplementedTy); ok {
			return errors.New("local $%d: %v", i, u)
		}

		a := t.Align()
		if a <= 0 || a&(a-1) != 0 {
			return errors.New("local $%d: bad alignment %d of %v", i, a, t)
		}

		align = max(align, a)

		// zero-sized locals all sit at offset 0
		if t.Size() == 0 {
			continue
		}

		size = AlignUp(size, a)
		offsets[i] = size
		size += t.Size()
	}

	b.Offsets = offsets
	b.Layout = SizeAlign{
		Size:  AlignUp(size, align),
		Align: align,
	}

	return nil
}

// CheckFields verifies every field of an aggregate fits into its declared size.
func CheckFields(tys TypeLookup, t Ty) error {
	var f Fields
	var sa SizeAlign

	switch t := t.(type) {
	case StructTy:
		f, sa = t.Fields, t.SizeAlign
	case TupleTy:
		f, sa = t.Fields, t.SizeAlign
	default:
		return nil
	}

	if len(f.Offsets) != len(f.Tys) {
		return errors.New("%d offsets for %d fields", len(f.Offsets), len(f.Tys))
	}

	if sa.Align <= 0 || sa.Align&(sa.Align-1) != 0 {
		return errors.New("bad alignment %d", sa.Align)
	}

	for i, id := range f.Tys {
		ft, ok := tys.Ty(id)
		if !ok {
			return errors.New("field %d: unknown type %v", i, id)
		}

		if _, ok := ft.(UnimplementedTy); ok {
			continue
		}

		if off := f.Offsets[i]; off < 0 || off+ft.Size() > sa.Size {
			return errors.New("field %d: %v at offset %d overflows size %d", i, ft, off, sa.Size)
		}
	}

	return nil
}

func AlignUp(x, a int) int {
	return (x + a - 1) &^ (a - 1)
}
