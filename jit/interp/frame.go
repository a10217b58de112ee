package interp

import (
	"encoding/binary"
	"unsafe"

	"tlog.app/go/errors"

	"github.com/slowlang/metatrace/jit/sir"
)

type (
	// StackFrame is one body activation: a raw memory block laid out like the
	// body's locals. Offsets are shared with the body.
	StackFrame struct {
		mem     []uint64
		base    unsafe.Pointer
		offsets []int
		layout  sir.SizeAlign
	}
)

var littleEndian = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

func newFrame(b *sir.Body) *StackFrame {
	if !b.LaidOut() {
		panic(errors.New("%v: body has no layout", b.Symbol))
	}

	l := b.Layout

	// Over-allocate so the base can be aligned. Never empty so base is a valid pointer.
	words := (l.Size+l.Align-1)/8 + 1
	mem := make([]uint64, words)

	base := unsafe.Pointer(&mem[0])
	if pad := sir.AlignUp(int(uintptr(base)), l.Align) - int(uintptr(base)); pad != 0 {
		base = unsafe.Add(base, pad)
	}

	return &StackFrame{
		mem:     mem,
		base:    base,
		offsets: b.Offsets,
		layout:  l,
	}
}

// Size is the size of the frame's locals in bytes.
func (f *StackFrame) Size() int { return f.layout.Size }

// LocalPtr returns the address of local l.
func (f *StackFrame) LocalPtr(l sir.Local) unsafe.Pointer {
	if int(l) >= len(f.offsets) {
		panic(errors.New("local %v out of range (%d locals)", l, len(f.offsets)))
	}

	return unsafe.Add(f.base, f.offsets[l])
}

// slot returns the address of size bytes at l+off, checked against the frame bounds.
func (f *StackFrame) slot(l sir.Local, off, size int) unsafe.Pointer {
	if int(l) >= len(f.offsets) {
		panic(errors.New("local %v out of range (%d locals)", l, len(f.offsets)))
	}

	start := f.offsets[l] + off
	if off < 0 || start+size > f.layout.Size {
		panic(errors.New("access %v+%d of %d bytes overflows frame of %d bytes", l, off, size, f.layout.Size))
	}

	return unsafe.Add(f.base, start)
}

// release drops the frame memory. The frame must not be used after.
func (f *StackFrame) release() {
	f.mem = nil
	f.base = nil
}

func writeVal(dst, src unsafe.Pointer, size int) {
	if size == 0 {
		return
	}

	copy(unsafe.Slice((*byte)(dst), size), unsafe.Slice((*byte)(src), size))
}

func writeInt(dst unsafe.Pointer, bits sir.U128, size int) {
	switch size {
	case 1:
		*(*uint8)(dst) = uint8(bits.Lo)
	case 2:
		*(*uint16)(dst) = uint16(bits.Lo)
	case 4:
		*(*uint32)(dst) = uint32(bits.Lo)
	case 8:
		*(*uint64)(dst) = bits.Lo
	case 16:
		lo, hi := dst, unsafe.Add(dst, 8)
		if !littleEndian {
			lo, hi = hi, lo
		}

		*(*uint64)(lo) = bits.Lo
		*(*uint64)(hi) = bits.Hi
	default:
		panic(size)
	}
}

func writePtr(dst, p unsafe.Pointer) {
	*(*uintptr)(dst) = uintptr(p)
}

func readPtr(src unsafe.Pointer) unsafe.Pointer {
	return unsafe.Pointer(*(*uintptr)(src))
}
