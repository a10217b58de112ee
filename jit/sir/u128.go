package sir

import (
	"math/big"
	"math/bits"
	"strconv"
)

// U128 is an unsigned 128-bit integer.
// Switch values, guard values and 128-bit constants are carried in it.
type U128 struct {
	Hi, Lo uint64
}

func U128From64(v uint64) U128 { return U128{Lo: v} }

// U128FromInt64 sign-extends v.
func U128FromInt64(v int64) U128 {
	x := U128{Lo: uint64(v)}

	if v < 0 {
		x.Hi = ^uint64(0)
	}

	return x
}

func (x U128) IsUint64() bool { return x.Hi == 0 }

// Trunc keeps the low n bytes.
func (x U128) Trunc(n int) U128 {
	switch {
	case n >= 16:
		return x
	case n >= 8:
		return U128{Lo: x.Lo, Hi: x.Hi & mask(n*8-64)}
	default:
		return U128{Lo: x.Lo & mask(n*8)}
	}
}

// SignExtend interprets the low n bytes as a two's complement value.
func (x U128) SignExtend(n int) U128 {
	if n >= 16 {
		return x
	}

	x = x.Trunc(n)

	if n > 8 {
		sh := uint(128 - n*8)
		x.Hi = uint64(int64(x.Hi<<sh) >> sh)

		return x
	}

	sh := uint(64 - n*8)
	lo := int64(x.Lo<<sh) >> sh

	return U128FromInt64(lo)
}

func (x U128) Negative() bool { return int64(x.Hi) < 0 }

func (x U128) Neg() U128 {
	lo, c := bits.Add64(^x.Lo, 1, 0)
	hi, _ := bits.Add64(^x.Hi, 0, c)

	return U128{Hi: hi, Lo: lo}
}

func (x U128) String() string {
	if x.Hi == 0 {
		return strconv.FormatUint(x.Lo, 10)
	}

	return x.Big().String()
}

func (x U128) Big() *big.Int {
	b := new(big.Int).SetUint64(x.Hi)
	b.Lsh(b, 64)

	return b.Or(b, new(big.Int).SetUint64(x.Lo))
}

// ParseU128 parses a decimal value, rejecting anything outside [0, 2^128).
func ParseU128(s string) (U128, bool) {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok || b.Sign() < 0 || b.BitLen() > 128 {
		return U128{}, false
	}

	lo := new(big.Int).And(b, new(big.Int).SetUint64(^uint64(0)))
	hi := new(big.Int).Rsh(b, 64)

	return U128{Hi: hi.Uint64(), Lo: lo.Uint64()}, true
}

func mask(bits int) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}

	return 1<<uint(bits) - 1
}
