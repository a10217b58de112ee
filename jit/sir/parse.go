package sir

import (
	"strconv"
	"strings"

	"tlog.app/go/errors"
)

var intSuffixes = []struct {
	s      string
	signed bool
	w      IntWidth
}{
	// longest first so u128 is not read as u1 + "28"
	{"u128", false, Width128},
	{"i128", true, Width128},
	{"usize", false, WidthPtr},
	{"isize", true, WidthPtr},
	{"u64", false, Width64},
	{"i64", true, Width64},
	{"u32", false, Width32},
	{"i32", true, Width32},
	{"u16", false, Width16},
	{"i16", true, Width16},
	{"u8", false, Width8},
	{"i8", true, Width8},
}

// ParsePlace parses the textual form produced by Place.String: $N followed
// by .K field and .* deref projections.
func ParsePlace(s string) (p Place, err error) {
	if !strings.HasPrefix(s, "$") {
		return p, errors.New("place must start with $: %q", s)
	}

	parts := strings.Split(s[1:], ".")

	l, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return p, errors.Wrap(err, "local of %q", s)
	}

	p.Local = Local(l)

	for _, x := range parts[1:] {
		if x == "*" {
			p.Projection = append(p.Projection, Deref{})
			continue
		}

		f, err := strconv.ParseUint(x, 10, 32)
		if err != nil {
			return p, errors.Wrap(err, "projection %q of %q", x, s)
		}

		p.Projection = append(p.Projection, Field(f))
	}

	return p, nil
}

// ParseConstant parses true, false and suffixed integers like 3u8 or -1i32.
func ParseConstant(s string) (Constant, error) {
	switch s {
	case "true":
		return ConstBool(true), nil
	case "false":
		return ConstBool(false), nil
	}

	for _, suf := range intSuffixes {
		num, ok := strings.CutSuffix(s, suf.s)
		if !ok {
			continue
		}

		neg := strings.HasPrefix(num, "-")
		if neg {
			if !suf.signed {
				return nil, errors.New("negative unsigned constant: %q", s)
			}

			num = num[1:]
		}

		v, ok := ParseU128(num)
		if !ok {
			return nil, errors.New("bad integer constant: %q", s)
		}

		if neg {
			v = v.Neg()
		}

		return IntFromBits(suf.signed, suf.w, v), nil
	}

	return nil, errors.New("unsupported constant: %q", s)
}

// ParseOperand parses a place if s starts with $ and a constant otherwise.
func ParseOperand(s string) (Operand, error) {
	if strings.HasPrefix(s, "$") {
		return ParsePlace(s)
	}

	return ParseConstant(s)
}

// ParseBinOp returns the operator named s, as printed by BinOp.String.
func ParseBinOp(s string) (BinOp, bool) {
	for i, n := range binOpNames {
		if n == s {
			return BinOp(i), true
		}
	}

	return 0, false
}

// ParseFlag returns the body flag named s, as printed by BodyFlags.String.
func ParseFlag(s string) (BodyFlags, bool) {
	for _, x := range flagNames {
		if x.n == s {
			return x.f, true
		}
	}

	return 0, false
}
