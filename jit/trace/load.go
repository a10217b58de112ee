package trace

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"

	"github.com/slowlang/metatrace/jit/sir"
)

type rawLoc struct {
	Sym string `yaml:"sym"`
	BB  uint32 `yaml:"bb"`
}

// LoadFile reads a trace written as a yaml list of {sym, bb} entries.
func LoadFile(name string) (Locs, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read trace")
	}

	t, err := Decode(data)
	if err != nil {
		return nil, errors.Wrap(err, "%v", name)
	}

	return t, nil
}

func Decode(data []byte) (Locs, error) {
	var raw []rawLoc

	d := yaml.NewDecoder(bytes.NewReader(data))
	d.KnownFields(true)

	err := d.Decode(&raw)
	if err != nil {
		return nil, errors.Wrap(err, "decode yaml")
	}

	t := make(Locs, len(raw))

	for i, r := range raw {
		t[i] = Location{Symbol: r.Sym, BB: sir.BasicBlockIndex(r.BB)}
	}

	return t, nil
}

// Encode writes t in the format Decode reads.
func Encode(t SirTrace) ([]byte, error) {
	raw := make([]rawLoc, t.Len())

	for i := range raw {
		l := t.Loc(i)
		raw[i] = rawLoc{Sym: l.Symbol, BB: uint32(l.BB)}
	}

	return yaml.Marshal(raw)
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "software", "sw":
		return SoftwareTracing, nil
	case "hardware", "hw":
		return HardwareTracing, nil
	default:
		return 0, errors.New("unknown tracing kind: %q", s)
	}
}
