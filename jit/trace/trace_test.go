package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocs(t *testing.T) {
	l := Locs{{Symbol: "f", BB: 1}, {BB: 3}}

	assert.Equal(t, 2, l.Len())
	assert.Equal(t, "f:bb1", l.Loc(0).String())
	assert.Equal(t, "<unknown>:bb3", l.Loc(1).String())
	assert.True(t, l.Loc(0).Known())
	assert.False(t, l.Loc(1).Known())

	assert.Panics(t, func() { l.Loc(2) })
	assert.Panics(t, func() { l.Loc(-1) })
}

func TestIter(t *testing.T) {
	it := NewIter(Locs{{Symbol: "a"}, {Symbol: "b", BB: 1}})

	p, ok := it.Peek()
	assert.True(t, ok)
	assert.Equal(t, Location{Symbol: "a"}, p)

	n, ok := it.Next()
	assert.True(t, ok)
	assert.Equal(t, p, n)
	assert.Equal(t, 1, it.Pos())

	n, ok = it.Next()
	assert.True(t, ok)
	assert.Equal(t, Location{Symbol: "b", BB: 1}, n)

	_, ok = it.Peek()
	assert.False(t, ok)

	_, ok = it.Next()
	assert.False(t, ok)
}

func TestDecodeEncode(t *testing.T) {
	l, err := Decode([]byte(`
- {sym: work, bb: 1}
- {sym: bump, bb: 0}
- {bb: 7}
`))
	require.NoError(t, err)
	assert.Equal(t, Locs{{Symbol: "work", BB: 1}, {Symbol: "bump"}, {BB: 7}}, l)

	data, err := Encode(l)
	require.NoError(t, err)

	l2, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, l, l2)

	_, err = Decode([]byte(`- {symbol: work}`))
	assert.Error(t, err)
}

func TestHot(t *testing.T) {
	l := Locs{
		{Symbol: "w", BB: 1},
		{Symbol: "w", BB: 2},
		{Symbol: "b", BB: 0},
		{Symbol: "w", BB: 2},
		{Symbol: "b", BB: 0},
		{Symbol: "w", BB: 2},
		{Symbol: "w", BB: 4},
	}

	assert.Equal(t, []Count{
		{Location: Location{Symbol: "w", BB: 2}, N: 3},
		{Location: Location{Symbol: "b", BB: 0}, N: 2},
		{Location: Location{Symbol: "w", BB: 1}, N: 1},
	}, Hot(l, 3))

	assert.Len(t, Hot(l, 10), 4)
	assert.Nil(t, Hot(l, 0))
	assert.Empty(t, Hot(Locs{}, 2))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("sw")
	require.NoError(t, err)
	assert.Equal(t, SoftwareTracing, k)

	k, err = ParseKind("hardware")
	require.NoError(t, err)
	assert.Equal(t, HardwareTracing, k)
	assert.Equal(t, "hardware", k.String())

	_, err = ParseKind("magic")
	assert.Error(t, err)
}
