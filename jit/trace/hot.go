package trace

import (
	"nikand.dev/go/heap"
)

type Count struct {
	Location
	N int
}

// Hot returns the k most executed locations of t, most frequent first.
// Ties are broken by symbol and block index.
func Hot(t SirTrace, k int) []Count {
	if k <= 0 {
		return nil
	}

	idx := map[Location]int{}
	var cnt []Count

	for i := 0; i < t.Len(); i++ {
		l := t.Loc(i)

		j, ok := idx[l]
		if !ok {
			j = len(cnt)
			idx[l] = j
			cnt = append(cnt, Count{Location: l})
		}

		cnt[j].N++
	}

	h := heap.Heap[Count]{Less: colderLess}

	for _, c := range cnt {
		h.Push(c)

		if h.Len() > k {
			h.Pop()
		}
	}

	r := make([]Count, h.Len())

	for i := len(r) - 1; i >= 0; i-- {
		r[i] = h.Pop()
	}

	return r
}

// colderLess orders the heap so the least interesting count is on top.
func colderLess(d []Count, i, j int) bool {
	return hotter(d[j], d[i])
}

func hotter(a, b Count) bool {
	if a.N != b.N {
		return a.N > b.N
	}

	if a.Symbol != b.Symbol {
		return a.Symbol < b.Symbol
	}

	return a.BB < b.BB
}
