package store

import "sort"

// LowerBound returns the smallest index i in [0, Len()] such that
// Key(i) >= key (or Len() if no such entry exists).
func (ix *Index) LowerBound(key uint64) int {
	return sort.Search(ix.n, func(i int) bool { return ix.Key(i) >= key })
}

// UpperBound returns the smallest index i in [0, Len()] such that
// Key(i) > key.
func (ix *Index) UpperBound(key uint64) int {
	return sort.Search(ix.n, func(i int) bool { return ix.Key(i) > key })
}

// RangeSearch returns the half-open index range [begin, end) of entries
// whose keys fall in the inclusive range [start, end], clamped to the
// array.
func (ix *Index) RangeSearch(start, end uint64) (begin, stop int) {
	begin = ix.LowerBound(start)
	stop = ix.UpperBound(end)
	if begin > stop {
		begin = stop
	}
	return begin, stop
}
