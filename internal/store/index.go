package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
)

// recordSize is the fixed width of one index record: morton_key (u64) +
// meta_fpos (i64).
const recordSize = 16

// IndexWriter appends fixed-size (morton_key, meta_fpos) records
// sequentially to a backing file during ingest.
type IndexWriter struct {
	f *os.File
	n int64
}

// NewIndexWriter wraps an already-open, truncated file for sequential
// index writes.
func NewIndexWriter(f *os.File) *IndexWriter { return &IndexWriter{f: f} }

// Append writes one index entry.
func (w *IndexWriter) Append(mortonKey uint64, metaFpos int64) error {
	var buf [recordSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], mortonKey)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(metaFpos))
	if _, err := w.f.Write(buf[:]); err != nil {
		return err
	}
	w.n++
	return nil
}

// Len returns the number of entries written so far.
func (w *IndexWriter) Len() int64 { return w.n }

// Index is a typed view over a memory-mapped index file: a fixed-size
// record slice re-expressed as explicit accessors over the raw mapped
// region instead of pointer arithmetic.
type Index struct {
	data []byte
	n    int
}

// NewIndex wraps mapped bytes as an Index. The byte slice's length must
// be an exact multiple of the record size.
func NewIndex(data []byte) (*Index, error) {
	if len(data)%recordSize != 0 {
		return nil, fmt.Errorf("store: index size %d is not a multiple of record size %d", len(data), recordSize)
	}
	return &Index{data: data, n: len(data) / recordSize}, nil
}

// Len returns the number of entries in the index.
func (ix *Index) Len() int { return ix.n }

// Key returns the morton_key of entry i.
func (ix *Index) Key(i int) uint64 {
	off := i * recordSize
	return binary.LittleEndian.Uint64(ix.data[off : off+8])
}

// Fpos returns the meta_fpos of entry i.
func (ix *Index) Fpos(i int) int64 {
	off := i * recordSize
	return int64(binary.LittleEndian.Uint64(ix.data[off+8 : off+16]))
}

// Less and Swap implement sort.Interface's comparator pair; Sort runs
// the bulk in-place sort. Equal-key ordering is left unspecified — range
// search only needs keys non-decreasing, not a stable tie order.
func (ix *Index) Less(i, j int) bool { return ix.Key(i) < ix.Key(j) }

func (ix *Index) Swap(i, j int) {
	oi, oj := i*recordSize, j*recordSize
	var tmp [recordSize]byte
	copy(tmp[:], ix.data[oi:oi+recordSize])
	copy(ix.data[oi:oi+recordSize], ix.data[oj:oj+recordSize])
	copy(ix.data[oj:oj+recordSize], tmp[:])
}

// sortInterface adapts Index to sort.Interface for Sort; its Len reads
// the entry count directly.
type sortInterface struct{ *Index }

func (s sortInterface) Len() int { return s.Index.n }

// Sort sorts the index in place by morton_key ascending (testable
// property 6).
func (ix *Index) Sort() {
	sort.Sort(sortInterface{ix})
}
