// Package store implements the two-file external store: an append-only
// meta stream of geometry + property records, and a fixed-size index
// array of (morton_key, meta_offset) pairs, both backed by unlinked
// temporary files and later memory-mapped for the emit phase.
package store

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"geojson2tiles/internal/intern"
)

// Kind enumerates the six GeoJSON geometry kinds a meta record may hold.
type Kind int32

const (
	KindPoint Kind = iota
	KindMultiPoint
	KindLineString
	KindMultiLineString
	KindPolygon
	KindMultiPolygon
)

// Primitive is the tile-level geometry primitive a Kind reduces to.
type Primitive int

const (
	PrimitivePoint Primitive = iota
	PrimitiveLine
	PrimitivePolygon
)

// Primitive reports which tile primitive this geometry kind maps to.
func (k Kind) Primitive() Primitive {
	switch k {
	case KindPoint, KindMultiPoint:
		return PrimitivePoint
	case KindLineString, KindMultiLineString:
		return PrimitiveLine
	case KindPolygon, KindMultiPolygon:
		return PrimitivePolygon
	default:
		return PrimitivePoint
	}
}

// Polygonal reports whether this kind terminates its draw-op stream with
// a CLOSEPATH. Only one CLOSEPATH is ever emitted per geometry, not one
// per ring, regardless of how many rings a Polygon/MultiPolygon has.
func (k Kind) Polygonal() bool {
	return k.Primitive() == PrimitivePolygon
}

// Op is a draw-op opcode in the meta stream's geometry stream.
type Op int32

const (
	OpMoveTo Op = iota
	OpLineTo
	OpClosePath
	OpEnd
)

// DrawOp is one decoded operation, with pixel coordinates when
// applicable (MoveTo/LineTo).
type DrawOp struct {
	Op   Op
	X, Y uint32
}

// Property is one decoded (key, value, type) triple from a meta record.
type Property struct {
	Tag   intern.Tag
	Key   string
	Value string
}

// Writer appends meta records sequentially to a backing file, returning
// each record's starting byte offset — the meta_fpos later carried by
// index entries.
type Writer struct {
	f   *os.File
	w   *bufio.Writer
	pos int64
}

// NewWriter wraps an already-open, truncated file for sequential meta
// writes.
func NewWriter(f *os.File) *Writer {
	return &Writer{f: f, w: bufio.NewWriterSize(f, 64*1024)}
}

// Begin starts a new meta record, returning its offset and writing the
// geometry_kind header.
func (w *Writer) Begin(kind Kind) (offset int64, err error) {
	offset = w.pos
	if err := w.writeI32(int32(kind)); err != nil {
		return 0, err
	}
	return offset, nil
}

// MoveTo, LineTo append the corresponding draw op.
func (w *Writer) MoveTo(x, y uint32) error { return w.writeOp(OpMoveTo, x, y) }
func (w *Writer) LineTo(x, y uint32) error { return w.writeOp(OpLineTo, x, y) }

// ClosePath appends a single CLOSEPATH op (polygonal kinds only, once
// per geometry regardless of ring count — see Kind.Polygonal).
func (w *Writer) ClosePath() error { return w.writeOpCode(OpClosePath) }

// EndGeometry terminates the draw-op stream.
func (w *Writer) EndGeometry() error { return w.writeOpCode(OpEnd) }

// WriteProperties writes n_properties followed by each (type_tag, key,
// value) triple as length-prefixed strings.
func (w *Writer) WriteProperties(props []Property) error {
	if err := w.writeI32(int32(len(props))); err != nil {
		return err
	}
	for _, p := range props {
		if err := w.writeI32(int32(p.Tag)); err != nil {
			return err
		}
		if err := w.writeLPString(p.Key); err != nil {
			return err
		}
		if err := w.writeLPString(p.Value); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes buffered writes to the backing file.
func (w *Writer) Flush() error { return w.w.Flush() }

func (w *Writer) writeOp(op Op, x, y uint32) error {
	if err := w.writeOpCode(op); err != nil {
		return err
	}
	if err := w.writeU32(x); err != nil {
		return err
	}
	return w.writeU32(y)
}

func (w *Writer) writeOpCode(op Op) error { return w.writeI32(int32(op)) }

func (w *Writer) writeI32(v int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	n, err := w.w.Write(buf[:])
	w.pos += int64(n)
	return err
}

func (w *Writer) writeU32(v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	n, err := w.w.Write(buf[:])
	w.pos += int64(n)
	return err
}

// writeLPString writes length_including_NUL:i32, the bytes, then a NUL
// byte — the on-disk layout for every string field in a meta record.
func (w *Writer) writeLPString(s string) error {
	n := int32(len(s) + 1)
	if err := w.writeI32(n); err != nil {
		return err
	}
	nb, err := w.w.WriteString(s)
	w.pos += int64(nb)
	if err != nil {
		return err
	}
	if err := w.w.WriteByte(0); err != nil {
		return err
	}
	w.pos++
	return nil
}

// Reader decodes meta records from a mapped, read-only byte slice.
type Reader struct {
	data []byte
}

// NewReader wraps a mapped meta file for random-access decoding.
func NewReader(data []byte) *Reader { return &Reader{data: data} }

// Record is one fully decoded meta record.
type Record struct {
	Kind  Kind
	Ops   []DrawOp
	Props []Property
}

// ReadAt decodes the meta record whose geometry_kind header begins at
// offset. Returns an error if the stream is truncated or a string length
// is invalid; the geometry_kind value itself is not checked — "no
// dangling offsets" is an invariant maintained by the writer, not
// re-validated defensively here.
func (r *Reader) ReadAt(offset int64) (Record, error) {
	p := offset
	kind, err := r.i32At(&p)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	rec.Kind = Kind(kind)

	for {
		opv, err := r.i32At(&p)
		if err != nil {
			return Record{}, err
		}
		op := Op(opv)
		if op == OpEnd {
			break
		}
		var d DrawOp
		d.Op = op
		if op == OpMoveTo || op == OpLineTo {
			x, err := r.u32At(&p)
			if err != nil {
				return Record{}, err
			}
			y, err := r.u32At(&p)
			if err != nil {
				return Record{}, err
			}
			d.X, d.Y = x, y
		}
		rec.Ops = append(rec.Ops, d)
	}

	n, err := r.i32At(&p)
	if err != nil {
		return Record{}, err
	}
	rec.Props = make([]Property, 0, n)
	for i := int32(0); i < n; i++ {
		tag, err := r.i32At(&p)
		if err != nil {
			return Record{}, err
		}
		key, err := r.lpStringAt(&p)
		if err != nil {
			return Record{}, err
		}
		val, err := r.lpStringAt(&p)
		if err != nil {
			return Record{}, err
		}
		rec.Props = append(rec.Props, Property{Tag: intern.Tag(tag), Key: key, Value: val})
	}
	return rec, nil
}

func (r *Reader) i32At(p *int64) (int32, error) {
	if *p+4 > int64(len(r.data)) {
		return 0, io.ErrUnexpectedEOF
	}
	v := int32(binary.LittleEndian.Uint32(r.data[*p : *p+4]))
	*p += 4
	return v, nil
}

func (r *Reader) u32At(p *int64) (uint32, error) {
	if *p+4 > int64(len(r.data)) {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint32(r.data[*p : *p+4])
	*p += 4
	return v, nil
}

func (r *Reader) lpStringAt(p *int64) (string, error) {
	n, err := r.i32At(p)
	if err != nil {
		return "", err
	}
	if n < 1 {
		return "", fmt.Errorf("store: invalid lp_string length %d", n)
	}
	end := *p + int64(n)
	if end > int64(len(r.data)) {
		return "", io.ErrUnexpectedEOF
	}
	s := string(r.data[*p : end-1]) // drop trailing NUL
	*p = end
	return s, nil
}
