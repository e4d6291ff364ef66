package ingest

import (
	"os"
	"strings"
	"testing"

	"geojson2tiles/internal/coord"
	"geojson2tiles/internal/intern"
	"geojson2tiles/internal/store"
)

func newRunFiles(t *testing.T) (*store.Writer, *store.IndexWriter, func() (*store.Reader, *store.Index)) {
	t.Helper()
	metaFile, err := os.CreateTemp(t.TempDir(), "meta-*")
	if err != nil {
		t.Fatal(err)
	}
	indexFile, err := os.CreateTemp(t.TempDir(), "index-*")
	if err != nil {
		t.Fatal(err)
	}

	mw := store.NewWriter(metaFile)
	iw := store.NewIndexWriter(indexFile)

	finish := func() (*store.Reader, *store.Index) {
		if err := mw.Flush(); err != nil {
			t.Fatal(err)
		}
		metaData, err := os.ReadFile(metaFile.Name())
		if err != nil {
			t.Fatal(err)
		}
		idxInfo, err := indexFile.Stat()
		if err != nil {
			t.Fatal(err)
		}
		idxData := make([]byte, idxInfo.Size())
		if _, err := indexFile.ReadAt(idxData, 0); err != nil {
			t.Fatal(err)
		}
		ix, err := store.NewIndex(idxData)
		if err != nil {
			t.Fatal(err)
		}
		return store.NewReader(metaData), ix
	}
	return mw, iw, finish
}

// S1: a single Point feature at the origin.
func TestIngestPointFeature(t *testing.T) {
	mw, iw, finish := newRunFiles(t)
	ig := NewIngester(mw, iw, 14)

	src := `{"type":"Feature","properties":{"name":"A"},"geometry":{"type":"Point","coordinates":[0,0]}}`
	if err := ig.IngestSource("s1", strings.NewReader(src)); err != nil {
		t.Fatal(err)
	}
	if ig.Stats.FeaturesAccepted != 1 || ig.Stats.FeaturesSkipped != 0 {
		t.Fatalf("stats = %+v", ig.Stats)
	}

	meta, idx := finish()
	if idx.Len() != 1 {
		t.Fatalf("index entries = %d, want 1", idx.Len())
	}
	rec, err := meta.ReadAt(idx.Fpos(0))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Kind != store.KindPoint {
		t.Errorf("Kind = %v, want Point", rec.Kind)
	}
	if len(rec.Ops) != 1 || rec.Ops[0].Op != store.OpMoveTo {
		t.Fatalf("ops = %+v, want one MoveTo", rec.Ops)
	}
	half := uint32(1 << 31)
	if rec.Ops[0].X != half || rec.Ops[0].Y != half {
		t.Errorf("MoveTo = (%d,%d), want (%d,%d)", rec.Ops[0].X, rec.Ops[0].Y, half, half)
	}
	wantKey := coord.Encode(half, half)
	if idx.Key(0) != wantKey {
		t.Errorf("index key = %d, want %d", idx.Key(0), wantKey)
	}
}

// S3: a Polygon with one ring must produce exactly one CLOSEPATH.
func TestIngestPolygonSingleClosePath(t *testing.T) {
	mw, iw, finish := newRunFiles(t)
	ig := NewIngester(mw, iw, 14)

	src := `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}`
	if err := ig.IngestSource("s3", strings.NewReader(src)); err != nil {
		t.Fatal(err)
	}
	meta, idx := finish()
	rec, err := meta.ReadAt(idx.Fpos(0))
	if err != nil {
		t.Fatal(err)
	}
	closes := 0
	for _, op := range rec.Ops {
		if op.Op == store.OpClosePath {
			closes++
		}
	}
	if closes != 1 {
		t.Errorf("CLOSEPATH count = %d, want 1", closes)
	}
}

// S4: MultiPoint positions are all MOVETO.
func TestIngestMultiPointAllMoveTo(t *testing.T) {
	mw, iw, finish := newRunFiles(t)
	ig := NewIngester(mw, iw, 14)

	src := `{"type":"Feature","properties":{},"geometry":{"type":"MultiPoint","coordinates":[[0,0],[10,10]]}}`
	if err := ig.IngestSource("s4", strings.NewReader(src)); err != nil {
		t.Fatal(err)
	}
	meta, idx := finish()
	rec, err := meta.ReadAt(idx.Fpos(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Ops) != 2 {
		t.Fatalf("ops = %+v, want 2", rec.Ops)
	}
	for i, op := range rec.Ops {
		if op.Op != store.OpMoveTo {
			t.Errorf("op[%d] = %v, want MoveTo", i, op.Op)
		}
	}
}

// S5: mixed property types are tagged correctly.
func TestIngestMixedPropertyTypes(t *testing.T) {
	mw, iw, finish := newRunFiles(t)
	ig := NewIngester(mw, iw, 14)

	src := `{"type":"Feature","properties":{"rank":3,"ok":true,"name":"X"},"geometry":{"type":"Point","coordinates":[1,1]}}`
	if err := ig.IngestSource("s5", strings.NewReader(src)); err != nil {
		t.Fatal(err)
	}
	meta, idx := finish()
	rec, err := meta.ReadAt(idx.Fpos(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Props) != 3 {
		t.Fatalf("props = %+v, want 3 entries", rec.Props)
	}
	byKey := map[string]store.Property{}
	for _, p := range rec.Props {
		byKey[p.Key] = p
	}
	if byKey["rank"].Tag != intern.TagNumber || byKey["rank"].Value != "3" {
		t.Errorf("rank tag/value = %+v", byKey["rank"])
	}
	if byKey["ok"].Tag != intern.TagBoolean || byKey["ok"].Value != "true" {
		t.Errorf("ok tag/value = %+v", byKey["ok"])
	}
	if byKey["name"].Tag != intern.TagString || byKey["name"].Value != "X" {
		t.Errorf("name tag/value = %+v", byKey["name"])
	}
}

// S6: a GeometryCollection feature is skipped, no index entries.
func TestIngestGeometryCollectionSkipped(t *testing.T) {
	mw, iw, finish := newRunFiles(t)
	ig := NewIngester(mw, iw, 14)

	src := `{"type":"Feature","properties":{},"geometry":{"type":"GeometryCollection","geometries":[]}}`
	if err := ig.IngestSource("s6", strings.NewReader(src)); err != nil {
		t.Fatal(err)
	}
	if ig.Stats.FeaturesAccepted != 0 || ig.Stats.FeaturesSkipped != 1 {
		t.Fatalf("stats = %+v, want 0 accepted / 1 skipped", ig.Stats)
	}
	_, idx := finish()
	if idx.Len() != 0 {
		t.Errorf("index entries = %d, want 0", idx.Len())
	}
}

// Testable property 5: index entry count equals the base-zoom tile
// coverage computed from the feature's pixel bbox.
func TestIngestCoverageCount(t *testing.T) {
	mw, iw, finish := newRunFiles(t)
	ig := NewIngester(mw, iw, 14)

	// A LineString spanning several degrees, guaranteed to cross
	// multiple Z14 tiles.
	src := `{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[-5,-5],[5,5]]}}`
	if err := ig.IngestSource("cov", strings.NewReader(src)); err != nil {
		t.Fatal(err)
	}
	_, idx := finish()

	x0, y0 := coord.ProjectGlobal(-5, -5)
	x1, y1 := coord.ProjectGlobal(5, 5)
	shift := uint(coord.GlobalBits - 14)
	txMin, txMax := min32(x0, x1)>>shift, max32(x0, x1)>>shift
	tyMin, tyMax := min32(y0, y1)>>shift, max32(y0, y1)>>shift
	want := int(txMax-txMin+1) * int(tyMax-tyMin+1)

	if idx.Len() != want {
		t.Errorf("index entries = %d, want %d", idx.Len(), want)
	}
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// FeatureCollection wrapping is a supplemented document shape: features
// nested in a top-level FeatureCollection must be ingested too.
func TestIngestFeatureCollection(t *testing.T) {
	mw, iw, _ := newRunFiles(t)
	ig := NewIngester(mw, iw, 14)

	src := `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[0,0]}},
		{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[1,1]}}
	]}`
	if err := ig.IngestSource("fc", strings.NewReader(src)); err != nil {
		t.Fatal(err)
	}
	if ig.Stats.FeaturesAccepted != 2 {
		t.Fatalf("accepted = %d, want 2", ig.Stats.FeaturesAccepted)
	}
}

// An unsupported property value type drops the whole feature.
func TestIngestUnsupportedPropertyDropsFeature(t *testing.T) {
	mw, iw, finish := newRunFiles(t)
	ig := NewIngester(mw, iw, 14)

	src := `{"type":"Feature","properties":{"tags":["a","b"]},"geometry":{"type":"Point","coordinates":[0,0]}}`
	if err := ig.IngestSource("bad-prop", strings.NewReader(src)); err != nil {
		t.Fatal(err)
	}
	if ig.Stats.FeaturesAccepted != 0 || ig.Stats.FeaturesSkipped != 1 {
		t.Fatalf("stats = %+v", ig.Stats)
	}
	_, idx := finish()
	if idx.Len() != 0 {
		t.Errorf("index entries = %d, want 0 (feature should be fully dropped)", idx.Len())
	}
}
