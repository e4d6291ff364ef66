// Package ingest drives the JSON pull parser, validates features,
// invokes the geometry normalizer, writes meta records, and emits one
// index entry per base-zoom tile a feature's bounding box covers.
package ingest

import (
	"fmt"
	"io"
	"log"

	"geojson2tiles/internal/coord"
	"geojson2tiles/internal/ingest/jsonpull"
	"geojson2tiles/internal/store"
)

// Stats summarizes one ingest run for the CLI's progress reporting and
// the metadata emitter.
type Stats struct {
	FeaturesAccepted int
	FeaturesSkipped  int
	IndexEntries     int
}

// Ingester encapsulates the run-scoped mutable state as a single run
// context: the two writers and the accumulating file-wide geographic
// bounds.
type Ingester struct {
	Meta   *store.Writer
	Index  *store.IndexWriter
	ZBase  int
	Bounds coord.Bounds

	Stats Stats
}

// NewIngester returns an Ingester writing into the given meta/index
// writers, indexing features at base zoom zBase.
func NewIngester(meta *store.Writer, index *store.IndexWriter, zBase int) *Ingester {
	return &Ingester{Meta: meta, Index: index, ZBase: zBase}
}

// IngestSource reads one GeoJSON document from r (named for diagnostics)
// and feeds every Feature object it finds — whether at the document's
// top level or nested inside a FeatureCollection's "features" array —
// through validation, normalization, and indexing.
func (ig *Ingester) IngestSource(name string, r io.Reader) error {
	p := jsonpull.New(r)
	for {
		v, line, err := p.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s:%d: %w", name, line, err)
		}

		obj, ok := v.(map[string]interface{})
		if !ok {
			continue // non-object top-level values are silently ignored
		}

		if t, _ := obj["type"].(string); t == "FeatureCollection" {
			features, _ := obj["features"].([]interface{})
			for _, f := range features {
				ig.ingestValue(name, line, f)
			}
			continue
		}

		ig.ingestValue(name, line, obj)
	}
}

func (ig *Ingester) ingestValue(source string, line int, v interface{}) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return
	}
	if t, _ := obj["type"].(string); t != "Feature" {
		return
	}

	n, err := ig.ingestFeature(obj)
	if err != nil {
		log.Printf("%s:%d: skipping feature: %v", source, line, err)
		ig.Stats.FeaturesSkipped++
		return
	}
	ig.Stats.FeaturesAccepted++
	ig.Stats.IndexEntries += n
}

// ingestFeature validates and fully decodes one Feature object in
// memory before committing anything to the meta/index writers, so a
// feature rejected partway through (an unsupported property value, say)
// never leaves a partial record in the meta stream.
func (ig *Ingester) ingestFeature(obj map[string]interface{}) (indexEntries int, err error) {
	geomObj, ok := obj["geometry"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("missing or malformed geometry")
	}
	kindName, ok := geomObj["type"].(string)
	if !ok {
		return 0, fmt.Errorf("missing geometry.type")
	}
	coordinates, ok := geomObj["coordinates"]
	if !ok {
		if kindName != "GeometryCollection" {
			return 0, fmt.Errorf("missing geometry.coordinates")
		}
	}
	propsObj, ok := obj["properties"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("missing or malformed properties")
	}

	ops, pxBounds, geoBounds, err := walkGeometry(kindName, coordinates)
	if err != nil {
		return 0, fmt.Errorf("geometry: %w", err)
	}
	props, err := collectProperties(propsObj)
	if err != nil {
		return 0, fmt.Errorf("properties: %w", err)
	}

	kind := kindSpecs[kindName].kind

	start, err := ig.Meta.Begin(kind)
	if err != nil {
		return 0, fmt.Errorf("meta write: %w", err)
	}
	for _, op := range ops {
		switch op.op {
		case store.OpMoveTo:
			err = ig.Meta.MoveTo(op.x, op.y)
		case store.OpLineTo:
			err = ig.Meta.LineTo(op.x, op.y)
		}
		if err != nil {
			return 0, fmt.Errorf("meta write: %w", err)
		}
	}
	if kind.Polygonal() {
		if err := ig.Meta.ClosePath(); err != nil {
			return 0, fmt.Errorf("meta write: %w", err)
		}
	}
	if err := ig.Meta.EndGeometry(); err != nil {
		return 0, fmt.Errorf("meta write: %w", err)
	}
	if err := ig.Meta.WriteProperties(props); err != nil {
		return 0, fmt.Errorf("meta write: %w", err)
	}

	n, err := ig.emitCoverage(pxBounds, start)
	if err != nil {
		return 0, err
	}

	ig.Bounds.Extend(geoBounds.MinLon, geoBounds.MinLat)
	ig.Bounds.Extend(geoBounds.MaxLon, geoBounds.MaxLat)
	return n, nil
}

// emitCoverage writes one index entry per base-zoom tile the feature's
// pixel bbox intersects. The tile containing the bbox center gets the
// center's exact morton key; every other tile gets its NW corner's key.
func (ig *Ingester) emitCoverage(bbox coord.PixelBounds, metaFpos int64) (int, error) {
	shift := uint(coord.GlobalBits - ig.ZBase)
	txMin, txMax := bbox.XMin>>shift, bbox.XMax>>shift
	tyMin, tyMax := bbox.YMin>>shift, bbox.YMax>>shift

	cx, cy := bbox.Center()
	centerTX, centerTY := cx>>shift, cy>>shift

	n := 0
	for ty := tyMin; ty <= tyMax; ty++ {
		for tx := txMin; tx <= txMax; tx++ {
			var key uint64
			if tx == centerTX && ty == centerTY {
				key = coord.Encode(cx, cy)
			} else {
				ox, oy := tx<<shift, ty<<shift
				key = coord.Encode(ox, oy)
			}
			if err := ig.Index.Append(key, metaFpos); err != nil {
				return n, fmt.Errorf("index write: %w", err)
			}
			n++
		}
	}
	return n, nil
}
