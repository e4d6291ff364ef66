package ingest

import (
	"fmt"

	"geojson2tiles/internal/coord"
	"geojson2tiles/internal/store"
)

// opRule selects how MOVETO/LINETO is assigned across a subpath array of
// positions, the leaf array level every geometry kind eventually reaches.
type opRule int

const (
	ruleFirstMoveRestLine opRule = iota // first position MOVETO, rest LINETO
	ruleAllMove                         // every position MOVETO (MultiPoint)
)

// kindSpec captures, per geometry kind, how many array levels separate
// the raw "coordinates" value from the subpath-of-positions level, and
// which op rule applies there. Point is a degenerate case: coordinates
// *is* the single leaf position.
type kindSpec struct {
	levels int
	rule   opRule
}

var kindSpecs = map[string]struct {
	kind store.Kind
	spec kindSpec
}{
	"Point":           {store.KindPoint, kindSpec{0, ruleFirstMoveRestLine}},
	"MultiPoint":      {store.KindMultiPoint, kindSpec{1, ruleAllMove}},
	"LineString":      {store.KindLineString, kindSpec{1, ruleFirstMoveRestLine}},
	"MultiLineString": {store.KindMultiLineString, kindSpec{2, ruleFirstMoveRestLine}},
	"Polygon":         {store.KindPolygon, kindSpec{2, ruleFirstMoveRestLine}},
	"MultiPolygon":    {store.KindMultiPolygon, kindSpec{3, ruleFirstMoveRestLine}},
}

// rawOp is a decoded draw op prior to being written into the meta stream.
type rawOp struct {
	op   store.Op
	x, y uint32
}

// walkGeometry recursively descends a GeoJSON coordinates tree and
// produces the draw-op stream plus the accumulated pixel and geographic
// bounding boxes. Any non-numeric or mis-shaped position fails softly:
// the whole geometry is rejected and the caller skips the feature with a
// diagnostic.
func walkGeometry(kindName string, coordinates interface{}) ([]rawOp, coord.PixelBounds, coord.Bounds, error) {
	entry, ok := kindSpecs[kindName]
	if !ok {
		return nil, coord.PixelBounds{}, coord.Bounds{}, fmt.Errorf("unsupported geometry type %q", kindName)
	}

	var ops []rawOp
	var pxBounds coord.PixelBounds
	var geoBounds coord.Bounds

	emit := func(first bool, lon, lat float64) error {
		x, y := coord.ProjectGlobal(lat, lon)
		pxBounds.Extend(x, y)
		geoBounds.Extend(lon, lat)
		op := store.OpLineTo
		if first || entry.spec.rule == ruleAllMove {
			op = store.OpMoveTo
		}
		ops = append(ops, rawOp{op: op, x: x, y: y})
		return nil
	}

	if err := descend(entry.spec.levels, entry.spec.rule, coordinates, emit); err != nil {
		return nil, coord.PixelBounds{}, coord.Bounds{}, err
	}
	if len(ops) == 0 {
		return nil, coord.PixelBounds{}, coord.Bounds{}, fmt.Errorf("empty coordinates")
	}
	return ops, pxBounds, geoBounds, nil
}

// descend walks `levels` array nestings of v before treating the final
// level as a subpath-of-positions array (or, when levels == 0, v itself
// as the single leaf position — the Point case).
func descend(levels int, rule opRule, v interface{}, emit func(first bool, lon, lat float64) error) error {
	if levels == 0 {
		lon, lat, err := decodePosition(v)
		if err != nil {
			return err
		}
		return emit(true, lon, lat)
	}

	arr, ok := v.([]interface{})
	if !ok {
		return fmt.Errorf("expected array at nesting level, got %T", v)
	}

	if levels == 1 {
		for i, el := range arr {
			lon, lat, err := decodePosition(el)
			if err != nil {
				return err
			}
			if err := emit(i == 0, lon, lat); err != nil {
				return err
			}
		}
		return nil
	}

	for _, el := range arr {
		if err := descend(levels-1, rule, el, emit); err != nil {
			return err
		}
	}
	return nil
}

// decodePosition validates and extracts a GeoJSON [lon, lat] position.
func decodePosition(v interface{}) (lon, lat float64, err error) {
	arr, ok := v.([]interface{})
	if !ok || len(arr) < 2 {
		return 0, 0, fmt.Errorf("position is not a 2-element array: %v", v)
	}
	lonF, ok1 := arr[0].(float64)
	latF, ok2 := arr[1].(float64)
	if !ok1 || !ok2 {
		return 0, 0, fmt.Errorf("position elements are not numeric: %v", v)
	}
	return lonF, latF, nil
}
