// Package mvtenc encodes one tile's worth of index entries into a real
// Mapbox Vector Tile protobuf, built on the paulmach/orb stack used for
// exactly this purpose elsewhere in the retrieval pack
// (joeblew999-plat-geo's GoTiler, valpere-tile_to_json's MVT converter).
package mvtenc

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"geojson2tiles/internal/coord"
	"geojson2tiles/internal/intern"
	"geojson2tiles/internal/store"
)

// WriteTile encodes the tile (z, tx, ty) from index entries [begin, end)
// into MVT protobuf bytes. Every property key it touches is interned,
// tagged with its value's type, into pool, the file-wide property pool the
// metadata emitter later reads back; values are not interned. Returns ok=false when the tile has no features left
// after reconstruction, in which case no file should be written.
func WriteTile(idx *store.Index, meta *store.Reader, begin, end int, z, tx, ty, detail int, layerName string, pool *intern.Pool) ([]byte, bool, error) {
	fc := geojson.NewFeatureCollection()

	for i := begin; i < end; i++ {
		rec, err := meta.ReadAt(idx.Fpos(i))
		if err != nil {
			return nil, false, fmt.Errorf("mvtenc: reading meta at %d: %w", idx.Fpos(i), err)
		}

		geom, err := toOrbGeometry(rec)
		if err != nil {
			// A malformed geometry at this point would be an internal
			// consistency bug (ingest already validated it); skip
			// defensively rather than abort the whole tile.
			continue
		}

		f := geojson.NewFeature(geom)
		for _, p := range rec.Props {
			// The pool tracks each key's observed value type for the
			// metadata schema; MVT's own layer encoding handles
			// per-tile value deduplication, so values aren't interned
			// here.
			pool.Intern(p.Key, p.Tag)
			f.Properties[p.Key] = propertyValue(p)
		}
		fc.Append(f)
	}

	if len(fc.Features) == 0 {
		return nil, false, nil
	}

	layer := mvt.NewLayer(layerName, fc)
	layer.Extent = 1 << uint(detail)
	layer.Version = 2

	tile := maptile.New(uint32(tx), uint32(ty), maptile.Zoom(z))
	layer.ProjectToTile(tile)
	layer.RemoveEmpty(0, 0)

	if len(layer.Features) == 0 {
		return nil, false, nil
	}

	data, err := mvt.Marshal(mvt.Layers{layer})
	if err != nil {
		return nil, false, fmt.Errorf("mvtenc: marshal: %w", err)
	}
	return data, true, nil
}

// propertyValue converts a stored textual property back to the Go value
// type MVT's property encoder expects.
func propertyValue(p store.Property) interface{} {
	switch p.Tag {
	case intern.TagNumber:
		var f float64
		if _, err := fmt.Sscanf(p.Value, "%g", &f); err == nil {
			return f
		}
		return p.Value
	case intern.TagBoolean:
		return p.Value == "true"
	default:
		return p.Value
	}
}

// toOrbGeometry reconstructs an orb.Geometry from a decoded meta record,
// unprojecting the 32-bit global pixel draw-op stream back to WGS84.
//
// The draw-op stream records subpath boundaries (each MOVETO starts one)
// but, for polygonal kinds, not which rings belong to which polygon —
// MultiPolygon's multiple polygons are flattened to one ring list, same
// as the Mapbox Vector Tile wire format itself. Rings are regrouped by
// winding order after unprojection: a counter-clockwise ring (RFC 7946
// exterior convention) starts a new polygon; consecutive clockwise rings
// are its holes. See DESIGN.md for the Polygon vs. MultiPolygon
// reconstruction trade-off.
func toOrbGeometry(rec store.Record) (orb.Geometry, error) {
	subpaths := splitSubpaths(rec.Ops)
	if len(subpaths) == 0 {
		return nil, fmt.Errorf("mvtenc: geometry with no subpaths")
	}

	switch rec.Kind {
	case store.KindPoint:
		return orb.Point(subpaths[0][0]), nil
	case store.KindMultiPoint:
		mp := make(orb.MultiPoint, 0, len(subpaths))
		for _, sp := range subpaths {
			mp = append(mp, sp[0])
		}
		return mp, nil
	case store.KindLineString:
		return orb.LineString(subpaths[0]), nil
	case store.KindMultiLineString:
		mls := make(orb.MultiLineString, 0, len(subpaths))
		for _, sp := range subpaths {
			mls = append(mls, orb.LineString(sp))
		}
		return mls, nil
	case store.KindPolygon:
		poly := make(orb.Polygon, 0, len(subpaths))
		for _, sp := range subpaths {
			poly = append(poly, orb.Ring(sp))
		}
		return poly, nil
	case store.KindMultiPolygon:
		return regroupMultiPolygon(subpaths), nil
	default:
		return nil, fmt.Errorf("mvtenc: unknown geometry kind %d", rec.Kind)
	}
}

// splitSubpaths groups draw ops into subpaths, one per MOVETO.
func splitSubpaths(ops []store.DrawOp) [][]orb.Point {
	var subpaths [][]orb.Point
	var current []orb.Point
	for _, op := range ops {
		lat, lon := coord.UnprojectGlobal(op.X, op.Y)
		pt := orb.Point{lon, lat}
		if op.Op == store.OpMoveTo {
			if current != nil {
				subpaths = append(subpaths, current)
			}
			current = []orb.Point{pt}
		} else if op.Op == store.OpLineTo {
			current = append(current, pt)
		}
	}
	if current != nil {
		subpaths = append(subpaths, current)
	}
	return subpaths
}

func regroupMultiPolygon(subpaths [][]orb.Point) orb.MultiPolygon {
	var mp orb.MultiPolygon
	for _, sp := range subpaths {
		ring := orb.Ring(sp)
		if len(mp) == 0 || !isHole(ring) {
			mp = append(mp, orb.Polygon{ring})
		} else {
			last := len(mp) - 1
			mp[last] = append(mp[last], ring)
		}
	}
	return mp
}

// isHole reports whether ring, by winding order, is an interior ring.
// Rings here are already in lon/lat (post-unprojection), so the usual
// RFC 7946 convention applies directly: exterior rings wind
// counter-clockwise (positive shoelace sum), holes clockwise (negative).
func isHole(ring orb.Ring) bool {
	var area float64
	n := len(ring)
	for i := 0; i < n; i++ {
		p0 := ring[i]
		p1 := ring[(i+1)%n]
		area += p0[0]*p1[1] - p1[0]*p0[1]
	}
	return area < 0
}
