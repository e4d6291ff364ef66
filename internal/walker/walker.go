// Package walker implements the hierarchical tile emitter: for each
// zoom from the base zoom down to 0, it groups the sorted index by
// tile prefix and delegates each group to the tile encoder.
package walker

import (
	"geojson2tiles/internal/coord"
	"geojson2tiles/internal/store"
)

// TileEncoder produces one tile's encoded bytes given an index range
// and a tile address.
type TileEncoder func(idx *store.Index, meta *store.Reader, begin, end, z, tx, ty, detail int) (data []byte, ok bool, err error)

// TileSink receives one encoded, non-empty tile.
type TileSink func(z, tx, ty int, data []byte) error

// Walk drives the tile walker: for z from zBase down to 0, scans the
// sorted index with a two-pointer grouping by tile prefix and invokes
// encode for each group, passing non-empty results to sink.
func Walk(idx *store.Index, meta *store.Reader, zBase int, encode TileEncoder, sink TileSink) error {
	n := idx.Len()
	for z := zBase; z >= 0; z-- {
		shift := uint(32 - z)
		detail := 10
		if z == zBase {
			detail = 12
		}

		i := 0
		for i < n {
			tx, ty := tilePrefix(idx.Key(i), shift)
			j := i + 1
			for j < n {
				jtx, jty := tilePrefix(idx.Key(j), shift)
				if jtx != tx || jty != ty {
					break
				}
				j++
			}

			data, ok, err := encode(idx, meta, i, j, z, int(tx), int(ty), detail)
			if err != nil {
				return err
			}
			if ok {
				if err := sink(z, int(tx), int(ty), data); err != nil {
					return err
				}
			}
			i = j
		}
	}
	return nil
}

// tilePrefix decodes a morton key's (x, y) and right-shifts both by the
// zoom's bit shift to get the tile address — z=0 always yields (0,0)
// since shift == 32 collapses every coordinate to zero.
func tilePrefix(key uint64, shift uint) (tx, ty uint32) {
	x, y := coord.Decode(key)
	if shift >= 32 {
		return 0, 0
	}
	return x >> shift, y >> shift
}
