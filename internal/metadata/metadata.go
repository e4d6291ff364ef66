// Package metadata implements the layer manifest written to
// tiles/metadata.json once every tile has been emitted.
package metadata

import (
	"encoding/json"
	"fmt"

	"geojson2tiles/internal/coord"
	"geojson2tiles/internal/intern"
)

// VectorLayer describes one MVT layer's schema, nested inside the
// manifest's "json" field.
type VectorLayer struct {
	ID          string            `json:"id"`
	Description string            `json:"description"`
	MinZoom     int               `json:"minzoom"`
	MaxZoom     int               `json:"maxzoom"`
	Fields      map[string]string `json:"fields"`
}

type jsonBlob struct {
	VectorLayers []VectorLayer `json:"vector_layers"`
}

// Manifest is the full tiles/metadata.json document.
type Manifest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     int    `json:"version"`
	MinZoom     int    `json:"minzoom"`
	MaxZoom     int    `json:"maxzoom"`
	Center      string `json:"center"`
	Bounds      string `json:"bounds"`
	Type        string `json:"type"`
	JSON        string `json:"json"`
	Format      string `json:"format"`
}

// Build assembles the manifest for one run: name and description both
// set to name, zoom range 0..zBase, the file-wide geographic
// bounds and their midpoint, and a single vector layer whose field
// schema is drawn from the property pool — Number where the pool
// entry's type tag is NUMBER, String otherwise (spec treats boolean the
// same as string for schema purposes, matching the original's two-way
// VT_NUMBER/else split).
func Build(name, layerName string, bounds coord.Bounds, zBase int, pool *intern.Pool) Manifest {
	lon, lat := bounds.Center()

	fields := make(map[string]string, pool.Len())
	for _, e := range pool.Entries() {
		if e.Tag == intern.TagNumber {
			fields[e.Payload] = "Number"
		} else {
			fields[e.Payload] = "String"
		}
	}

	blob := jsonBlob{VectorLayers: []VectorLayer{{
		ID:          layerName,
		Description: "",
		MinZoom:     0,
		MaxZoom:     zBase,
		Fields:      fields,
	}}}
	blobBytes, _ := json.Marshal(blob)

	return Manifest{
		Name:        name,
		Description: name,
		Version:     1,
		MinZoom:     0,
		MaxZoom:     zBase,
		Center:      fmt.Sprintf("%f,%f,%d", lon, lat, zBase),
		Bounds:      fmt.Sprintf("%f,%f,%f,%f", bounds.MinLon, bounds.MinLat, bounds.MaxLon, bounds.MaxLat),
		Type:        "overlay",
		JSON:        string(blobBytes),
		Format:      "pbf",
	}
}

// MarshalJSON renders the manifest as indented JSON for
// tiles/metadata.json. Field escaping (quotes, backslashes, control
// bytes as \u00XX) is handled by encoding/json itself — the idiomatic
// equivalent of the original's hand-rolled quote() routine.
func (m Manifest) MarshalJSON() ([]byte, error) {
	type alias Manifest // avoid recursing into this MarshalJSON
	return json.MarshalIndent(alias(m), "", "  ")
}
