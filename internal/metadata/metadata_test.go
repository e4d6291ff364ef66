package metadata

import (
	"encoding/json"
	"strings"
	"testing"

	"geojson2tiles/internal/coord"
	"geojson2tiles/internal/intern"
)

// TestBuildFieldTypes covers S5's manifest expectation: numeric keys
// report as "Number", others as "String".
func TestBuildFieldTypes(t *testing.T) {
	pool := intern.New()
	pool.Intern("rank", intern.TagNumber)
	pool.Intern("name", intern.TagString)
	pool.Intern("ok", intern.TagBoolean)

	var bounds coord.Bounds
	bounds.Extend(0, 0)
	bounds.Extend(2, 2)

	m := Build("test", "features", bounds, 14, pool)
	if m.MinZoom != 0 || m.MaxZoom != 14 {
		t.Fatalf("zoom range = [%d,%d]", m.MinZoom, m.MaxZoom)
	}

	var blob jsonBlob
	if err := json.Unmarshal([]byte(m.JSON), &blob); err != nil {
		t.Fatalf("embedded json field doesn't parse: %v", err)
	}
	if len(blob.VectorLayers) != 1 {
		t.Fatalf("vector_layers = %+v", blob.VectorLayers)
	}
	fields := blob.VectorLayers[0].Fields
	if fields["rank"] != "Number" {
		t.Errorf("rank field type = %q, want Number", fields["rank"])
	}
	if fields["name"] != "String" {
		t.Errorf("name field type = %q, want String", fields["name"])
	}
	if fields["ok"] != "String" {
		t.Errorf("ok (boolean) field type = %q, want String", fields["ok"])
	}
}

func TestManifestMarshalsValidJSON(t *testing.T) {
	pool := intern.New()
	var bounds coord.Bounds
	bounds.Extend(-1, -1)
	bounds.Extend(1, 1)
	m := Build("demo", "features", bounds, 14, pool)

	data, err := m.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"format": "pbf"`) {
		t.Errorf("marshaled manifest missing format field: %s", data)
	}
	var roundTrip map[string]interface{}
	if err := json.Unmarshal(data, &roundTrip); err != nil {
		t.Fatalf("manifest does not round-trip as JSON: %v", err)
	}
}
