package pmtiles

import (
	"path/filepath"
	"testing"

	"geojson2tiles/internal/coord"
)

func TestReader_RoundTripsWriterOutput(t *testing.T) {
	tmpDir := t.TempDir()
	outPath := filepath.Join(tmpDir, "roundtrip.pmtiles")

	w, err := NewWriter(outPath, WriterOptions{
		MinZoom:     0,
		MaxZoom:     2,
		Bounds:      coord.Bounds{MinLon: -10, MinLat: -10, MaxLon: 10, MaxLat: 10},
		TileFormat:  TileTypeMVT,
		Name:        "features",
		Description: "features (from test.geojson)",
		Type:        "overlay",
	})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	tiles := map[[3]int][]byte{
		{0, 0, 0}: []byte("root-tile"),
		{1, 0, 0}: []byte("nw-tile"),
		{1, 1, 1}: []byte("se-tile"),
		{2, 2, 1}: []byte("deep-tile"),
	}
	for xyz, data := range tiles {
		if err := w.WriteTile(xyz[0], xyz[1], xyz[2], data); err != nil {
			t.Fatalf("WriteTile(%v): %v", xyz, err)
		}
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	r, err := OpenReader(outPath)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	if got, want := r.NumTiles(), len(tiles); got != want {
		t.Fatalf("NumTiles() = %d, want %d", got, want)
	}

	for xyz, want := range tiles {
		got, err := r.ReadTile(xyz[0], xyz[1], xyz[2])
		if err != nil {
			t.Fatalf("ReadTile(%v): %v", xyz, err)
		}
		if string(got) != string(want) {
			t.Errorf("ReadTile(%v) = %q, want %q", xyz, got, want)
		}
	}

	if got, err := r.ReadTile(5, 0, 0); err != nil || got != nil {
		t.Errorf("ReadTile for missing tile = (%v, %v), want (nil, nil)", got, err)
	}

	z1Tiles := r.TilesAtZoom(1)
	if len(z1Tiles) != 2 {
		t.Errorf("TilesAtZoom(1) returned %d tiles, want 2", len(z1Tiles))
	}

	meta, err := r.ReadMetadata()
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if meta["format"] != "pbf" {
		t.Errorf(`metadata["format"] = %v, want "pbf"`, meta["format"])
	}
	if meta["name"] != "features" {
		t.Errorf(`metadata["name"] = %v, want "features"`, meta["name"])
	}
}

func TestReader_ReadMetadataMinimalArchive(t *testing.T) {
	tmpDir := t.TempDir()
	outPath := filepath.Join(tmpDir, "no-meta.pmtiles")

	w, err := NewWriter(outPath, WriterOptions{Bounds: coord.Bounds{}, TileFormat: TileTypeMVT})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	// buildMetadata always emits a non-empty JSON object for this writer,
	// so MetadataLength is never zero in practice; this just confirms
	// ReadMetadata tolerates a minimal archive without panicking.
	if err := w.WriteTile(0, 0, 0, []byte("x")); err != nil {
		t.Fatalf("WriteTile: %v", err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	r, err := OpenReader(outPath)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	if _, err := r.ReadMetadata(); err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
}
