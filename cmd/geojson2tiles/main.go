// Command geojson2tiles converts a stream of GeoJSON features into a
// pyramid of pre-rendered Mapbox Vector Tiles.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	"geojson2tiles/internal/ingest"
	"geojson2tiles/internal/intern"
	"geojson2tiles/internal/metadata"
	"geojson2tiles/internal/mvtenc"
	"geojson2tiles/internal/pmtiles"
	"geojson2tiles/internal/progress"
	"geojson2tiles/internal/store"
	"geojson2tiles/internal/sysmem"
	"geojson2tiles/internal/walker"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		layerName   string
		outDir      string
		pmtilesPath string
		baseZoom    int
		verbose     bool
		showVersion bool
		cpuProfile  string
		memProfile  string
	)

	flag.StringVar(&layerName, "layer", "features", "Name of the MVT layer written into every tile")
	flag.StringVar(&outDir, "out", "tiles", "Output directory for the tiles/<z>/<x>/<y>.pbf tree")
	flag.StringVar(&pmtilesPath, "pmtiles", "", "Also write a PMTiles v3 archive to this path")
	flag.IntVar(&baseZoom, "base-zoom", 14, "Base zoom level features are indexed at (Z_BASE)")
	flag.BoolVar(&verbose, "verbose", false, "Verbose progress output")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.StringVar(&cpuProfile, "cpuprofile", "", "Write CPU profile to file")
	flag.StringVar(&memProfile, "memprofile", "", "Write memory profile to file")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: geojson2tiles [flags] [FILE ...]\n\n")
		fmt.Fprintf(os.Stderr, "Convert a stream of GeoJSON features into a pyramid of vector tiles.\n")
		fmt.Fprintf(os.Stderr, "Reads stdin if no FILE arguments are given.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("geojson2tiles %s (commit %s, built %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	if cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			log.Fatalf("Creating CPU profile: %v", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatalf("Starting CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()
		if verbose {
			log.Printf("CPU profiling enabled → %s", cpuProfile)
		}
	}

	if memProfile != "" {
		defer func() {
			f, err := os.Create(memProfile)
			if err != nil {
				log.Fatalf("Creating memory profile: %v", err)
			}
			defer f.Close()
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				log.Fatalf("Writing memory profile: %v", err)
			}
			if verbose {
				log.Printf("Memory profile written → %s", memProfile)
			}
		}()
	}

	inputs := flag.Args()

	start := time.Now()
	if err := run(inputs, layerName, outDir, pmtilesPath, baseZoom, verbose); err != nil {
		log.Fatalf("%v", err)
	}
	if verbose {
		log.Printf("Done in %v", time.Since(start).Round(time.Millisecond))
	}
}

// run processes each input independently: every file (or stdin, when no
// file arguments are given) gets its own full ingest→sort→mmap→walk→
// metadata pass, writing into the same tiles/ hierarchy. Tiles and
// metadata.json from a later input overwrite whatever an earlier input
// wrote at the same address; inputs are never merged into one pass.
func run(inputs []string, layerName, outDir, pmtilesPath string, baseZoom int, verbose bool) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	if len(inputs) == 0 {
		return runSource("stdin", os.Stdin, layerName, outDir, pmtilesPath, baseZoom, verbose)
	}

	for _, path := range inputs {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		err = runSource(path, f, layerName, outDir, pmtilesPath, baseZoom, verbose)
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// runSource runs the complete single-source pipeline: fresh meta/index
// stores, a fresh Ingester, its own sort and tile walk, and its own
// metadata.json (and, if requested, its own PMTiles archive).
func runSource(name string, r *os.File, layerName, outDir, pmtilesPath string, baseZoom int, verbose bool) error {
	tmpDir := outDir
	if fi, err := os.Stat(outDir); err != nil || !fi.IsDir() {
		tmpDir = os.TempDir()
	}

	metaFile, err := store.CreateUnlinked(tmpDir, "geojson2tiles-meta-*")
	if err != nil {
		return fmt.Errorf("creating meta store: %w", err)
	}
	defer metaFile.Close()

	indexFile, err := store.CreateUnlinked(tmpDir, "geojson2tiles-index-*")
	if err != nil {
		return fmt.Errorf("creating index store: %w", err)
	}
	defer indexFile.Close()

	mw := store.NewWriter(metaFile)
	iw := store.NewIndexWriter(indexFile)
	ig := ingest.NewIngester(mw, iw, baseZoom)

	if verbose {
		log.Printf("Ingesting %s", name)
	}
	if err := ig.IngestSource(name, r); err != nil {
		return fmt.Errorf("ingesting %s: %w", name, err)
	}
	if err := mw.Flush(); err != nil {
		return fmt.Errorf("flushing meta store: %w", err)
	}

	if verbose {
		log.Printf("%s: ingested %d feature(s), %d skipped, %d index entries",
			name, ig.Stats.FeaturesAccepted, ig.Stats.FeaturesSkipped, ig.Stats.IndexEntries)
	}
	if ig.Stats.FeaturesAccepted == 0 {
		return fmt.Errorf("%s: no features ingested", name)
	}

	metaData, err := store.MapReadOnly(metaFile)
	if err != nil {
		return fmt.Errorf("mapping meta store: %w", err)
	}
	defer store.Unmap(metaData)

	indexData, err := store.MapReadWrite(indexFile)
	if err != nil {
		return fmt.Errorf("mapping index store: %w", err)
	}
	defer store.Unmap(indexData)

	ix, err := store.NewIndex(indexData)
	if err != nil {
		return fmt.Errorf("index store: %w", err)
	}
	sysmem.WarnIfTight(int64(len(indexData)), verbose)

	if verbose {
		log.Printf("%s: sorting %d index entries", name, ix.Len())
	}
	ix.Sort()

	meta := store.NewReader(metaData)
	pool := intern.New()

	var pw *pmtiles.Writer
	if pmtilesPath != "" {
		pw, err = pmtiles.NewWriter(pmtilesPath, pmtiles.WriterOptions{
			MinZoom:     0,
			MaxZoom:     baseZoom,
			Bounds:      ig.Bounds,
			TileFormat:  pmtiles.TileTypeMVT,
			Name:        layerName,
			Description: fmt.Sprintf("%s (from %s)", layerName, name),
			Type:        "overlay",
		})
		if err != nil {
			return fmt.Errorf("creating pmtiles archive: %w", err)
		}
	}

	bar := progress.New(fmt.Sprintf("Emitting tiles for %s", name), 0)
	tileCount := 0
	var sample sampleTile
	sample.z = -1
	err = walker.Walk(ix, meta, baseZoom,
		func(idx *store.Index, m *store.Reader, begin, end, z, tx, ty, detail int) ([]byte, bool, error) {
			return mvtenc.WriteTile(idx, m, begin, end, z, tx, ty, detail, layerName, pool)
		},
		func(z, tx, ty int, data []byte) error {
			if err := writeTileFile(outDir, z, tx, ty, data); err != nil {
				return err
			}
			if pw != nil {
				if err := pw.WriteTile(z, tx, ty, data); err != nil {
					return err
				}
				if sample.z < 0 {
					sample = sampleTile{z: z, tx: tx, ty: ty, data: append([]byte(nil), data...)}
				}
			}
			tileCount++
			bar.Increment()
			return nil
		})
	bar.Finish()
	if err != nil {
		if pw != nil {
			pw.Abort()
		}
		return fmt.Errorf("emitting tiles for %s: %w", name, err)
	}

	if pw != nil {
		if err := pw.Finalize(); err != nil {
			return fmt.Errorf("finalizing pmtiles archive: %w", err)
		}
		if err := verifyPMTilesArchive(pmtilesPath, tileCount, sample, verbose); err != nil {
			return fmt.Errorf("verifying pmtiles archive: %w", err)
		}
	}

	manifest := metadata.Build(layerName, layerName, ig.Bounds, baseZoom, pool)
	manifestBytes, err := manifest.MarshalJSON()
	if err != nil {
		return fmt.Errorf("building metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "metadata.json"), manifestBytes, 0o644); err != nil {
		return fmt.Errorf("writing metadata.json: %w", err)
	}

	fmt.Printf("%s: wrote %d tile(s) to %s\n", name, tileCount, outDir)
	if pmtilesPath != "" {
		fmt.Printf("%s: wrote archive to %s\n", name, pmtilesPath)
	}
	return nil
}

func writeTileFile(outDir string, z, tx, ty int, data []byte) error {
	dir := filepath.Join(outDir, fmt.Sprintf("%d", z), fmt.Sprintf("%d", tx))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.pbf", ty))
	return os.WriteFile(path, data, 0o644)
}

// sampleTile is one tile retained during emission so the freshly written
// archive can be spot-checked against it. z is -1 when no pmtiles archive
// is being written, so no sample was ever captured.
type sampleTile struct {
	z, tx, ty int
	data      []byte
}

// verifyPMTilesArchive reopens a just-finalized archive and checks it
// against what this run actually emitted: the addressed tile count, the
// directory's coverage at the sampled zoom, and a byte-for-byte readback
// of one sampled tile.
func verifyPMTilesArchive(path string, wantTiles int, sample sampleTile, verbose bool) error {
	r, err := pmtiles.OpenReader(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer r.Close()

	if got := r.NumTiles(); got != wantTiles {
		return fmt.Errorf("archive addresses %d tiles, expected %d", got, wantTiles)
	}

	if sample.z >= 0 {
		if len(r.TilesAtZoom(sample.z)) == 0 {
			return fmt.Errorf("archive has no tiles at zoom %d", sample.z)
		}
		got, err := r.ReadTile(sample.z, sample.tx, sample.ty)
		if err != nil {
			return fmt.Errorf("reading back sample tile z%d/%d/%d: %w", sample.z, sample.tx, sample.ty, err)
		}
		if !bytes.Equal(got, sample.data) {
			return fmt.Errorf("sample tile z%d/%d/%d round-tripped with different bytes", sample.z, sample.tx, sample.ty)
		}
	}

	if verbose {
		meta, err := r.ReadMetadata()
		if err != nil {
			return fmt.Errorf("reading archive metadata: %w", err)
		}
		log.Printf("%s: verified %d tile(s), format=%v", path, r.NumTiles(), meta["format"])
	}
	return nil
}
