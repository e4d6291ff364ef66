// Package sysmem detects total system RAM and warns when the projected
// index size approaches it, making the "index fits within the process's
// virtual address space" assumption observable instead of silent.
package sysmem

import (
	"log"
	"runtime"
)

// WarnThreshold is the fraction of total RAM at which WarnIfTight logs.
const WarnThreshold = 0.90

// WarnIfTight logs a warning if indexBytes, the projected size of the
// sorted index file once fully ingested, is within WarnThreshold of
// detected total system RAM. It never aborts or spills — the index must
// stay a single contiguous mmap — it only makes the risk observable.
func WarnIfTight(indexBytes int64, verbose bool) {
	total, err := totalSystemRAM()
	if err != nil {
		if verbose {
			log.Printf("Cannot detect system RAM: %v; skipping memory pressure check", err)
		}
		return
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	limit := int64(float64(total) * WarnThreshold)
	if indexBytes > limit {
		log.Printf("WARNING: projected index size (%.1f GB) exceeds %.0f%% of system RAM (%.1f GB); "+
			"the index must fit in a single mmap and this run may fail with out-of-memory",
			float64(indexBytes)/(1024*1024*1024), WarnThreshold*100, float64(total)/(1024*1024*1024))
	} else if verbose {
		log.Printf("System RAM: %.1f GB, projected index size: %.1f MB", float64(total)/(1024*1024*1024), float64(indexBytes)/(1024*1024))
	}
}
