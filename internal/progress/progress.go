// Package progress renders an in-place terminal progress indicator for
// the tile-emit stage. It is ambient UX, not a compute
// worker: its refresh ticker is the program's only background
// goroutine, the pipeline itself stays single-threaded and streaming.
package progress

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// Bar renders a labeled progress bar that refreshes on a ticker.
// Increment is safe to call from the single pipeline goroutine; the
// count is atomic only so Finish's final draw can't race the ticker.
type Bar struct {
	total     int64
	processed atomic.Int64
	label     string
	barWidth  int
	start     time.Time
	done      chan struct{}
}

// New starts a progress bar for label, ticking until Finish is called.
// total <= 0 renders a spinner-style count instead of a percentage.
func New(label string, total int64) *Bar {
	b := &Bar{
		total:    total,
		label:    label,
		barWidth: 30,
		start:    time.Now(),
		done:     make(chan struct{}),
	}
	go b.run()
	return b
}

// Increment marks one more item as processed.
func (b *Bar) Increment() {
	b.processed.Add(1)
}

// Finish stops the refresh loop and prints the final state with a newline.
func (b *Bar) Finish() {
	close(b.done)
	b.draw()
	fmt.Fprint(os.Stderr, "\n")
}

func (b *Bar) run() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.draw()
		}
	}
}

func (b *Bar) draw() {
	processed := b.processed.Load()
	elapsed := time.Since(b.start)
	rate := float64(0)
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(processed) / secs
	}

	if b.total <= 0 {
		fmt.Fprintf(os.Stderr, "\r%s  %d processed  %.0f/s  %s\033[K",
			b.label, processed, rate, formatDuration(elapsed))
		return
	}

	frac := float64(processed) / float64(b.total)
	if frac > 1 {
		frac = 1
	}
	filled := int(float64(b.barWidth) * frac)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", b.barWidth-filled)

	fmt.Fprintf(os.Stderr, "\r%s [%s] %3.0f%%  %d/%d  %.0f/s  %s\033[K",
		b.label, bar, frac*100, processed, b.total, rate, formatDuration(elapsed))
}

// formatDuration formats a duration concisely (e.g. "1m23s", "45s", "0s").
func formatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) - m*60
	return fmt.Sprintf("%dm%02ds", m, s)
}
