package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

// consoleProgress renders transfer progress to stderr. Updates are throttled
// so multipart uploads with many parts do not flood the terminal.
type consoleProgress struct {
	label      string
	lastRender time.Time
}

func newConsoleProgress(label string) *consoleProgress {
	return &consoleProgress{label: label}
}

// Update renders the current byte counts.
func (p *consoleProgress) Update(bytesTransferred, totalBytes int64) {
	// Always render the final update so the bar ends at 100%
	if time.Since(p.lastRender) < 100*time.Millisecond && bytesTransferred < totalBytes {
		return
	}
	p.lastRender = time.Now()

	percent := float64(0)
	if totalBytes > 0 {
		percent = float64(bytesTransferred) / float64(totalBytes) * 100
	}
	fmt.Fprintf(os.Stderr, "\r%s: %s / %s (%.1f%%)",
		p.label,
		humanize.IBytes(uint64(bytesTransferred)),
		humanize.IBytes(uint64(totalBytes)),
		percent,
	)
}

// Complete finishes the progress line.
func (p *consoleProgress) Complete() {
	fmt.Fprintln(os.Stderr)
}

// Error terminates the progress line so the error renders cleanly.
func (p *consoleProgress) Error(err error) {
	fmt.Fprintln(os.Stderr)
}
