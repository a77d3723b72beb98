// Package progress renders a progress bar for commands that work through
// several packages. All output goes to stderr to keep stdout clean for
// results.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Bar renders an ASCII progress bar.
type Bar struct {
	Total   int
	Current int
	Failed  int
	Label   string
	Width   int
	Enabled bool

	out io.Writer
	mu  sync.Mutex
}

// New creates a progress bar on stderr. It is disabled when quiet is set,
// when stderr is not a terminal, or when SHEETKIT_NO_PROGRESS=1.
func New(label string, total int, quiet bool) *Bar {
	return &Bar{
		Total:   total,
		Label:   label,
		Width:   30,
		Enabled: !quiet && shouldEnable(),
		out:     os.Stderr,
	}
}

// Step records one finished item and redraws. A non-nil err counts the item
// as failed.
func (b *Bar) Step(item string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Current++
	if b.Current > b.Total {
		b.Current = b.Total
	}
	if err != nil {
		b.Failed++
	}
	b.render(item)
}

// Finish replaces the bar with a summary line.
func (b *Bar) Finish(summary string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.Enabled {
		return
	}
	mark := color.GreenString("✓")
	if b.Failed > 0 {
		mark = color.RedString("✗")
	}
	fmt.Fprintf(b.writer(), "\r\033[K%s %s\n", mark, summary)
}

func (b *Bar) render(item string) {
	if !b.Enabled {
		return
	}

	filled := 0
	if b.Total > 0 {
		filled = b.Current * b.Width / b.Total
	}
	if filled > b.Width {
		filled = b.Width
	}

	bar := strings.Repeat("=", filled) + strings.Repeat(" ", b.Width-filled)
	fmt.Fprintf(b.writer(), "\r\033[K%s [%s] %d/%d  %s",
		b.Label, bar, b.Current, b.Total, item)
}

func (b *Bar) writer() io.Writer {
	if b.out == nil {
		return os.Stderr
	}
	return b.out
}

// Pct returns the current percentage (0-100) of the bar.
func (b *Bar) Pct() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Total == 0 {
		return 0
	}
	return float64(b.Current) / float64(b.Total) * 100
}

func shouldEnable() bool {
	if os.Getenv("SHEETKIT_NO_PROGRESS") == "1" {
		return false
	}
	return isTTY()
}

func isTTY() bool {
	stat, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
