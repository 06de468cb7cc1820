// Package progressbar implements functionality of printing a progress
// bar to the terminal window
package progressbar

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ManualProgressBar implement progress bar functionality that must
// be manually managed. That is, the Display() function must be called
// whenever an updated progress bar should be printed.
//
// ManualProgressBar does not use concurrency.
type ManualProgressBar struct {
	out             io.Writer
	width           int
	maxProgress     int
	currentProgress int
	suffix          string
	bar             strings.Builder
	startTime       time.Time
}

// NewManualProgressBar returns a new ManualProgressBar which is width
// characters wide and full after max increments
func NewManualProgressBar(out io.Writer, width, max int) *ManualProgressBar {
	if max < 1 {
		max = 1
	}
	return &ManualProgressBar{
		out:         out,
		width:       width,
		maxProgress: max,
		startTime:   time.Now(),
	}
}

// Increment increments the internal progress counter. Each time an
// iteration is performed, Increment should be called.
func (p *ManualProgressBar) Increment() {
	p.Set(p.currentProgress + 1)
}

// Set sets the progress counter, clipped to [0, max]
func (p *ManualProgressBar) Set(progress int) {
	switch {
	case progress < 0:
		p.currentProgress = 0
	case progress > p.maxProgress:
		p.currentProgress = p.maxProgress
	default:
		p.currentProgress = progress
	}
}

// Progress returns the progress counter
func (p *ManualProgressBar) Progress() int {
	return p.currentProgress
}

// SetSuffix sets a message printed after the bar
func (p *ManualProgressBar) SetSuffix(suffix string) {
	p.suffix = suffix
}

// Display prints the progress bar over the previous one
func (p *ManualProgressBar) Display() {
	fmt.Fprintf(p.out, "\n\033[1A\033[K%v",
		p.render(time.Since(p.startTime).Truncate(time.Second)))
}

// render returns the progress bar as it looks after elapsed time
func (p *ManualProgressBar) render(elapsed time.Duration) string {
	fraction := float64(p.currentProgress) / float64(p.maxProgress)
	filled := int(fraction * float64(p.width))

	p.bar.Reset()
	p.bar.WriteString("|")
	p.bar.WriteString(strings.Repeat("█", filled))
	p.bar.WriteString(strings.Repeat(" ", p.width-filled))
	fmt.Fprintf(&p.bar, "| [%.2f%% | elapsed: %v]", fraction*100, elapsed)
	if p.suffix != "" {
		p.bar.WriteString(" " + p.suffix)
	}
	return p.bar.String()
}
