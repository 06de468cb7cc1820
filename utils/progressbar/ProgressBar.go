package progressbar

import (
	"fmt"
	"io"
	"time"

	channerics "github.com/niceyeti/channerics/channels"

	"github.com/samuelfneumann/gamerl/experiment/event"
)

// ProgressBar follows the events of a training session and redraws a
// ManualProgressBar at a fixed rate on its own goroutine, so that a
// slow terminal never holds up training.
type ProgressBar struct {
	bar         *ManualProgressBar
	updateEvery time.Duration

	// progress extracts the progress made up to an event
	progress func(event.Event) (int, bool)
}

// NewFrameProgressBar returns a ProgressBar which is full once
// maxFrames frames have been played
func NewFrameProgressBar(out io.Writer, width, maxFrames int,
	updateEvery time.Duration) *ProgressBar {
	return &ProgressBar{
		bar:         NewManualProgressBar(out, width, maxFrames),
		updateEvery: updateEvery,
		progress: func(e event.Event) (int, bool) {
			return e.Frame, e.Frame > 0
		},
	}
}

// NewIterationProgressBar returns a ProgressBar which is full once
// iterations training iterations have finished
func NewIterationProgressBar(out io.Writer, width, iterations int,
	updateEvery time.Duration) *ProgressBar {
	return &ProgressBar{
		bar:         NewManualProgressBar(out, width, iterations),
		updateEvery: updateEvery,
		progress: func(e event.Event) (int, bool) {
			return e.Iteration, e.Kind == event.IterationEnd
		},
	}
}

// Run consumes events until in or done is closed, redrawing the bar
// every update period. The final state of the bar is always printed.
func (p *ProgressBar) Run(done <-chan struct{}, in <-chan event.Event) {
	stop := make(chan struct{})
	defer close(stop)
	ticker := channerics.NewTicker(stop, p.updateEvery)

	for {
		select {
		case <-done:
			p.finish()
			return

		case e, ok := <-in:
			if !ok {
				p.finish()
				return
			}
			p.update(e)

		case <-ticker:
			p.bar.Display()
		}
	}
}

func (p *ProgressBar) update(e event.Event) {
	if progress, ok := p.progress(e); ok && progress > p.bar.Progress() {
		p.bar.Set(progress)
	}

	switch e.Kind {
	case event.EpisodeEnd:
		p.bar.SetSuffix(fmt.Sprintf("reward: %.1f eaten: %.2f eps: %.3f",
			e.AverageReward, e.AverageFruits, e.Epsilon))
	case event.IterationEnd:
		p.bar.SetSuffix(fmt.Sprintf("mean steps: %.1f", e.AverageSteps))
	case event.Terminated:
		p.bar.SetSuffix(fmt.Sprintf("terminated: %v", e.Reason))
	}
}

func (p *ProgressBar) finish() {
	p.bar.Display()
	fmt.Fprintln(p.bar.out)
}
