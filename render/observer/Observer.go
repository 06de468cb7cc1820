// Package observer connects the observers requested on the command line
// to the event bus of a training session
package observer

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/samuelfneumann/gamerl/environment/classiccontrol/cartpole"
	"github.com/samuelfneumann/gamerl/experiment/event"
	"github.com/samuelfneumann/gamerl/experiment/tracker"
	"github.com/samuelfneumann/gamerl/render"
	"github.com/samuelfneumann/gamerl/render/live"
	"github.com/samuelfneumann/gamerl/render/terminal"
	"github.com/samuelfneumann/gamerl/utils/progressbar"
)

// Progress bar layout
const (
	progressWidth  = 40
	progressUpdate = time.Second
)

// Config selects the observers to run
type Config struct {
	// TUI runs the full screen terminal interface
	TUI bool

	// LiveAddr is the address the websocket event stream is served on.
	// Empty disables the stream.
	LiveAddr string

	// FramesDir is the directory snapshots are recorded to as PNG
	// files. Empty disables recording.
	FramesDir string
	CellSize  int
	Physics   cartpole.Physics

	// Progress is the count at which the progress bar is full. Zero
	// disables the bar. The bar counts frames, or iterations if
	// Iterations is set, and is drawn on Out or stderr.
	Progress   int
	Iterations bool
	Out        io.Writer

	// Trackers are fed every event and saved once the bus is closed
	Trackers []tracker.Tracker
}

func (c Config) count() int {
	n := 0
	for _, enabled := range []bool{
		c.TUI, c.LiveAddr != "", c.FramesDir != "", c.Progress > 0,
		len(c.Trackers) > 0,
	} {
		if enabled {
			n++
		}
	}
	return n
}

// Enabled returns whether any observer is selected
func (c Config) Enabled() bool {
	return c.count() > 0
}

// Snapshots returns whether any selected observer draws snapshots
func (c Config) Snapshots() bool {
	return c.TUI || c.LiveAddr != "" || c.FramesDir != ""
}

// Observers are the running observers of one session
type Observers struct {
	done      chan struct{}
	cancel    context.CancelFunc
	consumers sync.WaitGroup
	servers   sync.WaitGroup
}

// Start starts the observers selected by c, each reading its own copy
// of the events published on bus. The returned context is a child of
// ctx which is cancelled when the user quits the terminal interface,
// and should be used to run the session.
func Start(ctx context.Context, bus *event.Bus, c Config) (*Observers,
	context.Context, error) {
	var recorder *render.Recorder
	if c.FramesDir != "" {
		cellSize := c.CellSize
		if cellSize <= 0 {
			cellSize = render.DefaultCellSize
		}
		var err error
		recorder, err = render.NewRecorder(c.FramesDir, cellSize, c.Physics)
		if err != nil {
			return nil, nil, fmt.Errorf("start: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	o := &Observers{done: make(chan struct{}), cancel: cancel}

	n := c.count()
	if n == 0 {
		return o, ctx, nil
	}
	subs := event.Subscribe(o.done, bus.Events(), n)
	next := func() <-chan event.Event {
		sub := subs[0]
		subs = subs[1:]
		return sub
	}

	if recorder != nil {
		o.consume(func(in <-chan event.Event) {
			recorder.Run(o.done, in)
		}, next())
	}

	if c.Progress > 0 {
		out := c.Out
		if out == nil {
			out = os.Stderr
		}
		var bar *progressbar.ProgressBar
		if c.Iterations {
			bar = progressbar.NewIterationProgressBar(out, progressWidth,
				c.Progress, progressUpdate)
		} else {
			bar = progressbar.NewFrameProgressBar(out, progressWidth,
				c.Progress, progressUpdate)
		}
		o.consume(func(in <-chan event.Event) {
			bar.Run(o.done, in)
		}, next())
	}

	if len(c.Trackers) > 0 {
		o.consume(func(in <-chan event.Event) {
			if err := tracker.Run(o.done, in, c.Trackers...); err != nil {
				log.Printf("tracker: %v", err)
			}
		}, next())
	}

	if c.LiveAddr != "" {
		server := live.NewServer()
		o.consume(func(in <-chan event.Event) {
			server.Run(o.done, in)
		}, next())

		o.servers.Add(1)
		go func() {
			defer o.servers.Done()
			if err := live.ListenAndServe(ctx, c.LiveAddr, server); err != nil {
				log.Printf("live: %v", err)
			}
		}()
	}

	if c.TUI {
		o.consume(func(in <-chan event.Event) {
			if err := terminal.Run(in); err != nil {
				log.Printf("tui: %v", err)
			}
			cancel()

			// Keep the other observers fed until the session ends
			for range in {
			}
		}, next())
	}

	return o, ctx, nil
}

func (o *Observers) consume(run func(<-chan event.Event),
	in <-chan event.Event) {
	o.consumers.Add(1)
	go func() {
		defer o.consumers.Done()
		run(in)
	}()
}

// Wait waits for the observers to drain their events and stops them.
// The bus must be closed first.
func (o *Observers) Wait() {
	o.consumers.Wait()
	o.cancel()
	o.servers.Wait()
	close(o.done)
}
