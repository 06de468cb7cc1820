package render

import (
	"fmt"
	"image"
	"os"

	"github.com/fogleman/gg"
	channerics "github.com/niceyeti/channerics/channels"

	"github.com/samuelfneumann/gamerl/agent"
	"github.com/samuelfneumann/gamerl/environment/classiccontrol/cartpole"
	"github.com/samuelfneumann/gamerl/experiment/checkpointer"
	"github.com/samuelfneumann/gamerl/experiment/event"
)

// Recorder writes snapshots to consecutively numbered PNG files
type Recorder struct {
	dir      string
	next     func() string
	cellSize int
	physics  cartpole.Physics
	width    int
	height   int
	frames   int
}

// NewRecorder returns a Recorder writing to dir, which is created if
// needed. Snake boards are drawn with cellSize pixels per cell and
// Cart-Pole states as if simulated with physics p.
func NewRecorder(dir string, cellSize int, p cartpole.Physics) (*Recorder,
	error) {
	if cellSize <= 0 {
		return nil, fmt.Errorf("newRecorder: cell size must be positive "+
			"\n\thave(%v)", cellSize)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("newRecorder: %w", err)
	}

	return &Recorder{
		dir:      dir,
		next:     checkpointer.FilenameEnumerator(0, dir, "frame"),
		cellSize: cellSize,
		physics:  p,
		width:    DefaultCartPoleWidth,
		height:   DefaultCartPoleHeight,
	}, nil
}

// Record draws s and writes it to the next file, returning its path
func (r *Recorder) Record(s agent.Snapshot) (string, error) {
	var img image.Image
	var err error
	switch {
	case s.Snake != nil:
		img, err = Snake(s, r.cellSize)
	case s.CartPole != nil:
		img, err = CartPole(s.CartPole, r.physics, r.width, r.height)
	default:
		return "", fmt.Errorf("record: snapshot holds no game state")
	}
	if err != nil {
		return "", fmt.Errorf("record: %w", err)
	}

	path := r.next() + ".png"
	if err := gg.SavePNG(path, img); err != nil {
		return "", fmt.Errorf("record: %w", err)
	}
	r.frames++
	return path, nil
}

// Run records the snapshot of every FramePlayed event received on in
// until in or done is closed. Frames which cannot be recorded are
// reported on stderr and skipped.
func (r *Recorder) Run(done <-chan struct{}, in <-chan event.Event) {
	for e := range channerics.OrDone(done, in) {
		if e.Kind != event.FramePlayed || e.Snapshot == nil {
			continue
		}
		if _, err := r.Record(*e.Snapshot); err != nil {
			fmt.Fprintf(os.Stderr, "recorder: %v\n", err)
		}
	}
}

// Frames returns the number of frames written
func (r *Recorder) Frames() int {
	return r.frames
}

// Dir returns the directory frames are written to
func (r *Recorder) Dir() string {
	return r.dir
}
