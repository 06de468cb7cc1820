// Package experiment implements training sessions. A session drives an
// agent through its phases, tracks progress, decides when to stop and
// publishes events to observers.
package experiment

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/samuelfneumann/gamerl/experiment/checkpointer"
	"github.com/samuelfneumann/gamerl/experiment/event"
	"github.com/samuelfneumann/gamerl/experiment/tracker"
)

// Reason describes why a session terminated
type Reason string

const (
	Threshold  Reason = "Threshold"
	MaxFrames  Reason = "MaxFrames"
	Cancelled  Reason = "Cancelled"
	Iterations Reason = "Iterations"
)

// Summary summarises a finished session
type Summary struct {
	Frames     int
	Episodes   int
	Iterations int

	// BestAverage is the best moving average seen: of cumulative reward
	// for DQN sessions and of steps per game for policy gradient sessions
	BestAverage  float64
	FinalAverage float64

	Reason Reason
}

func (s Summary) String() string {
	return fmt.Sprintf("Reason: %v | Frames: %v | Episodes: %v | "+
		"Iterations: %v | Best Average: %.2f | Final Average: %.2f",
		s.Reason, s.Frames, s.Episodes, s.Iterations, s.BestAverage,
		s.FinalAverage)
}

// Option configures a session
type Option func(*session)

// WithBus publishes the session's events to bus
func WithBus(bus *event.Bus) Option {
	return func(s *session) {
		s.bus = bus
	}
}

// WithLogger logs the session's progress to logger
func WithLogger(logger *log.Logger) Option {
	return func(s *session) {
		s.logger = logger
	}
}

// WithTracker registers a Tracker. Trackers see every event, even those
// the bus drops, and are saved when the session ends.
func WithTracker(t tracker.Tracker) Option {
	return func(s *session) {
		s.trackers = append(s.trackers, t)
	}
}

// WithCheckpointer registers a Checkpointer which is consulted after
// every frame of a DQN session or iteration of a policy gradient session
func WithCheckpointer(c checkpointer.Checkpointer) Option {
	return func(s *session) {
		s.checkpointers = append(s.checkpointers, c)
	}
}

// session holds what all sessions share: the observers of the session
// and its current phase
type session struct {
	bus           *event.Bus
	logger        *log.Logger
	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer

	phase event.Phase
	start time.Time
}

func newSession(opts []Option) session {
	s := session{
		logger: log.New(os.Stderr, "", log.LstdFlags),
		start:  time.Now(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// registerEpisodeLog adds a parquet episode log in logDir, if set
func (s *session) registerEpisodeLog(logDir, name string) {
	if logDir == "" {
		return
	}
	s.trackers = append(s.trackers, tracker.NewEpisodeLog(
		filepath.Join(logDir, name)))
}

// publish sends e to every tracker and then to the bus
func (s *session) publish(e event.Event) {
	e.Phase = s.phase
	for _, t := range s.trackers {
		t.Track(e)
	}
	s.bus.Publish(e)
}

func (s *session) setPhase(p event.Phase, frame int) {
	s.phase = p
	s.logger.Printf("Phase: %v", p)
	s.publish(event.Event{Kind: event.PhaseChanged, Frame: frame})
}

// checkpoint consults every checkpointer, publishing an event for each
// save
func (s *session) checkpoint(step, frame int, score float64) error {
	for _, c := range s.checkpointers {
		path, err := c.Checkpoint(step, score)
		if err != nil {
			return fmt.Errorf("checkpoint: %w", err)
		}
		if path != "" {
			s.logger.Printf("Saved checkpoint to %v", path)
			s.publish(event.Event{Kind: event.Checkpointed, Frame: frame,
				Path: path})
		}
	}
	return nil
}

// terminate moves the session to its final phase, publishes the
// Terminated event and saves all trackers
func (s *session) terminate(summary Summary) (Summary, error) {
	s.phase = event.Done
	s.logger.Printf("Terminated after %v: %v",
		time.Since(s.start).Truncate(time.Second), summary)
	s.publish(event.Event{
		Kind:      event.Terminated,
		Frame:     summary.Frames,
		Episode:   summary.Episodes,
		Iteration: summary.Iterations,
		Reason:    string(summary.Reason),
	})

	for _, t := range s.trackers {
		if err := t.Save(); err != nil {
			return summary, fmt.Errorf("terminate: could not save "+
				"tracker: %w", err)
		}
	}
	return summary, nil
}
