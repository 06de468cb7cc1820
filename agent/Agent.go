// Package agent defines the interfaces through which training sessions
// drive agents
package agent

import "github.com/samuelfneumann/gamerl/environment/snake"

// Outcome summarises a single frame played by an agent
type Outcome struct {
	Action int
	Reward float64
	Done   bool

	// Totals for the current episode. When Done is true these are the
	// totals of the episode that just ended.
	CumulativeReward float64
	FruitsEaten      int
}

// Player plays frames in an environment, storing the experience it
// generates
type Player interface {
	// PlayStep plays a single frame
	PlayStep() (Outcome, error)

	// FrameCount returns the number of frames played so far
	FrameCount() int
}

// Learner implements a learning algorithm that defines how weights are
// updated from stored experience
type Learner interface {
	// TrainOnReplayBatch performs a single gradient update and returns
	// the loss
	TrainOnReplayBatch() (float64, error)

	// SyncTarget copies the online network's weights into the target
	// network
	SyncTarget() error
}

// Saver persists an agent's network
type Saver interface {
	Save(dir string) error
}

// Agent is a value-based agent which plays and learns
type Agent interface {
	Player
	Learner
	Saver
}

// Closer is an agent that must be closed after it is done learning
type Closer interface {
	Close() error
}

// Snapshot is a read-only view of an agent's environment for renderers
type Snapshot struct {
	Snake   *snake.State
	Heading snake.Direction
	Height  int
	Width   int

	// State of a Cart-Pole system as [x, ẋ, θ, θ̇]
	CartPole []float64

	// Scores are the action values in the current state, indexed by
	// action. Nil if they were not computed.
	Scores []float64
}

// Snapshotter is an agent which can describe its current environment
type Snapshotter interface {
	Snapshot() (Snapshot, error)
}
