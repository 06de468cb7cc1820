// Package checkpointer implements Checkpointers, which decide when an
// agent's network is saved during training
package checkpointer

import "github.com/samuelfneumann/gamerl/agent"

// Checkpointer saves an agent.Saver based on training progress. It is
// called with the current step, which is a frame for DQN sessions and
// an iteration for policy gradient sessions, and the current score. It
// returns the path saved to, or "" if nothing was saved.
type Checkpointer interface {
	Checkpoint(step int, score float64) (string, error)
}

// Saver is anything whose state can be saved to a directory
type Saver = agent.Saver
