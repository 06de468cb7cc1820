package deepq

import (
	"fmt"

	"github.com/samuelfneumann/gamerl/agent/nonlinear/discrete/policy"
	"github.com/samuelfneumann/gamerl/environment/snake"
	"github.com/samuelfneumann/gamerl/initwfn"
	"github.com/samuelfneumann/gamerl/network"
	"github.com/samuelfneumann/gamerl/solver"
)

// Config configures the DeepQ learner
type Config struct {
	Network   network.ConvQNet `json:"network"`
	BatchSize int              `json:"batch_size"`
	Gamma     float64          `json:"gamma"`

	// Tau is the polyak averaging constant used when syncing the target
	// network. A Tau of 1 copies the online weights verbatim.
	Tau float64 `json:"tau"`

	Solver  *solver.Solver   `json:"solver"`
	InitWFn *initwfn.InitWFn `json:"init_wfn"`
}

// DefaultConfig returns the default learner configuration for a Snake
// board of the given size
func DefaultConfig(height, width int) (Config, error) {
	adam, err := solver.NewDefaultAdam(1e-3, 1)
	if err != nil {
		return Config{}, fmt.Errorf("defaultConfig: %w", err)
	}
	init, err := initwfn.NewHeU(1.0, 0)
	if err != nil {
		return Config{}, fmt.Errorf("defaultConfig: %w", err)
	}

	return Config{
		Network:   network.NewConvQNet(height, width, snake.Channels, snake.NumActions),
		BatchSize: 64,
		Gamma:     0.99,
		Tau:       1.0,
		Solver:    adam,
		InitWFn:   init,
	}, nil
}

// Validate checks that the configuration describes a valid learner
func (c Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("validate: batch size must be positive "+
			"\n\twant(>0) \n\thave(%v)", c.BatchSize)
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("validate: gamma must be in [0, 1] \n\thave(%v)",
			c.Gamma)
	}
	if c.Tau <= 0 || c.Tau > 1 {
		return fmt.Errorf("validate: tau must be in (0, 1] \n\thave(%v)",
			c.Tau)
	}
	if c.Solver == nil {
		return fmt.Errorf("validate: solver cannot be nil")
	}
	if err := c.Network.Validate(); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return nil
}

// AgentConfig configures a Snake DQN agent
type AgentConfig struct {
	Game             snake.Config       `json:"game"`
	ReplayBufferSize int                `json:"replay_buffer_size"`
	Epsilon          policy.LinearDecay `json:"epsilon"`
	DQN              Config             `json:"dqn"`
	Seed             uint64             `json:"seed"`
}

// Validate checks the configuration, failing fast on settings which
// could only surface later as training errors
func (c AgentConfig) Validate() error {
	if err := c.Game.Validate(); err != nil {
		return fmt.Errorf("validate: game: %w", err)
	}
	if err := c.Epsilon.Validate(); err != nil {
		return fmt.Errorf("validate: epsilon: %w", err)
	}
	if err := c.DQN.Validate(); err != nil {
		return fmt.Errorf("validate: dqn: %w", err)
	}
	if c.ReplayBufferSize < c.DQN.BatchSize {
		return fmt.Errorf("validate: replay buffer cannot hold one batch "+
			"\n\twant(>= %v) \n\thave(%v)", c.DQN.BatchSize,
			c.ReplayBufferSize)
	}

	arch := c.DQN.Network
	if arch.Height != c.Game.Height || arch.Width != c.Game.Width ||
		arch.Channels != snake.Channels || arch.Actions != snake.NumActions {
		return fmt.Errorf("validate: network does not match game "+
			"\n\twant(%vx%vx%v → %v) \n\thave(%vx%vx%v → %v)",
			snake.Channels, c.Game.Height, c.Game.Width, snake.NumActions,
			arch.Channels, arch.Height, arch.Width, arch.Actions)
	}
	return nil
}
