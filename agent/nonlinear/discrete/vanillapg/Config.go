package vanillapg

import (
	"fmt"

	"github.com/samuelfneumann/gamerl/environment/classiccontrol/cartpole"
	"github.com/samuelfneumann/gamerl/initwfn"
	"github.com/samuelfneumann/gamerl/network"
	"github.com/samuelfneumann/gamerl/solver"
)

// Config configures a Policy and how it is trained
type Config struct {
	HiddenLayerSizes []int               `json:"hidden_layer_sizes"`
	Activation       *network.Activation `json:"activation"`

	// DiscountRate discounts rewards within a game. Must be in (0, 1).
	DiscountRate float64 `json:"discount_rate"`

	Solver  *solver.Solver   `json:"solver"`
	InitWFn *initwfn.InitWFn `json:"init_wfn"`
	Seed    uint64           `json:"seed"`
}

// DefaultConfig returns the default configuration: a single hidden
// layer of 128 units trained with Adam at a learning rate of 0.05
func DefaultConfig() (Config, error) {
	adam, err := solver.NewDefaultAdam(0.05, 1)
	if err != nil {
		return Config{}, fmt.Errorf("defaultConfig: %w", err)
	}
	init, err := initwfn.NewGlorotU(1.0, 0)
	if err != nil {
		return Config{}, fmt.Errorf("defaultConfig: %w", err)
	}

	return Config{
		HiddenLayerSizes: []int{128},
		Activation:       network.TanH(),
		DiscountRate:     0.95,
		Solver:           adam,
		InitWFn:          init,
	}, nil
}

// Architecture returns the network described by the configuration. The
// network maps a Cart-Pole state to the logit of pushing left.
func (c Config) Architecture() network.DensePolicy {
	return network.NewDensePolicy(cartpole.StateSize, c.HiddenLayerSizes,
		c.Activation, 1)
}

// Validate checks the configuration
func (c Config) Validate() error {
	if len(c.HiddenLayerSizes) == 0 {
		return fmt.Errorf("validate: at least one hidden layer is required")
	}
	if err := c.Architecture().Validate(); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return c.validateTraining()
}

// validateTraining checks only the settings needed to train a network
// which already exists
func (c Config) validateTraining() error {
	if c.DiscountRate <= 0 || c.DiscountRate >= 1 {
		return fmt.Errorf("validate: discount rate must be in (0, 1) "+
			"\n\thave(%v)", c.DiscountRate)
	}
	if c.Solver == nil {
		return fmt.Errorf("validate: solver cannot be nil")
	}
	return nil
}
