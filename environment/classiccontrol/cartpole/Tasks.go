package cartpole

import (
	"math"

	env "github.com/samuelfneumann/gamerl/environment"
)

const (
	FailAngle float64 = 12 * 2 * math.Pi / 360
)

// Balance implements the Cart-Pole Balance task. The goal of the agent
// is to keep the pole upright and the cart on the track for as long as
// possible.
//
// The reward is +1 for every step which does not end the game and 0 for
// the step which does. Games are truncated after a step limit.
type Balance struct {
	stepLimiter env.StepLimit
}

// NewBalance creates and returns a new Balance task
func NewBalance(maxSteps int) Balance {
	return Balance{env.NewStepLimit(maxSteps)}
}

// Reward returns the reward for a step with the given done flag
func (b Balance) Reward(done bool) float64 {
	if done {
		return 0
	}
	return 1
}

// Truncated returns whether a game with the given number of steps has
// reached the step limit
func (b Balance) Truncated(steps int) bool {
	return b.stepLimiter.End(nil, steps)
}

// MaxSteps returns the step limit of the task
func (b Balance) MaxSteps() int {
	return b.stepLimiter.Steps()
}
