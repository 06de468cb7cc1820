// Package policy implements action selection for agents with discrete
// actions
package policy

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/gamerl/utils/floatutils"
)

// LinearDecay is an epsilon schedule which decays linearly from Init to
// Final over DecayFrames frames and stays at Final afterwards
type LinearDecay struct {
	Init        float64 `json:"epsilon_init"`
	Final       float64 `json:"epsilon_final"`
	DecayFrames int     `json:"epsilon_decay_frames"`
}

// DefaultLinearDecay returns the default schedule, decaying from 0.5 to
// 0.01 over 1e5 frames
func DefaultLinearDecay() LinearDecay {
	return LinearDecay{Init: 0.5, Final: 0.01, DecayFrames: 1e5}
}

// Validate checks that both endpoints are probabilities and that the
// decay lasts at least one frame
func (l LinearDecay) Validate() error {
	for _, eps := range []float64{l.Init, l.Final} {
		if eps < 0 || eps > 1 {
			return fmt.Errorf("validate: epsilon must be in [0, 1] "+
				"\n\thave(%v)", eps)
		}
	}
	if l.DecayFrames < 1 {
		return fmt.Errorf("validate: decay frames must be positive "+
			"\n\twant(>0) \n\thave(%v)", l.DecayFrames)
	}
	return nil
}

// Epsilon returns the exploration probability after frame frames
func (l LinearDecay) Epsilon(frame int) float64 {
	if frame >= l.DecayFrames {
		return l.Final
	}
	eps := l.Init + (l.Final-l.Init)/float64(l.DecayFrames)*float64(frame)

	lo, hi := l.Final, l.Init
	if lo > hi {
		lo, hi = hi, lo
	}
	return floatutils.Clip(eps, lo, hi)
}

// EGreedy selects actions epsilon greedily. With probability epsilon
// an action is chosen uniformly at random, otherwise the action of
// maximum value is chosen, breaking ties uniformly at random.
type EGreedy struct {
	numActions int
	rng        *rand.Rand
	seed       uint64
}

// NewEGreedy returns a new EGreedy policy over numActions actions
func NewEGreedy(numActions int, seed uint64) (*EGreedy, error) {
	if numActions < 1 {
		return nil, fmt.Errorf("newEGreedy: number of actions must be "+
			"positive \n\twant(>0) \n\thave(%v)", numActions)
	}
	source := rand.NewSource(seed)

	return &EGreedy{numActions: numActions, rng: rand.New(source),
		seed: seed}, nil
}

// SelectAction selects an action. The action values are only computed
// when acting greedily.
func (e *EGreedy) SelectAction(epsilon float64,
	actionValues func() ([]float64, error)) (int, error) {
	if e.rng.Float64() < epsilon {
		return e.rng.Intn(e.numActions), nil
	}

	values, err := actionValues()
	if err != nil {
		return 0, fmt.Errorf("selectAction: %w", err)
	}
	return e.Greedy(values)
}

// Greedy returns an action of maximum value
func (e *EGreedy) Greedy(values []float64) (int, error) {
	if len(values) != e.numActions {
		return 0, fmt.Errorf("greedy: wrong number of action values "+
			"\n\twant(%v) \n\thave(%v)", e.numActions, len(values))
	}

	// If multiple actions have max value, return a random max-valued action
	_, maxIndices := floatutils.MaxSlice(values)
	return maxIndices[e.rng.Intn(len(maxIndices))], nil
}
