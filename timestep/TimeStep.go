// Package timestep implements timesteps of the agent-environment interaction
package timestep

import (
	"fmt"
)

// StepType denotes the type of step that a TimeStep can be, either  first
// environmental step, a middle step, or a last step
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// TimeStep packages together a single timestep in an environment. The
// observation type O is whatever the environment exposes as its state.
type TimeStep[O any] struct {
	stepType    StepType
	Reward      float64
	Observation O
	Number      int
}

func New[O any](t StepType, r float64, o O, n int) TimeStep[O] {
	return TimeStep[O]{t, r, o, n}
}

// StepType returns the type of the TimeStep
func (t TimeStep[O]) StepType() StepType {
	return t.stepType
}

// First returns whether a TimeStep is the first in an environment
func (t TimeStep[O]) First() bool {
	return t.stepType == First
}

// Mid returns whether a TimeStep is a middle step in an environment
func (t TimeStep[O]) Mid() bool {
	return t.stepType == Mid
}

// Last returns whether a TimeStep is the last step in an environment
func (t TimeStep[O]) Last() bool {
	return t.stepType == Last
}

func (t TimeStep[O]) String() string {
	str := "TimeStep | Type: %v  |  Reward:  %.2f  |  Step Number:  %v"

	return fmt.Sprintf(str, t.stepType, t.Reward, t.Number)
}

// Transition is a single (s, a, r, done, s') experience tuple.
//
// When Done is true, NextState is the unchanged state observed at
// termination; learners mask it out of the bootstrap target.
type Transition[O any] struct {
	State     O
	Action    int
	Reward    float64
	Done      bool
	NextState O
}

func (t Transition[O]) String() string {
	return fmt.Sprintf("Transition | Action: %v  |  Reward: %.2f  |  Done: %v",
		t.Action, t.Reward, t.Done)
}
