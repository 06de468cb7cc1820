package environment

import "gonum.org/v1/gonum/mat"

// StepLimit implements the Ender interface to end episodes at specific
// timestep limits
type StepLimit struct {
	episodeSteps int
}

// NewStepLimit creates and returns a new step limit
func NewStepLimit(episodeSteps int) StepLimit {
	return StepLimit{episodeSteps}
}

// End determines whether or not the current episode should be ended
func (s StepLimit) End(_ mat.Vector, steps int) bool {
	return steps >= s.episodeSteps
}

// Steps returns the step limit
func (s StepLimit) Steps() int {
	return s.episodeSteps
}
