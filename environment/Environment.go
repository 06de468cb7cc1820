// Package environment outlines the interfaces and structs shared by the
// concrete game simulators
package environment

import (
	"gonum.org/v1/gonum/mat"
)

// Starter implements a distribution of starting states and samples starting
// states for environments
type Starter interface {
	Start() mat.Vector
}

// Ender determines whether an episode has ended, given the current
// observation and the number of steps taken in the episode so far
type Ender interface {
	End(obs mat.Vector, steps int) bool
}
