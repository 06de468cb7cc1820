package environment

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

// IntervalLimit implements the Ender interface to end episodes
// whenever a single feature in a feature vector leaves some interval.
// Bounds are inclusive: a feature exactly on the boundary does not end
// the episode.
type IntervalLimit struct {
	intervals []r1.Interval
	indices   []int
}

// NewIntervalLimit creates and returns a new inteval limit
func NewIntervalLimit(limits []r1.Interval, obsIndices []int) (*IntervalLimit,
	error) {
	if len(limits) != len(obsIndices) {
		return nil, fmt.Errorf("newIntervalLimit: limits should have same "+
			"length as observation indices \n\twant(%v) \n\thave(%v)",
			len(obsIndices), len(limits))
	}

	return &IntervalLimit{limits, obsIndices}, nil
}

// End determines whether or not the current episode should be ended
func (i *IntervalLimit) End(obs mat.Vector, _ int) bool {
	for index := range i.indices {
		featureIndex := i.indices[index]
		interval := i.intervals[index]

		if obs.AtVec(featureIndex) > interval.Max ||
			obs.AtVec(featureIndex) < interval.Min {
			return true
		}
	}
	return false
}
