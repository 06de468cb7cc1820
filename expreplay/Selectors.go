package expreplay

import (
	"golang.org/x/exp/rand"
)

// Selector implements functionality for choosing which stored items
// should be sampled from an experience replay buffer
type Selector interface {
	// choose selects n distinct indices in [0, stored)
	choose(stored, n int) []int
}

// uniformSelector is a Selector which selects data from an experience
// replay buffer uniformly randomly without replacement
type uniformSelector struct {
	rng *rand.Rand
}

// NewUniformSelector returns a new Selector which selects data uniformly
// randomly from an experience replay buffer
func NewUniformSelector(seed uint64) Selector {
	source := rand.NewSource(seed)
	rng := rand.New(source)

	return &uniformSelector{rng: rng}
}

// choose shuffles the stored indices and keeps the first n
func (u *uniformSelector) choose(stored, n int) []int {
	return u.rng.Perm(stored)[:n]
}
