// Package expreplay implements experience replay memories
package expreplay

import (
	"fmt"
)

// ReplayMemory is a fixed-capacity circular buffer of experience. Once
// full, each Append overwrites the oldest item. A ReplayMemory is not
// safe for concurrent use.
type ReplayMemory[T any] struct {
	items    []T
	cursor   int
	stored   int
	sampler  Selector
	capacity int
}

// New returns a new ReplayMemory with the given capacity which samples
// uniformly at random using the given seed
func New[T any](capacity int, seed uint64) (*ReplayMemory[T], error) {
	return NewWithSelector[T](capacity, NewUniformSelector(seed))
}

// NewWithSelector returns a new ReplayMemory which samples with s
func NewWithSelector[T any](capacity int, s Selector) (*ReplayMemory[T],
	error) {
	if capacity < 1 {
		return nil, fmt.Errorf("new: capacity must be positive \n\twant(>0)"+
			" \n\thave(%v)", capacity)
	}
	if s == nil {
		return nil, fmt.Errorf("new: selector cannot be nil")
	}

	return &ReplayMemory[T]{
		items:    make([]T, capacity),
		sampler:  s,
		capacity: capacity,
	}, nil
}

// Append adds an item, overwriting the oldest one if the buffer is full
func (r *ReplayMemory[T]) Append(item T) {
	r.items[r.cursor] = item
	r.cursor = (r.cursor + 1) % r.capacity
	if r.stored < r.capacity {
		r.stored++
	}
}

// Sample returns batchSize distinct stored items. Each call draws
// independently of previous calls.
func (r *ReplayMemory[T]) Sample(batchSize int) ([]T, error) {
	if batchSize < 1 || batchSize > r.capacity {
		return nil, &ExpReplayError{
			Op: "sample",
			Err: fmt.Errorf("%w \n\twant(1 <= n <= %v) \n\thave(%v)",
				errInvalidBatchSize, r.capacity, batchSize),
		}
	}
	if r.stored == 0 {
		return nil, &ExpReplayError{Op: "sample", Err: errEmptyBuffer}
	}
	if batchSize > r.stored {
		return nil, &ExpReplayError{
			Op: "sample",
			Err: fmt.Errorf("%w \n\twant(<= %v) \n\thave(%v)",
				errInsufficientSamples, r.stored, batchSize),
		}
	}

	batch := make([]T, batchSize)
	for i, index := range r.sampler.choose(r.stored, batchSize) {
		batch[i] = r.items[index]
	}
	return batch, nil
}

// Len returns the number of stored items
func (r *ReplayMemory[T]) Len() int {
	return r.stored
}

// Cap returns the maximum number of stored items
func (r *ReplayMemory[T]) Cap() int {
	return r.capacity
}

// Items returns the stored items from oldest to newest
func (r *ReplayMemory[T]) Items() []T {
	items := make([]T, r.stored)
	for i := range items {
		items[i] = r.items[r.newest(r.stored-1-i)]
	}
	return items
}

// newest returns the storage index of the i-th most recent item
func (r *ReplayMemory[T]) newest(i int) int {
	return ((r.cursor-1-i)%r.capacity + r.capacity) % r.capacity
}
