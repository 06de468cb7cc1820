package checkpointer

import (
	"fmt"
	"math"
)

// Best saves an object to a single directory whenever the score
// strictly improves on the best score seen so far
type Best struct {
	object Saver
	dir    string
	best   float64
}

// NewBest returns a new Best Checkpointer saving object to dir
func NewBest(object Saver, dir string) *Best {
	return &Best{object: object, dir: dir, best: math.Inf(-1)}
}

// Checkpoint saves the object if score exceeds the best score so far
func (b *Best) Checkpoint(_ int, score float64) (string, error) {
	if !(score > b.best) {
		return "", nil
	}
	b.best = score

	if err := b.object.Save(b.dir); err != nil {
		return "", fmt.Errorf("checkpoint: %w", err)
	}
	return b.dir, nil
}

// BestScore returns the best score seen so far
func (b *Best) BestScore() float64 {
	return b.best
}
