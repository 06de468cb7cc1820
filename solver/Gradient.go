package solver

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Gradient pairs a learnable value with a gradient that was computed
// outside of the value's graph, for example a gradient averaged over
// many forward passes. It implements G.ValueGrad so that any Solver can
// apply it.
type Gradient struct {
	value G.Value
	grad  G.Value
}

// NewGradient returns a Gradient which will step value along grad.
// The gradient backing must have one entry per element of value.
func NewGradient(value G.Value, grad []float64) (*Gradient, error) {
	if value == nil {
		return nil, fmt.Errorf("newGradient: value cannot be nil")
	}
	if len(grad) != value.Shape().TotalSize() {
		return nil, fmt.Errorf("newGradient: gradient size does not match "+
			"value \n\twant(%v) \n\thave(%v)", value.Shape().TotalSize(),
			len(grad))
	}

	backing := make([]float64, len(grad))
	copy(backing, grad)
	g := tensor.New(
		tensor.WithShape(value.Shape().Clone()...),
		tensor.WithBacking(backing),
	)

	return &Gradient{value: value, grad: g}, nil
}

// Value returns the value to be updated
func (g *Gradient) Value() G.Value {
	return g.value
}

// Grad returns the gradient of the value
func (g *Gradient) Grad() (G.Value, error) {
	return g.grad, nil
}

// Apply steps each value along its matching gradient using s. The
// values are updated in place.
func Apply(s G.Solver, values []G.Value, grads [][]float64) error {
	if len(values) != len(grads) {
		return fmt.Errorf("apply: number of gradients does not match "+
			"number of values \n\twant(%v) \n\thave(%v)", len(values),
			len(grads))
	}

	model := make([]G.ValueGrad, len(values))
	for i := range values {
		g, err := NewGradient(values[i], grads[i])
		if err != nil {
			return fmt.Errorf("apply: %w", err)
		}
		model[i] = g
	}

	return s.Step(model)
}
