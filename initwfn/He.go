package initwfn

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// HeUConfig implements a configuration of the He Uniform initialization
// algorithm, suited to layers followed by a ReLU
type HeUConfig struct {
	Gain float64
	Seed uint64
}

// NewHeU returns a new He Uniform weight initializer
func NewHeU(gain float64, seed uint64) (*InitWFn, error) {
	return newInitWFn(HeUConfig{Gain: gain, Seed: seed})
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (h HeUConfig) Type() Type {
	return HeU
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (h HeUConfig) Create() G.InitWFn {
	src := rand.NewSource(h.Seed)

	return func(dt tensor.Dtype, s ...int) interface{} {
		in, _ := fans(s...)
		limit := h.Gain * math.Sqrt(6/in)
		dist := distuv.Uniform{Min: -limit, Max: limit, Src: src}

		return sample(dt, dist, s...)
	}
}

// HeNConfig implements a configuration of the He Normal initialization
// algorithm
type HeNConfig struct {
	Gain float64
	Seed uint64
}

// NewHeN returns a new He Normal weight initializer
func NewHeN(gain float64, seed uint64) (*InitWFn, error) {
	return newInitWFn(HeNConfig{Gain: gain, Seed: seed})
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (h HeNConfig) Type() Type {
	return HeN
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (h HeNConfig) Create() G.InitWFn {
	src := rand.NewSource(h.Seed)

	return func(dt tensor.Dtype, s ...int) interface{} {
		in, _ := fans(s...)
		dist := distuv.Normal{Mu: 0, Sigma: h.Gain * math.Sqrt(2/in),
			Src: src}

		return sample(dt, dist, s...)
	}
}
