package network

import (
	"fmt"

	"gorgonia.org/tensor"
)

// ShapeError reports that two networks do not have matching parameters
type ShapeError struct {
	Op   string
	Name string
	Want tensor.Shape
	Have tensor.Shape

	// Set instead of Name when the number of parameters differs
	WantCount int
	HaveCount int
}

// Error satisfies the error interface
func (e *ShapeError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%v: networks have different parameter counts "+
			"\n\twant(%v) \n\thave(%v)", e.Op, e.WantCount, e.HaveCount)
	}
	if e.Have == nil {
		return fmt.Sprintf("%v: parameter %v missing from source", e.Op,
			e.Name)
	}
	return fmt.Sprintf("%v: parameter %v shape mismatch \n\twant(%v) "+
		"\n\thave(%v)", e.Op, e.Name, e.Want, e.Have)
}

// CopyWeights copies every learnable of src into the learnable of dst
// with the same name. Values are copied in place, so solvers and VMs
// bound to dst stay valid.
func CopyWeights(dst, src *Net) error {
	return eachPair("copyWeights", dst, src, func(d, s []float64) {
		copy(d, s)
	})
}

// Polyak sets each learnable of dst to a polyak average between its
// existing weights and the same-named weights of src:
//
//	dst ← (1 - tau) * dst + tau * src
func Polyak(dst, src *Net, tau float64) error {
	return eachPair("polyak", dst, src, func(d, s []float64) {
		for i := range d {
			d[i] = (1-tau)*d[i] + tau*s[i]
		}
	})
}

// eachPair calls f on the backing data of each same-named pair of
// learnables after checking that all shapes match
func eachPair(op string, dst, src *Net, f func(d, s []float64)) error {
	dstNodes := dst.Learnables()
	if len(dstNodes) != len(src.Learnables()) {
		return &ShapeError{Op: op, WantCount: len(dstNodes),
			HaveCount: len(src.Learnables())}
	}

	pairs := make([][2][]float64, 0, len(dstNodes))
	for _, d := range dstNodes {
		s, ok := src.param(d.Name())
		if !ok {
			return &ShapeError{Op: op, Name: d.Name(), Want: d.Shape()}
		}
		if !d.Shape().Eq(s.Shape()) {
			return &ShapeError{Op: op, Name: d.Name(), Want: d.Shape(),
				Have: s.Shape()}
		}

		dData, dOk := d.Value().Data().([]float64)
		sData, sOk := s.Value().Data().([]float64)
		if !dOk || !sOk {
			return fmt.Errorf("%v: parameter %v is not float64", op, d.Name())
		}
		pairs = append(pairs, [2][]float64{dData, sData})
	}

	for _, p := range pairs {
		f(p[0], p[1])
	}
	return nil
}
