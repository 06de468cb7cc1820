// Package floatutils provides utilities for working with floats
package floatutils

import (
	"math"
)

// Clip clips a floating point to within a minimum and maximum value.
// If the floating point exceeds max, then the function returns the max
// If min exceeds the floating point, then the function returns the min
func Clip(value, min, max float64) float64 {
	clipped := math.Min(value, max)
	return math.Max(clipped, min)
}

// MaxSlice gets the maximum value and indices of the maximum values in
// a slice of float64.
func MaxSlice(values []float64) (max float64, indices []int) {
	max, indices = values[0], []int{0}

	for i := 1; i < len(values); i++ {
		if values[i] > max {
			max = values[i]
			indices = []int{i}
		} else if values[i] == max {
			indices = append(indices, i)
		}
	}
	return
}

// Sigmoid returns the logistic function of x
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// DiscountCumSum returns the discounted cumulative sum of x from each
// index to the end. Given x = [x0 x1 ... xN] and discount ℽ, element i
// of the result is:
//
//	xi + ℽ x(i+1) + ℽ^2 x(i+2) + ... + ℽ^(N-i) xN
func DiscountCumSum(x []float64, discount float64) []float64 {
	cumSums := make([]float64, len(x))
	next := 0.0
	for i := len(x) - 1; i >= 0; i-- {
		next = x[i] + discount*next
		cumSums[i] = next
	}
	return cumSums
}
