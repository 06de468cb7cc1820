package floatutils

import (
	"math"
	"reflect"
	"testing"
)

func TestMaxSlice(t *testing.T) {
	tests := []struct {
		values  []float64
		max     float64
		indices []int
	}{
		{[]float64{1}, 1, []int{0}},
		{[]float64{3, 1, 2}, 3, []int{0}},
		{[]float64{-1, 4, 4, 0}, 4, []int{1, 2}},
		{[]float64{2, 2, 2}, 2, []int{0, 1, 2}},
	}

	for _, test := range tests {
		max, indices := MaxSlice(test.values)
		if max != test.max || !reflect.DeepEqual(indices, test.indices) {
			t.Errorf("maxSlice(%v): \n\twant(%v, %v) \n\thave(%v, %v)",
				test.values, test.max, test.indices, max, indices)
		}
	}
}

func TestClip(t *testing.T) {
	if v := Clip(2, -1, 1); v != 1 {
		t.Errorf("clip: want(1) have(%v)", v)
	}
	if v := Clip(-2, -1, 1); v != -1 {
		t.Errorf("clip: want(-1) have(%v)", v)
	}
	if v := Clip(0.5, -1, 1); v != 0.5 {
		t.Errorf("clip: want(0.5) have(%v)", v)
	}
}

func TestSigmoid(t *testing.T) {
	if v := Sigmoid(0); v != 0.5 {
		t.Errorf("sigmoid(0): want(0.5) have(%v)", v)
	}
	if v := Sigmoid(3) + Sigmoid(-3); math.Abs(v-1) > 1e-12 {
		t.Errorf("sigmoid: σ(x) + σ(-x) \n\twant(1) \n\thave(%v)", v)
	}
}

func TestDiscountCumSum(t *testing.T) {
	tests := []struct {
		x        []float64
		discount float64
		want     []float64
	}{
		{[]float64{1, 1, 1, 0}, 0.5, []float64{1.75, 1.5, 1, 0}},
		{[]float64{-1, 2}, 1, []float64{1, 2}},
		{[]float64{3, 4, 5}, 0, []float64{3, 4, 5}},
		{nil, 0.9, []float64{}},
	}

	for _, test := range tests {
		have := DiscountCumSum(test.x, test.discount)
		if !reflect.DeepEqual(have, test.want) {
			t.Errorf("discountCumSum(%v, %v): \n\twant(%v) \n\thave(%v)",
				test.x, test.discount, test.want, have)
		}
	}
}
