package environment

import (
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

func TestIntervalLimit(t *testing.T) {
	limit, err := NewIntervalLimit(
		[]r1.Interval{{Min: -1, Max: 1}, {Min: -0.5, Max: 0.5}},
		[]int{0, 2},
	)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		obs  []float64
		want bool
	}{
		{[]float64{0, 100, 0}, false},
		{[]float64{1, 0, 0.5}, false},
		{[]float64{1.01, 0, 0}, true},
		{[]float64{0, 0, -0.6}, true},
	}

	for _, test := range tests {
		if end := limit.End(mat.NewVecDense(3, test.obs), 0); end != test.want {
			t.Errorf("End(%v): want(%v) have(%v)", test.obs, test.want, end)
		}
	}

	if _, err := NewIntervalLimit([]r1.Interval{{}}, []int{0, 1}); err == nil {
		t.Errorf("newIntervalLimit: expected error on length mismatch")
	}
}

func TestStepLimit(t *testing.T) {
	limit := NewStepLimit(3)
	for steps, want := range []bool{false, false, false, true, true} {
		if end := limit.End(nil, steps); end != want {
			t.Errorf("End(%v): want(%v) have(%v)", steps, want, end)
		}
	}
}

func TestUniformStarter(t *testing.T) {
	bounds := []r1.Interval{{Min: -0.5, Max: 0.5}, {Min: 2, Max: 3}}
	starter := NewUniformStarter(bounds, 42)

	for i := 0; i < 100; i++ {
		start := starter.Start()
		for j, b := range bounds {
			if v := start.AtVec(j); v < b.Min || v > b.Max {
				t.Errorf("Start: feature %v out of bounds \n\twant(%v) "+
					"\n\thave(%v)", j, b, v)
			}
		}
	}
}
