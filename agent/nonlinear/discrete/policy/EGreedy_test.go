package policy

import (
	"errors"
	"math"
	"testing"
)

func TestLinearDecay(t *testing.T) {
	l := LinearDecay{Init: 0.5, Final: 0.01, DecayFrames: 100}

	tests := []struct {
		frame int
		want  float64
	}{
		{0, 0.5},
		{50, 0.255},
		{100, 0.01},
		{1000, 0.01},
	}
	for _, test := range tests {
		if eps := l.Epsilon(test.frame); math.Abs(eps-test.want) > 1e-12 {
			t.Errorf("epsilon(%v): \n\twant(%v) \n\thave(%v)", test.frame,
				test.want, eps)
		}
	}

	bad := []LinearDecay{
		{Init: 1.5, Final: 0.1, DecayFrames: 10},
		{Init: 0.5, Final: -0.1, DecayFrames: 10},
		{Init: 0.5, Final: 0.1, DecayFrames: 0},
	}
	for _, b := range bad {
		if err := b.Validate(); err == nil {
			t.Errorf("validate(%+v): expected error", b)
		}
	}
}

func TestSelectActionGreedy(t *testing.T) {
	e, err := NewEGreedy(3, 0)
	if err != nil {
		t.Fatal(err)
	}

	values := func() ([]float64, error) { return []float64{0.1, 2, -1}, nil }
	for i := 0; i < 20; i++ {
		a, err := e.SelectAction(0, values)
		if err != nil {
			t.Fatal(err)
		}
		if a != 1 {
			t.Errorf("selectAction(ε=0): want(1) have(%v)", a)
		}
	}
}

func TestSelectActionRandom(t *testing.T) {
	e, _ := NewEGreedy(3, 1)

	called := false
	values := func() ([]float64, error) {
		called = true
		return nil, errors.New("should not be called")
	}

	counts := make([]int, 3)
	for i := 0; i < 3000; i++ {
		a, err := e.SelectAction(1, values)
		if err != nil {
			t.Fatal(err)
		}
		counts[a]++
	}
	if called {
		t.Errorf("selectAction(ε=1): action values computed")
	}
	for a, c := range counts {
		if c < 800 {
			t.Errorf("selectAction(ε=1): action %v chosen %v/3000 times", a,
				c)
		}
	}
}

func TestGreedyTies(t *testing.T) {
	e, _ := NewEGreedy(3, 2)
	seen := make(map[int]bool)
	for i := 0; i < 100; i++ {
		a, _ := e.Greedy([]float64{1, 0, 1})
		seen[a] = true
	}
	if !seen[0] || !seen[2] || seen[1] {
		t.Errorf("greedy: ties not broken between max actions: %v", seen)
	}
	if _, err := e.Greedy([]float64{1}); err == nil {
		t.Errorf("greedy: expected error on wrong number of values")
	}
}
