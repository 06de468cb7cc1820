package timestep

import "testing"

func TestStepType(t *testing.T) {
	tests := []struct {
		step  TimeStep[int]
		first bool
		mid   bool
		last  bool
		str   string
	}{
		{New(First, 0, 1, 0), true, false, false, "First"},
		{New(Mid, -0.2, 2, 1), false, true, false, "Mid"},
		{New(Last, -10, 3, 2), false, false, true, "Last"},
	}

	for _, test := range tests {
		if test.step.First() != test.first {
			t.Errorf("First: want(%v) have(%v)", test.first, test.step.First())
		}
		if test.step.Mid() != test.mid {
			t.Errorf("Mid: want(%v) have(%v)", test.mid, test.step.Mid())
		}
		if test.step.Last() != test.last {
			t.Errorf("Last: want(%v) have(%v)", test.last, test.step.Last())
		}
		if s := test.step.StepType().String(); s != test.str {
			t.Errorf("String: want(%v) have(%v)", test.str, s)
		}
	}
}
