package snake

import (
	"reflect"
	"testing"
)

func newGame(t *testing.T, c Config, seed uint64) *Game {
	g, err := New(c, seed)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

// checkInvariants verifies that a state is a legal game position
func checkInvariants(t *testing.T, c Config, s State) {
	t.Helper()

	seen := make(map[Point]bool)
	for i, p := range s.Snake {
		if p.Y < 0 || p.Y >= c.Height || p.X < 0 || p.X >= c.Width {
			t.Errorf("snake cell out of bounds: %v", p)
		}
		if seen[p] {
			t.Errorf("snake overlaps itself at %v", p)
		}
		if i > 0 && !s.Snake[i-1].adjacent(p) {
			t.Errorf("snake not contiguous between %v and %v",
				s.Snake[i-1], p)
		}
		seen[p] = true
	}
	for _, f := range s.Fruits {
		if seen[f] {
			t.Errorf("fruit at %v overlaps snake or another fruit", f)
		}
		seen[f] = true
	}
}

func TestReset(t *testing.T) {
	configs := []Config{
		DefaultConfig(),
		{Height: 5, Width: 5, NumFruits: 1, InitLen: 2},
		{Height: 3, Width: 9, NumFruits: 3, InitLen: 6},
		{Height: 1, Width: 4, NumFruits: 1, InitLen: 3},
	}

	for _, c := range configs {
		g := newGame(t, c, 7)
		for i := 0; i < 200; i++ {
			step := g.Reset()
			if !step.First() {
				t.Errorf("reset: want(First) have(%v)", step.StepType())
			}

			s := step.Observation
			if len(s.Snake) != c.InitLen {
				t.Errorf("reset: snake length \n\twant(%v) \n\thave(%v)",
					c.InitLen, len(s.Snake))
			}
			wantFruits := min(c.NumFruits, c.Height*c.Width-c.InitLen)
			if len(s.Fruits) != wantFruits {
				t.Errorf("reset: fruits \n\twant(%v) \n\thave(%v)",
					wantFruits, len(s.Fruits))
			}
			checkInvariants(t, c, s)

			// Straight snake with the body behind the heading
			d := g.Heading().Delta()
			for j, p := range s.Snake {
				want := Point{Y: s.Snake[0].Y - j*d.Y, X: s.Snake[0].X - j*d.X}
				if p != want {
					t.Errorf("reset: snake is not straight behind its head")
					break
				}
			}
		}
	}
}

func TestStepInvariants(t *testing.T) {
	c := Config{Height: 6, Width: 6, NumFruits: 2, InitLen: 3,
		NoFruitReward: -0.2, FruitReward: 10, DeathReward: -10}
	g := newGame(t, c, 3)

	for i := 0; i < 5000; i++ {
		before := g.State()
		step, eaten := g.Step(g.RandomAction())
		after := step.Observation

		if step.Last() {
			if step.Reward != c.DeathReward {
				t.Errorf("step: death reward \n\twant(%v) \n\thave(%v)",
					c.DeathReward, step.Reward)
			}
			if !reflect.DeepEqual(before, after) ||
				!reflect.DeepEqual(before, g.State()) {
				t.Errorf("step: state mutated on death")
			}
			g.Reset()
			continue
		}

		checkInvariants(t, c, after)

		if eaten {
			if len(after.Snake) != len(before.Snake)+1 {
				t.Errorf("step: snake should grow by one after eating")
			}
			if step.Reward != c.FruitReward {
				t.Errorf("step: fruit reward \n\twant(%v) \n\thave(%v)",
					c.FruitReward, step.Reward)
			}
			if indexOf(before.Fruits, after.Head()) < 0 {
				t.Errorf("step: fruit eaten but head not on a fruit")
			}
		} else {
			if len(after.Snake) != len(before.Snake) {
				t.Errorf("step: snake length changed without eating")
			}
			if step.Reward != c.NoFruitReward {
				t.Errorf("step: no-fruit reward \n\twant(%v) \n\thave(%v)",
					c.NoFruitReward, step.Reward)
			}
		}
	}
}

func TestDeathOffRightEdge(t *testing.T) {
	c := DefaultConfig()
	c.Height, c.Width, c.InitLen = 5, 5, 2
	g := newGame(t, c, 0)

	start := State{
		Snake:  []Point{{Y: 2, X: 2}, {Y: 2, X: 1}},
		Fruits: []Point{{Y: 0, X: 0}},
	}
	if err := g.Load(start, Right); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		step, eaten := g.Step(GoStraight)
		if step.Last() || eaten {
			t.Fatalf("step %v: unexpected end or fruit", i+1)
		}
		if step.Reward != NoFruitReward {
			t.Errorf("step %v: reward \n\twant(%v) \n\thave(%v)", i+1,
				NoFruitReward, step.Reward)
		}
	}

	want := State{
		Snake:  []Point{{Y: 2, X: 4}, {Y: 2, X: 3}},
		Fruits: []Point{{Y: 0, X: 0}},
	}
	if !reflect.DeepEqual(g.State(), want) {
		t.Fatalf("step: \n\twant(%v) \n\thave(%v)", want, g.State())
	}

	step, eaten := g.Step(GoStraight)
	if !step.Last() || eaten {
		t.Errorf("step 3: expected death off the right edge")
	}
	if step.Reward != DeathReward {
		t.Errorf("step 3: reward \n\twant(%v) \n\thave(%v)", DeathReward,
			step.Reward)
	}
	if !reflect.DeepEqual(g.State(), want) || g.Heading() != Right {
		t.Errorf("step 3: state mutated on death")
	}
}

func TestSelfCollision(t *testing.T) {
	c := DefaultConfig()
	c.Height, c.Width, c.InitLen = 5, 5, 2
	g := newGame(t, c, 0)

	// A 2×3 loop whose head can move into the body with a right turn
	s := State{
		Snake: []Point{
			{Y: 1, X: 1}, {Y: 1, X: 2}, {Y: 2, X: 2}, {Y: 2, X: 1},
			{Y: 2, X: 0},
		},
		Fruits: []Point{{Y: 4, X: 4}},
	}
	if err := g.Load(s, Left); err != nil {
		t.Fatal(err)
	}
	if step, _ := g.Step(TurnLeft); !step.Last() {
		t.Errorf("step: expected death on running into the body")
	}

	// Moving into the cell vacated by the tail is legal
	s = State{
		Snake: []Point{
			{Y: 1, X: 1}, {Y: 1, X: 2}, {Y: 2, X: 2}, {Y: 2, X: 1},
		},
		Fruits: []Point{{Y: 4, X: 4}},
	}
	if err := g.Load(s, Left); err != nil {
		t.Fatal(err)
	}
	step, _ := g.Step(TurnLeft)
	if step.Last() {
		t.Fatalf("step: moving into the vacated tail cell should be legal")
	}
	if h := step.Observation.Head(); h != (Point{Y: 2, X: 1}) {
		t.Errorf("step: head \n\twant(%v) \n\thave(%v)", Point{Y: 2, X: 1}, h)
	}
}

func TestEatFruit(t *testing.T) {
	c := DefaultConfig()
	c.Height, c.Width, c.InitLen = 4, 4, 2
	g := newGame(t, c, 11)

	s := State{
		Snake:  []Point{{Y: 0, X: 1}, {Y: 0, X: 0}},
		Fruits: []Point{{Y: 0, X: 2}},
	}
	if err := g.Load(s, Right); err != nil {
		t.Fatal(err)
	}

	step, eaten := g.Step(GoStraight)
	if !eaten || step.Reward != FruitReward {
		t.Fatalf("step: expected to eat fruit")
	}
	after := step.Observation
	wantSnake := []Point{{Y: 0, X: 2}, {Y: 0, X: 1}, {Y: 0, X: 0}}
	if !reflect.DeepEqual(after.Snake, wantSnake) {
		t.Errorf("step: snake \n\twant(%v) \n\thave(%v)", wantSnake,
			after.Snake)
	}
	if len(after.Fruits) != 1 {
		t.Errorf("step: fruit not replaced \n\thave(%v)", after.Fruits)
	}
	checkInvariants(t, c, after)
}

func TestTurn(t *testing.T) {
	left := map[Direction]Direction{Left: Down, Up: Left, Right: Up,
		Down: Right}
	right := map[Direction]Direction{Left: Up, Up: Right, Right: Down,
		Down: Left}

	for d := range left {
		if got := d.Turn(TurnLeft); got != left[d] {
			t.Errorf("turn left from %v: want(%v) have(%v)", d, left[d], got)
		}
		if got := d.Turn(TurnRight); got != right[d] {
			t.Errorf("turn right from %v: want(%v) have(%v)", d, right[d],
				got)
		}
		if got := d.Turn(GoStraight); got != d {
			t.Errorf("straight from %v: have(%v)", d, got)
		}
	}
}

func TestIllegalActionPanics(t *testing.T) {
	g := newGame(t, DefaultConfig(), 0)
	defer func() {
		if recover() == nil {
			t.Errorf("step: expected panic on illegal action")
		}
	}()
	g.Step(Action(3))
}

func TestLoadRejectsIllegalStates(t *testing.T) {
	g := newGame(t, Config{Height: 4, Width: 4, NumFruits: 1, InitLen: 2}, 0)

	tests := []struct {
		name    string
		state   State
		heading Direction
	}{
		{"empty", State{}, Right},
		{"gap", State{Snake: []Point{{0, 0}, {0, 2}}}, Right},
		{"overlap", State{Snake: []Point{{0, 0}, {0, 1}, {0, 0}}}, Down},
		{"oob", State{Snake: []Point{{0, 4}}}, Right},
		{"fruit on snake",
			State{Snake: []Point{{0, 1}, {0, 0}}, Fruits: []Point{{0, 0}}},
			Right},
		{"reverse", State{Snake: []Point{{0, 1}, {0, 0}}}, Left},
	}

	for _, test := range tests {
		if err := g.Load(test.state, test.heading); err == nil {
			t.Errorf("load(%v): expected error", test.name)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	bad := []Config{
		{Height: 0, Width: 5, NumFruits: 1, InitLen: 2},
		{Height: 5, Width: 5, NumFruits: 0, InitLen: 2},
		{Height: 3, Width: 3, NumFruits: 1, InitLen: 4},
		{Height: 1, Width: 2, NumFruits: 1, InitLen: 2},
	}
	for _, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("validate(%+v): expected error", c)
		}
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("validate: default config: %v", err)
	}
}

func TestEncode(t *testing.T) {
	s := State{
		Snake:  []Point{{Y: 0, X: 1}, {Y: 0, X: 0}},
		Fruits: []Point{{Y: 1, X: 2}},
	}
	got := Encode(2, 3, s)
	want := []float64{
		1, 2, 0,
		0, 0, 0,

		0, 0, 0,
		0, 0, 1,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("encode: \n\twant(%v) \n\thave(%v)", want, got)
	}

	if got := Encode(2, 3, s, s); len(got) != 2*len(want) {
		t.Errorf("encode: batch length \n\twant(%v) \n\thave(%v)",
			2*len(want), len(got))
	}
}

func BenchmarkStep(b *testing.B) {
	g, err := New(DefaultConfig(), 0)
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < b.N; i++ {
		if step, _ := g.Step(g.RandomAction()); step.Last() {
			g.Reset()
		}
	}
}
