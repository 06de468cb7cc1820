package vanillapg

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/samuelfneumann/gamerl/environment/classiccontrol/cartpole"
	"github.com/samuelfneumann/gamerl/initwfn"
	"github.com/samuelfneumann/gamerl/network"
	"github.com/samuelfneumann/gamerl/solver"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	s, err := solver.NewVanilla(0.05, 1, -1)
	if err != nil {
		t.Fatal(err)
	}
	init, err := initwfn.NewGlorotU(1.0, 3)
	if err != nil {
		t.Fatal(err)
	}
	return Config{
		HiddenLayerSizes: []int{8},
		Activation:       network.TanH(),
		DiscountRate:     0.95,
		Solver:           s,
		InitWFn:          init,
		Seed:             1,
	}
}

func newCartPole(t *testing.T) *cartpole.CartPole {
	t.Helper()
	c, err := cartpole.New(cartpole.DefaultPhysics(), cartpole.NewStarter(2))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestDiscountRewards(t *testing.T) {
	have := DiscountRewards([]float64{1, 1, 1, 0}, 0.5)
	want := []float64{1.75, 1.5, 1, 0}
	if !floats.EqualApprox(have, want, 1e-12) {
		t.Errorf("discountRewards: \n\twant(%v) \n\thave(%v)", want, have)
	}

	if have := DiscountRewards(nil, 0.5); len(have) != 0 {
		t.Errorf("discountRewards: expected empty result \n\thave(%v)", have)
	}
}

func TestDiscountAndNormalizeRewards(t *testing.T) {
	games := [][]float64{
		{1, 1, 1, 1, 0},
		{1, 0},
		{1, 1, 1, 1, 1, 1, 1, 0},
	}
	normalized := DiscountAndNormalizeRewards(games, 0.95)

	var all []float64
	for i, n := range normalized {
		if len(n) != len(games[i]) {
			t.Fatalf("discountAndNormalizeRewards: game %v length "+
				"\n\twant(%v) \n\thave(%v)", i, len(games[i]), len(n))
		}
		all = append(all, n...)
	}

	mean, std := stat.PopMeanStdDev(all, nil)
	if math.Abs(mean) > 1e-9 {
		t.Errorf("discountAndNormalizeRewards: mean \n\twant(0) \n\thave(%v)",
			mean)
	}
	if math.Abs(std-1) > 1e-9 {
		t.Errorf("discountAndNormalizeRewards: std \n\twant(1) \n\thave(%v)",
			std)
	}

	// Longer games have larger early returns
	if normalized[2][0] <= normalized[1][0] {
		t.Errorf("discountAndNormalizeRewards: long game start %v should "+
			"exceed short game start %v", normalized[2][0], normalized[1][0])
	}
}

func TestNormalizeConstantRewards(t *testing.T) {
	normalized := DiscountAndNormalizeRewards([][]float64{{0}, {0}}, 0.9)
	for _, n := range normalized {
		for _, r := range n {
			if r != 0 || math.IsNaN(r) {
				t.Errorf("discountAndNormalizeRewards: \n\twant(0) "+
					"\n\thave(%v)", r)
			}
		}
	}
}

func TestScaleAndAverageGradients(t *testing.T) {
	grads := [][]Gradients{
		{
			{"w": {1, 2}, "b": {1}},
			{"w": {3, 4}, "b": {1}},
		},
		{
			{"w": {5, 6}, "b": {1}},
		},
	}
	normalized := [][]float64{{1, -1}, {2}}

	avg, err := ScaleAndAverageGradients(grads, normalized)
	if err != nil {
		t.Fatal(err)
	}

	// (1*[1 2] - 1*[3 4] + 2*[5 6]) / 3
	wantW := []float64{8.0 / 3, 10.0 / 3}
	if !floats.EqualApprox(avg["w"], wantW, 1e-12) {
		t.Errorf("scaleAndAverageGradients: w \n\twant(%v) \n\thave(%v)",
			wantW, avg["w"])
	}
	if math.Abs(avg["b"][0]-2.0/3) > 1e-12 {
		t.Errorf("scaleAndAverageGradients: b \n\twant(%v) \n\thave(%v)",
			2.0/3, avg["b"][0])
	}
}

func TestScaleAndAverageGradientsMismatch(t *testing.T) {
	tests := []struct {
		name       string
		grads      [][]Gradients
		normalized [][]float64
	}{
		{
			"games",
			[][]Gradients{{{"w": {1}}}},
			[][]float64{{1}, {1}},
		},
		{
			"steps",
			[][]Gradients{{{"w": {1}}, {"w": {1}}}},
			[][]float64{{1}},
		},
		{
			"shape",
			[][]Gradients{{{"w": {1}}, {"w": {1, 2}}}},
			[][]float64{{1, 1}},
		},
		{
			"names",
			[][]Gradients{{{"w": {1}}, {"v": {1}}}},
			[][]float64{{1, 1}},
		},
		{
			"empty",
			[][]Gradients{{}},
			[][]float64{{}},
		},
	}

	for _, test := range tests {
		if _, err := ScaleAndAverageGradients(test.grads,
			test.normalized); err == nil {
			t.Errorf("scaleAndAverageGradients(%v): expected error",
				test.name)
		}
	}
}

func TestZeroPolicyIsUniform(t *testing.T) {
	c := testConfig(t)
	c.InitWFn = nil
	p, err := New(c)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	prob, err := p.LeftProbability([]float64{0.1, -0.2, 0.03, 0.4})
	if err != nil {
		t.Fatal(err)
	}
	if prob != 0.5 {
		t.Errorf("leftProbability: \n\twant(0.5) \n\thave(%v)", prob)
	}
}

func TestStepGradient(t *testing.T) {
	p, err := New(testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	state := []float64{0.1, -0.2, 0.03, 0.4}
	prob, err := p.LeftProbability(state)
	if err != nil {
		t.Fatal(err)
	}

	action, grads, err := p.Step(state)
	if err != nil {
		t.Fatal(err)
	}
	if action != 0 && action != 1 {
		t.Fatalf("step: illegal action %v", action)
	}
	if len(grads) != len(p.net.Names()) {
		t.Fatalf("step: gradients \n\twant(%v) \n\thave(%v)",
			len(p.net.Names()), len(grads))
	}

	// The output bias has ∂z/∂b = 1, so its gradient is σ(z) - label
	outBias := grads["dense1/bias"]
	want := prob - float64(1-action)
	if len(outBias) != 1 || math.Abs(outBias[0]-want) > 1e-9 {
		t.Errorf("step: output bias gradient \n\twant(%v) \n\thave(%v)",
			want, outBias)
	}
}

func TestStepGradientsIndependent(t *testing.T) {
	p, err := New(testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	state := []float64{0.1, -0.2, 0.03, 0.4}
	prob, err := p.LeftProbability(state)
	if err != nil {
		t.Fatal(err)
	}

	// Dividing by σ(z) - label leaves ∂z/∂w, which depends only on state
	var first []float64
	for i := 0; i < 5; i++ {
		if _, err := p.Action(state); err != nil {
			t.Fatal(err)
		}
		action, grads, err := p.Step(state)
		if err != nil {
			t.Fatal(err)
		}

		scale := prob - float64(1-action)
		if have := grads["dense1/bias"][0]; math.Abs(have-scale) > 1e-9 {
			t.Errorf("step %v: output bias gradient \n\twant(%v) "+
				"\n\thave(%v)", i, scale, have)
		}

		dzdw := make([]float64, len(grads["dense0/weights"]))
		floats.ScaleTo(dzdw, 1/scale, grads["dense0/weights"])
		if first == nil {
			first = dzdw
			continue
		}
		if !floats.EqualApprox(first, dzdw, 1e-9) {
			t.Errorf("step %v: hidden weight gradient changed between "+
				"steps on the same state", i)
		}
	}

	after, err := p.LeftProbability(state)
	if err != nil {
		t.Fatal(err)
	}
	if after != prob {
		t.Errorf("step: weights changed without an update \n\twant(%v) "+
			"\n\thave(%v)", prob, after)
	}
}

func TestTrain(t *testing.T) {
	p, err := New(testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	games := 0
	p.OnGameEnd(func(game, steps int) { games = game })

	state := []float64{0.1, -0.2, 0.03, 0.4}
	before, _ := p.LeftProbability(state)

	sim := newCartPole(t)
	steps, err := p.Train(context.Background(), sim, 5, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 5 || games != 5 {
		t.Fatalf("train: games \n\twant(5) \n\thave(%v, %v)", len(steps),
			games)
	}
	for _, s := range steps {
		if s < 1 || s > 50 {
			t.Errorf("train: steps out of range \n\twant([1, 50]) "+
				"\n\thave(%v)", s)
		}
	}

	after, _ := p.LeftProbability(state)
	if before == after {
		t.Errorf("train: policy unchanged after update")
	}
}

func TestTrainCancelled(t *testing.T) {
	p, err := New(testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Train(ctx, newCartPole(t), 5, 50)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("train: \n\twant(%v) \n\thave(%v)", context.Canceled, err)
	}
}

func TestSaveLoad(t *testing.T) {
	c := testConfig(t)
	p, err := New(c)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	dir := filepath.Join(t.TempDir(), "cartpole")
	if ok, err := Exists(dir); err != nil || ok {
		t.Fatalf("exists: \n\twant(false, nil) \n\thave(%v, %v)", ok, err)
	}
	if err := p.Save(dir); err != nil {
		t.Fatal(err)
	}
	if ok, err := Exists(dir); err != nil || !ok {
		t.Fatalf("exists: \n\twant(true, nil) \n\thave(%v, %v)", ok, err)
	}

	loaded, err := Load(dir, c)
	if err != nil {
		t.Fatal(err)
	}
	defer loaded.Close()

	sizes := loaded.HiddenLayerSizes()
	if len(sizes) != 1 || sizes[0] != 8 {
		t.Errorf("hiddenLayerSizes: \n\twant([8]) \n\thave(%v)", sizes)
	}

	state := []float64{0.5, 0.1, -0.1, 0}
	want, _ := p.LeftProbability(state)
	have, _ := loaded.LeftProbability(state)
	if math.Abs(want-have) > 1e-12 {
		t.Errorf("load: left probability \n\twant(%v) \n\thave(%v)", want,
			have)
	}

	if err := Remove(dir); err != nil {
		t.Fatal(err)
	}
	if ok, _ := Exists(dir); ok {
		t.Errorf("remove: policy still exists")
	}
}

func TestConfigValidate(t *testing.T) {
	bad := []func(c *Config){
		func(c *Config) { c.HiddenLayerSizes = nil },
		func(c *Config) { c.HiddenLayerSizes = []int{-1} },
		func(c *Config) { c.Activation = nil },
		func(c *Config) { c.DiscountRate = 0 },
		func(c *Config) { c.DiscountRate = 1 },
		func(c *Config) { c.Solver = nil },
	}
	for i, mutate := range bad {
		c := testConfig(t)
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("validate(%v): expected error", i)
		}
	}

	if _, err := DefaultConfig(); err != nil {
		t.Errorf("defaultConfig: %v", err)
	}
}

func BenchmarkStep(b *testing.B) {
	s, _ := solver.NewVanilla(0.05, 1, -1)
	p, err := New(Config{
		HiddenLayerSizes: []int{128},
		Activation:       network.TanH(),
		DiscountRate:     0.95,
		Solver:           s,
	})
	if err != nil {
		b.Fatal(err)
	}
	defer p.Close()

	state := []float64{0.1, -0.2, 0.03, 0.4}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := p.Step(state); err != nil {
			b.Fatal(err)
		}
	}
}
