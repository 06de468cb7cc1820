package experiment

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"path/filepath"
	"testing"

	"github.com/samuelfneumann/gamerl/agent"
	"github.com/samuelfneumann/gamerl/agent/nonlinear/discrete/deepq"
	"github.com/samuelfneumann/gamerl/agent/nonlinear/discrete/policy"
	"github.com/samuelfneumann/gamerl/agent/nonlinear/discrete/vanillapg"
	"github.com/samuelfneumann/gamerl/environment/classiccontrol/cartpole"
	"github.com/samuelfneumann/gamerl/environment/snake"
	"github.com/samuelfneumann/gamerl/experiment/event"
	"github.com/samuelfneumann/gamerl/experiment/tracker"
	"github.com/samuelfneumann/gamerl/initwfn"
	"github.com/samuelfneumann/gamerl/network"
	"github.com/samuelfneumann/gamerl/solver"
)

var quiet = WithLogger(log.New(io.Discard, "", 0))

// scriptedAgent ends an episode every episodeLen frames with a fixed
// cumulative reward
type scriptedAgent struct {
	episodeLen int
	reward     float64
	memory     int

	frames, step, trains, syncs int
	saved                       []string
}

func (s *scriptedAgent) PlayStep() (agent.Outcome, error) {
	s.frames++
	s.step++
	out := agent.Outcome{CumulativeReward: s.reward}
	if s.step == s.episodeLen {
		out.Done = true
		s.step = 0
	}
	return out, nil
}

func (s *scriptedAgent) FrameCount() int { return s.frames }

func (s *scriptedAgent) TrainOnReplayBatch() (float64, error) {
	s.trains++
	return 0.5, nil
}

func (s *scriptedAgent) SyncTarget() error {
	s.syncs++
	return nil
}

func (s *scriptedAgent) Save(dir string) error {
	s.saved = append(s.saved, dir)
	return nil
}

func (s *scriptedAgent) Snapshot() (agent.Snapshot, error) {
	return agent.Snapshot{Scores: []float64{1, 2, 3}}, nil
}

func (s *scriptedAgent) Epsilon() float64 { return 0.1 }

func (s *scriptedAgent) MemoryCap() int {
	if s.memory == 0 {
		return math.MaxInt
	}
	return s.memory
}

// recorder is a Tracker which keeps every event
type recorder struct {
	events []event.Event
	saved  bool
}

func (r *recorder) Track(e event.Event) { r.events = append(r.events, e) }

func (r *recorder) Save() error {
	r.saved = true
	return nil
}

func (r *recorder) count(k event.Kind) int {
	n := 0
	for _, e := range r.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

func dqnConfig() DQNConfig {
	return DQNConfig{
		ReplayBufferSize:          10,
		MaxNumFrames:              1000,
		SyncEveryFrames:           10,
		CumulativeRewardThreshold: 100,
		Window:                    1,
	}
}

func TestDQNThreshold(t *testing.T) {
	a := &scriptedAgent{episodeLen: 5, reward: 1}
	c := dqnConfig()
	c.CumulativeRewardThreshold = 1

	r := &recorder{}
	d, err := NewDQN(a, c, quiet, WithTracker(r))
	if err != nil {
		t.Fatal(err)
	}

	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// Episodes ending during warmup are not counted, so the first
	// episode of training reaches the threshold
	if summary.Reason != Threshold || summary.Episodes != 1 ||
		summary.Frames != 15 {
		t.Errorf("run: \n\twant(Threshold after 1 episode, 15 frames) "+
			"\n\thave(%v)", summary)
	}
	if a.trains != 5 {
		t.Errorf("run: training steps \n\twant(5) \n\thave(%v)", a.trains)
	}
	if d.Phase() != event.Done {
		t.Errorf("phase: \n\twant(%v) \n\thave(%v)", event.Done, d.Phase())
	}
	if !r.saved || r.count(event.Terminated) != 1 ||
		r.count(event.PhaseChanged) != 2 {
		t.Errorf("run: unexpected events %v", r.events)
	}
}

func TestDQNThresholdPartialWindow(t *testing.T) {
	a := &scriptedAgent{episodeLen: 5, reward: 1}
	c := dqnConfig()
	c.CumulativeRewardThreshold = 1
	c.Window = 4

	d, err := NewDQN(a, c, quiet)
	if err != nil {
		t.Fatal(err)
	}
	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// Averages of 0.25, 0.5 and 0.75 while the window fills
	if summary.Reason != Threshold || summary.Episodes != 4 ||
		summary.Frames != 30 {
		t.Errorf("run: \n\twant(Threshold after 4 episodes, 30 frames) "+
			"\n\thave(%v)", summary)
	}
}

func TestDQNMaxFrames(t *testing.T) {
	a := &scriptedAgent{episodeLen: 5, reward: 1}
	c := dqnConfig()
	c.MaxNumFrames = 30
	c.SavePath = filepath.Join(t.TempDir(), "dqn")
	c.SnapshotEvery = 4

	r := &recorder{}
	d, err := NewDQN(a, c, quiet, WithTracker(r))
	if err != nil {
		t.Fatal(err)
	}

	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Reason != MaxFrames || summary.Frames != 30 ||
		summary.Episodes != 4 {
		t.Errorf("run: \n\twant(MaxFrames after 4 episodes, 30 frames) "+
			"\n\thave(%v)", summary)
	}

	// Synced at frame 20 only: frame 10 is warmup and the session ends
	// at frame 30 before syncing
	if a.syncs != 1 || r.count(event.TargetSynced) != 1 {
		t.Errorf("run: syncs \n\twant(1) \n\thave(%v)", a.syncs)
	}

	// The average never improves after the first episode
	if len(a.saved) != 1 || a.saved[0] != c.SavePath {
		t.Errorf("run: saves \n\twant([%v]) \n\thave(%v)", c.SavePath,
			a.saved)
	}
	if summary.BestAverage != 1 {
		t.Errorf("run: best average \n\twant(1) \n\thave(%v)",
			summary.BestAverage)
	}

	// Frames 12, 16, 20, 24 and 28
	if n := r.count(event.FramePlayed); n != 5 {
		t.Errorf("run: snapshots \n\twant(5) \n\thave(%v)", n)
	}
}

func TestDQNMaxFramesWithoutEpisodeEnd(t *testing.T) {
	a := &scriptedAgent{episodeLen: 1000, reward: 1}
	c := dqnConfig()
	c.MaxNumFrames = 25

	d, err := NewDQN(a, c, quiet)
	if err != nil {
		t.Fatal(err)
	}
	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Reason != MaxFrames || summary.Frames != 25 {
		t.Errorf("run: \n\twant(MaxFrames at 25) \n\thave(%v)", summary)
	}
}

func TestDQNCancelled(t *testing.T) {
	a := &scriptedAgent{episodeLen: 5, reward: 1}
	bus := event.NewBus(16)

	d, err := NewDQN(a, dqnConfig(), quiet, WithBus(bus))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := d.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("run: \n\twant(%v) \n\thave(%v)", context.Canceled, err)
	}
	if summary.Reason != Cancelled {
		t.Errorf("run: reason \n\twant(%v) \n\thave(%v)", Cancelled,
			summary.Reason)
	}
	bus.Close()

	var last event.Event
	for e := range bus.Events() {
		last = e
	}
	if last.Kind != event.Terminated || last.Reason != string(Cancelled) {
		t.Errorf("run: last event \n\twant(Terminated) \n\thave(%v)", last)
	}
}

func TestDQNConfigValidate(t *testing.T) {
	bad := []func(c *DQNConfig){
		func(c *DQNConfig) { c.ReplayBufferSize = 0 },
		func(c *DQNConfig) { c.MaxNumFrames = 0 },
		func(c *DQNConfig) { c.SyncEveryFrames = -1 },
		func(c *DQNConfig) { c.Window = 0 },
		func(c *DQNConfig) { c.SnapshotEvery = -1 },
	}
	for i, mutate := range bad {
		c := dqnConfig()
		mutate(&c)
		if _, err := NewDQN(&scriptedAgent{}, c); err == nil {
			t.Errorf("newDQN(%v): expected error", i)
		}
	}

	// Warmup frames must fit in the replay memory
	if _, err := NewDQN(&scriptedAgent{memory: 5}, dqnConfig()); err == nil {
		t.Errorf("newDQN: expected error when warmup exceeds memory")
	}
	if _, err := NewDQN(&scriptedAgent{memory: 10}, dqnConfig()); err != nil {
		t.Errorf("newDQN: warmup equal to memory \n\twant(nil) "+
			"\n\thave(%v)", err)
	}

	if err := DefaultDQNConfig().Validate(); err != nil {
		t.Errorf("validate: default config: %v", err)
	}
}

// A real agent with an unreachably low threshold terminates at the end
// of its first episode after warmup
func TestDQNLowThresholdRealAgent(t *testing.T) {
	s, err := solver.NewDefaultAdam(1e-3, 1)
	if err != nil {
		t.Fatal(err)
	}
	wInit, err := initwfn.NewHeU(1.0, 1)
	if err != nil {
		t.Fatal(err)
	}
	game := snake.DefaultConfig()
	game.Height, game.Width, game.InitLen = 5, 5, 2

	a, err := deepq.NewAgent(deepq.AgentConfig{
		Game:             game,
		ReplayBufferSize: 16,
		Epsilon:          policy.LinearDecay{Init: 1, Final: 0.5, DecayFrames: 100},
		DQN: deepq.Config{
			Network: network.ConvQNet{
				Height:     5,
				Width:      5,
				Channels:   snake.Channels,
				Filters:    []int{2},
				KernelSize: 3,
				Hidden:     []int{4},
				Actions:    snake.NumActions,
			},
			BatchSize: 4,
			Gamma:     0.99,
			Tau:       1,
			Solver:    s,
			InitWFn:   wInit,
		},
		Seed: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	c := dqnConfig()
	c.ReplayBufferSize = 16
	c.CumulativeRewardThreshold = -1e6
	c.MaxNumFrames = 1e5
	c.SavePath = filepath.Join(t.TempDir(), "dqn")

	d, err := NewDQN(a, c, quiet)
	if err != nil {
		t.Fatal(err)
	}
	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Reason != Threshold || summary.Episodes != 1 {
		t.Errorf("run: \n\twant(Threshold after 1 episode) \n\thave(%v)",
			summary)
	}
	if summary.Frames <= 16 {
		t.Errorf("run: session ended during warmup \n\thave(%v)", summary)
	}
}

// scriptedTrainer reports fixed game lengths
type scriptedTrainer struct {
	steps  []int
	saved  int
	onGame func(game, steps int)
}

func (s *scriptedTrainer) Train(ctx context.Context, _ vanillapg.Simulator,
	numGames, _ int) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]int, numGames)
	for i := range out {
		out[i] = s.steps[i%len(s.steps)]
		if s.onGame != nil {
			s.onGame(i+1, out[i])
		}
	}
	return out, nil
}

func (s *scriptedTrainer) OnGameEnd(f func(game, steps int)) { s.onGame = f }

func (s *scriptedTrainer) Save(string) error {
	s.saved++
	return nil
}

func newSim(t *testing.T) *cartpole.CartPole {
	t.Helper()
	sim, err := cartpole.New(cartpole.DefaultPhysics(), cartpole.NewStarter(1))
	if err != nil {
		t.Fatal(err)
	}
	return sim
}

func TestPolicyGradientIterations(t *testing.T) {
	trainer := &scriptedTrainer{steps: []int{10, 20}}
	c := PGConfig{
		Iterations:        3,
		GamesPerIteration: 4,
		MaxStepsPerGame:   50,
		SavePath:          "unused",
	}

	r := &recorder{}
	p, err := NewPolicyGradient(trainer, newSim(t), c, quiet, WithTracker(r))
	if err != nil {
		t.Fatal(err)
	}

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Reason != Iterations || summary.Iterations != 3 ||
		summary.Frames != 180 || summary.FinalAverage != 15 {
		t.Errorf("run: unexpected summary %v", summary)
	}
	if trainer.saved != 3 {
		t.Errorf("run: saves \n\twant(3) \n\thave(%v)", trainer.saved)
	}
	if r.count(event.GameEnd) != 12 || r.count(event.IterationEnd) != 3 {
		t.Errorf("run: unexpected events %v", r.events)
	}
}

func TestPolicyGradientThreshold(t *testing.T) {
	trainer := &scriptedTrainer{steps: []int{100}}
	c := PGConfig{
		Iterations:         10,
		GamesPerIteration:  2,
		MaxStepsPerGame:    200,
		MeanStepsThreshold: 100,
	}

	p, err := NewPolicyGradient(trainer, newSim(t), c, quiet)
	if err != nil {
		t.Fatal(err)
	}
	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Reason != Threshold || summary.Iterations != 1 {
		t.Errorf("run: \n\twant(Threshold after 1 iteration) \n\thave(%v)",
			summary)
	}
	if trainer.saved != 0 {
		t.Errorf("run: saved without a save path")
	}
}

func TestPolicyGradientRealPolicy(t *testing.T) {
	s, err := solver.NewDefaultAdam(0.05, 1)
	if err != nil {
		t.Fatal(err)
	}
	pg, err := vanillapg.New(vanillapg.Config{
		HiddenLayerSizes: []int{8},
		Activation:       network.TanH(),
		DiscountRate:     0.95,
		Solver:           s,
		Seed:             2,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer pg.Close()

	c := PGConfig{
		Iterations:        2,
		GamesPerIteration: 3,
		MaxStepsPerGame:   20,
		SavePath:          filepath.Join(t.TempDir(), "cartpole"),
		LogDir:            t.TempDir(),
	}
	p, err := NewPolicyGradient(pg, newSim(t), c, quiet)
	if err != nil {
		t.Fatal(err)
	}
	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Iterations != 2 {
		t.Errorf("run: iterations \n\twant(2) \n\thave(%v)",
			summary.Iterations)
	}

	if ok, err := vanillapg.Exists(c.SavePath); err != nil || !ok {
		t.Errorf("run: policy not saved: %v", err)
	}
	records, err := tracker.LoadData(filepath.Join(c.LogDir,
		"cartpole.parquet"))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("run: log records \n\twant(2) \n\thave(%v)", len(records))
	}
}

func TestPGConfigValidate(t *testing.T) {
	bad := []PGConfig{
		{Iterations: 0, GamesPerIteration: 1, MaxStepsPerGame: 2},
		{Iterations: 1, GamesPerIteration: 0, MaxStepsPerGame: 2},
		{Iterations: 1, GamesPerIteration: 1, MaxStepsPerGame: 1},
		{Iterations: 1, GamesPerIteration: 1, MaxStepsPerGame: 2,
			MeanStepsThreshold: -1},
	}
	for _, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("validate(%+v): expected error", c)
		}
	}
	if err := DefaultPGConfig().Validate(); err != nil {
		t.Errorf("validate: default config: %v", err)
	}
}
