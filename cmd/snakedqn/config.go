package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/samuelfneumann/gamerl/agent/nonlinear/discrete/deepq"
	"github.com/samuelfneumann/gamerl/agent/nonlinear/discrete/policy"
	"github.com/samuelfneumann/gamerl/environment/snake"
	"github.com/samuelfneumann/gamerl/experiment"
	"github.com/samuelfneumann/gamerl/solver"
)

// Default board of the training script
const (
	defaultHeight  = 9
	defaultWidth   = 9
	defaultInitLen = 2
)

// config is the configuration of a training run. It can be read from
// a JSON file given with -config.
type config struct {
	Agent   deepq.AgentConfig    `json:"agent"`
	Session experiment.DQNConfig `json:"session"`

	// Solver is the type of solver, built with default hyperparameters
	// and LearningRate as its step size
	Solver       solver.Type `json:"solver"`
	LearningRate float64     `json:"learning_rate"`

	// CheckpointEveryFrames saves an extra copy of the online network
	// every so many frames. Zero disables these checkpoints.
	CheckpointEveryFrames int `json:"checkpoint_every_frames"`
}

func defaultConfig() (config, error) {
	game := snake.DefaultConfig()
	game.Height, game.Width, game.InitLen = defaultHeight, defaultWidth,
		defaultInitLen

	dqn, err := deepq.DefaultConfig(game.Height, game.Width)
	if err != nil {
		return config{}, fmt.Errorf("defaultConfig: %w", err)
	}
	session := experiment.DefaultDQNConfig()

	return config{
		Agent: deepq.AgentConfig{
			Game:             game,
			ReplayBufferSize: session.ReplayBufferSize,
			Epsilon:          policy.DefaultLinearDecay(),
			DQN:              dqn,
		},
		Session:      session,
		Solver:       solver.Adam,
		LearningRate: 1e-3,
	}, nil
}

// bind registers a flag for each setting of c on fs
func (c *config) bind(fs *flag.FlagSet) {
	game := &c.Agent.Game
	fs.IntVar(&game.Height, "height", game.Height, "Height of the game board")
	fs.IntVar(&game.Width, "width", game.Width, "Width of the game board")
	fs.IntVar(&game.NumFruits, "numFruits", game.NumFruits,
		"Number of fruits present on the board at any given time")
	fs.IntVar(&game.InitLen, "initLen", game.InitLen,
		"Initial length of the snake, in number of squares")

	session := &c.Session
	fs.Float64Var(&session.CumulativeRewardThreshold,
		"cumulativeRewardThreshold", session.CumulativeRewardThreshold,
		"Threshold for the moving average of cumulative reward over the "+
			"last 100 episodes. Training stops once it is reached.")
	fs.IntVar(&session.MaxNumFrames, "maxNumFrames", session.MaxNumFrames,
		"Maximum number of frames to run the training for")
	fs.IntVar(&session.ReplayBufferSize, "replayBufferSize",
		session.ReplayBufferSize, "Length of the replay memory buffer")
	fs.IntVar(&session.SyncEveryFrames, "syncEveryFrames",
		session.SyncEveryFrames, "Frequency at which weights are synced "+
			"from the online network to the target network")
	fs.StringVar(&session.SavePath, "savePath", session.SavePath,
		"Directory the online network is saved to on every improvement")
	fs.StringVar(&session.LogDir, "logDir", session.LogDir,
		"Directory a parquet log of all episodes is written to")
	fs.IntVar(&session.SnapshotEvery, "snapshotEvery", session.SnapshotEvery,
		"Frames between board snapshots sent to observers")

	eps := &c.Agent.Epsilon
	fs.Float64Var(&eps.Init, "epsilonInit", eps.Init, "Initial value of epsilon")
	fs.Float64Var(&eps.Final, "epsilonFinal", eps.Final, "Final value of epsilon")
	fs.IntVar(&eps.DecayFrames, "epsilonDecayFrames", eps.DecayFrames,
		"Number of frames within which epsilon decays from its initial to "+
			"its final value")

	fs.IntVar(&c.Agent.DQN.BatchSize, "batchSize", c.Agent.DQN.BatchSize,
		"Batch size for training")
	fs.Float64Var(&c.Agent.DQN.Gamma, "gamma", c.Agent.DQN.Gamma,
		"Reward discount rate")
	fs.Float64Var(&c.LearningRate, "learningRate", c.LearningRate,
		"Learning rate for DQN training")
	fs.StringVar((*string)(&c.Solver), "solver", string(c.Solver),
		"Type of solver: Adam, RMSProp or Vanilla")
	fs.Uint64Var(&c.Agent.Seed, "seed", c.Agent.Seed,
		"Seed of the game, replay memory and exploration")
	fs.IntVar(&c.CheckpointEveryFrames, "checkpointEveryFrames",
		c.CheckpointEveryFrames, "Frames between numbered checkpoints of "+
			"the online network; 0 disables them")
}

// load reads the JSON file at path into c
func (c *config) load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("load: %v: %w", path, err)
	}
	return nil
}

// resolve fills in the settings derived from others and validates c
func (c *config) resolve() error {
	c.Agent.ReplayBufferSize = c.Session.ReplayBufferSize
	c.Agent.DQN.Network.Height = c.Agent.Game.Height
	c.Agent.DQN.Network.Width = c.Agent.Game.Width

	s, err := solver.NewDefault(c.Solver, c.LearningRate, 1)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	c.Agent.DQN.Solver = s

	if c.CheckpointEveryFrames < 0 {
		return fmt.Errorf("resolve: checkpoint every frames cannot be "+
			"negative \n\thave(%v)", c.CheckpointEveryFrames)
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	return nil
}

// options are the settings of a run which are not part of the training
// configuration
type options struct {
	configPath string

	tui       bool
	liveAddr  string
	framesDir string
	progress  bool

	play       bool
	playFrames int
	playDelay  time.Duration
}

func (o *options) bind(fs *flag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "",
		"JSON configuration file; explicitly set flags override its values")
	fs.BoolVar(&o.tui, "tui", false, "Follow training in a terminal interface")
	fs.StringVar(&o.liveAddr, "live", "",
		"Address to stream training events on over websockets, e.g. :8080")
	fs.StringVar(&o.framesDir, "frames", "",
		"Directory board snapshots are recorded to as PNG files")
	fs.BoolVar(&o.progress, "progress", false, "Print a progress bar")
	fs.BoolVar(&o.play, "play", false,
		"Play greedily with the network saved at -savePath instead of "+
			"training")
	fs.IntVar(&o.playFrames, "playFrames", 1000,
		"Number of frames to play with -play")
	fs.DurationVar(&o.playDelay, "playDelay", 100*time.Millisecond,
		"Delay between frames played with -play")
}

// parse parses the command line arguments. Values from the -config file
// override the defaults and explicitly set flags override both.
func parse(fs *flag.FlagSet, args []string) (config, options, error) {
	c, err := defaultConfig()
	if err != nil {
		return config{}, options{}, fmt.Errorf("parse: %w", err)
	}
	var o options
	c.bind(fs)
	o.bind(fs)

	if err := fs.Parse(args); err != nil {
		return config{}, options{}, fmt.Errorf("parse: %w", err)
	}

	if o.configPath != "" {
		set := make(map[string]string)
		fs.Visit(func(f *flag.Flag) {
			set[f.Name] = f.Value.String()
		})
		if err := c.load(o.configPath); err != nil {
			return config{}, options{}, fmt.Errorf("parse: %w", err)
		}
		for name, value := range set {
			if err := fs.Set(name, value); err != nil {
				return config{}, options{}, fmt.Errorf("parse: %w", err)
			}
		}
	}

	if o.playFrames <= 0 {
		return config{}, options{}, fmt.Errorf("parse: play frames must be "+
			"positive \n\thave(%v)", o.playFrames)
	}
	if err := c.resolve(); err != nil {
		return config{}, options{}, fmt.Errorf("parse: %w", err)
	}
	return c, o, nil
}
