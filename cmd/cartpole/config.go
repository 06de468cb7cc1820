package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/samuelfneumann/gamerl/agent/nonlinear/discrete/vanillapg"
	"github.com/samuelfneumann/gamerl/environment/classiccontrol/cartpole"
	"github.com/samuelfneumann/gamerl/experiment"
	"github.com/samuelfneumann/gamerl/solver"
)

// config is the configuration of a training run. It can be read from
// a JSON file given with -config.
type config struct {
	Policy  vanillapg.Config    `json:"policy"`
	Session experiment.PGConfig `json:"session"`
	Physics cartpole.Physics    `json:"physics"`

	// Solver is the type of solver, built with default hyperparameters
	// and LearningRate as its step size
	Solver       solver.Type `json:"solver"`
	LearningRate float64     `json:"learning_rate"`
}

func defaultConfig() (config, error) {
	policy, err := vanillapg.DefaultConfig()
	if err != nil {
		return config{}, fmt.Errorf("defaultConfig: %w", err)
	}
	return config{
		Policy:       policy,
		Session:      experiment.DefaultPGConfig(),
		Physics:      cartpole.DefaultPhysics(),
		Solver:       solver.Adam,
		LearningRate: 0.05,
	}, nil
}

// sizes is a flag.Value holding a comma separated list of layer sizes
type sizes struct {
	values *[]int
}

func (s sizes) String() string {
	if s.values == nil {
		return ""
	}
	str := make([]string, len(*s.values))
	for i, v := range *s.values {
		str[i] = strconv.Itoa(v)
	}
	return strings.Join(str, ",")
}

func (s sizes) Set(value string) error {
	fields := strings.Split(value, ",")
	values := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || v <= 0 {
			return fmt.Errorf("invalid hidden layer sizes: %v", value)
		}
		values = append(values, v)
	}
	*s.values = values
	return nil
}

// bind registers a flag for each setting of c on fs
func (c *config) bind(fs *flag.FlagSet) {
	fs.Var(sizes{&c.Policy.HiddenLayerSizes}, "hiddenLayerSizes",
		"Sizes of the hidden layers of the policy network, e.g. 128,64")
	fs.Float64Var(&c.Policy.DiscountRate, "discountRate",
		c.Policy.DiscountRate, "Reward discount rate")
	fs.Uint64Var(&c.Policy.Seed, "seed", c.Policy.Seed,
		"Seed of the policy's action sampling and the starting states")
	fs.Float64Var(&c.LearningRate, "learningRate", c.LearningRate,
		"Learning rate of the solver")
	fs.StringVar((*string)(&c.Solver), "solver", string(c.Solver),
		"Type of solver: Adam, RMSProp or Vanilla")

	session := &c.Session
	fs.IntVar(&session.Iterations, "iterations", session.Iterations,
		"Number of training iterations")
	fs.IntVar(&session.GamesPerIteration, "gamesPerIteration",
		session.GamesPerIteration, "Number of games played per iteration")
	fs.IntVar(&session.MaxStepsPerGame, "maxStepsPerGame",
		session.MaxStepsPerGame, "Maximum number of steps in one game")
	fs.Float64Var(&session.MeanStepsThreshold, "meanStepsThreshold",
		session.MeanStepsThreshold, "Stop training once an iteration's "+
			"mean steps per game reaches this value; 0 disables it")
	fs.StringVar(&session.SavePath, "savePath", session.SavePath,
		"Directory the policy network is saved to after every iteration")
	fs.StringVar(&session.LogDir, "logDir", session.LogDir,
		"Directory a parquet log of all games is written to")
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

// resolve builds the solver and validates c
func (c *config) resolve() error {
	s, err := solver.NewDefault(c.Solver, c.LearningRate, 1)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	c.Policy.Solver = s

	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	if err := c.Physics.Validate(); err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	return nil
}

// mode selects what the command does
type mode int

const (
	trainMode mode = iota
	testMode
	removeMode
)

// options are the settings of a run which are not part of the training
// configuration
type options struct {
	configPath string
	mode       mode

	tui       bool
	liveAddr  string
	framesDir string
	progress  bool
}

func (o *options) bind(fs *flag.FlagSet) (test, remove *bool) {
	fs.StringVar(&o.configPath, "config", "",
		"JSON configuration file; explicitly set flags override its values")
	fs.BoolVar(&o.tui, "tui", false, "Follow training in a terminal interface")
	fs.StringVar(&o.liveAddr, "live", "",
		"Address to stream training events on over websockets, e.g. :8080")
	fs.StringVar(&o.framesDir, "frames", "",
		"Directory cart-pole frames are recorded to as PNG files")
	fs.BoolVar(&o.progress, "progress", false,
		"Print a progress bar of the training iterations")

	test = fs.Bool("test", false, "Play a single game with the policy saved "+
		"at -savePath instead of training")
	remove = fs.Bool("remove", false, "Delete the policy saved at -savePath")
	return test, remove
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
	test, remove := o.bind(fs)

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

	switch {
	case *test && *remove:
		return config{}, options{}, fmt.Errorf("parse: -test and -remove " +
			"cannot be used together")
	case *test:
		o.mode = testMode
	case *remove:
		o.mode = removeMode
	}

	if err := c.resolve(); err != nil {
		return config{}, options{}, fmt.Errorf("parse: %w", err)
	}
	return c, o, nil
}
