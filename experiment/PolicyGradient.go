package experiment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/samuelfneumann/gamerl/agent/nonlinear/discrete/vanillapg"
	"github.com/samuelfneumann/gamerl/experiment/event"
)

// PGTrainer is a policy which is trained by playing batches of games
type PGTrainer interface {
	Train(ctx context.Context, sim vanillapg.Simulator, numGames,
		maxStepsPerGame int) ([]int, error)
	OnGameEnd(f func(game, steps int))
	Save(dir string) error
}

// PGConfig configures a policy gradient session
type PGConfig struct {
	Iterations        int `json:"iterations"`
	GamesPerIteration int `json:"games_per_iteration"`
	MaxStepsPerGame   int `json:"max_steps_per_game"`

	// MeanStepsThreshold stops training once an iteration's mean steps
	// per game reaches it. Zero disables the threshold.
	MeanStepsThreshold float64 `json:"mean_steps_threshold"`

	// SavePath is the directory the policy is saved to after every
	// iteration. Empty disables saving.
	SavePath string `json:"save_path"`
	LogDir   string `json:"log_dir"`
}

// DefaultPGConfig returns the default session configuration
func DefaultPGConfig() PGConfig {
	return PGConfig{
		Iterations:        20,
		GamesPerIteration: 20,
		MaxStepsPerGame:   500,
		SavePath:          "./models/cartpole",
	}
}

// Validate checks the configuration
func (c PGConfig) Validate() error {
	if c.Iterations <= 0 {
		return fmt.Errorf("validate: iterations must be positive "+
			"\n\twant(>0) \n\thave(%v)", c.Iterations)
	}
	if c.GamesPerIteration <= 0 {
		return fmt.Errorf("validate: games per iteration must be positive "+
			"\n\twant(>0) \n\thave(%v)", c.GamesPerIteration)
	}
	if c.MaxStepsPerGame <= 1 {
		return fmt.Errorf("validate: max steps per game must be greater "+
			"than 1 \n\twant(>1) \n\thave(%v)", c.MaxStepsPerGame)
	}
	if c.MeanStepsThreshold < 0 {
		return fmt.Errorf("validate: mean steps threshold cannot be "+
			"negative \n\thave(%v)", c.MeanStepsThreshold)
	}
	return nil
}

// PolicyGradient is a training session for a PGTrainer. Each iteration
// plays a batch of games and takes a single gradient step.
type PolicyGradient struct {
	session
	trainer PGTrainer
	sim     vanillapg.Simulator
	config  PGConfig

	iterations int
	frames     int
	bestMean   float64
	lastMean   float64
}

// NewPolicyGradient returns a new policy gradient session which trains
// trainer on sim
func NewPolicyGradient(trainer PGTrainer, sim vanillapg.Simulator,
	c PGConfig, opts ...Option) (*PolicyGradient, error) {
	if trainer == nil || sim == nil {
		return nil, fmt.Errorf("newPolicyGradient: trainer and simulator " +
			"cannot be nil")
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newPolicyGradient: %w", err)
	}

	p := &PolicyGradient{
		session:  newSession(opts),
		trainer:  trainer,
		sim:      sim,
		config:   c,
		bestMean: math.Inf(-1),
	}
	p.registerEpisodeLog(c.LogDir, "cartpole.parquet")

	return p, nil
}

// Run runs all iterations. If ctx is cancelled the current iteration is
// abandoned without an update and the context's error is returned.
func (p *PolicyGradient) Run(ctx context.Context) (Summary, error) {
	p.setPhase(event.Training, 0)

	for p.iterations < p.config.Iterations {
		if err := ctx.Err(); err != nil {
			return p.cancel(err)
		}

		iteration := p.iterations + 1
		p.trainer.OnGameEnd(func(game, steps int) {
			p.publish(event.Event{
				Kind:      event.GameEnd,
				Frame:     p.frames,
				Iteration: iteration,
				Game:      game,
				Steps:     steps,
			})
		})

		start := time.Now()
		gameSteps, err := p.trainer.Train(ctx, p.sim,
			p.config.GamesPerIteration, p.config.MaxStepsPerGame)
		if errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) {
			return p.cancel(err)
		} else if err != nil {
			return p.summary(""), fmt.Errorf("run: iteration %v: %w",
				iteration, err)
		}
		p.iterations = iteration

		steps := make([]float64, len(gameSteps))
		for i, s := range gameSteps {
			steps[i] = float64(s)
		}
		total := floats.Sum(steps)
		mean := total / float64(len(steps))
		stepsPerSecond := total / time.Since(start).Seconds()

		p.frames += int(total)
		p.lastMean = mean
		p.bestMean = math.Max(p.bestMean, mean)

		p.logger.Printf("Iteration %v/%v: mean steps=%.1f (%.1f steps/s)",
			iteration, p.config.Iterations, mean, stepsPerSecond)
		p.publish(event.Event{
			Kind:         event.IterationEnd,
			Frame:        p.frames,
			Iteration:    iteration,
			Steps:        int(total),
			AverageSteps: mean,
			FPS:          stepsPerSecond,
		})

		if p.config.SavePath != "" {
			if err := p.trainer.Save(p.config.SavePath); err != nil {
				return p.summary(""), fmt.Errorf("run: %w", err)
			}
			p.logger.Printf("Saved policy to %v", p.config.SavePath)
			p.publish(event.Event{Kind: event.Checkpointed, Frame: p.frames,
				Iteration: iteration, Path: p.config.SavePath})
		}
		if err := p.checkpoint(iteration, p.frames, mean); err != nil {
			return p.summary(""), fmt.Errorf("run: %w", err)
		}

		if p.config.MeanStepsThreshold > 0 &&
			mean >= p.config.MeanStepsThreshold {
			return p.terminate(p.summary(Threshold))
		}
	}

	return p.terminate(p.summary(Iterations))
}

func (p *PolicyGradient) cancel(err error) (Summary, error) {
	summary, saveErr := p.terminate(p.summary(Cancelled))
	if saveErr != nil {
		return summary, saveErr
	}
	return summary, err
}

func (p *PolicyGradient) summary(r Reason) Summary {
	best := p.bestMean
	if p.iterations == 0 {
		best = 0
	}
	return Summary{
		Frames:       p.frames,
		Episodes:     p.iterations * p.config.GamesPerIteration,
		Iterations:   p.iterations,
		BestAverage:  best,
		FinalAverage: p.lastMean,
		Reason:       r,
	}
}
