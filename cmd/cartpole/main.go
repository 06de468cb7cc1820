// Command cartpole trains a policy network to balance a pole on a cart
// with REINFORCE, or tests a policy it trained before.
//
// If a policy is saved at -savePath, training continues from it;
// otherwise a new network with -hiddenLayerSizes is created. The policy
// is saved after every iteration. Use -remove to start over.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/samuelfneumann/gamerl/agent"
	"github.com/samuelfneumann/gamerl/agent/nonlinear/discrete/vanillapg"
	"github.com/samuelfneumann/gamerl/environment/classiccontrol/cartpole"
	"github.com/samuelfneumann/gamerl/experiment"
	"github.com/samuelfneumann/gamerl/experiment/event"
	"github.com/samuelfneumann/gamerl/render/observer"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	c, o, err := parse(fs, os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	defer stop()

	switch o.mode {
	case testMode:
		err = test(ctx, c, o)
	case removeMode:
		err = remove(c)
	default:
		err = train(ctx, c, o)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

func observers(c config, o options) observer.Config {
	return observer.Config{
		TUI:       o.tui,
		LiveAddr:  o.liveAddr,
		FramesDir: o.framesDir,
		Physics:   c.Physics,
	}
}

// newPolicy loads the policy saved at the save path, or creates a new
// one if none is saved
func newPolicy(c config, logger *log.Logger) (*vanillapg.Policy, error) {
	exists, err := vanillapg.Exists(c.Session.SavePath)
	if err != nil {
		return nil, err
	}
	if !exists {
		logger.Printf("Creating a new policy network with hidden layers %v",
			c.Policy.HiddenLayerSizes)
		return vanillapg.New(c.Policy)
	}

	p, err := vanillapg.Load(c.Session.SavePath, c.Policy)
	if err != nil {
		return nil, err
	}
	logger.Printf("Loaded policy network with hidden layers %v from %v",
		p.HiddenLayerSizes(), c.Session.SavePath)
	return p, nil
}

func newCartPole(c config) (*cartpole.CartPole, error) {
	return cartpole.New(c.Physics, cartpole.NewStarter(c.Policy.Seed+1))
}

// train trains the policy for the configured number of iterations
func train(ctx context.Context, c config, o options) error {
	logger := log.Default()
	if o.tui {
		logger = log.New(io.Discard, "", 0)
	}

	policy, err := newPolicy(c, logger)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	defer policy.Close()

	sim, err := newCartPole(c)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	obsConfig := observers(c, o)
	if o.progress {
		obsConfig.Progress = c.Session.Iterations
		obsConfig.Iterations = true
	}
	var bus *event.Bus
	if obsConfig.Enabled() {
		bus = event.NewBus(event.DefaultCapacity)
	}
	obs, ctx, err := observer.Start(ctx, bus, obsConfig)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	session, err := experiment.NewPolicyGradient(policy, sim, c.Session,
		experiment.WithBus(bus), experiment.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	summary, err := session.Run(ctx)
	bus.Close()
	obs.Wait()

	logger.Println(summary)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	return nil
}

// test plays a single game with the saved policy, sending every frame
// to the observers
func test(ctx context.Context, c config, o options) error {
	exists, err := vanillapg.Exists(c.Session.SavePath)
	if err != nil {
		return fmt.Errorf("test: %w", err)
	}
	if !exists {
		return fmt.Errorf("test: no policy saved at %v", c.Session.SavePath)
	}
	policy, err := vanillapg.Load(c.Session.SavePath, c.Policy)
	if err != nil {
		return fmt.Errorf("test: %w", err)
	}
	defer policy.Close()

	sim, err := newCartPole(c)
	if err != nil {
		return fmt.Errorf("test: %w", err)
	}

	obsConfig := observers(c, o)
	var bus *event.Bus
	if obsConfig.Enabled() {
		bus = event.NewBus(event.DefaultCapacity)
	}
	obs, ctx, err := observer.Start(ctx, bus, obsConfig)
	if err != nil {
		return fmt.Errorf("test: %w", err)
	}
	defer obs.Wait()
	defer bus.Close()

	steps, err := playGame(ctx, policy, sim, c.Session.MaxStepsPerGame, bus)
	if err != nil {
		return fmt.Errorf("test: %w", err)
	}
	log.Printf("Test complete after %v steps", steps)
	return nil
}

// playGame plays one game of at most maxSteps steps from a random
// state, publishing a snapshot of every frame to bus
func playGame(ctx context.Context, policy *vanillapg.Policy,
	sim *cartpole.CartPole, maxSteps int, bus *event.Bus) (int, error) {
	sim.SetRandomState()

	steps := 0
	for done := false; !done && steps < maxSteps; {
		if err := ctx.Err(); err != nil {
			bus.Publish(event.Event{Kind: event.Terminated, Frame: steps,
				Reason: string(experiment.Cancelled)})
			return steps, err
		}

		action, err := policy.Action(sim.State().RawVector().Data)
		if err != nil {
			return steps, err
		}
		done = sim.Update(float64(action))
		steps++

		state := sim.State().RawVector().Data
		snapshot := agent.Snapshot{CartPole: append([]float64(nil), state...)}
		bus.Publish(event.Event{
			Kind:     event.FramePlayed,
			Frame:    steps,
			Snapshot: &snapshot,
		})
	}

	bus.Publish(event.Event{Kind: event.GameEnd, Frame: steps, Game: 1,
		Steps: steps})
	bus.Publish(event.Event{Kind: event.Terminated, Frame: steps,
		Reason: string(experiment.Iterations)})
	return steps, nil
}

// remove deletes the saved policy
func remove(c config) error {
	if err := vanillapg.Remove(c.Session.SavePath); err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	log.Printf("Removed policy saved at %v", c.Session.SavePath)
	return nil
}
