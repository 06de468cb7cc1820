// Command snakedqn trains a deep Q-network to play Snake, or plays Snake
// greedily with a network it trained before.
//
// Training saves the online network to -savePath whenever the moving
// average of cumulative reward improves, and stops once that average
// reaches -cumulativeRewardThreshold or after -maxNumFrames frames.
// Training can be followed with -tui, -live, -frames and -progress.
// With -play, the episodes played are logged to -logDir if it is set.
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
	"path/filepath"
	"syscall"
	"time"

	"github.com/samuelfneumann/gamerl/agent/nonlinear/discrete/deepq"
	"github.com/samuelfneumann/gamerl/experiment"
	"github.com/samuelfneumann/gamerl/experiment/checkpointer"
	"github.com/samuelfneumann/gamerl/experiment/event"
	"github.com/samuelfneumann/gamerl/experiment/tracker"
	"github.com/samuelfneumann/gamerl/render/observer"
)

// defaultSnapshotEvery is the number of frames between snapshots when
// an observer draws the board but no interval was configured
const defaultSnapshotEvery = 1

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	c, o, err := parse(fs, os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	defer stop()

	if o.play {
		err = play(ctx, c, o)
	} else {
		err = train(ctx, c, o)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

func observers(o options) observer.Config {
	return observer.Config{
		TUI:       o.tui,
		LiveAddr:  o.liveAddr,
		FramesDir: o.framesDir,
	}
}

// train trains a new agent
func train(ctx context.Context, c config, o options) error {
	a, err := deepq.NewAgent(c.Agent)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	defer a.Close()

	obsConfig := observers(o)
	if o.progress {
		obsConfig.Progress = c.Session.MaxNumFrames
	}
	if obsConfig.Snapshots() && c.Session.SnapshotEvery == 0 {
		c.Session.SnapshotEvery = defaultSnapshotEvery
	}

	var bus *event.Bus
	if obsConfig.Enabled() {
		bus = event.NewBus(event.DefaultCapacity)
	}
	obs, ctx, err := observer.Start(ctx, bus, obsConfig)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	logger := log.Default()
	if o.tui {
		logger = log.New(io.Discard, "", 0)
	}
	opts := []experiment.Option{
		experiment.WithBus(bus),
		experiment.WithLogger(logger),
	}
	if c.CheckpointEveryFrames > 0 {
		dir := filepath.Join(c.Session.SavePath, "checkpoints")
		cp, err := checkpointer.NewNStep(c.CheckpointEveryFrames, a,
			checkpointer.FilenameEnumerator(0, dir, "dqn"))
		if err != nil {
			return fmt.Errorf("train: %w", err)
		}
		opts = append(opts, experiment.WithCheckpointer(cp))
	}

	session, err := experiment.NewDQN(a, c.Session, opts...)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	summary, err := session.Run(ctx)
	bus.Close()
	obs.Wait()

	if !o.tui {
		logger.Println(summary)
	}
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	return nil
}

// play plays greedily with the network saved at the save path
func play(ctx context.Context, c config, o options) error {
	p, err := deepq.NewPlayer(c.Session.SavePath, c.Agent.Game, c.Agent.Seed)
	if err != nil {
		return fmt.Errorf("play: %w", err)
	}
	defer p.Close()

	obsConfig := observers(o)
	if o.progress {
		obsConfig.Progress = o.playFrames
	}
	if c.Session.LogDir != "" {
		// Each play session logs to its own file
		filename := checkpointer.FileTimer(c.Session.LogDir, "play")()
		obsConfig.Trackers = append(obsConfig.Trackers,
			tracker.NewEpisodeLog(filename+".parquet"))
	}
	var bus *event.Bus
	if obsConfig.Enabled() {
		bus = event.NewBus(event.DefaultCapacity)
	}
	obs, ctx, err := observer.Start(ctx, bus, obsConfig)
	if err != nil {
		return fmt.Errorf("play: %w", err)
	}
	defer obs.Wait()
	defer bus.Close()

	episodes := 0
	for frame := 1; frame <= o.playFrames; frame++ {
		out, err := p.PlayStep()
		if err != nil {
			return fmt.Errorf("play: %w", err)
		}

		snapshot, err := p.Snapshot()
		if err != nil {
			return fmt.Errorf("play: %w", err)
		}
		bus.Publish(event.Event{
			Kind:     event.FramePlayed,
			Frame:    frame,
			Episode:  episodes,
			Snapshot: &snapshot,
		})

		if out.Done {
			episodes++
			if !o.tui {
				log.Printf("Episode #%v: cumulativeReward=%.1f; eaten=%v",
					episodes, out.CumulativeReward, out.FruitsEaten)
			}
			bus.Publish(event.Event{
				Kind:    event.EpisodeEnd,
				Frame:   frame,
				Episode: episodes,
				Reward:  out.CumulativeReward,
				Fruits:  out.FruitsEaten,
			})
		}

		if o.playDelay > 0 {
			select {
			case <-ctx.Done():
				bus.Publish(event.Event{Kind: event.Terminated, Frame: frame,
					Reason: string(experiment.Cancelled)})
				return ctx.Err()
			case <-time.After(o.playDelay):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
	}

	bus.Publish(event.Event{Kind: event.Terminated, Frame: o.playFrames,
		Reason: string(experiment.MaxFrames)})
	return nil
}
