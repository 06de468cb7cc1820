package experiment

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/samuelfneumann/gamerl/agent"
	"github.com/samuelfneumann/gamerl/experiment/checkpointer"
	"github.com/samuelfneumann/gamerl/experiment/event"
	"github.com/samuelfneumann/gamerl/experiment/tracker"
)

// QAgent is an agent which can be trained by a DQN session
type QAgent interface {
	agent.Agent
	agent.Snapshotter

	// Epsilon returns the exploration probability of the last frame
	Epsilon() float64

	// MemoryCap returns the capacity of the replay memory
	MemoryCap() int
}

// DQNConfig configures a DQN session
type DQNConfig struct {
	// ReplayBufferSize is the number of frames played before training
	// starts
	ReplayBufferSize int `json:"replay_buffer_size"`

	MaxNumFrames              int     `json:"max_num_frames"`
	SyncEveryFrames           int     `json:"sync_every_frames"`
	CumulativeRewardThreshold float64 `json:"cumulative_reward_threshold"`

	// SavePath is the directory the online network is saved to whenever
	// the moving average of cumulative reward improves. Empty disables
	// saving.
	SavePath string `json:"save_path"`

	// LogDir is the directory an episode log is written to. Empty
	// disables logging.
	LogDir string `json:"log_dir"`

	// SnapshotEvery is the number of frames between FramePlayed events.
	// Zero disables them.
	SnapshotEvery int `json:"snapshot_every"`

	// Window is the number of episodes in the moving averages
	Window int `json:"window"`
}

// DefaultDQNConfig returns the default session configuration
func DefaultDQNConfig() DQNConfig {
	return DQNConfig{
		ReplayBufferSize:          1e4,
		MaxNumFrames:              1e6,
		SyncEveryFrames:           1e3,
		CumulativeRewardThreshold: 100,
		SavePath:                  "./models/dqn",
		Window:                    tracker.DefaultWindow,
	}
}

// Validate checks the configuration
func (c DQNConfig) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"replay buffer size", c.ReplayBufferSize},
		{"max number of frames", c.MaxNumFrames},
		{"sync every frames", c.SyncEveryFrames},
		{"window", c.Window},
	}
	for _, v := range positive {
		if v.value <= 0 {
			return fmt.Errorf("validate: %v must be positive \n\twant(>0) "+
				"\n\thave(%v)", v.name, v.value)
		}
	}
	if c.SnapshotEvery < 0 {
		return fmt.Errorf("validate: snapshot every cannot be negative "+
			"\n\thave(%v)", c.SnapshotEvery)
	}
	return nil
}

// DQN is a training session for a QAgent. The session warms up by
// filling the replay memory and then alternates one training step with
// one frame of play until the moving average of cumulative reward
// reaches the threshold or the frame budget is exhausted.
type DQN struct {
	session
	agent  QAgent
	config DQNConfig

	best      *checkpointer.Best
	rewardAvg *tracker.MovingAverage
	fruitsAvg *tracker.MovingAverage
	episodes  int
	bestAvg   float64
	lastAvg   float64
	lastLoss  float64

	// Frame and time at the end of the previous episode
	framePrev int
	timePrev  time.Time
}

// NewDQN returns a new DQN session
func NewDQN(a QAgent, c DQNConfig, opts ...Option) (*DQN, error) {
	if a == nil {
		return nil, fmt.Errorf("newDQN: agent cannot be nil")
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newDQN: %w", err)
	}
	if c.ReplayBufferSize > a.MemoryCap() {
		return nil, fmt.Errorf("newDQN: warmup frames exceed replay memory "+
			"capacity \n\twant(<=%v) \n\thave(%v)", a.MemoryCap(),
			c.ReplayBufferSize)
	}

	d := &DQN{
		session:   newSession(opts),
		agent:     a,
		config:    c,
		rewardAvg: tracker.NewMovingAverage(c.Window),
		fruitsAvg: tracker.NewMovingAverage(c.Window),
		bestAvg:   math.Inf(-1),
	}
	if c.SavePath != "" {
		d.best = checkpointer.NewBest(a, c.SavePath)
	}
	d.registerEpisodeLog(c.LogDir, "dqn.parquet")

	return d, nil
}

// Run runs the session until it terminates. If ctx is cancelled the
// session terminates at the next frame and returns the context's error.
func (d *DQN) Run(ctx context.Context) (Summary, error) {
	d.setPhase(event.Warmup, d.agent.FrameCount())
	for i := 0; i < d.config.ReplayBufferSize; i++ {
		if err := ctx.Err(); err != nil {
			return d.cancel(err)
		}
		if _, err := d.agent.PlayStep(); err != nil {
			return d.summary(""), fmt.Errorf("run: warmup: %w", err)
		}
	}

	d.setPhase(event.Training, d.agent.FrameCount())
	d.framePrev = d.agent.FrameCount()
	d.timePrev = time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return d.cancel(err)
		}

		reason, err := d.step()
		if err != nil {
			return d.summary(""), fmt.Errorf("run: %w", err)
		}
		if reason != "" {
			return d.terminate(d.summary(reason))
		}
	}
}

// step trains on a single replay batch and plays a single frame,
// returning a non-empty Reason when the session should terminate
func (d *DQN) step() (Reason, error) {
	loss, err := d.agent.TrainOnReplayBatch()
	if err != nil {
		return "", err
	}
	d.lastLoss = loss

	out, err := d.agent.PlayStep()
	if err != nil {
		return "", err
	}
	frame := d.agent.FrameCount()

	if d.config.SnapshotEvery > 0 && frame%d.config.SnapshotEvery == 0 {
		if err := d.publishSnapshot(frame); err != nil {
			return "", err
		}
	}

	if out.Done {
		if reason, err := d.endEpisode(out, frame); reason != "" ||
			err != nil {
			return reason, err
		}
	} else if frame >= d.config.MaxNumFrames {
		return MaxFrames, nil
	}

	if err := d.checkpoint(frame, frame, d.lastAvg); err != nil {
		return "", err
	}

	if frame%d.config.SyncEveryFrames == 0 {
		if err := d.agent.SyncTarget(); err != nil {
			return "", err
		}
		d.logger.Printf("Sync'ed weights from online network to target " +
			"network")
		d.publish(event.Event{Kind: event.TargetSynced, Frame: frame})
	}

	return "", nil
}

// endEpisode updates the moving averages and reports the episode. The
// online network is saved whenever the average reward improves.
func (d *DQN) endEpisode(out agent.Outcome, frame int) (Reason, error) {
	now := time.Now()
	fps := float64(frame-d.framePrev) / now.Sub(d.timePrev).Seconds()
	d.framePrev = frame
	d.timePrev = now
	d.episodes++

	d.rewardAvg.Append(out.CumulativeReward)
	d.fruitsAvg.Append(float64(out.FruitsEaten))
	avgReward := d.rewardAvg.Average()
	avgFruits := d.fruitsAvg.Average()
	d.lastAvg = avgReward

	d.logger.Printf("Frame #%v: cumulativeReward%v=%.1f; eaten%v=%.2f "+
		"(epsilon=%.3f) (%.1f frames/s)", frame, d.config.Window, avgReward,
		d.config.Window, avgFruits, d.agent.Epsilon(), fps)
	d.publish(event.Event{
		Kind:          event.EpisodeEnd,
		Frame:         frame,
		Episode:       d.episodes,
		Reward:        out.CumulativeReward,
		Fruits:        out.FruitsEaten,
		AverageReward: avgReward,
		AverageFruits: avgFruits,
		Epsilon:       d.agent.Epsilon(),
		FPS:           fps,
		Loss:          d.lastLoss,
	})

	improved := avgReward > d.bestAvg
	if improved {
		d.bestAvg = avgReward
	}

	if avgReward >= d.config.CumulativeRewardThreshold {
		return Threshold, nil
	}
	if frame >= d.config.MaxNumFrames {
		return MaxFrames, nil
	}

	if improved && d.best != nil {
		path, err := d.best.Checkpoint(frame, avgReward)
		if err != nil {
			return "", err
		}
		if path != "" {
			d.logger.Printf("Saved DQN to %v", path)
			d.publish(event.Event{Kind: event.Checkpointed, Frame: frame,
				Path: path, AverageReward: avgReward})
		}
	}
	return "", nil
}

func (d *DQN) publishSnapshot(frame int) error {
	snapshot, err := d.agent.Snapshot()
	if err != nil {
		return err
	}
	d.publish(event.Event{
		Kind:     event.FramePlayed,
		Frame:    frame,
		Episode:  d.episodes,
		Epsilon:  d.agent.Epsilon(),
		Snapshot: &snapshot,
	})
	return nil
}

func (d *DQN) cancel(err error) (Summary, error) {
	summary, saveErr := d.terminate(d.summary(Cancelled))
	if saveErr != nil {
		return summary, saveErr
	}
	return summary, err
}

func (d *DQN) summary(r Reason) Summary {
	best := d.bestAvg
	if d.episodes == 0 {
		best = 0
	}
	return Summary{
		Frames:       d.agent.FrameCount(),
		Episodes:     d.episodes,
		BestAverage:  best,
		FinalAverage: d.lastAvg,
		Reason:       r,
	}
}

// Phase returns the current phase of the session
func (d *DQN) Phase() event.Phase {
	return d.phase
}
