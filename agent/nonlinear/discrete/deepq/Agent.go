package deepq

import (
	"fmt"

	"github.com/samuelfneumann/gamerl/agent"
	"github.com/samuelfneumann/gamerl/agent/nonlinear/discrete/policy"
	"github.com/samuelfneumann/gamerl/environment/snake"
	"github.com/samuelfneumann/gamerl/expreplay"
	ts "github.com/samuelfneumann/gamerl/timestep"
)

// Agent is a DQN agent playing Snake. It owns the game, the replay
// memory and the learner, and tracks the totals of the current episode.
type Agent struct {
	game    *snake.Game
	memory  *expreplay.ReplayMemory[ts.Transition[snake.State]]
	learner *DeepQ

	policy   *policy.EGreedy
	schedule policy.LinearDecay
	epsilon  float64

	batchSize int

	frameCount       int
	cumulativeReward float64
	fruitsEaten      int
}

// NewAgent creates a new DQN agent and starts its first episode
func NewAgent(c AgentConfig) (*Agent, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newAgent: %w", err)
	}

	game, err := snake.New(c.Game, c.Seed)
	if err != nil {
		return nil, fmt.Errorf("newAgent: %w", err)
	}
	memory, err := expreplay.New[ts.Transition[snake.State]](
		c.ReplayBufferSize, c.Seed+1)
	if err != nil {
		return nil, fmt.Errorf("newAgent: %w", err)
	}
	p, err := policy.NewEGreedy(snake.NumActions, c.Seed+2)
	if err != nil {
		return nil, fmt.Errorf("newAgent: %w", err)
	}
	learner, err := New(c.DQN)
	if err != nil {
		return nil, fmt.Errorf("newAgent: %w", err)
	}

	game.Reset()
	return &Agent{
		game:      game,
		memory:    memory,
		learner:   learner,
		policy:    p,
		schedule:  c.Epsilon,
		epsilon:   c.Epsilon.Epsilon(0),
		batchSize: c.DQN.BatchSize,
	}, nil
}

// PlayStep plays a single frame, storing the transition in the replay
// memory. When the episode ends the returned Outcome holds its totals
// and a new episode is started.
func (a *Agent) PlayStep() (agent.Outcome, error) {
	a.epsilon = a.schedule.Epsilon(a.frameCount)
	a.frameCount++

	state := a.game.State()
	action, err := a.policy.SelectAction(a.epsilon, a.ActionValues)
	if err != nil {
		return agent.Outcome{}, fmt.Errorf("playStep: %w", err)
	}

	step, eaten := a.game.Step(snake.Action(action))
	a.memory.Append(ts.Transition[snake.State]{
		State:     state,
		Action:    action,
		Reward:    step.Reward,
		Done:      step.Last(),
		NextState: step.Observation,
	})

	a.cumulativeReward += step.Reward
	if eaten {
		a.fruitsEaten++
	}

	outcome := agent.Outcome{
		Action:           action,
		Reward:           step.Reward,
		Done:             step.Last(),
		CumulativeReward: a.cumulativeReward,
		FruitsEaten:      a.fruitsEaten,
	}
	if outcome.Done {
		a.Reset()
	}
	return outcome, nil
}

// Reset starts a new episode, zeroing the episode totals. The frame
// count and replay memory are kept.
func (a *Agent) Reset() {
	a.game.Reset()
	a.cumulativeReward = 0
	a.fruitsEaten = 0
}

// TrainOnReplayBatch samples a batch from the replay memory and takes a
// single gradient step on it
func (a *Agent) TrainOnReplayBatch() (float64, error) {
	transitions, err := a.memory.Sample(a.batchSize)
	if err != nil {
		return 0, fmt.Errorf("trainOnReplayBatch: %w", err)
	}

	loss, err := a.learner.Learn(a.encode(transitions))
	if err != nil {
		return 0, fmt.Errorf("trainOnReplayBatch: %w", err)
	}
	return loss, nil
}

func (a *Agent) encode(transitions []ts.Transition[snake.State]) Batch {
	c := a.game.Config()
	n := len(transitions)

	states := make([]snake.State, n)
	nextStates := make([]snake.State, n)
	b := Batch{
		Actions: make([]int, n),
		Rewards: make([]float64, n),
		Dones:   make([]bool, n),
	}
	for i, t := range transitions {
		states[i] = t.State
		nextStates[i] = t.NextState
		b.Actions[i] = t.Action
		b.Rewards[i] = t.Reward
		b.Dones[i] = t.Done
	}
	b.States = snake.Encode(c.Height, c.Width, states...)
	b.NextStates = snake.Encode(c.Height, c.Width, nextStates...)

	return b
}

// SyncTarget syncs the target network with the online network
func (a *Agent) SyncTarget() error {
	return a.learner.SyncTarget()
}

// ActionValues returns the online network's action values in the
// current state
func (a *Agent) ActionValues() ([]float64, error) {
	c := a.game.Config()
	return a.learner.ActionValues(snake.Encode(c.Height, c.Width,
		a.game.State()))
}

// Snapshot returns the current game together with its action values
func (a *Agent) Snapshot() (agent.Snapshot, error) {
	scores, err := a.ActionValues()
	if err != nil {
		return agent.Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	return snapshot(a.game, scores), nil
}

func snapshot(g *snake.Game, scores []float64) agent.Snapshot {
	c := g.Config()
	state := g.State()
	return agent.Snapshot{
		Snake:   &state,
		Heading: g.Heading(),
		Height:  c.Height,
		Width:   c.Width,
		Scores:  scores,
	}
}

// Save writes the online network to dir
func (a *Agent) Save(dir string) error {
	return a.learner.Save(dir)
}

// FrameCount returns the number of frames played
func (a *Agent) FrameCount() int {
	return a.frameCount
}

// Epsilon returns the exploration probability used on the last frame
func (a *Agent) Epsilon() float64 {
	return a.epsilon
}

// MemoryLen returns the number of transitions stored
func (a *Agent) MemoryLen() int {
	return a.memory.Len()
}

// MemoryCap returns the capacity of the replay memory
func (a *Agent) MemoryCap() int {
	return a.memory.Cap()
}

// CumulativeReward returns the reward accumulated in the current episode
func (a *Agent) CumulativeReward() float64 {
	return a.cumulativeReward
}

// FruitsEaten returns the fruits eaten in the current episode
func (a *Agent) FruitsEaten() int {
	return a.fruitsEaten
}

// Game returns the game the agent plays
func (a *Agent) Game() *snake.Game {
	return a.game
}

// Close releases the agent's networks
func (a *Agent) Close() error {
	return a.learner.Close()
}
