package deepq

import (
	"fmt"

	"github.com/samuelfneumann/gamerl/agent"
	"github.com/samuelfneumann/gamerl/agent/nonlinear/discrete/policy"
	"github.com/samuelfneumann/gamerl/environment/snake"
	"github.com/samuelfneumann/gamerl/network"
)

// Player plays Snake greedily with a saved online network. It does not
// learn.
type Player struct {
	net    *network.Net
	game   *snake.Game
	policy *policy.EGreedy

	frameCount       int
	cumulativeReward float64
	fruitsEaten      int
}

// NewPlayer loads the network saved in dir and starts a game with the
// given configuration. The network must have been trained on boards of
// the same size.
func NewPlayer(dir string, c snake.Config, seed uint64) (*Player, error) {
	net, err := network.Load(dir, 1)
	if err != nil {
		return nil, fmt.Errorf("newPlayer: %w", err)
	}

	arch, ok := net.Architecture().(network.ConvQNet)
	if !ok {
		return nil, fmt.Errorf("newPlayer: expected %v network but got %v",
			network.ConvQKind, net.Architecture().Kind())
	}
	if arch.Height != c.Height || arch.Width != c.Width {
		return nil, fmt.Errorf("newPlayer: network trained on %vx%v board "+
			"but game is %vx%v", arch.Height, arch.Width, c.Height, c.Width)
	}

	game, err := snake.New(c, seed)
	if err != nil {
		return nil, fmt.Errorf("newPlayer: %w", err)
	}
	p, err := policy.NewEGreedy(snake.NumActions, seed+1)
	if err != nil {
		return nil, fmt.Errorf("newPlayer: %w", err)
	}

	game.Reset()
	return &Player{net: net, game: game, policy: p}, nil
}

// PlayStep plays a single greedy frame
func (p *Player) PlayStep() (agent.Outcome, error) {
	values, err := p.ActionValues()
	if err != nil {
		return agent.Outcome{}, fmt.Errorf("playStep: %w", err)
	}
	action, err := p.policy.Greedy(values)
	if err != nil {
		return agent.Outcome{}, fmt.Errorf("playStep: %w", err)
	}
	p.frameCount++

	step, eaten := p.game.Step(snake.Action(action))
	p.cumulativeReward += step.Reward
	if eaten {
		p.fruitsEaten++
	}

	outcome := agent.Outcome{
		Action:           action,
		Reward:           step.Reward,
		Done:             step.Last(),
		CumulativeReward: p.cumulativeReward,
		FruitsEaten:      p.fruitsEaten,
	}
	if outcome.Done {
		p.game.Reset()
		p.cumulativeReward = 0
		p.fruitsEaten = 0
	}
	return outcome, nil
}

// ActionValues returns the network's action values in the current state
func (p *Player) ActionValues() ([]float64, error) {
	c := p.game.Config()
	return p.net.Predict(snake.Encode(c.Height, c.Width, p.game.State()))
}

// Snapshot returns the current game together with its action values
func (p *Player) Snapshot() (agent.Snapshot, error) {
	scores, err := p.ActionValues()
	if err != nil {
		return agent.Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	return snapshot(p.game, scores), nil
}

// FrameCount returns the number of frames played
func (p *Player) FrameCount() int {
	return p.frameCount
}

// Close releases the player's network
func (p *Player) Close() error {
	return p.net.Close()
}
