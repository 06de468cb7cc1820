// Package vanillapg implements the REINFORCE policy gradient algorithm
// for environments with two discrete actions
package vanillapg

import (
	"context"
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"

	"github.com/samuelfneumann/gamerl/environment/classiccontrol/cartpole"
	"github.com/samuelfneumann/gamerl/network"
	"github.com/samuelfneumann/gamerl/solver"
	"github.com/samuelfneumann/gamerl/utils/floatutils"
)

// Simulator is a system with two actions which can be controlled by a
// Policy. Action 0 pushes left and action 1 pushes right.
type Simulator interface {
	SetRandomState()
	State() *mat.VecDense

	// Update applies an action and returns whether the game is over
	Update(action float64) bool
}

// Policy is a stochastic policy over two actions. The network outputs
// the logit z of action 0 so that π(0|s) = σ(z).
type Policy struct {
	net *network.Net

	// actor shares the weights of net but runs the forward pass only
	actor *network.Net

	// logit is the scalar z. Running the graph computes z and ∂z/∂w.
	logit    *G.Node
	logitVal G.Value

	solver       G.Solver
	discountRate float64
	rng          *rand.Rand

	onGameEnd func(game, steps int)
}

// New creates a new Policy with freshly initialized weights
func New(c Config) (*Policy, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	net, err := network.New(c.Architecture(), 1, c.InitWFn)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	return newPolicy(net, c)
}

// Load creates a Policy from a network saved in dir. Only the training
// settings of c are used; the topology is read from dir.
func Load(dir string, c Config) (*Policy, error) {
	if err := c.validateTraining(); err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	net, err := network.Load(dir, 1)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	if _, ok := net.Architecture().(network.DensePolicy); !ok {
		return nil, fmt.Errorf("load: expected %v network but got %v",
			network.DensePolicyKind, net.Architecture().Kind())
	}
	if net.Architecture().Outputs() != 1 {
		return nil, fmt.Errorf("load: policy network must have one output "+
			"\n\thave(%v)", net.Architecture().Outputs())
	}
	return newPolicy(net, c)
}

func newPolicy(net *network.Net, c Config) (*Policy, error) {
	// With a batch of one and one output, the mean is the single logit
	logit := G.Must(G.Mean(net.Prediction()))
	if _, err := G.Grad(logit, net.Learnables()...); err != nil {
		return nil, fmt.Errorf("newPolicy: could not compute gradient: %v",
			err)
	}

	actor, err := net.CloneWithBatch(1)
	if err != nil {
		return nil, fmt.Errorf("newPolicy: %w", err)
	}

	p := &Policy{
		net:          net,
		actor:        actor,
		logit:        logit,
		solver:       c.Solver,
		discountRate: c.DiscountRate,
		rng:          rand.New(rand.NewSource(c.Seed)),
	}
	G.Read(logit, &p.logitVal)
	net.Compile(G.BindDualValues(net.Learnables()...))

	return p, nil
}

// OnGameEnd registers a function called after each game played by Train
// with the index of the game and the number of steps it lasted
func (p *Policy) OnGameEnd(f func(game, steps int)) {
	p.onGameEnd = f
}

// forward runs the network on state, returning the logit. The VM is
// left un-reset so gradients can be read.
func (p *Policy) forward(state []float64) (float64, error) {
	if err := p.net.SetInput(state); err != nil {
		return 0, err
	}
	if err := p.net.RunAll(); err != nil {
		return 0, err
	}
	return network.Scalar(p.logitVal)
}

// sample draws an action given the logit of action 0
func (p *Policy) sample(z float64) int {
	if p.rng.Float64() < floatutils.Sigmoid(z) {
		return 0
	}
	return 1
}

// Step samples an action in state and returns it together with the
// gradient of the sigmoid cross-entropy between the logit and the label
// 1 - action. This gradient is (σ(z) - label) ∂z/∂w.
func (p *Policy) Step(state []float64) (int, Gradients, error) {
	z, err := p.forward(state)
	if err != nil {
		return 0, nil, fmt.Errorf("step: %w", err)
	}
	defer p.net.Reset()

	action := p.sample(z)
	label := float64(1 - action)
	scale := floatutils.Sigmoid(z) - label

	raw, err := p.net.Grads()
	if err != nil {
		return 0, nil, fmt.Errorf("step: %w", err)
	}
	if err := p.net.ZeroGrads(); err != nil {
		return 0, nil, fmt.Errorf("step: %w", err)
	}
	grads := make(Gradients, len(raw))
	for i, name := range p.net.Names() {
		for j := range raw[i] {
			raw[i][j] *= scale
		}
		grads[name] = raw[i]
	}

	return action, grads, nil
}

// predict returns the logit of action 0 in state without computing
// gradients
func (p *Policy) predict(state []float64) (float64, error) {
	out, err := p.actor.Predict(state)
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// Action samples an action in state without computing gradients
func (p *Policy) Action(state []float64) (int, error) {
	z, err := p.predict(state)
	if err != nil {
		return 0, fmt.Errorf("action: %w", err)
	}
	return p.sample(z), nil
}

// LeftProbability returns π(0|state)
func (p *Policy) LeftProbability(state []float64) (float64, error) {
	z, err := p.predict(state)
	if err != nil {
		return 0, fmt.Errorf("leftProbability: %w", err)
	}
	return floatutils.Sigmoid(z), nil
}

// Train plays numGames games of at most maxStepsPerGame steps each and
// then takes a single gradient step. Every step which does not end the
// game is rewarded 1 and the step which ends it is rewarded 0. Train
// returns the number of steps in each game. If ctx is cancelled between
// games no update is made and the context's error is returned.
func (p *Policy) Train(ctx context.Context, sim Simulator, numGames,
	maxStepsPerGame int) ([]int, error) {
	if numGames < 1 || maxStepsPerGame < 1 {
		return nil, fmt.Errorf("train: number of games and steps must be "+
			"positive \n\thave(%v, %v)", numGames, maxStepsPerGame)
	}

	task := cartpole.NewBalance(maxStepsPerGame)
	allGradients := make([][]Gradients, 0, numGames)
	allRewards := make([][]float64, 0, numGames)
	gameSteps := make([]int, 0, numGames)

	for i := 0; i < numGames; i++ {
		if err := ctx.Err(); err != nil {
			return gameSteps, err
		}

		sim.SetRandomState()
		gameRewards := make([]float64, 0, maxStepsPerGame)
		gameGradients := make([]Gradients, 0, maxStepsPerGame)

		for steps := 0; !task.Truncated(steps); steps++ {
			state := sim.State().RawVector().Data
			action, grads, err := p.Step(state)
			if err != nil {
				return gameSteps, fmt.Errorf("train: %w", err)
			}
			gameGradients = append(gameGradients, grads)

			done := sim.Update(float64(action))
			gameRewards = append(gameRewards, task.Reward(done))
			if done {
				break
			}
		}

		gameSteps = append(gameSteps, len(gameRewards))
		allGradients = append(allGradients, gameGradients)
		allRewards = append(allRewards, gameRewards)

		if p.onGameEnd != nil {
			p.onGameEnd(i+1, len(gameRewards))
		}
	}

	normalized := DiscountAndNormalizeRewards(allRewards, p.discountRate)
	avg, err := ScaleAndAverageGradients(allGradients, normalized)
	if err != nil {
		return gameSteps, fmt.Errorf("train: %w", err)
	}
	if err := p.apply(avg); err != nil {
		return gameSteps, fmt.Errorf("train: %w", err)
	}

	return gameSteps, nil
}

// apply takes a solver step along grads
func (p *Policy) apply(grads Gradients) error {
	names := p.net.Names()
	ordered := make([][]float64, len(names))
	for i, name := range names {
		g, ok := grads[name]
		if !ok {
			return fmt.Errorf("apply: missing gradient for %v", name)
		}
		ordered[i] = g
	}
	if err := solver.Apply(p.solver, p.net.Values(), ordered); err != nil {
		return err
	}
	return network.CopyWeights(p.actor, p.net)
}

// HiddenLayerSizes returns the sizes of the hidden layers
func (p *Policy) HiddenLayerSizes() []int {
	arch := p.net.Architecture().(network.DensePolicy)
	return append([]int(nil), arch.Hidden...)
}

// Save writes the policy network to dir
func (p *Policy) Save(dir string) error {
	return network.Save(p.net, dir)
}

// Close releases the policy network
func (p *Policy) Close() error {
	if err := p.actor.Close(); err != nil {
		p.net.Close()
		return err
	}
	return p.net.Close()
}

// Exists returns whether a policy is saved in dir
func Exists(dir string) (bool, error) {
	return network.Exists(dir)
}

// Remove deletes the policy saved in dir
func Remove(dir string) error {
	return network.Remove(dir)
}
