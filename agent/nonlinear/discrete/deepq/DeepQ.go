// Package deepq implements deep Q-learning with an online network, a
// periodically synced target network and experience replay
package deepq

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/gamerl/network"
	"github.com/samuelfneumann/gamerl/utils/floatutils"
)

// Batch is a batch of encoded transitions. States and NextStates are
// flattened network inputs holding len(Actions) samples each.
type Batch struct {
	States     []float64
	Actions    []int
	Rewards    []float64
	Dones      []bool
	NextStates []float64
}

// Len returns the number of transitions in the batch
func (b Batch) Len() int {
	return len(b.Actions)
}

// DeepQ implements the deep Q-learning algorithm with the MSE loss:
//
//	L = mean[(r + γ * max_a' Q_target(s', a') * (1 - done) - Q(s, a))²]
//
// The online network is trained on batches, the target network
// provides the bootstrapped update target and a batch-1 copy of the
// online network is used to select actions.
type DeepQ struct {
	// Network whose weights are adapted, built with the loss
	trainNet *network.Net
	solver   G.Solver

	// Network that provides the update target
	targetNet *network.Net

	// Single-sample copy of trainNet for acting, synced lazily
	behaviourNet   *network.Net
	behaviourStale bool

	tau           float64
	gamma         float64
	batchSize     int
	numActions    int
	gradientSteps int

	// Input nodes of the trainNet graph. For the update
	//
	// Q(s, a) <- Q(s, a) + α * (r + γ * max Q(s', a') - Q(s, a)) ∇Q(s, a)
	//
	// nextStateActionValues provides Q(s', a') for all a' in s' and is
	// computed by targetNet. The discounts already include (1 - done).
	nextStateActionValues *G.Node
	rewards               *G.Node
	discounts             *G.Node
	selectedActions       *G.Node

	cost    *G.Node
	costVal G.Value
}

// New creates and returns a new DeepQ learner
func New(c Config) (*DeepQ, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	batchSize := c.BatchSize
	numActions := c.Network.Outputs()

	trainNet, err := network.New(c.Network, batchSize, c.InitWFn)
	if err != nil {
		return nil, fmt.Errorf("new: could not create learning network: %w",
			err)
	}
	targetNet, err := trainNet.CloneWithBatch(batchSize)
	if err != nil {
		return nil, fmt.Errorf("new: could not create target network: %w",
			err)
	}
	behaviourNet, err := trainNet.CloneWithBatch(1)
	if err != nil {
		return nil, fmt.Errorf("new: could not create behaviour network: %w",
			err)
	}

	gTrain := trainNet.Graph()

	// Create nodes to compute the update target: r + γ * max[Q(s', a')]
	nextStateActionValues := G.NewMatrix(gTrain, tensor.Float64,
		G.WithShape(batchSize, numActions), G.WithName("targetActionVals"))
	rewards := G.NewVector(gTrain, tensor.Float64, G.WithShape(batchSize),
		G.WithName("reward"))
	discounts := G.NewVector(gTrain, tensor.Float64, G.WithShape(batchSize),
		G.WithName("discount"))

	updateTarget := G.Must(G.Max(nextStateActionValues, 1))
	updateTarget = G.Must(G.HadamardProd(updateTarget, discounts))
	updateTarget = G.Must(G.Add(updateTarget, rewards))

	// Action selected in the previous state, as one-hot rows. This is
	// needed to compute the loss using the correct action value since
	// the network outputs one value per action
	selectedActions := G.NewMatrix(
		gTrain,
		tensor.Float64,
		G.WithName("actionSelected"),
		G.WithShape(batchSize, numActions),
	)
	selectedActionsValue := G.Must(G.HadamardProd(trainNet.Prediction(),
		selectedActions))
	selectedActionsValue = G.Must(G.Sum(selectedActionsValue, 1))

	// Compute the Mean Squarred TD error
	losses := G.Must(G.Sub(updateTarget, selectedActionsValue))
	losses = G.Must(G.Square(losses))
	cost := G.Must(G.Mean(losses))

	if _, err := G.Grad(cost, trainNet.Learnables()...); err != nil {
		return nil, fmt.Errorf("new: could not compute gradient: %v", err)
	}

	d := &DeepQ{
		trainNet:              trainNet,
		solver:                c.Solver,
		targetNet:             targetNet,
		behaviourNet:          behaviourNet,
		tau:                   c.Tau,
		gamma:                 c.Gamma,
		batchSize:             batchSize,
		numActions:            numActions,
		nextStateActionValues: nextStateActionValues,
		rewards:               rewards,
		discounts:             discounts,
		selectedActions:       selectedActions,
		cost:                  cost,
	}
	G.Read(cost, &d.costVal)

	// Compile the trainNet graph into a VM
	trainNet.Compile(G.BindDualValues(trainNet.Learnables()...))

	return d, nil
}

// Learn performs a single gradient step on the batch and returns the
// loss before the step
func (d *DeepQ) Learn(b Batch) (float64, error) {
	if b.Len() != d.batchSize || len(b.Rewards) != d.batchSize ||
		len(b.Dones) != d.batchSize {
		return 0, fmt.Errorf("learn: invalid batch size \n\twant(%v) "+
			"\n\thave(%v)", d.batchSize, b.Len())
	}

	// Predict the action values in the next states
	nextValues, err := d.targetNet.Predict(b.NextStates)
	if err != nil {
		return 0, fmt.Errorf("learn: target network: %w", err)
	}

	oneHot := make([]float64, d.batchSize*d.numActions)
	discounts := make([]float64, d.batchSize)
	rewards := make([]float64, d.batchSize)
	for i, a := range b.Actions {
		if a < 0 || a >= d.numActions {
			return 0, fmt.Errorf("learn: illegal action %v at index %v", a, i)
		}
		oneHot[i*d.numActions+a] = 1
		if !b.Dones[i] {
			discounts[i] = d.gamma
		}
		rewards[i] = b.Rewards[i]
	}

	lets := []struct {
		node    *G.Node
		backing []float64
		shape   []int
	}{
		{d.nextStateActionValues, nextValues, []int{d.batchSize, d.numActions}},
		{d.selectedActions, oneHot, []int{d.batchSize, d.numActions}},
		{d.rewards, rewards, []int{d.batchSize}},
		{d.discounts, discounts, []int{d.batchSize}},
	}
	for _, l := range lets {
		t := tensor.New(tensor.WithShape(l.shape...),
			tensor.WithBacking(l.backing))
		if err := G.Let(l.node, t); err != nil {
			return 0, fmt.Errorf("learn: could not set %v: %v", l.node.Name(),
				err)
		}
	}

	if err := d.trainNet.SetInput(b.States); err != nil {
		return 0, fmt.Errorf("learn: %w", err)
	}

	// Run the learning step
	if err := d.trainNet.RunAll(); err != nil {
		return 0, fmt.Errorf("learn: %w", err)
	}
	defer d.trainNet.Reset()

	loss, err := network.Scalar(d.costVal)
	if err != nil {
		return 0, fmt.Errorf("learn: %w", err)
	}
	if err := d.solver.Step(d.trainNet.Model()); err != nil {
		return 0, fmt.Errorf("learn: could not step solver: %v", err)
	}

	d.gradientSteps++
	d.behaviourStale = true

	return loss, nil
}

// SyncTarget sets the target network's weights to the online network's
// weights, or a polyak average of the two if tau < 1
func (d *DeepQ) SyncTarget() error {
	if d.tau == 1.0 {
		return network.CopyWeights(d.targetNet, d.trainNet)
	}
	return network.Polyak(d.targetNet, d.trainNet, d.tau)
}

// ActionValues returns the online network's action values for a single
// encoded state
func (d *DeepQ) ActionValues(state []float64) ([]float64, error) {
	if d.behaviourStale {
		if err := network.CopyWeights(d.behaviourNet, d.trainNet); err != nil {
			return nil, fmt.Errorf("actionValues: %w", err)
		}
		d.behaviourStale = false
	}
	return d.behaviourNet.Predict(state)
}

// Greedy returns the action of maximum value in state, breaking ties
// towards the lowest index
func (d *DeepQ) Greedy(state []float64) (int, error) {
	values, err := d.ActionValues(state)
	if err != nil {
		return 0, fmt.Errorf("greedy: %w", err)
	}
	_, maxIndices := floatutils.MaxSlice(values)
	return maxIndices[0], nil
}

// TargetActionValues returns the target network's action values for a
// batch of encoded states
func (d *DeepQ) TargetActionValues(states []float64) ([]float64, error) {
	return d.targetNet.Predict(states)
}

// GradientSteps returns the number of gradient steps taken
func (d *DeepQ) GradientSteps() int {
	return d.gradientSteps
}

// Save writes the online network to dir
func (d *DeepQ) Save(dir string) error {
	return network.Save(d.trainNet, dir)
}

// Close releases the VMs of all networks
func (d *DeepQ) Close() error {
	var firstErr error
	for _, net := range []*network.Net{d.trainNet, d.targetNet,
		d.behaviourNet} {
		if err := net.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
