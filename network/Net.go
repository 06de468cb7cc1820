// Package network implements neural networks as Gorgonia computational
// graphs. Every network is built from an Architecture descriptor and its
// learnable parameters are addressed by name, so weights can be copied
// between networks of the same architecture built for different batch
// sizes.
package network

import (
	"fmt"

	"github.com/samuelfneumann/gamerl/initwfn"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Net is a feed forward network on its own computational graph. A Net
// is not safe for concurrent use.
type Net struct {
	g      *G.ExprGraph
	arch   Architecture
	layers []Layer
	input  *G.Node
	batch  int

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value

	vm G.VM
}

// New creates a new Net with the given architecture whose input holds
// batch samples. Weights are initialized with init and biases with
// zeroes. If init is nil, all weights are zero.
func New(arch Architecture, batch int, init *initwfn.InitWFn) (*Net, error) {
	if arch == nil {
		return nil, fmt.Errorf("new: architecture cannot be nil")
	}
	if err := arch.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	if batch < 1 {
		return nil, fmt.Errorf("new: batch size must be positive "+
			"\n\twant(>0) \n\thave(%v)", batch)
	}

	initFn := G.Zeroes()
	if init != nil {
		initFn = init.InitWFn()
	}

	g := G.NewGraph()
	shape := arch.InputShape(batch)
	input := G.NewTensor(
		g,
		tensor.Float64,
		len(shape),
		G.WithShape(shape...),
		G.WithName("input"),
		G.WithInit(G.Zeroes()),
	)

	net := &Net{
		g:      g,
		arch:   arch,
		layers: arch.build(g, initFn),
		input:  input,
		batch:  batch,
	}

	if _, err := net.fwd(input); err != nil {
		return nil, fmt.Errorf("new: could not compute forward pass: %v", err)
	}

	return net, nil
}

// fwd performs the forward pass of the Net on the input node
func (n *Net) fwd(input *G.Node) (*G.Node, error) {
	pred := input
	var err error
	for i, l := range n.layers {
		if pred, err = l.fwd(pred); err != nil {
			msg := "fwd: could not compute forward pass of layer %v: %v"
			return nil, fmt.Errorf(msg, i, err)
		}
	}

	n.prediction = pred
	G.Read(n.prediction, &n.predVal)

	return pred, nil
}

// Graph returns the computational graph of the Net
func (n *Net) Graph() *G.ExprGraph {
	return n.g
}

// Architecture returns the descriptor the Net was built from
func (n *Net) Architecture() Architecture {
	return n.arch
}

// BatchSize returns the number of samples in one input
func (n *Net) BatchSize() int {
	return n.batch
}

// Input returns the input node of the Net
func (n *Net) Input() *G.Node {
	return n.input
}

// Prediction returns the node of the computational graph which stores
// the output of the Net, of shape (batch, outputs)
func (n *Net) Prediction() *G.Node {
	return n.prediction
}

// Output returns the value of the prediction after the last run
func (n *Net) Output() G.Value {
	return n.predVal
}

// SetInput sets the value of the input node before running the forward
// pass. The input is copied.
func (n *Net) SetInput(input []float64) error {
	shape := n.input.Shape()
	if len(input) != shape.TotalSize() {
		return fmt.Errorf("setInput: invalid number of inputs \n\twant(%v)"+
			"\n\thave(%v)", shape.TotalSize(), len(input))
	}

	backing := make([]float64, len(input))
	copy(backing, input)
	inputTensor := tensor.New(
		tensor.WithBacking(backing),
		tensor.WithShape(shape.Clone()...),
	)
	return G.Let(n.input, inputTensor)
}

// Learnables returns the learnable nodes of the Net in layer order
func (n *Net) Learnables() G.Nodes {
	// Lazy instantiation
	if n.learnables == nil {
		n.learnables = n.computeLearnables()
	}
	return n.learnables
}

// computeLearnables computes all the learnables for the network
func (n *Net) computeLearnables() G.Nodes {
	learnables := make([]*G.Node, 0, 2*len(n.layers))
	for _, l := range n.layers {
		learnables = append(learnables, l.params()...)
	}
	return G.Nodes(learnables)
}

// Model returns the learnables nodes with their gradients.
func (n *Net) Model() []G.ValueGrad {
	// Lazy instantiation
	if n.model == nil {
		model := make([]G.ValueGrad, 0, len(n.Learnables()))
		for _, node := range n.Learnables() {
			model = append(model, node)
		}
		n.model = model
	}
	return n.model
}

// Names returns the names of the learnables, in the same order as
// Learnables
func (n *Net) Names() []string {
	learnables := n.Learnables()
	names := make([]string, len(learnables))
	for i, node := range learnables {
		names[i] = node.Name()
	}
	return names
}

// param returns the learnable with the given name
func (n *Net) param(name string) (*G.Node, bool) {
	for _, node := range n.Learnables() {
		if node.Name() == name {
			return node, true
		}
	}
	return nil, false
}

// Values returns the current values of the learnables
func (n *Net) Values() []G.Value {
	learnables := n.Learnables()
	values := make([]G.Value, len(learnables))
	for i, node := range learnables {
		values[i] = node.Value()
	}
	return values
}

// Grads returns copies of the gradients of the learnables computed by
// the last run. The Net must have been compiled with its learnables
// bound to dual values and a gradient must exist on the graph.
func (n *Net) Grads() ([][]float64, error) {
	learnables := n.Learnables()
	grads := make([][]float64, len(learnables))
	for i, node := range learnables {
		grad, err := node.Grad()
		if err != nil {
			return nil, fmt.Errorf("grads: %v: %v", node.Name(), err)
		}
		data, err := floats(grad)
		if err != nil {
			return nil, fmt.Errorf("grads: %v: %w", node.Name(), err)
		}
		grads[i] = data
	}
	return grads, nil
}

// ZeroGrads sets the gradients of the learnables to zero. Gradients
// bound to dual values are summed over runs, so they must be cleared
// once read if they are not consumed by a Solver.
func (n *Net) ZeroGrads() error {
	for _, node := range n.Learnables() {
		grad, err := node.Grad()
		if err != nil {
			return fmt.Errorf("zeroGrads: %v: %v", node.Name(), err)
		}
		z, ok := grad.(interface{ Zero() })
		if !ok {
			return fmt.Errorf("zeroGrads: %v: unsupported gradient type %T",
				node.Name(), grad)
		}
		z.Zero()
	}
	return nil
}

// Compile creates the VM which runs the Net's graph. Any nodes which
// should be run with the Net, such as a loss and its gradient, must be
// added to the graph before calling Compile.
func (n *Net) Compile(opts ...G.VMOpt) {
	if n.vm != nil {
		n.vm.Close()
	}
	n.vm = G.NewTapeMachine(n.g, opts...)
}

// Run runs the compiled graph once on the current inputs and resets
// the VM
func (n *Net) Run() error {
	defer n.Reset()
	return n.RunAll()
}

// RunAll runs the compiled graph once on the current inputs without
// resetting the VM, so that gradients can be read or applied before
// calling Reset
func (n *Net) RunAll() error {
	if n.vm == nil {
		n.Compile()
	}
	if err := n.vm.RunAll(); err != nil {
		return fmt.Errorf("runAll: %v", err)
	}
	return nil
}

// Reset resets the VM after a call to RunAll
func (n *Net) Reset() {
	if n.vm != nil {
		n.vm.Reset()
	}
}

// Predict runs the forward pass on a flattened input batch and returns a
// fresh (batch × outputs) row-major slice of predictions
func (n *Net) Predict(input []float64) ([]float64, error) {
	if err := n.SetInput(input); err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if err := n.Run(); err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	out, err := floats(n.predVal)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	return out, nil
}

// floats returns a copy of the data of v
func floats(v G.Value) ([]float64, error) {
	if v == nil {
		return nil, fmt.Errorf("floats: nil value")
	}
	switch data := v.Data().(type) {
	case []float64:
		return append([]float64(nil), data...), nil
	case float64:
		return []float64{data}, nil
	default:
		return nil, fmt.Errorf("floats: unsupported value type %T", data)
	}
}

// Scalar returns the float64 held by a scalar Value
func Scalar(v G.Value) (float64, error) {
	data, err := floats(v)
	if err != nil {
		return 0, err
	}
	if len(data) != 1 {
		return 0, fmt.Errorf("scalar: value has %v elements", len(data))
	}
	return data[0], nil
}

// CloneWithBatch returns a new Net with the same architecture and
// weights whose input holds batch samples
func (n *Net) CloneWithBatch(batch int) (*Net, error) {
	clone, err := New(n.arch, batch, nil)
	if err != nil {
		return nil, fmt.Errorf("cloneWithBatch: %w", err)
	}
	if err := CopyWeights(clone, n); err != nil {
		return nil, fmt.Errorf("cloneWithBatch: %w", err)
	}
	return clone, nil
}

// Close releases the resources of the Net's VM
func (n *Net) Close() error {
	if n.vm == nil {
		return nil
	}
	err := n.vm.Close()
	n.vm = nil
	return err
}

func (n *Net) String() string {
	return fmt.Sprintf("Net | %v | Batch: %v | Params: %v", n.arch.Kind(),
		n.batch, n.Names())
}
