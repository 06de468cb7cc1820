package network

import (
	"encoding/json"
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Kind tags the concrete type of an Architecture
type Kind string

const (
	ConvQKind       Kind = "ConvQNet"
	DensePolicyKind Kind = "DensePolicy"
)

// Architecture describes the topology of a network. The set of
// architectures is closed: each concrete descriptor knows how to build
// its own layers.
type Architecture interface {
	Kind() Kind
	Validate() error

	// InputShape returns the shape of the input node for a given batch
	InputShape(batch int) tensor.Shape

	// Outputs returns the number of outputs per sample
	Outputs() int

	build(g *G.ExprGraph, init G.InitWFn) []Layer
}

// ConvQNet describes a convolutional action-value network over NCHW
// board encodings. Each entry of Filters adds a valid-padded,
// stride-1 convolution with a ReLU. The feature maps are then flattened
// and passed through ReLU dense layers of sizes Hidden and a final
// linear layer with one output per action.
type ConvQNet struct {
	Height     int   `json:"height"`
	Width      int   `json:"width"`
	Channels   int   `json:"channels"`
	Filters    []int `json:"filters"`
	KernelSize int   `json:"kernel_size"`
	Hidden     []int `json:"hidden"`
	Actions    int   `json:"actions"`
}

// NewConvQNet returns the default convolutional Q-network for boards
// of the given size
func NewConvQNet(height, width, channels, actions int) ConvQNet {
	return ConvQNet{
		Height:     height,
		Width:      width,
		Channels:   channels,
		Filters:    []int{32, 64, 64},
		KernelSize: 3,
		Hidden:     []int{100},
		Actions:    actions,
	}
}

// Kind implements the Architecture interface
func (c ConvQNet) Kind() Kind {
	return ConvQKind
}

// Validate checks that the feature maps stay non-empty through every
// convolution
func (c ConvQNet) Validate() error {
	if c.Height <= 0 || c.Width <= 0 || c.Channels <= 0 {
		return fmt.Errorf("validate: input shape must be positive "+
			"\n\thave(%v, %v, %v)", c.Channels, c.Height, c.Width)
	}
	if c.KernelSize <= 0 {
		return fmt.Errorf("validate: kernel size must be positive "+
			"\n\thave(%v)", c.KernelSize)
	}
	if c.Actions <= 0 {
		return fmt.Errorf("validate: actions must be positive \n\thave(%v)",
			c.Actions)
	}

	h, w := c.featureMap()
	if h <= 0 || w <= 0 {
		return fmt.Errorf("validate: board too small for %v convolutions "+
			"of kernel %v \n\twant(>= %v) \n\thave(%vx%v)", len(c.Filters),
			c.KernelSize, len(c.Filters)*(c.KernelSize-1)+1, c.Height,
			c.Width)
	}
	return validateSizes(append(append([]int{}, c.Filters...), c.Hidden...))
}

// InputShape implements the Architecture interface
func (c ConvQNet) InputShape(batch int) tensor.Shape {
	return tensor.Shape{batch, c.Channels, c.Height, c.Width}
}

// Outputs implements the Architecture interface
func (c ConvQNet) Outputs() int {
	return c.Actions
}

// featureMap returns the height and width of the last convolution's
// output
func (c ConvQNet) featureMap() (int, int) {
	shrink := len(c.Filters) * (c.KernelSize - 1)
	return c.Height - shrink, c.Width - shrink
}

func (c ConvQNet) build(g *G.ExprGraph, init G.InitWFn) []Layer {
	layers := make([]Layer, 0, len(c.Filters)+len(c.Hidden)+2)

	in := c.Channels
	for i, out := range c.Filters {
		name := fmt.Sprintf("conv%d", i)
		layers = append(layers, newConvLayer(g, name, in, out, c.KernelSize,
			init, ReLU()))
		in = out
	}

	h, w := c.featureMap()
	layers = append(layers, flatten{features: in * h * w})

	in = in * h * w
	for i, out := range c.Hidden {
		name := fmt.Sprintf("dense%d", i)
		layers = append(layers, newFCLayer(g, name, in, out, init, ReLU()))
		in = out
	}
	name := fmt.Sprintf("dense%d", len(c.Hidden))
	layers = append(layers, newFCLayer(g, name, in, c.Actions, init, nil))

	return layers
}

// DensePolicy describes a fully connected network over feature
// vectors. Hidden layers use Activation and the output layer is linear.
type DensePolicy struct {
	Features   int         `json:"features"`
	Hidden     []int       `json:"hidden"`
	Activation *Activation `json:"activation"`
	NumOutputs int         `json:"outputs"`
}

// NewDensePolicy returns a dense network with the given sizes
func NewDensePolicy(features int, hidden []int, act *Activation,
	outputs int) DensePolicy {
	return DensePolicy{
		Features:   features,
		Hidden:     append([]int(nil), hidden...),
		Activation: act,
		NumOutputs: outputs,
	}
}

// Kind implements the Architecture interface
func (d DensePolicy) Kind() Kind {
	return DensePolicyKind
}

// Validate checks that all layer sizes are positive
func (d DensePolicy) Validate() error {
	if d.Features <= 0 || d.NumOutputs <= 0 {
		return fmt.Errorf("validate: features and outputs must be "+
			"positive \n\thave(%v, %v)", d.Features, d.NumOutputs)
	}
	if len(d.Hidden) > 0 && d.Activation == nil {
		return fmt.Errorf("validate: hidden layers require an activation")
	}
	return validateSizes(d.Hidden)
}

// InputShape implements the Architecture interface
func (d DensePolicy) InputShape(batch int) tensor.Shape {
	return tensor.Shape{batch, d.Features}
}

// Outputs implements the Architecture interface
func (d DensePolicy) Outputs() int {
	return d.NumOutputs
}

func (d DensePolicy) build(g *G.ExprGraph, init G.InitWFn) []Layer {
	layers := make([]Layer, 0, len(d.Hidden)+1)

	in := d.Features
	for i, out := range d.Hidden {
		name := fmt.Sprintf("dense%d", i)
		layers = append(layers, newFCLayer(g, name, in, out, init,
			d.Activation))
		in = out
	}
	name := fmt.Sprintf("dense%d", len(d.Hidden))
	layers = append(layers, newFCLayer(g, name, in, d.NumOutputs, init, nil))

	return layers
}

// flatten reshapes a (batch, c, h, w) node to (batch, c*h*w)
type flatten struct {
	features int
}

func (f flatten) fwd(x *G.Node) (*G.Node, error) {
	return G.Reshape(x, tensor.Shape{x.Shape()[0], f.features})
}

func (f flatten) params() []*G.Node {
	return nil
}

func validateSizes(sizes []int) error {
	for i, size := range sizes {
		if size <= 0 {
			return fmt.Errorf("validate: layer %v must have a positive "+
				"size \n\thave(%v)", i, size)
		}
	}
	return nil
}

// topology is the persisted description of an Architecture
type topology struct {
	Kind         Kind            `json:"kind"`
	Architecture json.RawMessage `json:"architecture"`
	Weights      []manifestEntry `json:"weights"`
}

// decodeArchitecture returns the concrete Architecture of kind k
// described by data
func decodeArchitecture(k Kind, data []byte) (Architecture, error) {
	switch k {
	case ConvQKind:
		var c ConvQNet
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decodeArchitecture: %w", err)
		}
		return c, nil

	case DensePolicyKind:
		var d DensePolicy
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decodeArchitecture: %w", err)
		}
		return d, nil

	default:
		return nil, fmt.Errorf("decodeArchitecture: unknown kind %q", k)
	}
}
