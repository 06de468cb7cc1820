package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Layer is a single layer of a feed forward network
type Layer interface {
	fwd(x *G.Node) (*G.Node, error)

	// params returns the learnable nodes of the layer
	params() []*G.Node
}

// fcLayer implements a fully connected layer of a feed forward neural
// network
type fcLayer struct {
	weights *G.Node
	bias    *G.Node
	act     *Activation
}

// newFCLayer adds the parameters of a fully connected layer to g. The
// weights are named <name>/weights and the bias <name>/bias.
func newFCLayer(g *G.ExprGraph, name string, in, out int, init G.InitWFn,
	act *Activation) *fcLayer {
	weights := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(in, out),
		G.WithName(name+"/weights"),
		G.WithInit(init),
	)
	bias := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(1, out),
		G.WithName(name+"/bias"),
		G.WithInit(G.Zeroes()),
	)

	return &fcLayer{weights: weights, bias: bias, act: act}
}

// Fwd adds the forward pass of the fcLayer to the computational graph
func (f *fcLayer) fwd(x *G.Node) (*G.Node, error) {
	x, err := G.Mul(x, f.weights)
	if err != nil {
		return nil, fmt.Errorf("fwd: %v", err)
	}

	// Broadcast the bias weights to all samples along the batch
	// dimension
	x, err = G.BroadcastAdd(x, f.bias, nil, []byte{0})
	if err != nil {
		return nil, fmt.Errorf("fwd: %v", err)
	}

	if f.act == nil {
		return x, nil
	}
	return f.act.fwd(x)
}

func (f *fcLayer) params() []*G.Node {
	return []*G.Node{f.weights, f.bias}
}

// convLayer implements a 2D convolution over NCHW inputs with unit
// stride and no padding, followed by an activation
type convLayer struct {
	filter *G.Node
	kernel int
	act    *Activation
}

// newConvLayer adds the filter of a convolutional layer to g. The
// filter has shape (out, in, kernel, kernel) and is named <name>/filter.
func newConvLayer(g *G.ExprGraph, name string, in, out, kernel int,
	init G.InitWFn, act *Activation) *convLayer {
	filter := G.NewTensor(
		g,
		tensor.Float64,
		4,
		G.WithShape(out, in, kernel, kernel),
		G.WithName(name+"/filter"),
		G.WithInit(init),
	)

	return &convLayer{filter: filter, kernel: kernel, act: act}
}

func (c *convLayer) fwd(x *G.Node) (*G.Node, error) {
	x, err := G.Conv2d(
		x,
		c.filter,
		tensor.Shape{c.kernel, c.kernel},
		[]int{0, 0},
		[]int{1, 1},
		[]int{1, 1},
	)
	if err != nil {
		return nil, fmt.Errorf("fwd: %v", err)
	}

	if c.act == nil {
		return x, nil
	}
	return c.act.fwd(x)
}

func (c *convLayer) params() []*G.Node {
	return []*G.Node{c.filter}
}
