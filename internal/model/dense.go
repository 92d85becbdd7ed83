package model

import (
	"fmt"
	"math"
)

// DenseLayer is a fully connected layer. Weights are indexed [input][output].
type DenseLayer struct {
	Activation string      `json:"activation"`
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
}

func (l *DenseLayer) inputs() int {
	return len(l.Weights)
}

func (l *DenseLayer) outputs() int {
	return len(l.Bias)
}

// DenseNetwork is a trained feed-forward classifier.
type DenseNetwork struct {
	Layers []DenseLayer `json:"layers"`
}

func (n *DenseNetwork) validate() error {
	if len(n.Layers) == 0 {
		return fmt.Errorf("%w: network has no layers", ErrArtifactInvalid)
	}
	for i := range n.Layers {
		layer := &n.Layers[i]
		switch layer.Activation {
		case "relu", "sigmoid", "tanh", "softmax", "linear":
		default:
			return fmt.Errorf("%w: layer %d has unsupported activation %q", ErrArtifactInvalid, i, layer.Activation)
		}
		if layer.inputs() == 0 || layer.outputs() == 0 {
			return fmt.Errorf("%w: layer %d is empty", ErrArtifactInvalid, i)
		}
		for j, row := range layer.Weights {
			if len(row) != layer.outputs() {
				return fmt.Errorf("%w: layer %d weight row %d has %d outputs, bias has %d",
					ErrArtifactInvalid, i, j, len(row), layer.outputs())
			}
		}
		if i > 0 && layer.inputs() != n.Layers[i-1].outputs() {
			return fmt.Errorf("%w: layer %d expects %d inputs but layer %d emits %d",
				ErrArtifactInvalid, i, layer.inputs(), i-1, n.Layers[i-1].outputs())
		}
	}
	return nil
}

func (n *DenseNetwork) InputWidth() int {
	return n.Layers[0].inputs()
}

func (n *DenseNetwork) OutputWidth() int {
	return n.Layers[len(n.Layers)-1].outputs()
}

// Forward runs one row through every layer and returns the final
// activations.
func (n *DenseNetwork) Forward(x []float64) ([]float64, error) {
	if len(x) != n.InputWidth() {
		return nil, fmt.Errorf("%w: network expects %d inputs, got %d", ErrShapeMismatch, n.InputWidth(), len(x))
	}

	act := x
	for i := range n.Layers {
		layer := &n.Layers[i]
		z := make([]float64, layer.outputs())
		copy(z, layer.Bias)
		for in, row := range layer.Weights {
			xi := act[in]
			if xi == 0 {
				continue
			}
			for out, w := range row {
				z[out] += xi * w
			}
		}
		act = activate(layer.Activation, z)
	}

	for _, v := range act {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("network produced a non-finite output")
		}
	}
	return act, nil
}

func activate(kind string, z []float64) []float64 {
	switch kind {
	case "relu":
		for i, v := range z {
			if v < 0 {
				z[i] = 0
			}
		}
	case "sigmoid":
		for i, v := range z {
			z[i] = 1 / (1 + math.Exp(-v))
		}
	case "tanh":
		for i, v := range z {
			z[i] = math.Tanh(v)
		}
	case "softmax":
		max := z[0]
		for _, v := range z[1:] {
			if v > max {
				max = v
			}
		}
		sum := 0.0
		for i, v := range z {
			z[i] = math.Exp(v - max)
			sum += z[i]
		}
		for i := range z {
			z[i] /= sum
		}
	}
	return z
}

func argmax(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
