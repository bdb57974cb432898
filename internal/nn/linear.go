package nn

import (
	"math/rand"

	"github.com/strand-ml/strand/internal/tensor"
)

// Linear applies an affine transformation y = x W^T + b over the last
// dimension of its input. Inputs may carry any number of leading batch
// dimensions; only the trailing dimension must equal the configured input
// width.
//
// Example:
//
//	proj := nn.NewLinear(512, 64, rng, backend)
//	y := proj.Forward(x) // x: (batch, seq, 512) -> y: (batch, seq, 64)
type Linear[B tensor.Backend] struct {
	InFeatures  int
	OutFeatures int

	// Weight has shape (OutFeatures, InFeatures).
	Weight *Parameter[B]
	// Bias has shape (OutFeatures). Nil when the layer was built without one.
	Bias *Parameter[B]

	backend B
}

// NewLinear creates a linear layer with Xavier-uniform weights and zero bias.
// The rng drives weight initialization; passing equal seeds yields equal
// parameters.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[B] {
	if inFeatures <= 0 || outFeatures <= 0 {
		configErrorf("Linear", "features must be positive, got in=%d out=%d", inFeatures, outFeatures)
	}
	weight := xavierUniform(tensor.Shape{outFeatures, inFeatures}, inFeatures, outFeatures, rng, backend)
	bias := tensor.Zeros[float32](tensor.Shape{outFeatures}, backend)
	return &Linear[B]{
		InFeatures:  inFeatures,
		OutFeatures: outFeatures,
		Weight:      NewParameter("linear.weight", weight),
		Bias:        NewParameter("linear.bias", bias),
		backend:     backend,
	}
}

// Forward computes x W^T + b. The input must have at least one dimension and
// its last dimension must equal InFeatures.
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) < 1 || shape[len(shape)-1] != l.InFeatures {
		shapeErrorf("Linear.Forward", "input shape %v incompatible with in_features=%d", shape, l.InFeatures)
	}

	// Flatten leading dimensions so a single GEMM covers any batch rank.
	rows := shape.NumElements() / l.InFeatures
	x2d := input.Reshape(rows, l.InFeatures)

	out := x2d.MatMul(l.Weight.Data.T())
	if l.Bias != nil {
		out = out.Add(l.Bias.Data)
	}

	outShape := shape.Clone()
	outShape[len(outShape)-1] = l.OutFeatures
	return out.Reshape(outShape...)
}

// Parameters returns the layer's weight and, if present, bias.
func (l *Linear[B]) Parameters() []*Parameter[B] {
	params := []*Parameter[B]{l.Weight}
	if l.Bias != nil {
		params = append(params, l.Bias)
	}
	return params
}
