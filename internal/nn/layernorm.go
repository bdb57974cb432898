package nn

import (
	"github.com/strand-ml/strand/internal/tensor"
)

// LayerNorm normalizes activations over the last dimension:
//
//	y = weight * (x - mean) / (std + eps) + bias
//
// where mean and std are computed per position across the feature dimension
// and std uses the unbiased (n-1) estimator. weight starts at ones and bias
// at zeros, so a freshly constructed LayerNorm is a pure standardization.
type LayerNorm[B tensor.Backend] struct {
	Features int
	Eps      float32

	Weight *Parameter[B]
	Bias   *Parameter[B]

	backend B
}

// NewLayerNorm creates a layer normalization module over the given feature
// width with eps = 1e-6.
func NewLayerNorm[B tensor.Backend](features int, backend B) *LayerNorm[B] {
	return NewLayerNormEps(features, 1e-6, backend)
}

// NewLayerNormEps creates a layer normalization module with an explicit eps.
func NewLayerNormEps[B tensor.Backend](features int, eps float32, backend B) *LayerNorm[B] {
	if features < 2 {
		configErrorf("LayerNorm", "features must be >= 2 for an unbiased std, got %d", features)
	}
	return &LayerNorm[B]{
		Features: features,
		Eps:      eps,
		Weight:   NewParameter("norm.weight", tensor.Ones[float32](tensor.Shape{features}, backend)),
		Bias:     NewParameter("norm.bias", tensor.Zeros[float32](tensor.Shape{features}, backend)),
		backend:  backend,
	}
}

// Forward normalizes the input over its last dimension, which must equal
// Features.
func (ln *LayerNorm[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if shape[len(shape)-1] != ln.Features {
		shapeErrorf("LayerNorm.Forward", "input shape %v incompatible with features=%d", shape, ln.Features)
	}

	last := len(shape) - 1
	mean := input.MeanDim(last, true)
	centered := input.Sub(mean)

	// Unbiased variance: sum of squared deviations over n-1.
	sq := centered.Mul(centered)
	variance := sq.SumDim(last, true).DivScalar(float32(ln.Features - 1))
	std := variance.Sqrt()

	normalized := centered.Div(std.AddScalar(ln.Eps))
	return normalized.Mul(ln.Weight.Data).Add(ln.Bias.Data)
}

// Parameters returns the scale and shift parameters.
func (ln *LayerNorm[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{ln.Weight, ln.Bias}
}
