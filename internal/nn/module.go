// Package nn provides the building blocks of the Transformer encoder-decoder:
// scaled dot-product and multi-head attention (with an optional
// relative-position variant), position-wise feed-forward networks, layer
// normalization, residual sublayer wiring, sinusoidal positional encoding,
// and the encoder/decoder layer stacks that tie them together.
//
// All modules are generic over the backend executing their tensor math.
// Forward passes never mutate their inputs; every intermediate is a fresh
// tensor produced by the backend.
package nn

import (
	"github.com/strand-ml/strand/internal/tensor"
)

// Module is a unary network component: something that maps one activation
// tensor to another of a possibly different shape. Attention modules take
// several inputs and therefore do not implement Module directly, but their
// single-input projections and feed-forward blocks do.
type Module[B tensor.Backend] interface {
	// Forward computes the module's output for the given input.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns the module's learnable parameters.
	Parameters() []*Parameter[B]
}

// Trainable is implemented by modules whose forward pass differs between
// training and inference, such as Dropout.
type Trainable interface {
	// SetTraining switches the module between training and inference mode.
	SetTraining(training bool)
}

// collectParams concatenates the parameter slices of the given modules.
func collectParams[B tensor.Backend](mods ...interface {
	Parameters() []*Parameter[B]
}) []*Parameter[B] {
	var params []*Parameter[B]
	for _, m := range mods {
		params = append(params, m.Parameters()...)
	}
	return params
}
