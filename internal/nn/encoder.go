package nn

import (
	"math/rand"

	"github.com/strand-ml/strand/internal/tensor"
)

// Attention is the interface shared by MultiHeadedAttention and
// RelativePositionAttention, letting layer stacks hold either variant.
type Attention[B tensor.Backend] interface {
	Forward(query, key, value, mask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
	Parameters() []*Parameter[B]
	SetTraining(training bool)
}

// LayerConfig describes one encoder or decoder layer. The same config builds
// every layer of a stack, but each layer gets independent parameters.
type LayerConfig struct {
	DModel  int
	Heads   int
	DFF     int
	Dropout float32

	// Relative selects relative-position self-attention with the given
	// clipping distance. Cross-attention in decoder layers always uses the
	// standard variant, since source and target lengths differ.
	Relative    bool
	MaxRelative int
}

// newSelfAttention builds the configured self-attention variant.
func newSelfAttention[B tensor.Backend](c LayerConfig, rng *rand.Rand, backend B) Attention[B] {
	if c.Relative {
		return NewRelativePositionAttention(c.Heads, c.DModel, c.MaxRelative, c.Dropout, rng, backend)
	}
	return NewMultiHeadedAttention(c.Heads, c.DModel, c.Dropout, rng, backend)
}

// EncoderLayer is one block of the encoder: self-attention and a
// position-wise feed-forward network, each wrapped in a residual
// SublayerConnection.
type EncoderLayer[B tensor.Backend] struct {
	Size int

	SelfAttn    Attention[B]
	FeedForward *PositionwiseFeedForward[B]
	Sublayers   [2]*SublayerConnection[B]
}

// NewEncoderLayer builds one encoder layer from the config.
func NewEncoderLayer[B tensor.Backend](c LayerConfig, rng *rand.Rand, backend B) *EncoderLayer[B] {
	return &EncoderLayer[B]{
		Size:        c.DModel,
		SelfAttn:    newSelfAttention(c, rng, backend),
		FeedForward: NewPositionwiseFeedForward(c.DModel, c.DFF, c.Dropout, rng, backend),
		Sublayers: [2]*SublayerConnection[B]{
			NewSublayerConnection(c.DModel, c.Dropout, rng, backend),
			NewSublayerConnection(c.DModel, c.Dropout, rng, backend),
		},
	}
}

// Forward runs self-attention then the feed-forward block, both on the
// residual stream. x has shape (batch, seq, Size); mask follows the
// multi-head attention convention.
func (l *EncoderLayer[B]) Forward(x, mask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x = l.Sublayers[0].Forward(x, func(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
		return l.SelfAttn.Forward(x, x, x, mask)
	})
	return l.Sublayers[1].Forward(x, l.FeedForward.Forward)
}

// SetTraining propagates the training flag to every dropout in the layer.
func (l *EncoderLayer[B]) SetTraining(training bool) {
	l.SelfAttn.SetTraining(training)
	l.FeedForward.SetTraining(training)
	for _, s := range l.Sublayers {
		s.SetTraining(training)
	}
}

// Parameters returns all learnable parameters of the layer.
func (l *EncoderLayer[B]) Parameters() []*Parameter[B] {
	params := l.SelfAttn.Parameters()
	params = append(params, l.FeedForward.Parameters()...)
	for _, s := range l.Sublayers {
		params = append(params, s.Parameters()...)
	}
	return params
}

// Encoder is a stack of N identical-architecture encoder layers followed by
// a final layer normalization.
type Encoder[B tensor.Backend] struct {
	Layers []*EncoderLayer[B]
	Norm   *LayerNorm[B]
}

// NewEncoder builds an N-layer encoder. Each layer is constructed
// independently from the same config, so layers share architecture but not
// parameters.
func NewEncoder[B tensor.Backend](c LayerConfig, n int, rng *rand.Rand, backend B) *Encoder[B] {
	if n <= 0 {
		configErrorf("Encoder", "layer count must be positive, got %d", n)
	}
	layers := make([]*EncoderLayer[B], n)
	for i := range layers {
		layers[i] = NewEncoderLayer(c, rng, backend)
	}
	return &Encoder[B]{
		Layers: layers,
		Norm:   NewLayerNorm(c.DModel, backend),
	}
}

// Forward passes x through every layer in order and normalizes the result.
// The output shape equals the input shape.
func (e *Encoder[B]) Forward(x, mask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	for _, layer := range e.Layers {
		x = layer.Forward(x, mask)
	}
	return e.Norm.Forward(x)
}

// SetTraining propagates the training flag to every layer.
func (e *Encoder[B]) SetTraining(training bool) {
	for _, layer := range e.Layers {
		layer.SetTraining(training)
	}
}

// Parameters returns the parameters of every layer plus the final norm.
func (e *Encoder[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, layer := range e.Layers {
		params = append(params, layer.Parameters()...)
	}
	return append(params, e.Norm.Parameters()...)
}
