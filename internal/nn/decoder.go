package nn

import (
	"math/rand"

	"github.com/strand-ml/strand/internal/tensor"
)

// DecoderLayer is one block of the decoder: masked self-attention over the
// target, cross-attention over the encoder memory, and a position-wise
// feed-forward network, each in its own residual SublayerConnection.
type DecoderLayer[B tensor.Backend] struct {
	Size int

	SelfAttn    Attention[B]
	SrcAttn     *MultiHeadedAttention[B]
	FeedForward *PositionwiseFeedForward[B]
	Sublayers   [3]*SublayerConnection[B]
}

// NewDecoderLayer builds one decoder layer from the config. The Relative
// setting applies only to self-attention; cross-attention is always the
// standard variant.
func NewDecoderLayer[B tensor.Backend](c LayerConfig, rng *rand.Rand, backend B) *DecoderLayer[B] {
	return &DecoderLayer[B]{
		Size:        c.DModel,
		SelfAttn:    newSelfAttention(c, rng, backend),
		SrcAttn:     NewMultiHeadedAttention(c.Heads, c.DModel, c.Dropout, rng, backend),
		FeedForward: NewPositionwiseFeedForward(c.DModel, c.DFF, c.Dropout, rng, backend),
		Sublayers: [3]*SublayerConnection[B]{
			NewSublayerConnection(c.DModel, c.Dropout, rng, backend),
			NewSublayerConnection(c.DModel, c.Dropout, rng, backend),
			NewSublayerConnection(c.DModel, c.Dropout, rng, backend),
		},
	}
}

// Forward runs the three sublayers in order. x is the target stream
// (batch, seqT, Size), memory the encoder output (batch, seqS, Size).
// tgtMask masks the self-attention (typically causal), srcMask the
// cross-attention (typically source padding).
func (l *DecoderLayer[B]) Forward(x, memory, srcMask, tgtMask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x = l.Sublayers[0].Forward(x, func(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
		return l.SelfAttn.Forward(x, x, x, tgtMask)
	})
	x = l.Sublayers[1].Forward(x, func(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
		return l.SrcAttn.Forward(x, memory, memory, srcMask)
	})
	return l.Sublayers[2].Forward(x, l.FeedForward.Forward)
}

// SetTraining propagates the training flag to every dropout in the layer.
func (l *DecoderLayer[B]) SetTraining(training bool) {
	l.SelfAttn.SetTraining(training)
	l.SrcAttn.SetTraining(training)
	l.FeedForward.SetTraining(training)
	for _, s := range l.Sublayers {
		s.SetTraining(training)
	}
}

// Parameters returns all learnable parameters of the layer.
func (l *DecoderLayer[B]) Parameters() []*Parameter[B] {
	params := l.SelfAttn.Parameters()
	params = append(params, l.SrcAttn.Parameters()...)
	params = append(params, l.FeedForward.Parameters()...)
	for _, s := range l.Sublayers {
		params = append(params, s.Parameters()...)
	}
	return params
}

// Decoder is a stack of N identical-architecture decoder layers followed by
// a final layer normalization.
type Decoder[B tensor.Backend] struct {
	Layers []*DecoderLayer[B]
	Norm   *LayerNorm[B]
}

// NewDecoder builds an N-layer decoder with independently initialized
// layers.
func NewDecoder[B tensor.Backend](c LayerConfig, n int, rng *rand.Rand, backend B) *Decoder[B] {
	if n <= 0 {
		configErrorf("Decoder", "layer count must be positive, got %d", n)
	}
	layers := make([]*DecoderLayer[B], n)
	for i := range layers {
		layers[i] = NewDecoderLayer(c, rng, backend)
	}
	return &Decoder[B]{
		Layers: layers,
		Norm:   NewLayerNorm(c.DModel, backend),
	}
}

// Forward passes the target stream through every layer against the encoder
// memory and normalizes the result.
func (d *Decoder[B]) Forward(x, memory, srcMask, tgtMask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	for _, layer := range d.Layers {
		x = layer.Forward(x, memory, srcMask, tgtMask)
	}
	return d.Norm.Forward(x)
}

// SetTraining propagates the training flag to every layer.
func (d *Decoder[B]) SetTraining(training bool) {
	for _, layer := range d.Layers {
		layer.SetTraining(training)
	}
}

// Parameters returns the parameters of every layer plus the final norm.
func (d *Decoder[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, layer := range d.Layers {
		params = append(params, layer.Parameters()...)
	}
	return append(params, d.Norm.Parameters()...)
}
