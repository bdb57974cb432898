package nn

import (
	"math/rand"

	"github.com/strand-ml/strand/internal/tensor"
)

// SublayerConnection wraps a sublayer in pre-normalization, dropout and a
// residual connection:
//
//	y = x + dropout(sublayer(norm(x)))
//
// Normalization is applied before the sublayer rather than after, so the
// residual path carries the raw input. The wrapped sublayer must preserve the
// shape of its input; a mismatch panics with a ShapeError, since the residual
// addition would otherwise silently broadcast.
type SublayerConnection[B tensor.Backend] struct {
	Norm    *LayerNorm[B]
	Dropout *Dropout[B]
}

// NewSublayerConnection creates the residual wrapper for activations of the
// given feature width.
func NewSublayerConnection[B tensor.Backend](features int, dropout float32, rng *rand.Rand, backend B) *SublayerConnection[B] {
	return &SublayerConnection[B]{
		Norm:    NewLayerNorm(features, backend),
		Dropout: NewDropout(dropout, rng, backend),
	}
}

// Forward applies the wrapped sublayer to the normalized input and adds the
// result back onto the residual stream.
func (sc *SublayerConnection[B]) Forward(
	x *tensor.Tensor[float32, B],
	sublayer func(*tensor.Tensor[float32, B]) *tensor.Tensor[float32, B],
) *tensor.Tensor[float32, B] {
	out := sublayer(sc.Norm.Forward(x))
	requireSameShape("SublayerConnection.Forward", x.Shape(), out.Shape())
	return x.Add(sc.Dropout.Forward(out))
}

// SetTraining propagates the training flag to the inner dropout.
func (sc *SublayerConnection[B]) SetTraining(training bool) {
	sc.Dropout.SetTraining(training)
}

// Parameters returns the normalization parameters.
func (sc *SublayerConnection[B]) Parameters() []*Parameter[B] {
	return sc.Norm.Parameters()
}
