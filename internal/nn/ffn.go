package nn

import (
	"math/rand"

	"github.com/strand-ml/strand/internal/tensor"
)

// PositionwiseFeedForward applies the same two-layer network to every
// position independently:
//
//	FFN(x) = W2 . dropout(relu(W1 . x + b1)) + b2
//
// The hidden width DFF is conventionally larger than DModel (4x in the
// original Transformer).
type PositionwiseFeedForward[B tensor.Backend] struct {
	DModel int
	DFF    int

	W1      *Linear[B]
	W2      *Linear[B]
	Dropout *Dropout[B]
}

// NewPositionwiseFeedForward creates a feed-forward block expanding dModel to
// dFF and back.
func NewPositionwiseFeedForward[B tensor.Backend](dModel, dFF int, dropout float32, rng *rand.Rand, backend B) *PositionwiseFeedForward[B] {
	if dModel <= 0 || dFF <= 0 {
		configErrorf("PositionwiseFeedForward", "dimensions must be positive, got d_model=%d d_ff=%d", dModel, dFF)
	}
	return &PositionwiseFeedForward[B]{
		DModel:  dModel,
		DFF:     dFF,
		W1:      NewLinear(dModel, dFF, rng, backend),
		W2:      NewLinear(dFF, dModel, rng, backend),
		Dropout: NewDropout(dropout, rng, backend),
	}
}

// Forward applies the block position-wise. The output shape equals the input
// shape.
func (ff *PositionwiseFeedForward[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	hidden := ff.Dropout.Forward(ff.W1.Forward(input).ReLU())
	return ff.W2.Forward(hidden)
}

// SetTraining propagates the training flag to the inner dropout.
func (ff *PositionwiseFeedForward[B]) SetTraining(training bool) {
	ff.Dropout.SetTraining(training)
}

// Parameters returns the parameters of both projections.
func (ff *PositionwiseFeedForward[B]) Parameters() []*Parameter[B] {
	return collectParams[B](ff.W1, ff.W2)
}
