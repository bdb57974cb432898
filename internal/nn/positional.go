package nn

import (
	"math"
	"math/rand"

	"github.com/strand-ml/strand/internal/tensor"
)

// PositionalEncoding adds deterministic sinusoidal position information to a
// sequence of embeddings and applies dropout to the sum. Even feature
// channels carry sines and odd channels cosines:
//
//	PE(pos, 2i)   = sin(pos / 10000^(2i/d_model))
//	PE(pos, 2i+1) = cos(pos / 10000^(2i/d_model))
//
// The encoding table is precomputed up to MaxLen at construction; it is a
// fixed buffer, not a parameter.
type PositionalEncoding[B tensor.Backend] struct {
	DModel int
	MaxLen int

	// Encoding has shape (1, MaxLen, DModel) for direct broadcast against a
	// batched input.
	Encoding *tensor.Tensor[float32, B]
	Dropout  *Dropout[B]
}

// NewPositionalEncoding precomputes the sinusoidal table for sequences up to
// maxLen positions.
func NewPositionalEncoding[B tensor.Backend](dModel, maxLen int, dropout float32, rng *rand.Rand, backend B) *PositionalEncoding[B] {
	if dModel <= 0 || maxLen <= 0 {
		configErrorf("PositionalEncoding", "dimensions must be positive, got d_model=%d max_len=%d", dModel, maxLen)
	}

	pe := tensor.Zeros[float32](tensor.Shape{1, maxLen, dModel}, backend)
	data := pe.Data()
	for pos := 0; pos < maxLen; pos++ {
		for i := 0; i < dModel; i += 2 {
			div := math.Exp(float64(i) * -math.Log(10000) / float64(dModel))
			angle := float64(pos) * div
			data[pos*dModel+i] = float32(math.Sin(angle))
			if i+1 < dModel {
				data[pos*dModel+i+1] = float32(math.Cos(angle))
			}
		}
	}

	return &PositionalEncoding[B]{
		DModel:   dModel,
		MaxLen:   maxLen,
		Encoding: pe,
		Dropout:  NewDropout(dropout, rng, backend),
	}
}

// Forward adds the first seq rows of the encoding table to the input, which
// must have shape (batch, seq, DModel) with seq <= MaxLen.
func (pe *PositionalEncoding[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 3 || shape[2] != pe.DModel {
		shapeErrorf("PositionalEncoding.Forward", "input shape %v incompatible with d_model=%d", shape, pe.DModel)
	}
	seq := shape[1]
	if seq > pe.MaxLen {
		shapeErrorf("PositionalEncoding.Forward", "sequence length %d exceeds max_len=%d", seq, pe.MaxLen)
	}

	// The table is row-major over positions, so the first seq rows form a
	// contiguous prefix.
	prefix := tensor.Zeros[float32](tensor.Shape{1, seq, pe.DModel}, pe.Encoding.Backend())
	copy(prefix.Data(), pe.Encoding.Data()[:seq*pe.DModel])

	return pe.Dropout.Forward(input.Add(prefix))
}

// SetTraining propagates the training flag to the inner dropout.
func (pe *PositionalEncoding[B]) SetTraining(training bool) {
	pe.Dropout.SetTraining(training)
}

// Parameters returns nil: the encoding is a fixed buffer.
func (pe *PositionalEncoding[B]) Parameters() []*Parameter[B] {
	return nil
}
