package nn

import (
	"math/rand"

	"github.com/strand-ml/strand/internal/tensor"
)

// Dropout zeroes each element of its input independently with probability P
// during training and scales the survivors by 1/(1-P) so that activation
// magnitudes match between training and inference. In inference mode it is
// the identity.
//
// The rng supplied at construction is the sole source of randomness; two
// Dropout modules built from identically seeded generators drop identical
// masks.
type Dropout[B tensor.Backend] struct {
	P        float32
	Training bool

	rng     *rand.Rand
	backend B
}

// NewDropout creates a dropout module in training mode. p must lie in [0, 1).
func NewDropout[B tensor.Backend](p float32, rng *rand.Rand, backend B) *Dropout[B] {
	if p < 0 || p >= 1 {
		configErrorf("Dropout", "probability must be in [0, 1), got %v", p)
	}
	return &Dropout[B]{P: p, Training: true, rng: rng, backend: backend}
}

// Forward applies dropout. With P == 0 or in inference mode the input is
// returned unchanged.
func (d *Dropout[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.Training || d.P == 0 {
		return input
	}

	out := input.Clone()
	data := out.Data()
	scale := 1 / (1 - d.P)
	for i := range data {
		if d.rng.Float32() < d.P {
			data[i] = 0
		} else {
			data[i] *= scale
		}
	}
	return out
}

// SetTraining switches between training and inference behavior.
func (d *Dropout[B]) SetTraining(training bool) {
	d.Training = training
}

// Parameters returns nil: dropout has no learnable state.
func (d *Dropout[B]) Parameters() []*Parameter[B] {
	return nil
}
