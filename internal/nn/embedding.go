package nn

import (
	"math"
	"math/rand"

	"github.com/strand-ml/strand/internal/tensor"
)

// Embedding maps token ids to learned dense vectors via a (VocabSize, Dim)
// lookup table.
type Embedding[B tensor.Backend] struct {
	VocabSize int
	Dim       int

	Weight *Parameter[B]
}

// NewEmbedding creates an embedding table initialized from N(0, 1).
func NewEmbedding[B tensor.Backend](vocabSize, dim int, rng *rand.Rand, backend B) *Embedding[B] {
	if vocabSize <= 0 || dim <= 0 {
		configErrorf("Embedding", "dimensions must be positive, got vocab=%d dim=%d", vocabSize, dim)
	}
	weight := normalInit(tensor.Shape{vocabSize, dim}, 1.0, rng, backend)
	return &Embedding[B]{
		VocabSize: vocabSize,
		Dim:       dim,
		Weight:    NewParameter("embedding.weight", weight),
	}
}

// Lookup gathers the embedding vectors for the given ids. The output shape
// is the index shape with Dim appended.
func (e *Embedding[B]) Lookup(indices *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	return tensor.Embedding(e.Weight.Data, indices)
}

// Parameters returns the lookup table.
func (e *Embedding[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{e.Weight}
}

// ScaledEmbedding is the Transformer input embedding: a lookup scaled by
// sqrt(Dim), which balances the embedding magnitude against the positional
// encoding added immediately after.
type ScaledEmbedding[B tensor.Backend] struct {
	*Embedding[B]
}

// NewScaledEmbedding creates a scaled input embedding.
func NewScaledEmbedding[B tensor.Backend](vocabSize, dim int, rng *rand.Rand, backend B) *ScaledEmbedding[B] {
	return &ScaledEmbedding[B]{Embedding: NewEmbedding(vocabSize, dim, rng, backend)}
}

// Lookup gathers embeddings and multiplies them by sqrt(Dim).
func (e *ScaledEmbedding[B]) Lookup(indices *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	return e.Embedding.Lookup(indices).MulScalar(float32(math.Sqrt(float64(e.Dim))))
}
