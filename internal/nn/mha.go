package nn

import (
	"math/rand"

	"github.com/strand-ml/strand/internal/tensor"
)

// MultiHeadedAttention projects queries, keys and values into Heads parallel
// subspaces of width DModel/Heads, attends in each subspace independently and
// concatenates the results through a final output projection.
//
// Example:
//
//	mha := nn.NewMultiHeadedAttention(8, 512, 0.1, rng, backend)
//	out := mha.Forward(x, x, x, nil) // self-attention, (batch, seq, 512)
type MultiHeadedAttention[B tensor.Backend] struct {
	Heads  int
	DModel int
	DK     int

	Query   *Linear[B]
	Key     *Linear[B]
	Value   *Linear[B]
	Output  *Linear[B]
	Dropout *Dropout[B]

	// cacheWeights controls whether Forward retains the attention matrix of
	// the most recent call. Off by default: the cached tensor is
	// (batch, heads, seq, seq) and holding it across calls is wasteful
	// unless someone is actually inspecting it. The cache is not safe under
	// concurrent Forward calls; use ForwardWithWeights from goroutines.
	cacheWeights bool
	lastWeights  *tensor.Tensor[float32, B]

	backend B
}

// NewMultiHeadedAttention creates a multi-head attention module. dModel must
// be divisible by heads; the per-head depth is dModel/heads.
func NewMultiHeadedAttention[B tensor.Backend](heads, dModel int, dropout float32, rng *rand.Rand, backend B) *MultiHeadedAttention[B] {
	if heads <= 0 {
		configErrorf("MultiHeadedAttention", "heads must be positive, got %d", heads)
	}
	if dModel%heads != 0 {
		configErrorf("MultiHeadedAttention", "d_model=%d not divisible by heads=%d", dModel, heads)
	}
	return &MultiHeadedAttention[B]{
		Heads:   heads,
		DModel:  dModel,
		DK:      dModel / heads,
		Query:   NewLinear(dModel, dModel, rng, backend),
		Key:     NewLinear(dModel, dModel, rng, backend),
		Value:   NewLinear(dModel, dModel, rng, backend),
		Output:  NewLinear(dModel, dModel, rng, backend),
		Dropout: NewDropout(dropout, rng, backend),
		backend: backend,
	}
}

// Forward attends query over key/value. All three inputs have shape
// (batch, seq, DModel); query may carry a different sequence length than
// key/value. mask, if non-nil, is shared across heads: a (batch, 1, seqK) or
// (1, seqQ, seqK) mask broadcasts against every head's score matrix.
func (mha *MultiHeadedAttention[B]) Forward(
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
) *tensor.Tensor[float32, B] {
	out, weights := mha.attend(query, key, value, mask)
	if mha.cacheWeights {
		mha.lastWeights = weights
	}
	return out
}

// ForwardWithWeights is Forward, additionally returning the
// (batch, heads, seqQ, seqK) attention weights regardless of the caching
// setting.
func (mha *MultiHeadedAttention[B]) ForwardWithWeights(
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	out, weights := mha.attend(query, key, value, mask)
	if mha.cacheWeights {
		mha.lastWeights = weights
	}
	return out, weights
}

func (mha *MultiHeadedAttention[B]) attend(
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	qShape := query.Shape()
	if len(qShape) != 3 || qShape[2] != mha.DModel {
		shapeErrorf("MultiHeadedAttention.Forward", "query shape %v incompatible with d_model=%d", qShape, mha.DModel)
	}
	batch := qShape[0]

	if mask != nil {
		// Same mask for every head: (batch, seqQ, seqK) -> (batch, 1, seqQ, seqK).
		mask = mask.Unsqueeze(1)
	}

	q := mha.splitHeads(mha.Query.Forward(query), batch)
	k := mha.splitHeads(mha.Key.Forward(key), batch)
	v := mha.splitHeads(mha.Value.Forward(value), batch)

	attended, weights := ScaledDotProductAttention(q, k, v, mask, mha.Dropout)

	return mha.Output.Forward(mha.mergeHeads(attended, batch)), weights
}

// splitHeads reshapes (batch, seq, DModel) to (batch, Heads, seq, DK).
func (mha *MultiHeadedAttention[B]) splitHeads(t *tensor.Tensor[float32, B], batch int) *tensor.Tensor[float32, B] {
	seq := t.Shape()[1]
	return t.Reshape(batch, seq, mha.Heads, mha.DK).Transpose(0, 2, 1, 3)
}

// mergeHeads reshapes (batch, Heads, seq, DK) back to (batch, seq, DModel).
func (mha *MultiHeadedAttention[B]) mergeHeads(t *tensor.Tensor[float32, B], batch int) *tensor.Tensor[float32, B] {
	seq := t.Shape()[2]
	return t.Transpose(0, 2, 1, 3).Reshape(batch, seq, mha.DModel)
}

// SetCacheWeights enables or disables retention of the most recent attention
// matrix. Disabling drops any cached tensor.
func (mha *MultiHeadedAttention[B]) SetCacheWeights(cache bool) {
	mha.cacheWeights = cache
	if !cache {
		mha.lastWeights = nil
	}
}

// LastWeights returns the attention weights of the most recent Forward call,
// or nil when caching is disabled or no call has happened yet.
func (mha *MultiHeadedAttention[B]) LastWeights() *tensor.Tensor[float32, B] {
	return mha.lastWeights
}

// SetTraining propagates the training flag to the inner dropout.
func (mha *MultiHeadedAttention[B]) SetTraining(training bool) {
	mha.Dropout.SetTraining(training)
}

// Parameters returns the parameters of the four projections.
func (mha *MultiHeadedAttention[B]) Parameters() []*Parameter[B] {
	return collectParams[B](mha.Query, mha.Key, mha.Value, mha.Output)
}
