package nn

import (
	"math"
	"math/rand"
	"sync"

	"github.com/strand-ml/strand/internal/tensor"
)

// RelativePositionAttention is multi-head attention with learned
// relative-position representations. On top of the content term Q K^T, each
// score receives a position term q_i . a^K_{ij}, and each context vector a
// position term sum_j w_ij a^V_{ij}, where a^K and a^V are embeddings of the
// clipped signed distance j - i:
//
//	dist(i, j) = clip(j - i, -MaxRelative, MaxRelative) + MaxRelative
//
// Positions farther apart than MaxRelative share the boundary embedding. The
// relation tables are learned parameters shared across heads and built once
// at construction; with both tables at zero the module reduces exactly to
// standard multi-head attention.
type RelativePositionAttention[B tensor.Backend] struct {
	Heads       int
	DModel      int
	DK          int
	MaxRelative int

	Query   *Linear[B]
	Key     *Linear[B]
	Value   *Linear[B]
	Output  *Linear[B]
	Dropout *Dropout[B]

	// RelKeys and RelValues have shape (2*MaxRelative+1, DK).
	RelKeys   *Parameter[B]
	RelValues *Parameter[B]

	// Distance matrices depend only on the sequence length, so they are
	// computed once per length and reused across calls.
	mu        sync.Mutex
	distances map[int]*tensor.Tensor[int32, B]

	// cacheWeights gates retention of the last attention matrix, same
	// opt-in and concurrency caveat as MultiHeadedAttention.
	cacheWeights bool
	lastWeights  *tensor.Tensor[float32, B]

	backend B
}

// NewRelativePositionAttention creates the relative-position variant.
// maxRelative bounds the distance vocabulary; dModel must be divisible by
// heads.
func NewRelativePositionAttention[B tensor.Backend](heads, dModel, maxRelative int, dropout float32, rng *rand.Rand, backend B) *RelativePositionAttention[B] {
	if heads <= 0 {
		configErrorf("RelativePositionAttention", "heads must be positive, got %d", heads)
	}
	if dModel%heads != 0 {
		configErrorf("RelativePositionAttention", "d_model=%d not divisible by heads=%d", dModel, heads)
	}
	if maxRelative < 0 {
		configErrorf("RelativePositionAttention", "max_relative must be >= 0, got %d", maxRelative)
	}
	dK := dModel / heads
	vocab := 2*maxRelative + 1
	return &RelativePositionAttention[B]{
		Heads:       heads,
		DModel:      dModel,
		DK:          dK,
		MaxRelative: maxRelative,
		Query:       NewLinear(dModel, dModel, rng, backend),
		Key:         NewLinear(dModel, dModel, rng, backend),
		Value:       NewLinear(dModel, dModel, rng, backend),
		Output:      NewLinear(dModel, dModel, rng, backend),
		Dropout:     NewDropout(dropout, rng, backend),
		RelKeys:     NewParameter("relative.keys", normalInit(tensor.Shape{vocab, dK}, 1.0/math.Sqrt(float64(dK)), rng, backend)),
		RelValues:   NewParameter("relative.values", normalInit(tensor.Shape{vocab, dK}, 1.0/math.Sqrt(float64(dK)), rng, backend)),
		distances:   make(map[int]*tensor.Tensor[int32, B]),
		backend:     backend,
	}
}

// DistanceMatrix returns the (seqLen, seqLen) tensor of clipped, shifted
// distances used to index the relation tables. The result is cached per
// sequence length and must not be modified.
func (rpa *RelativePositionAttention[B]) DistanceMatrix(seqLen int) *tensor.Tensor[int32, B] {
	rpa.mu.Lock()
	defer rpa.mu.Unlock()
	if d, ok := rpa.distances[seqLen]; ok {
		return d
	}

	d := tensor.Zeros[int32](tensor.Shape{seqLen, seqLen}, rpa.backend)
	data := d.Data()
	for i := 0; i < seqLen; i++ {
		for j := 0; j < seqLen; j++ {
			dist := j - i
			if dist > rpa.MaxRelative {
				dist = rpa.MaxRelative
			} else if dist < -rpa.MaxRelative {
				dist = -rpa.MaxRelative
			}
			data[i*seqLen+j] = int32(dist + rpa.MaxRelative)
		}
	}
	rpa.distances[seqLen] = d
	return d
}

// Forward attends query over key/value with relative-position terms. All
// three inputs have shape (batch, seq, DModel) and, because distances are
// defined between paired positions, must share the same sequence length.
// mask follows the same convention as MultiHeadedAttention.
func (rpa *RelativePositionAttention[B]) Forward(
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
) *tensor.Tensor[float32, B] {
	qShape, kShape, vShape := query.Shape(), key.Shape(), value.Shape()
	if len(qShape) != 3 || qShape[2] != rpa.DModel {
		shapeErrorf("RelativePositionAttention.Forward", "query shape %v incompatible with d_model=%d", qShape, rpa.DModel)
	}
	if qShape[1] != kShape[1] || kShape[1] != vShape[1] {
		shapeErrorf("RelativePositionAttention.Forward", "relative attention requires equal sequence lengths, got q=%d k=%d v=%d", qShape[1], kShape[1], vShape[1])
	}
	batch, seq := qShape[0], qShape[1]

	if mask != nil {
		mask = mask.Unsqueeze(1)
	}

	q := rpa.splitHeads(rpa.Query.Forward(query), batch, seq)
	k := rpa.splitHeads(rpa.Key.Forward(key), batch, seq)
	v := rpa.splitHeads(rpa.Value.Forward(value), batch, seq)

	distances := rpa.DistanceMatrix(seq)
	relK := tensor.Embedding(rpa.RelKeys.Data, distances)   // (seq, seq, DK)
	relV := tensor.Embedding(rpa.RelValues.Data, distances) // (seq, seq, DK)

	// Content term plus position term, both scaled by sqrt(DK) so the
	// zero-table case matches standard attention exactly.
	scale := float32(math.Sqrt(float64(rpa.DK)))
	scores := q.BatchMatMul(transposeLastTwo(k)).
		Add(rpa.relativeLogits(q, relK, batch, seq)).
		DivScalar(scale)

	if mask != nil {
		scores = scores.MaskedFill(mask, maskFill)
	}

	weights := scores.Softmax(-1)
	weights = rpa.Dropout.Forward(weights)
	if rpa.cacheWeights {
		rpa.lastWeights = weights
	}

	context := weights.BatchMatMul(v).
		Add(rpa.relativeContext(weights, relV, batch, seq))

	return rpa.Output.Forward(rpa.mergeHeads(context, batch, seq))
}

// relativeLogits computes the position term of the scores,
// rel[b,h,i,j] = q[b,h,i] . relK[i,j], via a per-query-position batched
// product: q is brought to (seq, batch*Heads, DK) and multiplied against
// relK transposed to (seq, DK, seq).
func (rpa *RelativePositionAttention[B]) relativeLogits(
	q, relK *tensor.Tensor[float32, B],
	batch, seq int,
) *tensor.Tensor[float32, B] {
	qt := q.Reshape(batch*rpa.Heads, seq, rpa.DK).Transpose(1, 0, 2)
	rel := qt.BatchMatMul(relK.Transpose(0, 2, 1)) // (seq, batch*Heads, seq)
	return rel.Transpose(1, 0, 2).Reshape(batch, rpa.Heads, seq, seq)
}

// relativeContext computes the position term of the context,
// rel[b,h,i] = sum_j w[b,h,i,j] relV[i,j], with the same per-position
// batching as relativeLogits.
func (rpa *RelativePositionAttention[B]) relativeContext(
	weights, relV *tensor.Tensor[float32, B],
	batch, seq int,
) *tensor.Tensor[float32, B] {
	wt := weights.Reshape(batch*rpa.Heads, seq, seq).Transpose(1, 0, 2)
	rel := wt.BatchMatMul(relV) // (seq, batch*Heads, DK)
	return rel.Transpose(1, 0, 2).Reshape(batch, rpa.Heads, seq, rpa.DK)
}

func (rpa *RelativePositionAttention[B]) splitHeads(t *tensor.Tensor[float32, B], batch, seq int) *tensor.Tensor[float32, B] {
	return t.Reshape(batch, seq, rpa.Heads, rpa.DK).Transpose(0, 2, 1, 3)
}

func (rpa *RelativePositionAttention[B]) mergeHeads(t *tensor.Tensor[float32, B], batch, seq int) *tensor.Tensor[float32, B] {
	return t.Transpose(0, 2, 1, 3).Reshape(batch, seq, rpa.DModel)
}

// SetCacheWeights enables or disables retention of the most recent attention
// matrix.
func (rpa *RelativePositionAttention[B]) SetCacheWeights(cache bool) {
	rpa.cacheWeights = cache
	if !cache {
		rpa.lastWeights = nil
	}
}

// LastWeights returns the attention weights of the most recent Forward call,
// or nil when caching is disabled or no call has happened yet.
func (rpa *RelativePositionAttention[B]) LastWeights() *tensor.Tensor[float32, B] {
	return rpa.lastWeights
}

// SetTraining propagates the training flag to the inner dropout.
func (rpa *RelativePositionAttention[B]) SetTraining(training bool) {
	rpa.Dropout.SetTraining(training)
}

// Parameters returns the projection parameters plus the relation tables.
func (rpa *RelativePositionAttention[B]) Parameters() []*Parameter[B] {
	params := collectParams[B](rpa.Query, rpa.Key, rpa.Value, rpa.Output)
	return append(params, rpa.RelKeys, rpa.RelValues)
}
