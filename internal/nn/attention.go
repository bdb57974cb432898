package nn

import (
	"math"

	"github.com/strand-ml/strand/internal/tensor"
)

// maskFill is the additive stand-in for negative infinity used when masking
// attention logits. It is large enough to zero the corresponding softmax
// weight in float32 without producing NaN when an entire row is masked.
const maskFill = -1e9

// ScaledDotProductAttention computes attention over a batch of queries:
//
//	Attention(Q, K, V) = softmax(Q K^T / sqrt(d_k)) V
//
// query has shape (..., seqQ, dK), key (..., seqK, dK) and value
// (..., seqK, dV); the leading batch dimensions must match. mask, if
// non-nil, must broadcast to the score shape (..., seqQ, seqK); positions
// where the mask is zero are excluded from attention. dropout, if non-nil,
// is applied to the attention weights after softmax.
//
// It returns the attended output (..., seqQ, dV) together with the attention
// weight matrix (..., seqQ, seqK). The returned weights reflect the dropout
// actually applied, so each row sums to one only when dropout is inactive.
func ScaledDotProductAttention[B tensor.Backend](
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
	dropout *Dropout[B],
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	qShape, kShape, vShape := query.Shape(), key.Shape(), value.Shape()
	if len(qShape) < 2 || len(kShape) != len(qShape) || len(vShape) != len(qShape) {
		shapeErrorf("Attention", "query/key/value ranks must match and be >= 2, got %v %v %v", qShape, kShape, vShape)
	}
	dK := qShape[len(qShape)-1]
	if kShape[len(kShape)-1] != dK {
		shapeErrorf("Attention", "query depth %d does not match key depth %d", dK, kShape[len(kShape)-1])
	}
	if vShape[len(vShape)-2] != kShape[len(kShape)-2] {
		shapeErrorf("Attention", "value length %d does not match key length %d", vShape[len(vShape)-2], kShape[len(kShape)-2])
	}

	scores := matmulLastTwo(query, transposeLastTwo(key)).DivScalar(float32(math.Sqrt(float64(dK))))
	if mask != nil {
		scores = scores.MaskedFill(mask, maskFill)
	}

	weights := scores.Softmax(-1)
	if dropout != nil {
		weights = dropout.Forward(weights)
	}
	return matmulLastTwo(weights, value), weights
}

// transposeLastTwo swaps the trailing two dimensions of t.
func transposeLastTwo[B tensor.Backend](t *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	n := len(t.Shape())
	axes := make([]int, n)
	for i := range axes {
		axes[i] = i
	}
	axes[n-2], axes[n-1] = axes[n-1], axes[n-2]
	return t.Transpose(axes...)
}

// matmulLastTwo multiplies over the trailing two dimensions, dispatching to
// the plain 2D product when there are no batch dimensions.
func matmulLastTwo[B tensor.Backend](a, b *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if len(a.Shape()) == 2 {
		return a.MatMul(b)
	}
	return a.BatchMatMul(b)
}

// CausalMask returns a (1, size, size) mask whose entry (i, j) is one when
// position j may be attended from position i, i.e. j <= i. Broadcasting the
// leading dimension makes the same mask apply across a whole batch, and
// across heads once unsqueezed by multi-head attention.
func CausalMask[B tensor.Backend](size int, backend B) *tensor.Tensor[float32, B] {
	mask := tensor.Zeros[float32](tensor.Shape{1, size, size}, backend)
	data := mask.Data()
	for i := 0; i < size; i++ {
		for j := 0; j <= i; j++ {
			data[i*size+j] = 1
		}
	}
	return mask
}

// PaddingMask returns a (batch, 1, seqLen) mask with ones over the first
// lengths[b] positions of each sequence and zeros over the padding tail.
func PaddingMask[B tensor.Backend](lengths []int, seqLen int, backend B) *tensor.Tensor[float32, B] {
	mask := tensor.Zeros[float32](tensor.Shape{len(lengths), 1, seqLen}, backend)
	data := mask.Data()
	for b, n := range lengths {
		if n > seqLen {
			shapeErrorf("PaddingMask", "length %d exceeds sequence length %d", n, seqLen)
		}
		for j := 0; j < n; j++ {
			data[b*seqLen+j] = 1
		}
	}
	return mask
}
