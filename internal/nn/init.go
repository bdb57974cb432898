package nn

import (
	"math"
	"math/rand"

	"github.com/strand-ml/strand/internal/tensor"
)

// xavierUniform fills a fresh tensor of the given shape with samples from
// U(-limit, limit) where limit = sqrt(6 / (fanIn + fanOut)). All randomness
// flows through the caller-supplied rng so that identically seeded
// constructions produce identical parameters.
func xavierUniform[B tensor.Backend](shape tensor.Shape, fanIn, fanOut int, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	limit := float32(math.Sqrt(6.0 / float64(fanIn+fanOut)))
	t := tensor.Zeros[float32](shape, backend)
	data := t.Data()
	for i := range data {
		data[i] = (rng.Float32()*2 - 1) * limit
	}
	return t
}

// normalInit fills a fresh tensor with N(0, std^2) samples drawn from rng.
// Used for embedding tables, where fan-based scaling does not apply.
func normalInit[B tensor.Backend](shape tensor.Shape, std float64, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	t := tensor.Randn[float32](shape, rng, backend)
	if std != 1.0 {
		return t.MulScalar(float32(std))
	}
	return t
}
