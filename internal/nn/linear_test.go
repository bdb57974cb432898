package nn

import (
	"testing"

	"github.com/strand-ml/strand/internal/backend/cpu"
	"github.com/strand-ml/strand/internal/tensor"
)

func TestLinear_KnownValues(t *testing.T) {
	backend := cpu.New()
	lin := NewLinear(2, 3, newRng(), backend)

	// Overwrite the random init with a known transform.
	// Weight is (out, in): y_j = sum_i W[j][i] x[i] + b[j].
	copy(lin.Weight.Data.Data(), []float32{
		1, 0,
		0, 1,
		1, 1,
	})
	copy(lin.Bias.Data.Data(), []float32{0, 0, 10})

	x, err := tensor.FromSlice([]float32{2, 3}, tensor.Shape{1, 2}, backend)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}
	out := lin.Forward(x)
	assertAllClose(t, out.Data(), []float32{2, 3, 15}, 1e-5, "linear")
}

func TestLinear_BatchedInput(t *testing.T) {
	backend := cpu.New()
	rng := newRng()

	lin := NewLinear(16, 8, rng, backend)
	x := tensor.Randn[float32](tensor.Shape{4, 5, 16}, rng, backend)

	out := lin.Forward(x)
	if !out.Shape().Equal(tensor.Shape{4, 5, 8}) {
		t.Fatalf("output shape = %v", out.Shape())
	}

	// The 3D forward is the 2D forward applied row by row.
	flat := lin.Forward(x.Reshape(20, 16))
	assertAllClose(t, out.Data(), flat.Data(), 0, "3D vs flattened")
}

func TestLinear_XavierInitRange(t *testing.T) {
	backend := cpu.New()
	lin := NewLinear(64, 64, newRng(), backend)

	// Xavier-uniform bounds: sqrt(6/(64+64)) ~ 0.2165.
	limit := float32(0.2166)
	for i, w := range lin.Weight.Data.Data() {
		if w < -limit || w > limit {
			t.Fatalf("weight %d = %v outside [-%v, %v]", i, w, limit, limit)
		}
	}
}

func TestLinear_ShapeMismatchPanics(t *testing.T) {
	backend := cpu.New()
	lin := NewLinear(8, 4, newRng(), backend)
	x := tensor.Zeros[float32](tensor.Shape{2, 6}, backend)

	expectPanic[*ShapeError](t, "wrong in_features", func() {
		lin.Forward(x)
	})
}
