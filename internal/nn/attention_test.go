package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/strand-ml/strand/internal/backend/cpu"
	"github.com/strand-ml/strand/internal/tensor"
)

func newRng() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func assertAllClose(t *testing.T, got, want []float32, tol float64, msg string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: length %d, want %d", msg, len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > tol {
			t.Errorf("%s: element %d: got %v, want %v", msg, i, got[i], want[i])
		}
	}
}

func assertFinite(t *testing.T, data []float32, msg string) {
	t.Helper()
	for i, v := range data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("%s: element %d is %v", msg, i, v)
		}
	}
}

func expectPanic[E error](t *testing.T, msg string, f func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("%s: expected panic", msg)
		}
		if _, ok := r.(E); !ok {
			t.Fatalf("%s: panic value %T, want %T", msg, r, *new(E))
		}
	}()
	f()
}

func TestScaledDotProductAttention_Shapes(t *testing.T) {
	backend := cpu.New()
	rng := newRng()

	batch, heads, seqQ, seqK, dK, dV := 2, 4, 5, 7, 8, 8
	q := tensor.Randn[float32](tensor.Shape{batch, heads, seqQ, dK}, rng, backend)
	k := tensor.Randn[float32](tensor.Shape{batch, heads, seqK, dK}, rng, backend)
	v := tensor.Randn[float32](tensor.Shape{batch, heads, seqK, dV}, rng, backend)

	out, weights := ScaledDotProductAttention(q, k, v, nil, nil)

	if !out.Shape().Equal(tensor.Shape{batch, heads, seqQ, dV}) {
		t.Errorf("output shape = %v", out.Shape())
	}
	if !weights.Shape().Equal(tensor.Shape{batch, heads, seqQ, seqK}) {
		t.Errorf("weights shape = %v", weights.Shape())
	}
}

func TestScaledDotProductAttention_RowsSumToOne(t *testing.T) {
	backend := cpu.New()
	rng := newRng()

	q := tensor.Randn[float32](tensor.Shape{2, 2, 4, 8}, rng, backend)
	k := tensor.Randn[float32](tensor.Shape{2, 2, 4, 8}, rng, backend)
	v := tensor.Randn[float32](tensor.Shape{2, 2, 4, 8}, rng, backend)

	_, weights := ScaledDotProductAttention(q, k, v, nil, nil)

	sums := weights.SumDim(-1, false).Data()
	for i, s := range sums {
		if math.Abs(float64(s-1)) > 1e-5 {
			t.Errorf("weight row %d sums to %v, want 1", i, s)
		}
	}
}

func TestScaledDotProductAttention_AllOnesMaskIsNoOp(t *testing.T) {
	backend := cpu.New()
	rng := newRng()

	q := tensor.Randn[float32](tensor.Shape{1, 2, 3, 4}, rng, backend)
	k := tensor.Randn[float32](tensor.Shape{1, 2, 3, 4}, rng, backend)
	v := tensor.Randn[float32](tensor.Shape{1, 2, 3, 4}, rng, backend)
	ones := tensor.Ones[float32](tensor.Shape{1, 1, 3, 3}, backend)

	unmasked, _ := ScaledDotProductAttention(q, k, v, nil, nil)
	masked, _ := ScaledDotProductAttention(q, k, v, ones, nil)

	assertAllClose(t, masked.Data(), unmasked.Data(), 0, "all-ones mask")
}

func TestScaledDotProductAttention_CausalMaskZeroesFuture(t *testing.T) {
	backend := cpu.New()
	rng := newRng()

	seq := 5
	q := tensor.Randn[float32](tensor.Shape{1, 1, seq, 4}, rng, backend)
	k := tensor.Randn[float32](tensor.Shape{1, 1, seq, 4}, rng, backend)
	v := tensor.Randn[float32](tensor.Shape{1, 1, seq, 4}, rng, backend)
	mask := CausalMask(seq, backend).Unsqueeze(0)

	_, weights := ScaledDotProductAttention(q, k, v, mask, nil)

	data := weights.Data()
	for i := 0; i < seq; i++ {
		for j := i + 1; j < seq; j++ {
			if w := data[i*seq+j]; math.Abs(float64(w)) > 1e-7 {
				t.Errorf("weight (%d, %d) = %v, want 0 under causal mask", i, j, w)
			}
		}
	}
}

func TestScaledDotProductAttention_FullyMaskedRowFinite(t *testing.T) {
	backend := cpu.New()
	rng := newRng()

	seq := 4
	q := tensor.Randn[float32](tensor.Shape{1, 1, seq, 4}, rng, backend)
	k := tensor.Randn[float32](tensor.Shape{1, 1, seq, 4}, rng, backend)
	v := tensor.Randn[float32](tensor.Shape{1, 1, seq, 4}, rng, backend)
	// Every key masked out for every query.
	mask := tensor.Zeros[float32](tensor.Shape{1, 1, seq, seq}, backend)

	out, weights := ScaledDotProductAttention(q, k, v, mask, nil)

	assertFinite(t, weights.Data(), "weights")
	assertFinite(t, out.Data(), "output")
}

func TestScaledDotProductAttention_UniformKeysGiveUniformWeights(t *testing.T) {
	backend := cpu.New()
	rng := newRng()

	// Identical keys make every logit in a row equal, so the weights must be
	// exactly uniform.
	seq := 4
	q := tensor.Randn[float32](tensor.Shape{1, 1, 1, 8}, rng, backend)
	k := tensor.Ones[float32](tensor.Shape{1, 1, seq, 8}, backend)
	v := tensor.Randn[float32](tensor.Shape{1, 1, seq, 8}, rng, backend)

	_, weights := ScaledDotProductAttention(q, k, v, nil, nil)
	assertAllClose(t, weights.Data(), []float32{0.25, 0.25, 0.25, 0.25}, 1e-6, "uniform weights")
}

func TestScaledDotProductAttention_ShapeMismatchPanics(t *testing.T) {
	backend := cpu.New()
	rng := newRng()

	q := tensor.Randn[float32](tensor.Shape{1, 1, 3, 4}, rng, backend)
	k := tensor.Randn[float32](tensor.Shape{1, 1, 3, 8}, rng, backend)
	v := tensor.Randn[float32](tensor.Shape{1, 1, 3, 4}, rng, backend)

	expectPanic[*ShapeError](t, "depth mismatch", func() {
		ScaledDotProductAttention(q, k, v, nil, nil)
	})
}

func TestCausalMask_LowerTriangular(t *testing.T) {
	backend := cpu.New()
	mask := CausalMask(3, backend)

	if !mask.Shape().Equal(tensor.Shape{1, 3, 3}) {
		t.Fatalf("CausalMask shape = %v", mask.Shape())
	}
	want := []float32{
		1, 0, 0,
		1, 1, 0,
		1, 1, 1,
	}
	assertAllClose(t, mask.Data(), want, 0, "causal mask")
}

func TestPaddingMask(t *testing.T) {
	backend := cpu.New()
	mask := PaddingMask([]int{3, 1}, 4, backend)

	if !mask.Shape().Equal(tensor.Shape{2, 1, 4}) {
		t.Fatalf("PaddingMask shape = %v", mask.Shape())
	}
	want := []float32{
		1, 1, 1, 0,
		1, 0, 0, 0,
	}
	assertAllClose(t, mask.Data(), want, 0, "padding mask")
}
