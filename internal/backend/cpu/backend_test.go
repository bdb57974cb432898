package cpu

import (
	"math"
	"testing"

	"github.com/strand-ml/strand/internal/tensor"
)

func fromSlice(t *testing.T, data []float32, shape tensor.Shape) *tensor.Tensor[float32, *CPUBackend] {
	t.Helper()
	out, err := tensor.FromSlice(data, shape, New())
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}
	return out
}

func assertClose(t *testing.T, got, want []float32, tol float64, msg string) {
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

func TestAdd_SameShape(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := fromSlice(t, []float32{10, 20, 30, 40}, tensor.Shape{2, 2})
	assertClose(t, a.Add(b).Data(), []float32{11, 22, 33, 44}, 0, "Add")
}

func TestAdd_BroadcastRow(t *testing.T) {
	// (2, 3) + (3): the row vector applies to each row.
	a := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := fromSlice(t, []float32{10, 20, 30}, tensor.Shape{3})
	out := a.Add(b)
	if !out.Shape().Equal(tensor.Shape{2, 3}) {
		t.Fatalf("broadcast Add shape = %v", out.Shape())
	}
	assertClose(t, out.Data(), []float32{11, 22, 33, 14, 25, 36}, 0, "broadcast Add")
}

func TestSub_BroadcastKeepDim(t *testing.T) {
	// (2, 3) - (2, 1): per-row scalar, the LayerNorm centering pattern.
	a := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	m := fromSlice(t, []float32{2, 5}, tensor.Shape{2, 1})
	assertClose(t, a.Sub(m).Data(), []float32{-1, 0, 1, -1, 0, 1}, 0, "Sub keepdim")
}

func TestMulDiv(t *testing.T) {
	a := fromSlice(t, []float32{2, 4, 6, 8}, tensor.Shape{4})
	b := fromSlice(t, []float32{2, 2, 3, 4}, tensor.Shape{4})
	assertClose(t, a.Mul(b).Data(), []float32{4, 8, 18, 32}, 0, "Mul")
	assertClose(t, a.Div(b).Data(), []float32{1, 2, 2, 2}, 1e-6, "Div")
}

func TestScalarOps(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3}, tensor.Shape{3})
	assertClose(t, a.MulScalar(2).Data(), []float32{2, 4, 6}, 0, "MulScalar")
	assertClose(t, a.AddScalar(1).Data(), []float32{2, 3, 4}, 0, "AddScalar")
	assertClose(t, a.DivScalar(2).Data(), []float32{0.5, 1, 1.5}, 1e-6, "DivScalar")
}

func TestSqrtReLU(t *testing.T) {
	a := fromSlice(t, []float32{4, 9, 16}, tensor.Shape{3})
	assertClose(t, a.Sqrt().Data(), []float32{2, 3, 4}, 1e-6, "Sqrt")

	b := fromSlice(t, []float32{-1, 0, 2, -3}, tensor.Shape{4})
	assertClose(t, b.ReLU().Data(), []float32{0, 0, 2, 0}, 0, "ReLU")
}

func TestOps_DoNotMutateInputs(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3}, tensor.Shape{3})
	b := fromSlice(t, []float32{4, 5, 6}, tensor.Shape{3})
	_ = a.Add(b)
	_ = a.MulScalar(10)
	assertClose(t, a.Data(), []float32{1, 2, 3}, 0, "input a")
	assertClose(t, b.Data(), []float32{4, 5, 6}, 0, "input b")
}
