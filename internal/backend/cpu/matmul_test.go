package cpu

import (
	"testing"

	"github.com/strand-ml/strand/internal/tensor"
)

func TestMatMul_2D(t *testing.T) {
	// (2, 3) x (3, 2)
	a := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := fromSlice(t, []float32{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2})
	out := a.MatMul(b)
	if !out.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("MatMul shape = %v", out.Shape())
	}
	assertClose(t, out.Data(), []float32{58, 64, 139, 154}, 1e-4, "MatMul")
}

func TestMatMul_Identity(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	eye := fromSlice(t, []float32{1, 0, 0, 1}, tensor.Shape{2, 2})
	assertClose(t, a.MatMul(eye).Data(), []float32{1, 2, 3, 4}, 1e-5, "A*I")
}

func TestBatchMatMul_3D(t *testing.T) {
	// Two independent 2x2 products in one batch.
	a := fromSlice(t, []float32{
		1, 0, 0, 1, // batch 0: identity
		1, 2, 3, 4, // batch 1
	}, tensor.Shape{2, 2, 2})
	b := fromSlice(t, []float32{
		5, 6, 7, 8,
		1, 0, 0, 1,
	}, tensor.Shape{2, 2, 2})
	out := a.BatchMatMul(b)
	if !out.Shape().Equal(tensor.Shape{2, 2, 2}) {
		t.Fatalf("BatchMatMul shape = %v", out.Shape())
	}
	assertClose(t, out.Data(), []float32{5, 6, 7, 8, 1, 2, 3, 4}, 1e-5, "BatchMatMul")
}

func TestBatchMatMul_4D(t *testing.T) {
	// The attention layout: (batch, heads, seq, depth).
	a := tensor.Zeros[float32](tensor.Shape{2, 3, 4, 5}, New())
	b := tensor.Zeros[float32](tensor.Shape{2, 3, 5, 6}, New())
	out := a.BatchMatMul(b)
	if !out.Shape().Equal(tensor.Shape{2, 3, 4, 6}) {
		t.Fatalf("4D BatchMatMul shape = %v", out.Shape())
	}
}

func TestBatchMatMul_MatchesMatMulPerBatch(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{1, 2, 3})
	b := fromSlice(t, []float32{7, 8, 9, 10, 11, 12}, tensor.Shape{1, 3, 2})
	batched := a.BatchMatMul(b)
	plain := a.Reshape(2, 3).MatMul(b.Reshape(3, 2))
	assertClose(t, batched.Data(), plain.Data(), 1e-5, "batched vs plain")
}
