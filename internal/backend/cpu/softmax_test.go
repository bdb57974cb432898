package cpu

import (
	"math"
	"testing"

	"github.com/strand-ml/strand/internal/tensor"
)

func TestSoftmax_RowsSumToOne(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3, -1, 0, 1}, tensor.Shape{2, 3})
	out := x.Softmax(-1)
	data := out.Data()
	for row := 0; row < 2; row++ {
		var sum float32
		for j := 0; j < 3; j++ {
			sum += data[row*3+j]
		}
		if math.Abs(float64(sum-1)) > 1e-5 {
			t.Errorf("row %d sums to %v, want 1", row, sum)
		}
	}
}

func TestSoftmax_KnownValues(t *testing.T) {
	x := fromSlice(t, []float32{0, 0, 0}, tensor.Shape{1, 3})
	assertClose(t, x.Softmax(-1).Data(), []float32{1.0 / 3, 1.0 / 3, 1.0 / 3}, 1e-6, "uniform softmax")
}

func TestSoftmax_LargeLogitsStable(t *testing.T) {
	// Max subtraction keeps exp from overflowing.
	x := fromSlice(t, []float32{1000, 1001, 1002}, tensor.Shape{1, 3})
	data := x.Softmax(-1).Data()
	for i, v := range data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("element %d is %v", i, v)
		}
	}
}

func TestSoftmax_MaskedRowFinite(t *testing.T) {
	// A row filled with the mask value stays finite and near-uniform.
	x := fromSlice(t, []float32{-1e9, -1e9, -1e9}, tensor.Shape{1, 3})
	data := x.Softmax(-1).Data()
	for i, v := range data {
		if math.IsNaN(float64(v)) {
			t.Fatalf("element %d is NaN", i)
		}
		if math.Abs(float64(v-1.0/3)) > 1e-5 {
			t.Errorf("element %d = %v, want 1/3", i, v)
		}
	}
}

func TestSoftmax_InnerDim(t *testing.T) {
	x := fromSlice(t, []float32{0, 0, 0, 0}, tensor.Shape{2, 2})
	assertClose(t, x.Softmax(0).Data(), []float32{0.5, 0.5, 0.5, 0.5}, 1e-6, "softmax dim 0")
}

func TestSumDim(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	last := x.SumDim(1, false)
	if !last.Shape().Equal(tensor.Shape{2}) {
		t.Fatalf("SumDim(1) shape = %v", last.Shape())
	}
	assertClose(t, last.Data(), []float32{6, 15}, 1e-6, "SumDim last")

	first := x.SumDim(0, false)
	if !first.Shape().Equal(tensor.Shape{3}) {
		t.Fatalf("SumDim(0) shape = %v", first.Shape())
	}
	assertClose(t, first.Data(), []float32{5, 7, 9}, 1e-6, "SumDim first")
}

func TestMeanDim_KeepDim(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	m := x.MeanDim(-1, true)
	if !m.Shape().Equal(tensor.Shape{2, 1}) {
		t.Fatalf("MeanDim keepdim shape = %v", m.Shape())
	}
	assertClose(t, m.Data(), []float32{2, 5}, 1e-6, "MeanDim")
}

func TestReduce_MiddleDim(t *testing.T) {
	// (2, 2, 2) summed over dim 1: out[i][k] = x[i][0][k] + x[i][1][k].
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{2, 2, 2})
	out := x.SumDim(1, false)
	if !out.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("shape = %v", out.Shape())
	}
	assertClose(t, out.Data(), []float32{4, 6, 12, 14}, 1e-6, "middle-dim sum")
}

func TestMaskedFill(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	mask := fromSlice(t, []float32{1, 0, 0, 1}, tensor.Shape{2, 2})
	out := x.MaskedFill(mask, -99)
	assertClose(t, out.Data(), []float32{1, -99, -99, 4}, 0, "MaskedFill")
}

func TestMaskedFill_Broadcast(t *testing.T) {
	// (1, 2, 2) mask against (2, 2, 2) scores: shared across the batch.
	x := tensor.Ones[float32](tensor.Shape{2, 2, 2}, New())
	mask := fromSlice(t, []float32{1, 0, 1, 1}, tensor.Shape{1, 2, 2})
	out := x.MaskedFill(mask, 0)
	assertClose(t, out.Data(), []float32{1, 0, 1, 1, 1, 0, 1, 1}, 0, "broadcast MaskedFill")
}

func TestTranspose_2D(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	out := x.T()
	if !out.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("T() shape = %v", out.Shape())
	}
	assertClose(t, out.Data(), []float32{1, 4, 2, 5, 3, 6}, 0, "transpose")
}

func TestTranspose_HeadSplit(t *testing.T) {
	// (1, 2, 2, 1) -> (0, 2, 1, 3): the multi-head split permutation.
	x := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{1, 2, 2, 1})
	out := x.Transpose(0, 2, 1, 3)
	if !out.Shape().Equal(tensor.Shape{1, 2, 2, 1}) {
		t.Fatalf("shape = %v", out.Shape())
	}
	assertClose(t, out.Data(), []float32{1, 3, 2, 4}, 0, "head split")
}

func TestReshape_View(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	out := x.Reshape(3, 2)
	if !out.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("Reshape shape = %v", out.Shape())
	}
	assertClose(t, out.Data(), []float32{1, 2, 3, 4, 5, 6}, 0, "reshape data order")
}

func TestUnsqueeze(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	if got := x.Unsqueeze(1).Shape(); !got.Equal(tensor.Shape{2, 1, 2}) {
		t.Errorf("Unsqueeze(1) shape = %v", got)
	}
	if got := x.Unsqueeze(-1).Shape(); !got.Equal(tensor.Shape{2, 2, 1}) {
		t.Errorf("Unsqueeze(-1) shape = %v", got)
	}
}

func TestEmbedding_Gather(t *testing.T) {
	weight := fromSlice(t, []float32{
		0, 0, // row 0
		1, 10, // row 1
		2, 20, // row 2
	}, tensor.Shape{3, 2})
	indices, err := tensor.FromSlice([]int32{2, 0, 1, 1}, tensor.Shape{2, 2}, New())
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}
	out := tensor.Embedding(weight, indices)
	if !out.Shape().Equal(tensor.Shape{2, 2, 2}) {
		t.Fatalf("Embedding shape = %v", out.Shape())
	}
	assertClose(t, out.Data(), []float32{2, 20, 0, 0, 1, 10, 1, 10}, 0, "gather")
}
