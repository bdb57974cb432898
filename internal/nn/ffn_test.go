package nn

import (
	"testing"

	"github.com/strand-ml/strand/internal/backend/cpu"
	"github.com/strand-ml/strand/internal/tensor"
)

func TestPositionwiseFeedForward_Shape(t *testing.T) {
	backend := cpu.New()
	rng := newRng()

	ff := NewPositionwiseFeedForward(64, 256, 0.0, rng, backend)
	x := tensor.Randn[float32](tensor.Shape{2, 10, 64}, rng, backend)

	out := ff.Forward(x)
	if !out.Shape().Equal(tensor.Shape{2, 10, 64}) {
		t.Errorf("output shape = %v", out.Shape())
	}
	assertFinite(t, out.Data(), "output")
}

func TestPositionwiseFeedForward_PositionIndependent(t *testing.T) {
	backend := cpu.New()
	rng := newRng()

	// The same network applies at every position: swapping two input
	// positions swaps the corresponding outputs.
	dim := 16
	ff := NewPositionwiseFeedForward(dim, 32, 0.0, rng, backend)

	x := tensor.Randn[float32](tensor.Shape{1, 2, dim}, rng, backend)
	swapped := x.Clone()
	data := swapped.Data()
	for i := 0; i < dim; i++ {
		data[i], data[dim+i] = data[dim+i], data[i]
	}

	out := ff.Forward(x).Data()
	outSwapped := ff.Forward(swapped).Data()
	for i := 0; i < dim; i++ {
		if out[i] != outSwapped[dim+i] || out[dim+i] != outSwapped[i] {
			t.Fatalf("feed-forward output depends on position at channel %d", i)
		}
	}
}

func TestPositionwiseFeedForward_Parameters(t *testing.T) {
	backend := cpu.New()
	ff := NewPositionwiseFeedForward(8, 32, 0.0, newRng(), backend)

	total := 0
	for _, p := range ff.Parameters() {
		total += p.NumElements()
	}
	// W1: 8x32 + 32, W2: 32x8 + 8.
	if want := 8*32 + 32 + 32*8 + 8; total != want {
		t.Errorf("parameter count = %d, want %d", total, want)
	}
}

func TestPositionwiseFeedForward_InvalidConfig(t *testing.T) {
	backend := cpu.New()
	expectPanic[*ConfigError](t, "zero d_ff", func() {
		NewPositionwiseFeedForward(8, 0, 0.0, newRng(), backend)
	})
}
