package nn

import (
	"testing"

	"github.com/strand-ml/strand/internal/backend/cpu"
	"github.com/strand-ml/strand/internal/tensor"
)

func TestDecoderLayer_ShapeRoundTrip(t *testing.T) {
	backend := cpu.New()
	rng := newRng()

	layer := NewDecoderLayer(testLayerConfig(), rng, backend)

	memory := tensor.Randn[float32](tensor.Shape{2, 12, 64}, rng, backend)
	x := tensor.Randn[float32](tensor.Shape{2, 7, 64}, rng, backend)

	out := layer.Forward(x, memory, nil, CausalMask(7, backend))
	if !out.Shape().Equal(tensor.Shape{2, 7, 64}) {
		t.Errorf("output shape = %v", out.Shape())
	}
	assertFinite(t, out.Data(), "output")
}

func TestDecoder_ShapeRoundTrip(t *testing.T) {
	backend := cpu.New()
	rng := newRng()

	dec := NewDecoder(testLayerConfig(), 3, rng, backend)

	seqS, seqT := 12, 7
	memory := tensor.Randn[float32](tensor.Shape{2, seqS, 64}, rng, backend)
	x := tensor.Randn[float32](tensor.Shape{2, seqT, 64}, rng, backend)
	srcMask := PaddingMask([]int{12, 9}, seqS, backend)
	tgtMask := CausalMask(seqT, backend)

	out := dec.Forward(x, memory, srcMask, tgtMask)
	if !out.Shape().Equal(tensor.Shape{2, seqT, 64}) {
		t.Errorf("output shape = %v", out.Shape())
	}
	assertFinite(t, out.Data(), "output")
}

func TestDecoderLayer_CrossAttentionIsStandard(t *testing.T) {
	backend := cpu.New()

	// Even with relative self-attention configured, cross-attention stays
	// standard: source and target lengths differ.
	cfg := testLayerConfig()
	cfg.Relative = true
	cfg.MaxRelative = 4

	layer := NewDecoderLayer(cfg, newRng(), backend)
	if _, ok := layer.SelfAttn.(*RelativePositionAttention[*cpu.CPUBackend]); !ok {
		t.Fatalf("self-attention is %T, want relative variant", layer.SelfAttn)
	}

	rng := newRng()
	memory := tensor.Randn[float32](tensor.Shape{1, 9, 64}, rng, backend)
	x := tensor.Randn[float32](tensor.Shape{1, 5, 64}, rng, backend)

	out := layer.Forward(x, memory, nil, CausalMask(5, backend))
	if !out.Shape().Equal(tensor.Shape{1, 5, 64}) {
		t.Errorf("output shape = %v", out.Shape())
	}
}

func TestEncoderDecoder_EndToEnd(t *testing.T) {
	backend := cpu.New()
	rng := newRng()

	cfg := testLayerConfig()
	enc := NewEncoder(cfg, 2, rng, backend)
	dec := NewDecoder(cfg, 2, rng, backend)
	enc.SetTraining(false)
	dec.SetTraining(false)

	seqS, seqT := 10, 6
	src := tensor.Randn[float32](tensor.Shape{2, seqS, 64}, rng, backend)
	tgt := tensor.Randn[float32](tensor.Shape{2, seqT, 64}, rng, backend)
	srcMask := PaddingMask([]int{10, 7}, seqS, backend)

	memory := enc.Forward(src, srcMask)
	out := dec.Forward(tgt, memory, srcMask, CausalMask(seqT, backend))

	if !out.Shape().Equal(tensor.Shape{2, seqT, 64}) {
		t.Errorf("output shape = %v", out.Shape())
	}
	assertFinite(t, out.Data(), "output")
}
