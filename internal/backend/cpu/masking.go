package cpu

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// MaskedFill writes value into every position of x where the corresponding
// mask entry is zero. The mask follows the 0/1 convention: zero
// forbids, nonzero permits. The mask must be broadcastable to x's shape
// under the BroadcastShapes rules; any other shape panics rather than being
// silently coerced.
func (cpu *CPUBackend) MaskedFill(x, mask *tensor.RawTensor, value float64) *tensor.RawTensor {
	outShape, _, err := tensor.BroadcastShapes(x.Shape(), mask.Shape())
	if err != nil {
		panic(fmt.Sprintf("maskedFill: %v", err))
	}
	if !outShape.Equal(x.Shape()) {
		panic(fmt.Sprintf("maskedFill: mask shape %v does not broadcast to input shape %v", mask.Shape(), x.Shape()))
	}

	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("maskedFill: failed to create result tensor: %v", err))
	}

	outStrides := x.Shape().ComputeStrides()
	maskStrides := computeBroadcastStridesForShape(mask.Shape(), x.Shape())

	switch x.DType() {
	case tensor.Float32:
		src, dst := x.AsFloat32(), result.AsFloat32()
		fill := float32(value)
		maskData := maskAsFloat32(mask)
		for i := range dst {
			if maskData[computeFlatIndex(i, outStrides, maskStrides)] == 0 {
				dst[i] = fill
			} else {
				dst[i] = src[i]
			}
		}
	case tensor.Float64:
		src, dst := x.AsFloat64(), result.AsFloat64()
		maskData := maskAsFloat64(mask)
		for i := range dst {
			if maskData[computeFlatIndex(i, outStrides, maskStrides)] == 0 {
				dst[i] = value
			} else {
				dst[i] = src[i]
			}
		}
	default:
		panic(fmt.Sprintf("maskedFill: unsupported dtype %s", x.DType()))
	}

	return result
}

// maskAsFloat32 accepts float32 or bool masks (bool true -> 1).
func maskAsFloat32(mask *tensor.RawTensor) []float32 {
	switch mask.DType() {
	case tensor.Float32:
		return mask.AsFloat32()
	case tensor.Bool:
		bools := mask.AsBool()
		out := make([]float32, len(bools))
		for i, b := range bools {
			if b {
				out[i] = 1
			}
		}
		return out
	default:
		panic(fmt.Sprintf("maskedFill: unsupported mask dtype %s", mask.DType()))
	}
}

func maskAsFloat64(mask *tensor.RawTensor) []float64 {
	switch mask.DType() {
	case tensor.Float64:
		return mask.AsFloat64()
	case tensor.Bool:
		bools := mask.AsBool()
		out := make([]float64, len(bools))
		for i, b := range bools {
			if b {
				out[i] = 1
			}
		}
		return out
	default:
		panic(fmt.Sprintf("maskedFill: unsupported mask dtype %s", mask.DType()))
	}
}
