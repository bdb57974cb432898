package cpu

import (
	"fmt"
	"math"

	"github.com/strand-ml/strand/internal/tensor"
)

// Sqrt computes the element-wise square root.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sqrt: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i := range dst {
			dst[i] = float32(math.Sqrt(float64(src[i])))
		}
	case tensor.Float64:
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i := range dst {
			dst[i] = math.Sqrt(src[i])
		}
	default:
		panic(fmt.Sprintf("sqrt: unsupported dtype %s", x.DType()))
	}

	return result
}

// ReLU computes the element-wise rectified linear unit: max(x, 0).
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("relu: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i := range dst {
			if src[i] > 0 {
				dst[i] = src[i]
			}
		}
	case tensor.Float64:
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i := range dst {
			if src[i] > 0 {
				dst[i] = src[i]
			}
		}
	default:
		panic(fmt.Sprintf("relu: unsupported dtype %s", x.DType()))
	}

	return result
}
