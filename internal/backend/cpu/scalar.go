package cpu

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// MulScalar multiplies each element of the tensor by a scalar value.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return cpu.scalarOp("mulScalar", x, scalar,
		func(v, s float32) float32 { return v * s },
		func(v, s float64) float64 { return v * s })
}

// AddScalar adds a scalar value to each element of the tensor.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return cpu.scalarOp("addScalar", x, scalar,
		func(v, s float32) float32 { return v + s },
		func(v, s float64) float64 { return v + s })
}

// DivScalar divides each element of the tensor by a scalar value.
func (cpu *CPUBackend) DivScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return cpu.scalarOp("divScalar", x, scalar,
		func(v, s float32) float32 { return v / s },
		func(v, s float64) float64 { return v / s })
}

func (cpu *CPUBackend) scalarOp(
	op string,
	x *tensor.RawTensor,
	scalar any,
	f32 func(v, s float32) float32,
	f64 func(v, s float64) float64,
) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}

	switch x.DType() {
	case tensor.Float32:
		s, ok := scalar.(float32)
		if !ok {
			panic(fmt.Sprintf("%s: scalar type %T does not match tensor dtype float32", op, scalar))
		}
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i := range dst {
			dst[i] = f32(src[i], s)
		}
	case tensor.Float64:
		s, ok := scalar.(float64)
		if !ok {
			panic(fmt.Sprintf("%s: scalar type %T does not match tensor dtype float64", op, scalar))
		}
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i := range dst {
			dst[i] = f64(src[i], s)
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, x.DType()))
	}

	return result
}
