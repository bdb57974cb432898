// Package cpu implements the CPU backend with gonum BLAS dense kernels.
package cpu

import (
	"fmt"

	"github.com/strand-ml/strand/internal/parallel"
	"github.com/strand-ml/strand/internal/tensor"
)

// CPUBackend implements tensor operations on CPU. Dense matrix multiplies go
// through gonum BLAS; batched kernels fan out across goroutines.
type CPUBackend struct {
	device   tensor.Device
	parallel parallel.Config
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		device:   tensor.CPU,
		parallel: parallel.DefaultConfig(),
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("add", a, b,
		func(x, y float32) float32 { return x + y },
		func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("sub", a, b,
		func(x, y float32) float32 { return x - y },
		func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("mul", a, b,
		func(x, y float32) float32 { return x * y },
		func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("div", a, b,
		func(x, y float32) float32 { return x / y },
		func(x, y float64) float64 { return x / y })
}

// binaryOp applies an element-wise binary operation with broadcasting.
// Same-shape inputs take the vectorizable fast path; mismatched shapes go
// through stride-0 broadcast indexing.
func (cpu *CPUBackend) binaryOp(
	op string,
	a, b *tensor.RawTensor,
	f32 func(x, y float32) float32,
	f64 func(x, y float64) float64,
) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch: %s vs %s", op, a.DType(), b.DType()))
	}

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	result, err := tensor.NewRaw(outShape, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}

	switch a.DType() {
	case tensor.Float32:
		if needsBroadcast {
			broadcastBinaryFloat32(result, a, b, outShape, f32)
		} else {
			dst, x, y := result.AsFloat32(), a.AsFloat32(), b.AsFloat32()
			for i := range dst {
				dst[i] = f32(x[i], y[i])
			}
		}
	case tensor.Float64:
		if needsBroadcast {
			broadcastBinaryFloat64(result, a, b, outShape, f64)
		} else {
			dst, x, y := result.AsFloat64(), a.AsFloat64(), b.AsFloat64()
			for i := range dst {
				dst[i] = f64(x[i], y[i])
			}
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, a.DType()))
	}

	return result
}

func broadcastBinaryFloat32(
	result, a, b *tensor.RawTensor,
	outShape tensor.Shape,
	f func(x, y float32) float32,
) {
	dst := result.AsFloat32()
	x := a.AsFloat32()
	y := b.AsFloat32()

	outStrides := outShape.ComputeStrides()
	aStrides := computeBroadcastStridesForShape(a.Shape(), outShape)
	bStrides := computeBroadcastStridesForShape(b.Shape(), outShape)

	for i := range dst {
		dst[i] = f(x[computeFlatIndex(i, outStrides, aStrides)], y[computeFlatIndex(i, outStrides, bStrides)])
	}
}

func broadcastBinaryFloat64(
	result, a, b *tensor.RawTensor,
	outShape tensor.Shape,
	f func(x, y float64) float64,
) {
	dst := result.AsFloat64()
	x := a.AsFloat64()
	y := b.AsFloat64()

	outStrides := outShape.ComputeStrides()
	aStrides := computeBroadcastStridesForShape(a.Shape(), outShape)
	bStrides := computeBroadcastStridesForShape(b.Shape(), outShape)

	for i := range dst {
		dst[i] = f(x[computeFlatIndex(i, outStrides, aStrides)], y[computeFlatIndex(i, outStrides, bStrides)])
	}
}
