package cpu

import (
	"fmt"
	"math"

	"github.com/strand-ml/strand/internal/tensor"
)

// Softmax computes softmax along the specified dimension:
// Softmax(x_i) = exp(x_i - max) / sum_j exp(x_j - max).
// The max subtraction keeps the exponentials in range; a row whose entries
// are all the large-negative mask fill still normalizes to a finite (near
// uniform) distribution instead of NaN.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("softmax: dimension %d out of range for tensor of rank %d", dim, ndim))
	}

	result, err := tensor.NewRaw(shape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("softmax: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		softmaxFloat32(result, x, dim)
	case tensor.Float64:
		softmaxFloat64(result, x, dim)
	default:
		panic(fmt.Sprintf("softmax: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}

	return result
}

func softmaxFloat32(result, x *tensor.RawTensor, dim int) {
	src := x.AsFloat32()
	dst := result.AsFloat32()
	shape := x.Shape()
	strides := shape.ComputeStrides()

	dimSize := shape[dim]
	dimStride := strides[dim]
	rowSizes, rowStrides, numRows := rowLayout(shape, strides, dim)

	for row := 0; row < numRows; row++ {
		baseIdx := rowMajorBase(row, rowSizes, rowStrides)

		// Find max for numerical stability.
		maxVal := float32(math.Inf(-1))
		for i := 0; i < dimSize; i++ {
			if v := src[baseIdx+i*dimStride]; v > maxVal {
				maxVal = v
			}
		}

		var sum float32
		for i := 0; i < dimSize; i++ {
			idx := baseIdx + i*dimStride
			expVal := float32(math.Exp(float64(src[idx] - maxVal)))
			dst[idx] = expVal
			sum += expVal
		}

		for i := 0; i < dimSize; i++ {
			dst[baseIdx+i*dimStride] /= sum
		}
	}
}

func softmaxFloat64(result, x *tensor.RawTensor, dim int) {
	src := x.AsFloat64()
	dst := result.AsFloat64()
	shape := x.Shape()
	strides := shape.ComputeStrides()

	dimSize := shape[dim]
	dimStride := strides[dim]
	rowSizes, rowStrides, numRows := rowLayout(shape, strides, dim)

	for row := 0; row < numRows; row++ {
		baseIdx := rowMajorBase(row, rowSizes, rowStrides)

		maxVal := math.Inf(-1)
		for i := 0; i < dimSize; i++ {
			if v := src[baseIdx+i*dimStride]; v > maxVal {
				maxVal = v
			}
		}

		var sum float64
		for i := 0; i < dimSize; i++ {
			idx := baseIdx + i*dimStride
			expVal := math.Exp(src[idx] - maxVal)
			dst[idx] = expVal
			sum += expVal
		}

		for i := 0; i < dimSize; i++ {
			dst[baseIdx+i*dimStride] /= sum
		}
	}
}
