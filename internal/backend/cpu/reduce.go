package cpu

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// SumDim sums along the given dimension. With keepDim the reduced dimension
// stays as size 1 (for broadcasting back against the input); otherwise it is
// removed from the shape.
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("sumDim", x, dim, keepDim, false)
}

// MeanDim averages along the given dimension.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("meanDim", x, dim, keepDim, true)
}

func (cpu *CPUBackend) reduceDim(op string, x *tensor.RawTensor, dim int, keepDim, mean bool) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("%s: dimension %d out of range for tensor of rank %d", op, dim, ndim))
	}

	outShape := make(tensor.Shape, 0, ndim)
	for i, d := range shape {
		if i == dim {
			if keepDim {
				outShape = append(outShape, 1)
			}
			continue
		}
		outShape = append(outShape, d)
	}
	if len(outShape) == 0 {
		outShape = tensor.Shape{1}
	}

	result, err := tensor.NewRaw(outShape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}

	strides := shape.ComputeStrides()
	dimSize := shape[dim]
	dimStride := strides[dim]
	rowSizes, rowStrides, numRows := rowLayout(shape, strides, dim)

	switch x.DType() {
	case tensor.Float32:
		src, dst := x.AsFloat32(), result.AsFloat32()
		for row := 0; row < numRows; row++ {
			baseIdx := rowMajorBase(row, rowSizes, rowStrides)
			var sum float32
			for i := 0; i < dimSize; i++ {
				sum += src[baseIdx+i*dimStride]
			}
			if mean {
				sum /= float32(dimSize)
			}
			dst[row] = sum
		}
	case tensor.Float64:
		src, dst := x.AsFloat64(), result.AsFloat64()
		for row := 0; row < numRows; row++ {
			baseIdx := rowMajorBase(row, rowSizes, rowStrides)
			var sum float64
			for i := 0; i < dimSize; i++ {
				sum += src[baseIdx+i*dimStride]
			}
			if mean {
				sum /= float64(dimSize)
			}
			dst[row] = sum
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, x.DType()))
	}

	return result
}

// rowLayout extracts the sizes and strides of every dimension except dim,
// preserving order, plus the number of rows they span. Enumerating rows in
// row-major order over these sizes matches the memory order of the reduced
// output tensor.
func rowLayout(shape tensor.Shape, strides []int, dim int) (sizes, rowStrides []int, numRows int) {
	numRows = 1
	for i := range shape {
		if i == dim {
			continue
		}
		sizes = append(sizes, shape[i])
		rowStrides = append(rowStrides, strides[i])
		numRows *= shape[i]
	}
	return sizes, rowStrides, numRows
}

// rowMajorBase maps a row counter (row-major over sizes) to the flat base
// index given the corresponding source strides.
func rowMajorBase(row int, sizes, strides []int) int {
	baseIdx := 0
	for i := len(sizes) - 1; i >= 0; i-- {
		coord := row % sizes[i]
		row /= sizes[i]
		baseIdx += coord * strides[i]
	}
	return baseIdx
}
