package cpu

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// Reshape returns a tensor with the same data under a new shape.
// This is a zero-copy view: the result aliases the input's buffer. Core
// modules never mutate their inputs, so sharing is safe.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("reshape: invalid shape: %v", err))
	}
	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("reshape: incompatible shapes: %v -> %v (different number of elements)",
			t.Shape(), newShape))
	}
	return t.WithShape(newShape)
}

// Transpose permutes the tensor's dimensions, materializing the result.
// With no axes given, all dimensions are reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: axes length %d != ndim %d", len(axes), ndim))
	}
	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("transpose: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("transpose: duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	newShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		newShape[i] = shape[ax]
	}

	result, err := tensor.NewRaw(newShape, t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("transpose: %v", err))
	}

	srcStrides := shape.ComputeStrides()
	dstStrides := newShape.ComputeStrides()

	// Gather strides: position i of the output walks axis axes[i] of the input.
	gatherStrides := make([]int, ndim)
	for i, ax := range axes {
		gatherStrides[i] = srcStrides[ax]
	}

	switch t.DType() {
	case tensor.Float32:
		src, dst := t.AsFloat32(), result.AsFloat32()
		for i := range dst {
			dst[i] = src[computeFlatIndex(i, dstStrides, gatherStrides)]
		}
	case tensor.Float64:
		src, dst := t.AsFloat64(), result.AsFloat64()
		for i := range dst {
			dst[i] = src[computeFlatIndex(i, dstStrides, gatherStrides)]
		}
	case tensor.Int32:
		src, dst := t.AsInt32(), result.AsInt32()
		for i := range dst {
			dst[i] = src[computeFlatIndex(i, dstStrides, gatherStrides)]
		}
	default:
		panic(fmt.Sprintf("transpose: unsupported dtype %s", t.DType()))
	}

	return result
}

// Unsqueeze adds a dimension of size 1 at the given position.
// Supports negative dim indexing. Zero-copy view.
func (cpu *CPUBackend) Unsqueeze(t *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + 1 + dim
	}
	if dim < 0 || dim > ndim {
		panic(fmt.Sprintf("unsqueeze: dimension %d out of range for %dD tensor", dim, ndim))
	}

	newShape := make(tensor.Shape, 0, ndim+1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, 1)
	newShape = append(newShape, shape[dim:]...)

	return t.WithShape(newShape)
}
