package cpu

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// Embedding gathers rows of weight [V, D] by integer indices, producing a
// tensor of shape indices.Shape() + [D]. Out-of-range indices panic: an
// index past the table is always a caller bug (for the relative-position
// tables it would mean a broken distance clip).
func (cpu *CPUBackend) Embedding(weight, indices *tensor.RawTensor) *tensor.RawTensor {
	wShape := weight.Shape()
	if len(wShape) != 2 {
		panic(fmt.Sprintf("embedding: weight must be 2D [vocab, dim], got %v", wShape))
	}
	if weight.DType() != tensor.Float32 {
		panic(fmt.Sprintf("embedding: weight must be float32, got %s", weight.DType()))
	}
	if indices.DType() != tensor.Int32 {
		panic(fmt.Sprintf("embedding: indices must be int32, got %s", indices.DType()))
	}

	vocab, dim := wShape[0], wShape[1]
	idxShape := indices.Shape()

	outShape := make(tensor.Shape, 0, len(idxShape)+1)
	outShape = append(outShape, idxShape...)
	outShape = append(outShape, dim)

	result, err := tensor.NewRaw(outShape, tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("embedding: failed to create result tensor: %v", err))
	}

	wData := weight.AsFloat32()
	idxData := indices.AsInt32()
	dst := result.AsFloat32()

	for i, idx := range idxData {
		if idx < 0 || int(idx) >= vocab {
			panic(fmt.Sprintf("embedding: index %d out of range [0, %d)", idx, vocab))
		}
		copy(dst[i*dim:(i+1)*dim], wData[int(idx)*dim:(int(idx)+1)*dim])
	}

	return result
}
