package cpu

import (
	"fmt"

	"github.com/strand-ml/strand/internal/parallel"
	"github.com/strand-ml/strand/internal/tensor"
)

// BatchMatMul performs batched matrix multiplication over the last two axes.
// Supports 3D and 4D tensors with matching batch dimensions.
//
// For 3D: [B, M, K] @ [B, K, N] -> [B, M, N]
// For 4D: [B, H, M, K] @ [B, H, K, N] -> [B, H, M, N]
//
// Each batch slab is an independent Gemm, so the slabs are fanned out across
// goroutines. This is where attention's per-head parallelism happens: a 4D
// score computation runs batch*heads independent multiplies.
func (cpu *CPUBackend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()
	ndim := len(aShape)

	if ndim < 3 {
		panic(fmt.Sprintf("batchmatmul: inputs must be at least 3D, got %dD", ndim))
	}
	if len(bShape) != ndim {
		panic(fmt.Sprintf("batchmatmul: dimension mismatch, got %dD and %dD", ndim, len(bShape)))
	}
	for i := 0; i < ndim-2; i++ {
		if aShape[i] != bShape[i] {
			panic(fmt.Sprintf("batchmatmul: batch dimension mismatch at dim %d: %d vs %d", i, aShape[i], bShape[i]))
		}
	}

	m := aShape[ndim-2]
	k := aShape[ndim-1]
	if bShape[ndim-2] != k {
		panic(fmt.Sprintf("batchmatmul: inner dimension mismatch: %d vs %d", k, bShape[ndim-2]))
	}
	n := bShape[ndim-1]

	batchSize := 1
	for i := 0; i < ndim-2; i++ {
		batchSize *= aShape[i]
	}

	outShape := make(tensor.Shape, ndim)
	copy(outShape, aShape[:ndim-2])
	outShape[ndim-2] = m
	outShape[ndim-1] = n

	result, err := tensor.NewRaw(outShape, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("batchmatmul: failed to create result tensor: %v", err))
	}

	switch a.DType() {
	case tensor.Float32:
		aData, bData, cData := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
		parallel.For(batchSize, func(batch int) {
			aOff := batch * m * k
			bOff := batch * k * n
			cOff := batch * m * n
			gemmFloat32(cData[cOff:cOff+m*n], aData[aOff:aOff+m*k], bData[bOff:bOff+k*n], m, k, n)
		}, cpu.parallel)
	case tensor.Float64:
		aData, bData, cData := a.AsFloat64(), b.AsFloat64(), result.AsFloat64()
		parallel.For(batchSize, func(batch int) {
			aOff := batch * m * k
			bOff := batch * k * n
			cOff := batch * m * n
			gemmFloat64(cData[cOff:cOff+m*n], aData[aOff:aOff+m*k], bData[bOff:bOff+k*n], m, k, n)
		}, cpu.parallel)
	default:
		panic(fmt.Sprintf("batchmatmul: unsupported dtype %s", a.DType()))
	}

	return result
}
