// Copyright 2026 The Strand Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor API of the Strand attention
// library.
//
// The package re-exports the core types for type-safe tensor math:
//   - Tensor[T, B]: generic tensor bound to a compute backend
//   - RawTensor: untyped storage for advanced use cases
//   - Backend: interface implemented by compute backends
//   - Shape, DataType, Device: core type definitions
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	z := x.Add(y)
package tensor

import (
	"math/rand"

	"github.com/strand-ml/strand/internal/tensor"
)

// DType is a constraint for supported tensor element types.
type DType = tensor.DType

// DataType identifies the runtime element type of a RawTensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
	Bool    DataType = tensor.Bool
)

// Device identifies where tensor data lives.
type Device = tensor.Device

// CPU is the only device Strand currently targets.
const CPU Device = tensor.CPU

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} is a 3D tensor with dimensions 2x3x4.
type Shape = tensor.Shape

// Backend is the interface compute backends implement.
type Backend = tensor.Backend

// RawTensor is the untyped storage underlying a Tensor.
type RawTensor = tensor.RawTensor

// Tensor is a generic tensor bound to a compute backend.
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// BroadcastShapes computes the NumPy-style broadcast of two shapes.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}

// New wraps a RawTensor in a typed Tensor.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return tensor.New[T](raw, b)
}

// FromSlice creates a tensor from a Go slice. The slice is copied.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice(data, shape, b)
}

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T](shape, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Ones[T](shape, b)
}

// Full creates a tensor filled with the given value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full(shape, value, b)
}

// Randn creates a tensor of standard normal samples drawn from rng.
func Randn[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	return tensor.Randn[T](shape, rng, b)
}

// Rand creates a tensor of uniform [0, 1) samples drawn from rng.
func Rand[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	return tensor.Rand[T](shape, rng, b)
}

// Arange creates a 1D int32 tensor counting from start up to end (exclusive).
func Arange[B Backend](start, end int32, b B) *Tensor[int32, B] {
	return tensor.Arange(start, end, b)
}

// Embedding gathers rows of weight by the given indices.
func Embedding[B Backend](weight *Tensor[float32, B], indices *Tensor[int32, B]) *Tensor[float32, B] {
	return tensor.Embedding(weight, indices)
}
