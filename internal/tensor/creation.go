package tensor

import (
	"math"
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), b.Device())
	if err != nil {
		panic(err) // shape validation should prevent this
	}
	// Data is already zero-initialized by make().
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T, B](shape, oneValue[T](), b)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full[float32](Shape{3, 3}, 3.14, backend)
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn creates a tensor with values drawn from a standard normal
// distribution using the supplied random source. Randomness is always
// threaded explicitly so tests can seed it; there is no ambient global
// stream. Uses the Box-Muller transform. Only float types are supported.
//
// Example:
//
//	rng := rand.New(rand.NewSource(42))
//	t := tensor.Randn[float32](Shape{100, 100}, rng, backend)
func Randn[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()

	var dummy T
	switch any(dummy).(type) {
	case float32:
		dataF32 := any(data).([]float32)
		for i := 0; i < len(dataF32); i += 2 {
			z0, z1 := boxMuller(rng)
			dataF32[i] = float32(z0)
			if i+1 < len(dataF32) {
				dataF32[i+1] = float32(z1)
			}
		}
	case float64:
		dataF64 := any(data).([]float64)
		for i := 0; i < len(dataF64); i += 2 {
			z0, z1 := boxMuller(rng)
			dataF64[i] = z0
			if i+1 < len(dataF64) {
				dataF64[i+1] = z1
			}
		}
	default:
		panic("Randn only supports float32 and float64 types")
	}
	return t
}

// Rand creates a tensor with values uniformly distributed in [0, 1),
// drawn from the supplied random source. Only float types are supported.
func Rand[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()

	var dummy T
	switch any(dummy).(type) {
	case float32:
		dataF32 := any(data).([]float32)
		for i := range dataF32 {
			dataF32[i] = rng.Float32()
		}
	case float64:
		dataF64 := any(data).([]float64)
		for i := range dataF64 {
			dataF64[i] = rng.Float64()
		}
	default:
		panic("Rand only supports float32 and float64 types")
	}
	return t
}

// Arange creates a 1D int32 tensor with values [start, end).
//
// Example:
//
//	t := tensor.Arange(0, 10, backend) // [0, 1, ..., 9]
func Arange[B Backend](start, end int32, b B) *Tensor[int32, B] {
	if end <= start {
		panic("arange: end must be greater than start")
	}
	t := Zeros[int32, B](Shape{int(end - start)}, b)
	data := t.Data()
	for i := range data {
		data[i] = start + int32(i)
	}
	return t
}

func boxMuller(rng *rand.Rand) (float64, float64) {
	u1 := rng.Float64()
	u2 := rng.Float64()
	r := math.Sqrt(-2.0 * math.Log(u1))
	return r * math.Cos(2.0*math.Pi*u2), r * math.Sin(2.0*math.Pi*u2)
}

func oneValue[T DType]() T {
	var dummy T
	var one any
	switch any(dummy).(type) {
	case float32:
		one = float32(1)
	case float64:
		one = float64(1)
	case int32:
		one = int32(1)
	case bool:
		one = true
	}
	return one.(T)
}
