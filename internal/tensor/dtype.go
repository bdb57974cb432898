// Package tensor provides the core tensor types for the Strand attention library.
package tensor

// DType is a constraint for supported tensor element types.
// The attention core works in float32; float64 exists for numeric cross-checks,
// int32 for embedding indices and bool for mask construction.
type DType interface {
	~float32 | ~float64 | ~int32 | ~bool
}

// DataType carries runtime type information for a RawTensor.
type DataType int

// Supported data types.
const (
	Float32 DataType = iota
	Float64
	Int32
	Bool
)

// Size returns the byte size of one element of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64:
		return 8
	case Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// inferDataType maps a generic element type to its runtime DataType.
func inferDataType[T DType](dummy T) DataType {
	switch any(dummy).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case int32:
		return Int32
	case bool:
		return Bool
	default:
		panic("unsupported type")
	}
}
