package nn

import (
	"fmt"

	"github.com/strand-ml/strand/internal/tensor"
)

// Contract violations in this package are programming errors, not transient
// conditions: they are detected eagerly at the boundary of the offending
// operation and surfaced by panicking with one of the typed errors below.
// Callers must fix the call site, never retry.

// ShapeError reports incompatible tensor shapes: a sublayer whose output
// shape differs from its input, query/key/value dimensions incompatible with
// the configured head count, or mismatched sequence lengths in the
// relative-position variant.
type ShapeError struct {
	Op  string
	Msg string
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

// shapeErrorf panics with a ShapeError.
func shapeErrorf(op, format string, args ...any) {
	panic(&ShapeError{Op: op, Msg: fmt.Sprintf(format, args...)})
}

// ConfigError reports an invalid construction-time configuration: a model
// dimension not divisible by the head count, or a dimension/probability
// outside its valid range.
type ConfigError struct {
	Module string
	Msg    string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Module, e.Msg)
}

// configErrorf panics with a ConfigError.
func configErrorf(module, format string, args ...any) {
	panic(&ConfigError{Module: module, Msg: fmt.Sprintf(format, args...)})
}

// requireSameShape panics with a ShapeError unless got matches want.
func requireSameShape(op string, want, got tensor.Shape) {
	if !want.Equal(got) {
		shapeErrorf(op, "output shape %v does not match input shape %v", got, want)
	}
}
