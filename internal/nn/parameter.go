package nn

import (
	"github.com/strand-ml/strand/internal/tensor"
)

// Parameter wraps a learnable tensor together with its name. Names follow a
// dotted path convention ("linear.weight", "norm.bias") so that optimizer
// state and checkpoints can address individual parameters.
type Parameter[B tensor.Backend] struct {
	Name string
	Data *tensor.Tensor[float32, B]
}

// NewParameter creates a named parameter around the given tensor.
func NewParameter[B tensor.Backend](name string, data *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{Name: name, Data: data}
}

// Shape returns the shape of the underlying tensor.
func (p *Parameter[B]) Shape() tensor.Shape {
	return p.Data.Shape()
}

// NumElements returns the element count of the underlying tensor.
func (p *Parameter[B]) NumElements() int {
	return p.Data.NumElements()
}
