package local

import "fmt"

// Tensor is a dense row-major buffer exchanged with a Session. Exactly one of
// Floats or Ints holds data.
type Tensor struct {
	Shape  []int64
	Floats []float32
	Ints   []int64
}

// IntTensor builds a [1, len(ids)] int64 tensor.
func IntTensor(ids []int64) Tensor {
	return Tensor{Shape: []int64{1, int64(len(ids))}, Ints: ids}
}

// Len is the number of elements implied by Shape.
func (t Tensor) Len() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return int(n)
}

func (t Tensor) validate() error {
	n := t.Len()
	switch {
	case t.Floats != nil && len(t.Floats) != n:
		return fmt.Errorf("tensor shape %v holds %d elements, have %d floats", t.Shape, n, len(t.Floats))
	case t.Ints != nil && len(t.Ints) != n:
		return fmt.Errorf("tensor shape %v holds %d elements, have %d ints", t.Shape, n, len(t.Ints))
	case t.Floats == nil && t.Ints == nil && n != 0:
		return fmt.Errorf("tensor shape %v has no data", t.Shape)
	}
	return nil
}
