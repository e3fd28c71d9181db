package tensor

import "fmt"

// View pairs a raw float32 buffer with the shape it is interpreted under.
// The engine never owns memory: callers allocate buffers and hand them in as
// views, and the constructor asserts the buffer covers the shape so that
// undersized buffers are caught at the boundary instead of deep inside a
// compute kernel.
type View struct {
	data  []float32
	shape Shape
}

// NewView wraps data under shape. It fails if the shape is invalid or the
// buffer holds fewer elements than the shape requires. A longer buffer is
// accepted; only the leading shape.NumElements() values belong to the view.
func NewView(data []float32, shape Shape) (View, error) {
	if err := shape.Validate(); err != nil {
		return View{}, fmt.Errorf("invalid view shape: %w", err)
	}
	if need := shape.NumElements(); len(data) < need {
		return View{}, fmt.Errorf("buffer too small for shape %v: have %d elements, need %d",
			shape, len(data), need)
	}
	return View{data: data, shape: shape.Clone()}, nil
}

// MustView is NewView for statically known-good shapes; it panics on error.
func MustView(data []float32, shape Shape) View {
	v, err := NewView(data, shape)
	if err != nil {
		panic(err)
	}
	return v
}

// Data returns the underlying buffer, trimmed to the view's extent.
func (v View) Data() []float32 {
	return v.data[:v.shape.NumElements()]
}

// Shape returns the view's shape.
func (v View) Shape() Shape {
	return v.shape
}

// NumElements returns the number of elements covered by the view.
func (v View) NumElements() int {
	return v.shape.NumElements()
}

// At returns the element at the given NHWC coordinate. Intended for tests
// and debugging; compute kernels index the raw buffer directly.
func (v View) At(n, h, w, c int) float32 {
	s := v.shape
	return v.data[((n*s[1]+h)*s[2]+w)*s[3]+c]
}
