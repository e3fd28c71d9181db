// Package tensor provides the shape and buffer-view types shared by the
// Fold convolution engine. All tensors handled by the engine are contiguous
// float32 buffers in row-major NHWC (batch, height, width, channel) layout.
package tensor

import "fmt"

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// NHWC builds the rank-4 shape used for activation tensors.
func NHWC(n, h, w, c int) Shape {
	return Shape{n, h, w, c}
}

// Batch returns the N dimension of an NHWC shape.
func (s Shape) Batch() int { return s[0] }

// Height returns the H dimension of an NHWC shape.
func (s Shape) Height() int { return s[1] }

// Width returns the W dimension of an NHWC shape.
func (s Shape) Width() int { return s[2] }

// Channels returns the C dimension of an NHWC shape.
func (s Shape) Channels() int { return s[3] }
