// Copyright 2026 Fold ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/fold-ml/fold/internal/tensor"
)

// Type aliases for public API

// Shape represents the dimensions of a tensor.
// Example: Shape{1, 56, 56, 64} is an NHWC activation tensor.
type Shape = tensor.Shape

// View pairs a raw float32 buffer with the shape it is interpreted under.
type View = tensor.View

// NHWC builds the rank-4 shape used for activation tensors.
//
// Example:
//
//	shape := tensor.NHWC(1, 224, 224, 3)
func NHWC(n, h, w, c int) Shape {
	return tensor.NHWC(n, h, w, c)
}

// NewView wraps data under shape, failing if the shape is invalid or the
// buffer is too small for it.
//
// Example:
//
//	view, err := tensor.NewView(buf, tensor.NHWC(1, 8, 8, 16))
func NewView(data []float32, shape Shape) (View, error) {
	return tensor.NewView(data, shape)
}

// MustView is NewView for statically known-good shapes; it panics on error.
func MustView(data []float32, shape Shape) View {
	return tensor.MustView(data, shape)
}
