// Copyright 2026 Fold ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the shape and buffer-view types of the Fold
// inference engine.
//
// # Overview
//
// Fold operators work on caller-owned contiguous float32 buffers. This
// package gives those buffers their meaning:
//   - Shape: tensor dimensions with row-major semantics
//   - View: a buffer checked against the shape it is read under
//
// Activation tensors are rank-4 NHWC (batch, height, width, channel);
// convolution weights are [outChannels][kernelH][kernelW][inChannels].
//
// # Basic Usage
//
//	import "github.com/fold-ml/fold/tensor"
//
//	func main() {
//	    shape := tensor.NHWC(1, 224, 224, 3)
//	    buf := make([]float32, shape.NumElements())
//
//	    view, err := tensor.NewView(buf, shape)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    _ = view.At(0, 0, 0, 2) // first pixel, blue channel
//	}
//
// # Memory Management
//
// Views never copy or own memory. NewView asserts the buffer covers the
// shape once at construction, so downstream compute code indexes without
// bounds checks of its own. A buffer longer than the shape is accepted and
// the excess ignored.
package tensor
