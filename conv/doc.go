// Copyright 2026 Fold ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package conv provides the CPU convolution execution engine of the Fold
// inference runtime.
//
// # Overview
//
// This package compiles 2D float32 convolutions into per-shape execution
// plans and runs them:
//   - Direct im2col + GEMM for arbitrary stride, padding, dilation and groups
//   - A single matrix multiply, with Strassen recursion, for 1x1 kernels
//   - Winograd F(2x2,3x3) and F(4x4,3x3) transforms for 3x3 unit-stride kernels
//
// Compile selects the strategy and the GEMM micro-kernel variant for the
// running CPU once per layer, packs the weights into the layouts those
// strategies consume, and returns an immutable plan. Inference then runs
// against caller-owned NHWC buffers with no per-call allocation beyond the
// plan's scratch.
//
// # Basic Usage
//
//	import "github.com/fold-ml/fold/conv"
//
//	func main() {
//	    p := conv.Params{
//	        Batch: 1, InputH: 56, InputW: 56, InputChannels: 64,
//	        OutputH: 56, OutputW: 56, OutputChannels: 64,
//	        KernelH: 3, KernelW: 3, StrideH: 1, StrideW: 1,
//	        PadTop: 1, PadBottom: 1, PadLeft: 1, PadRight: 1,
//	        DilationH: 1, DilationW: 1, Groups: 1,
//	        Act: conv.ActReLU,
//	    }
//	    compiled, err := conv.Compile(p, weights, bias)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    op, err := conv.NewOperator(compiled, conv.DefaultParallelConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    for _, input := range batches {
//	        if err := op.Run(input, output); err != nil {
//	            log.Fatal(err)
//	        }
//	    }
//	}
//
// # Manual Task Scheduling
//
// Executors with their own worker pools can skip Operator and drive the
// per-task entry points directly: build a scratch for a task count, run
// each task id on any worker, and keep the phase order for the Winograd
// strategies (pack, compute, unpack, with a barrier between phases). The
// scratch sizing formulas (DirectScratchLen, OneByOneScratchLen,
// WinogradScratchLen, StrassenScratchLen) are part of the public contract,
// so buffers can be allocated ahead of time and reused across layers.
//
// # Thread Safety
//
// A compiled plan is immutable and shared freely. Scratch is not: one
// scratch (or Operator) per concurrent stream, with each task id used by
// one goroutine at a time.
package conv
