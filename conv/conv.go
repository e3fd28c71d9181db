// Copyright 2026 Fold ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package conv

import (
	internalconv "github.com/fold-ml/fold/internal/conv"
	"github.com/fold-ml/fold/internal/parallel"
)

// Type aliases for public API

// Params is the immutable per-layer convolution configuration.
type Params = internalconv.Params

// Activation selects the clamp fused into the convolution epilogue.
type Activation = internalconv.Activation

// Activation constants.
const (
	ActNone  Activation = internalconv.ActNone
	ActReLU  Activation = internalconv.ActReLU
	ActReLU6 Activation = internalconv.ActReLU6
)

// Algorithm identifies the compute strategy a convolution compiles to.
type Algorithm = internalconv.Algorithm

// Algorithm constants.
const (
	AlgoDirect   Algorithm = internalconv.AlgoDirect
	AlgoOneByOne Algorithm = internalconv.AlgoOneByOne
	AlgoWinograd Algorithm = internalconv.AlgoWinograd
	AlgoConv3x3  Algorithm = internalconv.AlgoConv3x3
)

// CompiledConv is the immutable execution plan produced once at model load.
type CompiledConv = internalconv.CompiledConv

// Operator binds a compiled convolution to a parallel configuration and
// owns the scratch for its task count.
type Operator = internalconv.Operator

// Kernel is the GEMM micro-kernel strategy shared by all compute paths.
type Kernel = internalconv.Kernel

// TileShape describes the geometry a kernel variant is built around.
type TileShape = internalconv.TileShape

// WriteMode selects the output layout a GEMM call produces.
type WriteMode = internalconv.WriteMode

// WriteMode constants.
const (
	WriteChannels WriteMode = internalconv.WriteChannels
	WritePacked   WriteMode = internalconv.WritePacked
)

// Scratch types, one per strategy.
type (
	DirectScratch   = internalconv.DirectScratch
	OneByOneScratch = internalconv.OneByOneScratch
	WinogradScratch = internalconv.WinogradScratch
)

// ParallelConfig configures task parallelism for an Operator.
type ParallelConfig = parallel.Config

// Sentinel errors.
var (
	// ErrScratch reports a scratch buffer smaller than its shape-derived
	// requirement.
	ErrScratch = internalconv.ErrScratch
	// ErrShape reports a buffer whose length disagrees with the compiled
	// shapes.
	ErrShape = internalconv.ErrShape
)

// DefaultParallelConfig returns a configuration using every CPU.
func DefaultParallelConfig() ParallelConfig {
	return parallel.DefaultConfig()
}

// Compile validates p, selects the strategy and kernel variant for the
// shape and running CPU, and precomputes the packed weights.
//
// Example:
//
//	compiled, err := conv.Compile(p, weights, bias)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	op, _ := conv.NewOperator(compiled, conv.DefaultParallelConfig())
func Compile(p Params, weight, bias []float32) (*CompiledConv, error) {
	return internalconv.Compile(p, weight, bias)
}

// CompileAlgorithm compiles with a forced strategy, and kernel variant when
// k is non-nil, for callers pinning a specific path.
func CompileAlgorithm(p Params, weight, bias []float32, algo Algorithm, k Kernel) (*CompiledConv, error) {
	return internalconv.CompileAlgorithm(p, weight, bias, algo, k)
}

// NewOperator builds the scratch for c under cfg.
func NewOperator(c *CompiledConv, cfg ParallelConfig) (*Operator, error) {
	return internalconv.NewOperator(c, cfg)
}

// PickKernel selects the GEMM micro-kernel variant for the running CPU.
func PickKernel() Kernel {
	return internalconv.PickKernel()
}

// Partition splits total work units across tasks: equal chunks, with the
// final task absorbing the remainder.
func Partition(total, tasks, id int) (start, end int) {
	return internalconv.Partition(total, tasks, id)
}

// Scratch construction for manual task scheduling

// DirectScratchLen returns the scratch requirement of the direct strategy.
func DirectScratchLen(c *CompiledConv, tasks int) int {
	return internalconv.DirectScratchLen(c, tasks)
}

// NewDirectScratch sizes scratch for the direct strategy across tasks. A
// nil buf allocates; a caller buffer shorter than DirectScratchLen fails
// with ErrScratch.
func NewDirectScratch(c *CompiledConv, tasks int, buf []float32) (*DirectScratch, error) {
	return internalconv.NewDirectScratch(c, tasks, buf)
}

// OneByOneScratchLen returns the scratch requirement of the 1x1 strategy.
func OneByOneScratchLen(c *CompiledConv, tasks int) int {
	return internalconv.OneByOneScratchLen(c, tasks)
}

// NewOneByOneScratch sizes scratch for the 1x1 strategy across tasks.
func NewOneByOneScratch(c *CompiledConv, tasks int, buf []float32) (*OneByOneScratch, error) {
	return internalconv.NewOneByOneScratch(c, tasks, buf)
}

// WinogradScratchLen returns the scratch requirement of the Winograd
// strategies.
func WinogradScratchLen(c *CompiledConv, tasks int) int {
	return internalconv.WinogradScratchLen(c, tasks)
}

// NewWinogradScratch sizes scratch for the Winograd strategies across
// tasks.
func NewWinogradScratch(c *CompiledConv, tasks int, buf []float32) (*WinogradScratch, error) {
	return internalconv.NewWinogradScratch(c, tasks, buf)
}

// StrassenScratchLen returns the exact scratch requirement, in float32
// elements, of a row x deep by deep x col multiply on the 1x1 path. It is
// 0 whenever the multiply stays on the plain tiled path.
func StrassenScratchLen(row, col, deep int) int {
	return internalconv.StrassenScratchLen(row, col, deep)
}

// Per-task entry points for manual task scheduling

// RunDirect executes the im2col+GEMM strategy for one task.
func RunDirect(c *CompiledConv, s *DirectScratch, input, output []float32, task int) {
	internalconv.RunDirect(c, s, input, output, task)
}

// RunOneByOne executes the 1x1 matrix-multiply strategy for one task.
func RunOneByOne(c *CompiledConv, s *OneByOneScratch, input, output []float32, task int) error {
	return internalconv.RunOneByOne(c, s, input, output, task)
}

// PackWinogradInput runs the Winograd pack phase for one task. Every task
// must finish packing before any task computes.
func PackWinogradInput(c *CompiledConv, s *WinogradScratch, input []float32, task int) {
	internalconv.PackWinogradInput(c, s, input, task)
}

// RunWinograd runs the Winograd compute phase for one task.
func RunWinograd(c *CompiledConv, s *WinogradScratch, task int) {
	internalconv.RunWinograd(c, s, task)
}

// RunConv3x3 runs the compute phase of the fixed 3x3 specialization
// (F(4x4,3x3)) for one task.
func RunConv3x3(c *CompiledConv, s *WinogradScratch, task int) {
	internalconv.RunConv3x3(c, s, task)
}

// UnpackWinogradOutput runs the Winograd unpack phase for one task. Every
// task must finish computing before any task unpacks.
func UnpackWinogradOutput(c *CompiledConv, s *WinogradScratch, output []float32, task int) {
	internalconv.UnpackWinogradOutput(c, s, output, task)
}

// Reference computes the convolution by its direct definition in float64.
// It is the numeric ground truth for tests and far too slow for inference.
func Reference(p Params, input, weight, bias []float32) []float32 {
	return internalconv.Reference(p, input, weight, bias)
}
