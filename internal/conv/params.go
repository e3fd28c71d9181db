// Package conv implements the CPU convolution execution engine: packed
// memory layouts, a pluggable GEMM micro-kernel, and three compute
// strategies (direct im2col, 1x1 Strassen, Winograd) selected per shape.
package conv

import (
	"fmt"

	"github.com/fold-ml/fold/internal/tensor"
)

// Activation selects the clamp fused into the convolution epilogue.
// Exactly one mode applies per convolution; the enum makes conflicting
// relu/relu6 settings unrepresentable.
type Activation int

const (
	ActNone Activation = iota
	ActReLU
	ActReLU6
)

func (a Activation) String() string {
	switch a {
	case ActNone:
		return "none"
	case ActReLU:
		return "relu"
	case ActReLU6:
		return "relu6"
	default:
		return fmt.Sprintf("activation(%d)", int(a))
	}
}

// apply clamps v according to the activation mode.
func (a Activation) apply(v float32) float32 {
	switch a {
	case ActReLU:
		if v < 0 {
			return 0
		}
	case ActReLU6:
		if v < 0 {
			return 0
		}
		if v > 6 {
			return 6
		}
	}
	return v
}

// Params is the immutable per-layer convolution configuration. The model
// loader fills it once; the engine only reads it. Tensors are NHWC, weights
// are [outChannels][kernelH][kernelW][inChannels/groups].
type Params struct {
	Batch int

	InputH, InputW int
	InputChannels  int

	OutputH, OutputW int
	OutputChannels   int

	KernelH, KernelW int
	StrideH, StrideW int

	PadTop, PadBottom, PadLeft, PadRight int

	DilationH, DilationW int

	Groups int

	Act Activation
}

// OutputSize returns the spatial output extent implied by the input extent,
// kernel, stride, padding and dilation.
func (p Params) OutputSize() (h, w int) {
	kh := (p.KernelH-1)*p.DilationH + 1
	kw := (p.KernelW-1)*p.DilationW + 1
	h = (p.InputH+p.PadTop+p.PadBottom-kh)/p.StrideH + 1
	w = (p.InputW+p.PadLeft+p.PadRight-kw)/p.StrideW + 1
	return h, w
}

// Validate checks the configuration once, at compile time. Per-call hot
// paths assume a validated Params and perform no checks of their own.
func (p Params) Validate() error {
	pos := []struct {
		name string
		v    int
	}{
		{"batch", p.Batch},
		{"input height", p.InputH},
		{"input width", p.InputW},
		{"input channels", p.InputChannels},
		{"output height", p.OutputH},
		{"output width", p.OutputW},
		{"output channels", p.OutputChannels},
		{"kernel height", p.KernelH},
		{"kernel width", p.KernelW},
		{"stride height", p.StrideH},
		{"stride width", p.StrideW},
		{"dilation height", p.DilationH},
		{"dilation width", p.DilationW},
		{"groups", p.Groups},
	}
	for _, f := range pos {
		if f.v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", f.name, f.v)
		}
	}
	if p.PadTop < 0 || p.PadBottom < 0 || p.PadLeft < 0 || p.PadRight < 0 {
		return fmt.Errorf("padding must be non-negative, got [%d %d %d %d]",
			p.PadTop, p.PadBottom, p.PadLeft, p.PadRight)
	}
	if p.Act < ActNone || p.Act > ActReLU6 {
		return fmt.Errorf("unknown activation %d", int(p.Act))
	}
	if p.InputChannels%p.Groups != 0 {
		return fmt.Errorf("input channels %d not divisible by groups %d", p.InputChannels, p.Groups)
	}
	if p.OutputChannels%p.Groups != 0 {
		return fmt.Errorf("output channels %d not divisible by groups %d", p.OutputChannels, p.Groups)
	}
	kh := (p.KernelH-1)*p.DilationH + 1
	kw := (p.KernelW-1)*p.DilationW + 1
	if kh > p.InputH+p.PadTop+p.PadBottom || kw > p.InputW+p.PadLeft+p.PadRight {
		return fmt.Errorf("kernel extent %dx%d exceeds padded input %dx%d",
			kh, kw, p.InputH+p.PadTop+p.PadBottom, p.InputW+p.PadLeft+p.PadRight)
	}
	if oh, ow := p.OutputSize(); oh != p.OutputH || ow != p.OutputW {
		return fmt.Errorf("output size %dx%d inconsistent with configuration, want %dx%d",
			p.OutputH, p.OutputW, oh, ow)
	}
	return nil
}

// GroupInChannels returns the input channels seen by one group.
func (p Params) GroupInChannels() int { return p.InputChannels / p.Groups }

// GroupOutChannels returns the output channels produced by one group.
func (p Params) GroupOutChannels() int { return p.OutputChannels / p.Groups }

// InputShape returns the NHWC shape of the input tensor.
func (p Params) InputShape() tensor.Shape {
	return tensor.NHWC(p.Batch, p.InputH, p.InputW, p.InputChannels)
}

// OutputShape returns the NHWC shape of the output tensor.
func (p Params) OutputShape() tensor.Shape {
	return tensor.NHWC(p.Batch, p.OutputH, p.OutputW, p.OutputChannels)
}

// WeightCount returns the element count of the weight tensor in
// [outChannels][kernelH][kernelW][inChannels/groups] layout.
func (p Params) WeightCount() int {
	return p.OutputChannels * p.KernelH * p.KernelW * p.GroupInChannels()
}
