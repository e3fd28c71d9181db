package conv

import (
	"errors"
	"fmt"
)

// ErrShape reports a buffer whose length disagrees with the shape-derived
// requirement at a compile or run boundary.
var ErrShape = errors.New("shape mismatch")

// Algorithm identifies the compute strategy a convolution compiles to.
type Algorithm int

const (
	// AlgoDirect is im2col + GEMM, correct for every supported shape.
	AlgoDirect Algorithm = iota
	// AlgoOneByOne treats a 1x1 stride-1 unpadded convolution as a single
	// matrix multiply, with Strassen recursion on large shapes.
	AlgoOneByOne
	// AlgoWinograd is the F(2x2,3x3) transform path.
	AlgoWinograd
	// AlgoConv3x3 is the F(4x4,3x3) fixed 3x3 specialization.
	AlgoConv3x3
)

func (a Algorithm) String() string {
	switch a {
	case AlgoDirect:
		return "direct"
	case AlgoOneByOne:
		return "1x1"
	case AlgoWinograd:
		return "winograd"
	case AlgoConv3x3:
		return "conv3x3"
	default:
		return fmt.Sprintf("algorithm(%d)", int(a))
	}
}

// CompiledConv is the immutable per-layer artifact produced once at model
// load: validated parameters, the selected strategy and kernel variant, and
// the packed or transformed weights and bias. Compile copies what it needs,
// so the caller's weight and bias buffers are not referenced afterwards.
// A CompiledConv carries no mutable state and is shared read-only across
// all inference tasks.
type CompiledConv struct {
	p      Params
	algo   Algorithm
	kernel Kernel
	tile   TileShape

	icAligned int // per-group input channels rounded up to tile.Block
	ocPadded  int // per-group output channels rounded up to tile.Panel
	depth     int // kernelH*kernelW*icAligned, the packed reduction extent

	bias []float32

	// direct: micro-panel packed weights, one block per group.
	packedWeight []float32
	groupStride  int

	// 1x1: weights transposed to [inChannels][outChannels].
	weightT []float32

	// winograd: unit transforms, per-point packed transformed weights,
	// and the output tiling.
	trans          *transform
	transWeight    []float32
	pointStride    int
	tilesH, tilesW int
}

// Algorithm returns the strategy this convolution compiled to.
func (c *CompiledConv) Algorithm() Algorithm { return c.algo }

// Params returns the validated configuration.
func (c *CompiledConv) Params() Params { return c.p }

// Tile returns the selected kernel variant's tile geometry.
func (c *CompiledConv) Tile() TileShape { return c.tile }

// Compile validates the configuration, selects the strategy and kernel
// variant for the shape and running CPU, and precomputes the packed or
// transformed weights. It runs once per layer at model load; inference
// calls only read the result.
func Compile(p Params, weight, bias []float32) (*CompiledConv, error) {
	return CompileAlgorithm(p, weight, bias, selectAlgorithm(p), nil)
}

// CompileAlgorithm compiles with a forced strategy, and kernel variant when
// k is non-nil, for callers pinning a specific path under test or
// benchmark. The forced strategy must still be applicable to the shape.
func CompileAlgorithm(p Params, weight, bias []float32, algo Algorithm, k Kernel) (*CompiledConv, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid conv parameters: %w", err)
	}
	if want := p.WeightCount(); len(weight) != want {
		return nil, fmt.Errorf("weight buffer has %d values, want %d: %w", len(weight), want, ErrShape)
	}
	if bias != nil && len(bias) != p.OutputChannels {
		return nil, fmt.Errorf("bias buffer has %d values, want %d: %w", len(bias), p.OutputChannels, ErrShape)
	}
	if k == nil {
		k = PickKernel()
	}

	c := &CompiledConv{p: p, algo: algo, kernel: k, tile: k.Tile()}
	c.icAligned = alignUp(p.GroupInChannels(), c.tile.Block)
	c.ocPadded = alignUp(p.GroupOutChannels(), c.tile.Panel)
	c.depth = p.KernelH * p.KernelW * c.icAligned
	if bias != nil {
		c.bias = make([]float32, len(bias))
		copy(c.bias, bias)
	}

	switch algo {
	case AlgoDirect:
		c.compileDirect(weight)
	case AlgoOneByOne:
		if !oneByOneViable(p) {
			return nil, fmt.Errorf("1x1 strategy needs an ungrouped 1x1 kernel with unit stride and no padding")
		}
		c.compileOneByOne(weight)
	case AlgoWinograd:
		if !winogradViable(p) {
			return nil, fmt.Errorf("winograd needs an ungrouped 3x3 kernel with unit stride and no dilation")
		}
		c.compileWinograd(weight, 2)
	case AlgoConv3x3:
		if !winogradViable(p) {
			return nil, fmt.Errorf("conv3x3 needs an ungrouped 3x3 kernel with unit stride and no dilation")
		}
		c.compileWinograd(weight, 4)
	default:
		return nil, fmt.Errorf("unknown algorithm %d", int(algo))
	}
	return c, nil
}

// selectAlgorithm maps a shape to its strategy: 1x1 shapes to the matrix
// multiply path, 3x3 unit-stride shapes to the largest viable Winograd
// unit, everything else (including all grouped convolutions) to direct.
func selectAlgorithm(p Params) Algorithm {
	if oneByOneViable(p) {
		return AlgoOneByOne
	}
	if conv3x3Viable(p) {
		return AlgoConv3x3
	}
	if winogradViable(p) && selectOutputUnit(p) == 2 {
		return AlgoWinograd
	}
	return AlgoDirect
}

func oneByOneViable(p Params) bool {
	return p.Groups == 1 && p.KernelH == 1 && p.KernelW == 1 &&
		p.StrideH == 1 && p.StrideW == 1 &&
		p.PadTop == 0 && p.PadBottom == 0 && p.PadLeft == 0 && p.PadRight == 0
}

func (c *CompiledConv) compileDirect(weight []float32) {
	p := c.p
	icg, ocg := p.GroupInChannels(), p.GroupOutChannels()
	khw := p.KernelH * p.KernelW
	panels := c.ocPadded / c.tile.Panel
	c.groupStride = panels * c.depth * c.tile.Panel
	c.packedWeight = make([]float32, p.Groups*c.groupStride)
	for g := 0; g < p.Groups; g++ {
		PackConvWeights(c.packedWeight[g*c.groupStride:(g+1)*c.groupStride],
			weight[g*ocg*khw*icg:], ocg, khw, icg, c.icAligned, c.tile.Panel)
	}
}

func (c *CompiledConv) compileOneByOne(weight []float32) {
	ic, oc := c.p.InputChannels, c.p.OutputChannels
	c.weightT = make([]float32, ic*oc)
	for o := 0; o < oc; o++ {
		for i := 0; i < ic; i++ {
			c.weightT[i*oc+o] = weight[o*ic+i]
		}
	}
}

// compileWinograd precomputes the transformed weights U = G g G^T for every
// output/input channel pair and packs each transform point into the
// micro-panel layout, so inference multiplies packed tiles directly.
func (c *CompiledConv) compileWinograd(weight []float32, unit int) {
	tr, err := transformFor(unit)
	if err != nil {
		// Units are pinned by CompileAlgorithm; anything else is a bug.
		panic(err)
	}
	c.trans = tr
	p := c.p
	c.tilesH = (p.OutputH + unit - 1) / unit
	c.tilesW = (p.OutputW + unit - 1) / unit

	tin := tr.tileIn
	points := tin * tin
	ic, oc := p.InputChannels, p.OutputChannels
	panels := c.ocPadded / c.tile.Panel
	c.pointStride = panels * c.icAligned * c.tile.Panel

	u := make([]float32, points*oc*ic)
	tmp := make([]float32, tin*3)
	for o := 0; o < oc; o++ {
		for i := 0; i < ic; i++ {
			// tmp = G * g, reading g from the OHWI 3x3 weight block.
			for a := 0; a < tin; a++ {
				for b := 0; b < 3; b++ {
					var sum float32
					for r := 0; r < 3; r++ {
						sum += tr.g[a*3+r] * weight[((o*3+r)*3+b)*ic+i]
					}
					tmp[a*3+b] = sum
				}
			}
			// U = tmp * G^T, scattered point-major for per-point packing.
			for a := 0; a < tin; a++ {
				for b := 0; b < tin; b++ {
					var sum float32
					for r := 0; r < 3; r++ {
						sum += tmp[a*3+r] * tr.g[b*3+r]
					}
					u[(a*tin+b)*oc*ic+o*ic+i] = sum
				}
			}
		}
	}
	c.transWeight = make([]float32, points*c.pointStride)
	for pt := 0; pt < points; pt++ {
		PackConvWeights(c.transWeight[pt*c.pointStride:(pt+1)*c.pointStride],
			u[pt*oc*ic:], oc, 1, ic, c.icAligned, c.tile.Panel)
	}
}
