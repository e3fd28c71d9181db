package conv

import "golang.org/x/sys/cpu"

// WriteMode selects the output layout a GEMM call produces, so callers can
// avoid a separate unpacking pass when they want plain NHWC rows.
type WriteMode int

const (
	// WriteChannels stores each row's outChannels valid values at
	// dst[row*dstStride], clipping the zero-padded tail panel. Used when
	// the GEMM result is the final NHWC output.
	WriteChannels WriteMode = iota
	// WritePacked stores full panels per row, padding included, keeping
	// the channel-aligned layout for a later transform stage.
	WritePacked
)

// TileShape describes the geometry a kernel variant is built around.
type TileShape struct {
	Rows  int // output positions the kernel handles per call
	Block int // input-channel interleave block for packed buffers
	Panel int // packed-weight panel width (output channels per panel)
}

// Kernel is the GEMM micro-kernel strategy: a block matrix multiply of
// packed input rows against micro-panel packed weights, fusing the bias add
// (once per output channel) and the activation clamp into the store.
//
// src holds rows*depth values in [row][depth] order, where depth is a
// multiple of Tile().Block. wt holds ceil(outChannels/Panel) panels in the
// PackConvWeights layout for the same depth. A nil bias skips the bias add.
// dst rows are dstStride apart.
//
// Implementations are pure functions over their arguments and safe to
// invoke concurrently on disjoint dst regions.
type Kernel interface {
	Tile() TileShape
	Compute(dst, src, wt, bias []float32, rows, depth, outChannels, dstStride int, act Activation, write WriteMode)
}

// PickKernel selects the kernel variant for the running CPU: the wide tile
// where 256-bit vectors (or better) are available, the narrow tile
// otherwise. Called once per Compile, never per inference.
func PickKernel() Kernel {
	if cpu.X86.HasAVX512F || cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD {
		return kernelWide{}
	}
	return kernelNarrow{}
}

// kernelWide works in 8-channel panels, 12 rows per tile.
type kernelWide struct{}

func (kernelWide) Tile() TileShape {
	return TileShape{Rows: 12, Block: 4, Panel: 8}
}

func (kernelWide) Compute(dst, src, wt, bias []float32, rows, depth, outChannels, dstStride int, act Activation, write WriteMode) {
	const panel = 8
	panels := alignUp(outChannels, panel) / panel
	for p := 0; p < panels; p++ {
		wp := wt[p*depth*panel : (p+1)*depth*panel]
		ocBase := p * panel
		limit := min(panel, outChannels-ocBase)
		for r := 0; r < rows; r++ {
			row := src[r*depth : (r+1)*depth]
			var acc [panel]float32
			for d := 0; d < depth; d += 4 {
				w := wp[d*panel : (d+4)*panel]
				a0, a1, a2, a3 := row[d], row[d+1], row[d+2], row[d+3]
				for j := 0; j < panel; j++ {
					acc[j] += a0*w[j] + a1*w[panel+j] + a2*w[2*panel+j] + a3*w[3*panel+j]
				}
			}
			storeTile(dst[r*dstStride+ocBase:], acc[:], bias, ocBase, limit, act, write)
		}
	}
}

// kernelNarrow works in 4-channel panels, 8 rows per tile.
type kernelNarrow struct{}

func (kernelNarrow) Tile() TileShape {
	return TileShape{Rows: 8, Block: 4, Panel: 4}
}

func (kernelNarrow) Compute(dst, src, wt, bias []float32, rows, depth, outChannels, dstStride int, act Activation, write WriteMode) {
	const panel = 4
	panels := alignUp(outChannels, panel) / panel
	for p := 0; p < panels; p++ {
		wp := wt[p*depth*panel : (p+1)*depth*panel]
		ocBase := p * panel
		limit := min(panel, outChannels-ocBase)
		for r := 0; r < rows; r++ {
			row := src[r*depth : (r+1)*depth]
			var acc [panel]float32
			for d := 0; d < depth; d += 4 {
				w := wp[d*panel : (d+4)*panel]
				a0, a1, a2, a3 := row[d], row[d+1], row[d+2], row[d+3]
				for j := 0; j < panel; j++ {
					acc[j] += a0*w[j] + a1*w[panel+j] + a2*w[2*panel+j] + a3*w[3*panel+j]
				}
			}
			storeTile(dst[r*dstStride+ocBase:], acc[:], bias, ocBase, limit, act, write)
		}
	}
}

// storeTile applies the fused epilogue to one accumulator panel and writes
// it out. In WriteChannels mode only the limit valid lanes are stored; in
// WritePacked mode the full panel is stored and padding lanes stay exact
// zeros (their accumulators only ever saw zero weights).
func storeTile(out, acc, bias []float32, ocBase, limit int, act Activation, write WriteMode) {
	if write == WriteChannels {
		for j := 0; j < limit; j++ {
			v := acc[j]
			if bias != nil {
				v += bias[ocBase+j]
			}
			out[j] = act.apply(v)
		}
		return
	}
	for j := range acc {
		v := acc[j]
		if bias != nil && j < limit {
			v += bias[ocBase+j]
		}
		out[j] = act.apply(v)
	}
}
