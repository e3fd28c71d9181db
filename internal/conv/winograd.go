package conv

import "fmt"

// transform bundles one Winograd unit's constant matrices: bt is the input
// transform B^T (tileIn x tileIn), g the weight transform G (tileIn x 3),
// at the output transform A^T (unit x tileIn), all row-major. A transform
// turns a tileIn x tileIn input patch into unit x unit outputs for a 3x3
// kernel, with tileIn = unit + 2.
type transform struct {
	unit   int
	tileIn int
	bt     []float32
	g      []float32
	at     []float32
}

// transF23 is F(2x2, 3x3): 16 multiplies per 4 outputs instead of 36.
var transF23 = &transform{
	unit:   2,
	tileIn: 4,
	bt: []float32{
		1, 0, -1, 0,
		0, 1, 1, 0,
		0, -1, 1, 0,
		0, 1, 0, -1,
	},
	g: []float32{
		1, 0, 0,
		0.5, 0.5, 0.5,
		0.5, -0.5, 0.5,
		0, 0, 1,
	},
	at: []float32{
		1, 1, 1, 0,
		0, 1, -1, -1,
	},
}

// transF43 is F(4x4, 3x3): 36 multiplies per 16 outputs instead of 144.
var transF43 = &transform{
	unit:   4,
	tileIn: 6,
	bt: []float32{
		4, 0, -5, 0, 1, 0,
		0, -4, -4, 1, 1, 0,
		0, 4, -4, -1, 1, 0,
		0, -2, -1, 2, 1, 0,
		0, 2, -1, -2, 1, 0,
		0, 4, 0, -5, 0, 1,
	},
	g: []float32{
		1.0 / 4, 0, 0,
		-1.0 / 6, -1.0 / 6, -1.0 / 6,
		-1.0 / 6, 1.0 / 6, -1.0 / 6,
		1.0 / 24, 1.0 / 12, 1.0 / 6,
		1.0 / 24, -1.0 / 12, 1.0 / 6,
		0, 0, 1,
	},
	at: []float32{
		1, 1, 1, 1, 1, 0,
		0, 1, -1, 2, -2, 0,
		0, 1, 1, 4, 4, 0,
		0, 1, -1, 8, -8, 1,
	},
}

func transformFor(unit int) (*transform, error) {
	switch unit {
	case 2:
		return transF23, nil
	case 4:
		return transF43, nil
	}
	return nil, fmt.Errorf("no winograd transform for output unit %d", unit)
}

// winogradViable reports whether any Winograd unit applies: ungrouped 3x3
// kernel, unit stride, no dilation. Padding is unrestricted since the tile
// gather synthesizes the border.
func winogradViable(p Params) bool {
	return p.Groups == 1 && p.KernelH == 3 && p.KernelW == 3 &&
		p.StrideH == 1 && p.StrideW == 1 && p.DilationH == 1 && p.DilationW == 1
}

// selectOutputUnit picks the largest output tile unit the output extent can
// keep busy: 4 when both spatial dimensions reach 4, 2 when they reach 2,
// 0 when the output is too small for Winograd to pay off.
func selectOutputUnit(p Params) int {
	switch m := min(p.OutputH, p.OutputW); {
	case m >= 4:
		return 4
	case m >= 2:
		return 2
	}
	return 0
}

// PackWinogradInput copies the task's slice of input positions into the
// channel-aligned scratch layout the tile gather reads from. Every task
// must finish packing before any task calls RunWinograd.
func PackWinogradInput(c *CompiledConv, s *WinogradScratch, input []float32, task int) {
	positions := c.p.Batch * c.p.InputH * c.p.InputW
	start, end := Partition(positions, s.tasks, task)
	if start == end {
		return
	}
	ic := c.p.InputChannels
	PackChannelAligned(s.packedInput[start*c.icAligned:], input[start*ic:], end-start, ic, c.tile.Block)
}

// RunWinograd executes the Winograd strategy for one task: for each chunk
// of up to Tile().Rows tiles in the task's range, gather and transform the
// input patches into the Winograd domain, multiply every transform point
// against the precomputed transformed weights through the shared GEMM
// kernel, and transform the products back into the unit-aligned tiled
// output. RunWinograd never touches the caller's output tensor; a later
// UnpackWinogradOutput phase does.
func RunWinograd(c *CompiledConv, s *WinogradScratch, task int) {
	tr := c.trans
	tin := tr.tileIn
	points := tin * tin
	rowsMax := c.tile.Rows
	ica, ocp := c.icAligned, c.ocPadded
	oc := c.p.OutputChannels

	patchLen, vLen, mLen, _ := winogradTaskLen(c)
	w := s.task(task)
	patch := w[:patchLen]
	inTmp := w[patchLen : 2*patchLen]
	vBuf := w[2*patchLen : 2*patchLen+vLen]
	mBuf := w[2*patchLen+vLen : 2*patchLen+vLen+mLen]
	outTmp := w[2*patchLen+vLen+mLen:]

	tilesPerImage := c.tilesH * c.tilesW
	start, end := Partition(c.p.Batch*tilesPerImage, s.tasks, task)
	for t0 := start; t0 < end; t0 += rowsMax {
		chunk := min(rowsMax, end-t0)
		for r := 0; r < chunk; r++ {
			tile := t0 + r
			n := tile / tilesPerImage
			th := (tile % tilesPerImage) / c.tilesW
			tw := tile % c.tilesW
			gatherWinogradPatch(patch, s.packedInput, c, n, th, tw)
			transformInput(vBuf, inTmp, patch, tr, r, rowsMax, ica)
		}
		for pt := 0; pt < points; pt++ {
			c.kernel.Compute(mBuf[pt*rowsMax*ocp:], vBuf[pt*rowsMax*ica:],
				c.transWeight[pt*c.pointStride:(pt+1)*c.pointStride], nil,
				chunk, ica, oc, ocp, ActNone, WritePacked)
		}
		for r := 0; r < chunk; r++ {
			tile := t0 + r
			n := tile / tilesPerImage
			th := (tile % tilesPerImage) / c.tilesW
			tw := tile % c.tilesW
			transformOutput(s.tiledOutput, outTmp, mBuf, c, n, th, tw, r)
		}
	}
}

// gatherWinogradPatch copies one tileIn x tileIn patch for tile (n, th, tw)
// out of the channel-aligned input. Patch rows and columns falling in the
// padding border read as explicit zeros.
func gatherWinogradPatch(patch, packedInput []float32, c *CompiledConv, n, th, tw int) {
	p := c.p
	tin := c.trans.tileIn
	unit := c.trans.unit
	ica := c.icAligned
	ih0 := th*unit - p.PadTop
	iw0 := tw*unit - p.PadLeft
	for i := 0; i < tin; i++ {
		ih := ih0 + i
		rowOK := ih >= 0 && ih < p.InputH
		for j := 0; j < tin; j++ {
			iw := iw0 + j
			dst := patch[(i*tin+j)*ica : (i*tin+j+1)*ica]
			if !rowOK || iw < 0 || iw >= p.InputW {
				zero(dst)
				continue
			}
			src := packedInput[((n*p.InputH+ih)*p.InputW+iw)*ica:]
			copy(dst, src[:ica])
		}
	}
}

// transformInput applies B^T d B to one gathered patch, channel-wise, and
// scatters the result across the per-point GEMM input rows at row r. Zero
// entries of B^T are skipped; the transform matrices are mostly zeros and
// the skipped work is the point of Winograd.
func transformInput(vBuf, tmp, patch []float32, tr *transform, r, rowsMax, ica int) {
	tin := tr.tileIn
	for i := 0; i < tin; i++ {
		for j := 0; j < tin; j++ {
			out := tmp[(i*tin+j)*ica : (i*tin+j+1)*ica]
			zero(out)
			for k := 0; k < tin; k++ {
				f := tr.bt[i*tin+k]
				if f == 0 {
					continue
				}
				src := patch[(k*tin+j)*ica:]
				for cc := 0; cc < ica; cc++ {
					out[cc] += f * src[cc]
				}
			}
		}
	}
	for i := 0; i < tin; i++ {
		for j := 0; j < tin; j++ {
			out := vBuf[((i*tin+j)*rowsMax+r)*ica : ((i*tin+j)*rowsMax+r+1)*ica]
			zero(out)
			for k := 0; k < tin; k++ {
				f := tr.bt[j*tin+k]
				if f == 0 {
					continue
				}
				src := tmp[(i*tin+k)*ica:]
				for cc := 0; cc < ica; cc++ {
					out[cc] += f * src[cc]
				}
			}
		}
	}
}

// transformOutput applies A^T m A to one tile's GEMM products, channel-wise,
// and writes the unit x unit result block into the tiled output. The tiled
// output extent is a whole number of units, so no clipping happens here;
// tiles are disjoint, so concurrent tasks never write the same block.
func transformOutput(tiled, tmp, mBuf []float32, c *CompiledConv, n, th, tw, r int) {
	tr := c.trans
	tin, unit := tr.tileIn, tr.unit
	rowsMax := c.tile.Rows
	ocp := c.ocPadded
	for u := 0; u < unit; u++ {
		for k := 0; k < tin; k++ {
			out := tmp[(u*tin+k)*ocp : (u*tin+k+1)*ocp]
			zero(out)
			for i := 0; i < tin; i++ {
				f := tr.at[u*tin+i]
				if f == 0 {
					continue
				}
				src := mBuf[((i*tin+k)*rowsMax+r)*ocp:]
				for cc := 0; cc < ocp; cc++ {
					out[cc] += f * src[cc]
				}
			}
		}
	}
	tH := c.tilesH * unit
	tW := c.tilesW * unit
	for u := 0; u < unit; u++ {
		for v := 0; v < unit; v++ {
			base := ((n*tH+th*unit+u)*tW + tw*unit + v) * ocp
			out := tiled[base : base+ocp]
			zero(out)
			for k := 0; k < tin; k++ {
				f := tr.at[v*tin+k]
				if f == 0 {
					continue
				}
				src := tmp[(u*tin+k)*ocp:]
				for cc := 0; cc < ocp; cc++ {
					out[cc] += f * src[cc]
				}
			}
		}
	}
}

// UnpackWinogradOutput moves the task's slice of output rows from the
// unit-aligned tiled layout into the caller's NHWC output, fusing the bias
// add and activation clamp. The last tile row and column overhang beyond
// the true output extent and the zero-padded channel tail are discarded
// here. Every task must finish RunWinograd before any task unpacks.
func UnpackWinogradOutput(c *CompiledConv, s *WinogradScratch, output []float32, task int) {
	p := c.p
	unit := c.trans.unit
	tH := c.tilesH * unit
	tW := c.tilesW * unit
	ocp := c.ocPadded
	oc := p.OutputChannels
	act := p.Act
	bias := c.bias

	start, end := Partition(p.Batch*p.OutputH, s.tasks, task)
	for row := start; row < end; row++ {
		n := row / p.OutputH
		oh := row % p.OutputH
		for ow := 0; ow < p.OutputW; ow++ {
			src := s.tiledOutput[((n*tH+oh)*tW+ow)*ocp:]
			base := ((n*p.OutputH+oh)*p.OutputW + ow) * oc
			dst := output[base : base+oc]
			if bias != nil {
				for j := 0; j < oc; j++ {
					dst[j] = act.apply(src[j] + bias[j])
				}
			} else {
				for j := 0; j < oc; j++ {
					dst[j] = act.apply(src[j])
				}
			}
		}
	}
}
