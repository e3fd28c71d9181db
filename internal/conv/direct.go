package conv

// RunDirect executes the im2col+GEMM strategy for one task. Work is split
// into tiles of up to Tile().Rows consecutive output positions within one
// image; the task gathers each position's receptive field into its packed
// input scratch and hands the rows to the GEMM kernel, which writes
// finished NHWC output directly. Grouped convolutions run the gather and
// multiply once per group with channel-offset reads and strided writes.
func RunDirect(c *CompiledConv, s *DirectScratch, input, output []float32, task int) {
	p := c.p
	rowsPerTile := c.tile.Rows
	positions := p.OutputH * p.OutputW
	tilesPerImage := (positions + rowsPerTile - 1) / rowsPerTile
	start, end := Partition(p.Batch*tilesPerImage, s.tasks, task)

	packed := s.task(task)
	ocg := p.GroupOutChannels()
	for t := start; t < end; t++ {
		n := t / tilesPerImage
		posStart := (t % tilesPerImage) * rowsPerTile
		rows := min(rowsPerTile, positions-posStart)
		for g := 0; g < p.Groups; g++ {
			gatherRows(packed, input, c, n, posStart, rows, g)
			wt := c.packedWeight[g*c.groupStride : (g+1)*c.groupStride]
			var bias []float32
			if c.bias != nil {
				bias = c.bias[g*ocg : (g+1)*ocg]
			}
			base := (n*positions+posStart)*p.OutputChannels + g*ocg
			c.kernel.Compute(output[base:], packed, wt, bias,
				rows, c.depth, ocg, p.OutputChannels, p.Act, WriteChannels)
		}
	}
}

// gatherRows fills rows of the packed im2col buffer for output positions
// [posStart, posStart+rows) of image n, group g. Each row holds the
// receptive field in kernel-position-major order with channels zero-padded
// to the block size. Padding is synthesized here: positions whose stride-
// and dilation-mapped source falls outside the input read as explicit
// zeros, so no padded copy of the tensor ever exists.
func gatherRows(packed, input []float32, c *CompiledConv, n, posStart, rows, g int) {
	p := c.p
	icg := p.GroupInChannels()
	ica := c.icAligned
	for r := 0; r < rows; r++ {
		pos := posStart + r
		oh := pos / p.OutputW
		ow := pos % p.OutputW
		row := packed[r*c.depth : (r+1)*c.depth]
		d := 0
		for kh := 0; kh < p.KernelH; kh++ {
			ih := oh*p.StrideH - p.PadTop + kh*p.DilationH
			for kw := 0; kw < p.KernelW; kw++ {
				iw := ow*p.StrideW - p.PadLeft + kw*p.DilationW
				block := row[d : d+ica]
				if ih < 0 || ih >= p.InputH || iw < 0 || iw >= p.InputW {
					zero(block)
				} else {
					src := input[((n*p.InputH+ih)*p.InputW+iw)*p.InputChannels+g*icg:]
					copy(block, src[:icg])
					for i := icg; i < ica; i++ {
						block[i] = 0
					}
				}
				d += ica
			}
		}
	}
}
