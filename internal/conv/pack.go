package conv

// alignUp rounds n up to the next multiple of block.
func alignUp(n, block int) int {
	return (n + block - 1) / block * block
}

// PackChannelAligned rearranges positions rows of channels values each into
// rows of alignUp(channels, block) values, zero-filling the channel tail.
// The padding is written as explicit zeros so downstream GEMM accumulation
// needs no bounds checks. Only dst is written; src is never touched.
func PackChannelAligned(dst, src []float32, positions, channels, block int) {
	aligned := alignUp(channels, block)
	if aligned == channels {
		copy(dst[:positions*channels], src)
		return
	}
	for p := 0; p < positions; p++ {
		row := dst[p*aligned : (p+1)*aligned]
		n := copy(row, src[p*channels:(p+1)*channels])
		for i := n; i < aligned; i++ {
			row[i] = 0
		}
	}
}

// UnpackChannelAligned is the inverse of PackChannelAligned: it drops the
// per-row zero padding, restoring positions rows of channels values.
func UnpackChannelAligned(dst, src []float32, positions, channels, block int) {
	aligned := alignUp(channels, block)
	if aligned == channels {
		copy(dst[:positions*channels], src)
		return
	}
	for p := 0; p < positions; p++ {
		copy(dst[p*channels:(p+1)*channels], src[p*aligned:p*aligned+channels])
	}
}

// PackConvWeights rearranges a weight block in [outChannels][kernelHW]
// [inChannels] layout into the micro-panel layout consumed by the GEMM
// kernel: [outPanels][kernelHW*inAligned][panel], where outPanels =
// ceil(outChannels/panel). Input channels are zero-padded to inAligned and
// the tail output panel is zero-padded to panel, so the kernel always reads
// full panels. dst must hold outPanels*kernelHW*inAligned*panel values.
func PackConvWeights(dst, weight []float32, outChannels, kernelHW, inChannels, inAligned, panel int) {
	depth := kernelHW * inAligned
	outPanels := alignUp(outChannels, panel) / panel
	for p := 0; p < outPanels; p++ {
		for k := 0; k < kernelHW; k++ {
			for ic := 0; ic < inAligned; ic++ {
				d := k*inAligned + ic
				out := dst[(p*depth+d)*panel : (p*depth+d+1)*panel]
				for j := range out {
					oc := p*panel + j
					if oc < outChannels && ic < inChannels {
						out[j] = weight[(oc*kernelHW+k)*inChannels+ic]
					} else {
						out[j] = 0
					}
				}
			}
		}
	}
}

// zero clears a scratch region before accumulation.
func zero(s []float32) {
	for i := range s {
		s[i] = 0
	}
}
