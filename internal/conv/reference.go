package conv

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Reference computes the convolution by its direct definition, accumulating
// in float64 through gonum dense matrices, and returns a freshly allocated
// NHWC output. It is the numeric ground truth strategy tests compare
// against and is far too slow for inference.
func Reference(p Params, input, weight, bias []float32) []float32 {
	icg, ocg := p.GroupInChannels(), p.GroupOutChannels()
	khw := p.KernelH * p.KernelW
	depth := khw * icg
	m := p.OutputH * p.OutputW

	output := make([]float32, p.Batch*m*p.OutputChannels)
	cols := mat.NewDense(m, depth, nil)
	wmat := mat.NewDense(depth, ocg, nil)
	var prod mat.Dense
	for g := 0; g < p.Groups; g++ {
		for o := 0; o < ocg; o++ {
			for k := 0; k < khw; k++ {
				for i := 0; i < icg; i++ {
					wmat.Set(k*icg+i, o, float64(weight[((g*ocg+o)*khw+k)*icg+i]))
				}
			}
		}
		for n := 0; n < p.Batch; n++ {
			for pos := 0; pos < m; pos++ {
				oh, ow := pos/p.OutputW, pos%p.OutputW
				for kh := 0; kh < p.KernelH; kh++ {
					ih := oh*p.StrideH - p.PadTop + kh*p.DilationH
					for kw := 0; kw < p.KernelW; kw++ {
						iw := ow*p.StrideW - p.PadLeft + kw*p.DilationW
						for i := 0; i < icg; i++ {
							var v float64
							if ih >= 0 && ih < p.InputH && iw >= 0 && iw < p.InputW {
								v = float64(input[((n*p.InputH+ih)*p.InputW+iw)*p.InputChannels+g*icg+i])
							}
							cols.Set(pos, (kh*p.KernelW+kw)*icg+i, v)
						}
					}
				}
			}
			prod.Mul(cols, wmat)
			for pos := 0; pos < m; pos++ {
				for o := 0; o < ocg; o++ {
					v := prod.At(pos, o)
					if bias != nil {
						v += float64(bias[g*ocg+o])
					}
					switch p.Act {
					case ActReLU:
						v = math.Max(v, 0)
					case ActReLU6:
						v = math.Min(math.Max(v, 0), 6)
					}
					output[(n*m+pos)*p.OutputChannels+g*ocg+o] = float32(v)
				}
			}
		}
	}
	return output
}
