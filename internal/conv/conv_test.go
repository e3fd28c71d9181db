package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fold-ml/fold/internal/parallel"
)

// requireClose asserts got matches want elementwise within tol relative to
// the value's magnitude, absolute for values below one.
func requireClose(t *testing.T, want, got []float32, tol float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		scale := math.Max(1, math.Abs(float64(want[i])))
		require.InDelta(t, want[i], got[i], tol*scale, "index %d", i)
	}
}

// runConv compiles p with a forced strategy and runs it once through an
// Operator with the given worker count.
func runConv(t *testing.T, p Params, input, weight, bias []float32, algo Algorithm, workers int) []float32 {
	t.Helper()
	c, err := CompileAlgorithm(p, weight, bias, algo, nil)
	require.NoError(t, err)
	cfg := parallel.Config{Enabled: workers > 1, NumWorkers: workers}
	o, err := NewOperator(c, cfg)
	require.NoError(t, err)
	output := make([]float32, p.Batch*p.OutputH*p.OutputW*p.OutputChannels)
	require.NoError(t, o.Run(input, output))
	return output
}

// convData fills deterministic input, weight and bias buffers for p.
func convData(p Params) (input, weight, bias []float32) {
	input = make([]float32, p.Batch*p.InputH*p.InputW*p.InputChannels)
	weight = make([]float32, p.WeightCount())
	bias = make([]float32, p.OutputChannels)
	fillDet(input, 1)
	fillDet(weight, 2)
	for i := range bias {
		bias[i] = float32((i%5)-2) * 0.5
	}
	return input, weight, bias
}

// TestDirectMatchesReference tests the im2col+GEMM strategy against the
// float64 reference across strides, padding, dilation, groups and batch.
func TestDirectMatchesReference(t *testing.T) {
	strided := baseParams()
	strided.InputH, strided.InputW = 9, 9
	strided.StrideH, strided.StrideW = 2, 2
	strided.OutputH, strided.OutputW = 5, 5

	asym := baseParams()
	asym.InputH, asym.InputW = 7, 7
	asym.PadTop, asym.PadBottom, asym.PadLeft, asym.PadRight = 0, 1, 2, 0
	asym.OutputH, asym.OutputW = 6, 7

	dilated := baseParams()
	dilated.InputH, dilated.InputW = 9, 9
	dilated.OutputH, dilated.OutputW = 9, 9
	dilated.DilationH, dilated.DilationW = 2, 2
	dilated.PadTop, dilated.PadBottom, dilated.PadLeft, dilated.PadRight = 2, 2, 2, 2

	grouped := baseParams()
	grouped.InputChannels = 8
	grouped.OutputChannels = 12
	grouped.Groups = 4

	fiveByFive := baseParams()
	fiveByFive.KernelH, fiveByFive.KernelW = 5, 5
	fiveByFive.PadTop, fiveByFive.PadBottom, fiveByFive.PadLeft, fiveByFive.PadRight = 2, 2, 2, 2

	batched := baseParams()
	batched.Batch = 3

	cases := []struct {
		name string
		p    Params
	}{
		{"3x3 same pad", baseParams()},
		{"stride 2", strided},
		{"asymmetric pad", asym},
		{"dilation 2", dilated},
		{"groups of 2 channels", grouped},
		{"5x5 kernel", fiveByFive},
		{"batch 3", batched},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input, weight, bias := convData(tc.p)
			want := Reference(tc.p, input, weight, bias)
			got := runConv(t, tc.p, input, weight, bias, AlgoDirect, 2)
			requireClose(t, want, got, 0.0001)
		})
	}
}

// TestDirectKernelVariants tests that the wide and narrow kernel tiles
// produce the same convolution.
func TestDirectKernelVariants(t *testing.T) {
	p := baseParams()
	p.InputChannels = 6
	p.OutputChannels = 10
	input, weight, bias := convData(p)
	want := Reference(p, input, weight, bias)

	for _, k := range []Kernel{kernelWide{}, kernelNarrow{}} {
		c, err := CompileAlgorithm(p, weight, bias, AlgoDirect, k)
		require.NoError(t, err)
		o, err := NewOperator(c, parallel.DefaultConfig())
		require.NoError(t, err)
		output := make([]float32, len(want))
		require.NoError(t, o.Run(input, output))
		requireClose(t, want, output, 0.0001)
	}
}

// TestOneByOneMatchesReference tests the 1x1 matrix-multiply strategy,
// including a shape large enough to take the Strassen recursion.
func TestOneByOneMatchesReference(t *testing.T) {
	small := Params{
		Batch: 1, InputH: 5, InputW: 7, InputChannels: 6,
		OutputH: 5, OutputW: 7, OutputChannels: 9,
		KernelH: 1, KernelW: 1, StrideH: 1, StrideW: 1,
		DilationH: 1, DilationW: 1, Groups: 1,
	}
	batched := Params{
		Batch: 2, InputH: 4, InputW: 4, InputChannels: 8,
		OutputH: 4, OutputW: 4, OutputChannels: 16,
		KernelH: 1, KernelW: 1, StrideH: 1, StrideW: 1,
		DilationH: 1, DilationW: 1, Groups: 1,
	}
	// 2*8*8 = 128 positions with 128 channels both ways recurses.
	large := Params{
		Batch: 2, InputH: 8, InputW: 8, InputChannels: 128,
		OutputH: 8, OutputW: 8, OutputChannels: 128,
		KernelH: 1, KernelW: 1, StrideH: 1, StrideW: 1,
		DilationH: 1, DilationW: 1, Groups: 1,
	}

	cases := []struct {
		name    string
		p       Params
		workers int
		tol     float64
	}{
		{"small", small, 1, 0.0001},
		{"batched", batched, 2, 0.0001},
		{"strassen", large, 1, 0.001},
		{"strassen split", large, 4, 0.001},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, tc.p.Validate())
			input, weight, bias := convData(tc.p)
			want := Reference(tc.p, input, weight, bias)
			got := runConv(t, tc.p, input, weight, bias, AlgoOneByOne, tc.workers)
			requireClose(t, want, got, tc.tol)
		})
	}
}

// TestWinogradMatchesReference tests the F(2x2,3x3) strategy, including
// outputs that are not a multiple of the unit so the tile overhang is
// exercised.
func TestWinogradMatchesReference(t *testing.T) {
	nopad := baseParams()
	nopad.PadTop, nopad.PadBottom, nopad.PadLeft, nopad.PadRight = 0, 0, 0, 0
	nopad.OutputH, nopad.OutputW = 6, 6

	odd := baseParams()
	odd.InputH, odd.InputW = 5, 5
	odd.OutputH, odd.OutputW = 5, 5

	narrowCh := baseParams()
	narrowCh.InputChannels = 3
	narrowCh.OutputChannels = 6

	tiny := baseParams()
	tiny.InputH, tiny.InputW = 2, 3
	tiny.OutputH, tiny.OutputW = 2, 3

	cases := []struct {
		name string
		p    Params
	}{
		{"same pad", baseParams()},
		{"no pad", nopad},
		{"odd output", odd},
		{"channel tails", narrowCh},
		{"tiny output", tiny},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, tc.p.Validate())
			input, weight, bias := convData(tc.p)
			want := Reference(tc.p, input, weight, bias)
			got := runConv(t, tc.p, input, weight, bias, AlgoWinograd, 2)
			requireClose(t, want, got, 0.0001)
		})
	}
}

// TestConv3x3MatchesReference tests the F(4x4,3x3) strategy, whose larger
// transform coefficients get a correspondingly looser tolerance.
func TestConv3x3MatchesReference(t *testing.T) {
	clipped := baseParams()
	clipped.InputH, clipped.InputW = 7, 7
	clipped.OutputH, clipped.OutputW = 7, 7

	asym := baseParams()
	asym.InputH, asym.InputW = 7, 7
	asym.PadTop, asym.PadBottom, asym.PadLeft, asym.PadRight = 0, 1, 2, 0
	asym.OutputH, asym.OutputW = 6, 7

	batched := baseParams()
	batched.Batch = 2
	batched.InputChannels = 5
	batched.OutputChannels = 7

	cases := []struct {
		name string
		p    Params
	}{
		{"same pad", baseParams()},
		{"clipped overhang", clipped},
		{"asymmetric pad", asym},
		{"batched tails", batched},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, tc.p.Validate())
			input, weight, bias := convData(tc.p)
			want := Reference(tc.p, input, weight, bias)
			got := runConv(t, tc.p, input, weight, bias, AlgoConv3x3, 2)
			requireClose(t, want, got, 0.001)
		})
	}
}

// TestStrategiesAgree tests cross-strategy equivalence on shapes where
// several strategies apply.
func TestStrategiesAgree(t *testing.T) {
	p := baseParams()
	input, weight, bias := convData(p)
	direct := runConv(t, p, input, weight, bias, AlgoDirect, 2)
	wino := runConv(t, p, input, weight, bias, AlgoWinograd, 2)
	c3x3 := runConv(t, p, input, weight, bias, AlgoConv3x3, 2)
	requireClose(t, direct, wino, 0.001)
	requireClose(t, direct, c3x3, 0.001)

	one := Params{
		Batch: 1, InputH: 6, InputW: 6, InputChannels: 8,
		OutputH: 6, OutputW: 6, OutputChannels: 12,
		KernelH: 1, KernelW: 1, StrideH: 1, StrideW: 1,
		DilationH: 1, DilationW: 1, Groups: 1,
	}
	input, weight, bias = convData(one)
	directOne := runConv(t, one, input, weight, bias, AlgoDirect, 2)
	oneByOne := runConv(t, one, input, weight, bias, AlgoOneByOne, 2)
	requireClose(t, directOne, oneByOne, 0.001)
}

// TestSingleOutputDotProduct tests a 3x3 convolution that reduces to one
// dot product, checked by hand.
func TestSingleOutputDotProduct(t *testing.T) {
	p := Params{
		Batch: 1, InputH: 3, InputW: 3, InputChannels: 1,
		OutputH: 1, OutputW: 1, OutputChannels: 1,
		KernelH: 3, KernelW: 3, StrideH: 1, StrideW: 1,
		DilationH: 1, DilationW: 1, Groups: 1,
	}
	input := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}
	weight := []float32{1, 0, -1, 2, 1, 0, 0, -1, 1}
	bias := []float32{0.5}

	// 1*1 + 2*0 + 3*(-1) + 4*2 + 5*1 + 6*0 + 7*0 + 8*(-1) + 9*1 + 0.5
	// = 1 - 3 + 8 + 5 - 8 + 9 + 0.5 = 12.5
	got := runConv(t, p, input, weight, bias, AlgoDirect, 1)
	require.Len(t, got, 1)
	assert.InDelta(t, 12.5, got[0], 0.0001)
}

// TestPointwisePerPixel tests a 1x1 convolution as an independent
// matrix-vector product per pixel.
func TestPointwisePerPixel(t *testing.T) {
	p := Params{
		Batch: 1, InputH: 4, InputW: 4, InputChannels: 2,
		OutputH: 4, OutputW: 4, OutputChannels: 3,
		KernelH: 1, KernelW: 1, StrideH: 1, StrideW: 1,
		DilationH: 1, DilationW: 1, Groups: 1,
	}
	input := make([]float32, 4*4*2)
	for pos := 0; pos < 16; pos++ {
		input[pos*2] = float32(pos + 1)
		input[pos*2+1] = float32(16 - pos)
	}
	// weight[o][ic]: rows (1,2), (0,-1), (2,1).
	weight := []float32{1, 2, 0, -1, 2, 1}
	bias := []float32{0.5, -1, 0}

	got := runConv(t, p, input, weight, bias, AlgoOneByOne, 1)

	// Pixel 0 holds (1, 16): 1+32+0.5 = 33.5, -16-1 = -17, 2+16 = 18.
	assert.InDelta(t, 33.5, got[0], 0.0001)
	assert.InDelta(t, -17, got[1], 0.0001)
	assert.InDelta(t, 18, got[2], 0.0001)

	for pos := 0; pos < 16; pos++ {
		x0, x1 := input[pos*2], input[pos*2+1]
		for o := 0; o < 3; o++ {
			want := x0*weight[o*2] + x1*weight[o*2+1] + bias[o]
			assert.InDelta(t, want, got[pos*3+o], 0.0001, "pixel %d channel %d", pos, o)
		}
	}
}

// TestIdentityPassthrough runs a 1x1 convolution whose weight matrix is the
// identity, so pack, matmul and unpack must hand the input through
// untouched. Every output value is a single multiply by one, so equality is
// exact.
func TestIdentityPassthrough(t *testing.T) {
	p := Params{
		Batch: 2, InputH: 5, InputW: 5, InputChannels: 8,
		OutputH: 5, OutputW: 5, OutputChannels: 8,
		KernelH: 1, KernelW: 1, StrideH: 1, StrideW: 1,
		DilationH: 1, DilationW: 1, Groups: 1,
	}
	require.NoError(t, p.Validate())

	input := make([]float32, p.Batch*p.InputH*p.InputW*p.InputChannels)
	fillDet(input, 3)
	weight := make([]float32, p.WeightCount())
	for o := 0; o < p.OutputChannels; o++ {
		weight[o*p.InputChannels+o] = 1
	}

	for _, algo := range []Algorithm{AlgoDirect, AlgoOneByOne} {
		got := runConv(t, p, input, weight, nil, algo, 2)
		require.Equal(t, input, got, "algorithm %v", algo)
	}
}

// TestActivationEquivalence tests that a fused activation equals clamping
// the unactivated result, bit for bit, on every strategy.
func TestActivationEquivalence(t *testing.T) {
	for _, algo := range []Algorithm{AlgoDirect, AlgoWinograd, AlgoConv3x3} {
		p := baseParams()
		input, weight, bias := convData(p)
		plain := runConv(t, p, input, weight, bias, algo, 2)

		for _, act := range []Activation{ActReLU, ActReLU6} {
			pa := p
			pa.Act = act
			fused := runConv(t, pa, input, weight, bias, algo, 2)
			for i := range plain {
				want := act.apply(plain[i])
				if fused[i] != want {
					t.Fatalf("%v %v index %d: got %v, want %v", algo, act, i, fused[i], want)
				}
			}
		}
	}

	one := Params{
		Batch: 1, InputH: 6, InputW: 6, InputChannels: 8,
		OutputH: 6, OutputW: 6, OutputChannels: 12,
		KernelH: 1, KernelW: 1, StrideH: 1, StrideW: 1,
		DilationH: 1, DilationW: 1, Groups: 1,
	}
	input, weight, bias := convData(one)
	plain := runConv(t, one, input, weight, bias, AlgoOneByOne, 1)
	one.Act = ActReLU
	fused := runConv(t, one, input, weight, bias, AlgoOneByOne, 1)
	for i := range plain {
		want := ActReLU.apply(plain[i])
		if fused[i] != want {
			t.Fatalf("1x1 relu index %d: got %v, want %v", i, fused[i], want)
		}
	}
}

// TestNilBiasMatchesZeroBias tests that omitting the bias equals a zero
// bias on every strategy.
func TestNilBiasMatchesZeroBias(t *testing.T) {
	for _, algo := range []Algorithm{AlgoDirect, AlgoWinograd, AlgoConv3x3} {
		p := baseParams()
		input, weight, _ := convData(p)
		zeros := make([]float32, p.OutputChannels)
		withZero := runConv(t, p, input, weight, zeros, algo, 1)
		withNil := runConv(t, p, input, weight, nil, algo, 1)
		require.Equal(t, withZero, withNil, "strategy %v", algo)
	}
}

// TestWorkerCountInvariance tests that the task split never changes the
// result: the direct and Winograd paths are bitwise deterministic, the 1x1
// path stays within the Strassen tolerance.
func TestWorkerCountInvariance(t *testing.T) {
	p := baseParams()
	p.Batch = 2
	input, weight, bias := convData(p)
	for _, algo := range []Algorithm{AlgoDirect, AlgoWinograd, AlgoConv3x3} {
		single := runConv(t, p, input, weight, bias, algo, 1)
		split := runConv(t, p, input, weight, bias, algo, 4)
		require.Equal(t, single, split, "strategy %v", algo)
	}

	// 128 rows in one task recurses; split into three it stays on the
	// plain path, so this compares the two multiply paths directly.
	one := Params{
		Batch: 2, InputH: 8, InputW: 8, InputChannels: 128,
		OutputH: 8, OutputW: 8, OutputChannels: 128,
		KernelH: 1, KernelW: 1, StrideH: 1, StrideW: 1,
		DilationH: 1, DilationW: 1, Groups: 1,
	}
	input, weight, bias = convData(one)
	single := runConv(t, one, input, weight, bias, AlgoOneByOne, 1)
	split := runConv(t, one, input, weight, bias, AlgoOneByOne, 3)
	requireClose(t, single, split, 0.001)
}

// TestCompileAutoEndToEnd tests the automatic entry path on one shape per
// strategy.
func TestCompileAutoEndToEnd(t *testing.T) {
	one := Params{
		Batch: 1, InputH: 6, InputW: 6, InputChannels: 8,
		OutputH: 6, OutputW: 6, OutputChannels: 12,
		KernelH: 1, KernelW: 1, StrideH: 1, StrideW: 1,
		DilationH: 1, DilationW: 1, Groups: 1,
	}
	small := baseParams()
	small.InputH, small.InputW = 3, 3
	small.OutputH, small.OutputW = 3, 3
	strided := baseParams()
	strided.InputH, strided.InputW = 9, 9
	strided.StrideH, strided.StrideW = 2, 2
	strided.OutputH, strided.OutputW = 5, 5

	cases := []struct {
		name string
		p    Params
		algo Algorithm
		tol  float64
	}{
		{"pointwise", one, AlgoOneByOne, 0.0001},
		{"3x3 large", baseParams(), AlgoConv3x3, 0.001},
		{"3x3 small", small, AlgoWinograd, 0.0001},
		{"strided", strided, AlgoDirect, 0.0001},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input, weight, bias := convData(tc.p)
			c, err := Compile(tc.p, weight, bias)
			require.NoError(t, err)
			require.Equal(t, tc.algo, c.Algorithm())

			o, err := NewOperator(c, parallel.DefaultConfig())
			require.NoError(t, err)
			output := make([]float32, tc.p.Batch*tc.p.OutputH*tc.p.OutputW*tc.p.OutputChannels)
			require.NoError(t, o.Run(input, output))
			requireClose(t, Reference(tc.p, input, weight, bias), output, tc.tol)
		})
	}
}
