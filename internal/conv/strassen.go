package conv

import (
	"errors"
	"fmt"
)

// ErrScratch reports a scratch buffer smaller than its shape-derived
// requirement. Scratch constructors return it when rejecting a caller
// buffer at the setup boundary; at run time only the Strassen path can
// return it, because its requirement is recursion-depth-dependent. Every
// other undersized buffer is a caller precondition, not a detected error.
var ErrScratch = errors.New("scratch buffer too small")

// strassenMin is the smallest half-matrix dimension worth recursing for.
// One Strassen level halves every dimension, so recursion triggers only
// while all three dimensions are even and at least 2*strassenMin: below
// that the extra additions and scratch traffic cost more than the saved
// multiplies.
const strassenMin = 64

// gemmBlock is the cache tile edge for the strided fallback GEMM.
const gemmBlock = 64

// MatMulParams describes a strided matrix multiply C += A*B: A is Row x Deep
// with row stride AStride, B is Deep x Col with row stride BStride, C is
// Row x Col with row stride CStride. Strides let Strassen address quadrants
// of a larger matrix without copying them out.
type MatMulParams struct {
	Row, Col, Deep            int
	AStride, BStride, CStride int
}

// StrassenScratchLen returns the exact scratch requirement, in float32
// elements, of matMul for a Row x Deep by Deep x Col multiply. Each
// recursion level needs three half-size temporaries (one per operand side
// plus one product): row/2*deep/2 + deep/2*col/2 + row/2*col/2, summed over
// every level the size-dependent recursion rule will actually take. The
// result is 0 whenever the multiply stays on the plain tiled path, and is
// part of the public contract so callers can allocate before running.
func StrassenScratchLen(row, col, deep int) int {
	n := 0
	for row%2 == 0 && col%2 == 0 && deep%2 == 0 && min(row, col, deep) >= 2*strassenMin {
		row, col, deep = row/2, col/2, deep/2
		n += row*deep + deep*col + row*col
	}
	return n
}

// matMul computes C += A*B, recursing into Strassen's 7-multiplication
// decomposition while the dimensions stay even and large enough, and
// falling back to the tiled strided GEMM below the threshold. It fails
// with ErrScratch when scratch cannot hold the recursion's temporaries.
func matMul(a, b, c, scratch []float32, p MatMulParams) error {
	if need := StrassenScratchLen(p.Row, p.Col, p.Deep); len(scratch) < need {
		return fmt.Errorf("%dx%dx%d multiply needs %d scratch floats, have %d: %w",
			p.Row, p.Col, p.Deep, need, len(scratch), ErrScratch)
	}
	strassen(a, b, c, scratch, p)
	return nil
}

func strassen(a, b, c, scratch []float32, p MatMulParams) {
	if p.Row%2 != 0 || p.Col%2 != 0 || p.Deep%2 != 0 || min(p.Row, p.Col, p.Deep) < 2*strassenMin {
		strideGemm(a, b, c, p)
		return
	}

	m2, n2, k2 := p.Row/2, p.Col/2, p.Deep/2
	as, bs, cs := p.AStride, p.BStride, p.CStride

	a11, a12 := a, a[k2:]
	a21, a22 := a[m2*as:], a[m2*as+k2:]
	b11, b12 := b, b[n2:]
	b21, b22 := b[k2*bs:], b[k2*bs+n2:]
	c11, c12 := c, c[n2:]
	c21, c22 := c[m2*cs:], c[m2*cs+n2:]

	ta := scratch[:m2*k2]
	tb := scratch[m2*k2 : m2*k2+k2*n2]
	tp := scratch[m2*k2+k2*n2 : m2*k2+k2*n2+m2*n2]
	rest := scratch[m2*k2+k2*n2+m2*n2:]

	sub := MatMulParams{Row: m2, Col: n2, Deep: k2, AStride: k2, BStride: n2, CStride: n2}
	product := func(x []float32, xs int, y []float32, ys int) {
		zero(tp)
		q := sub
		q.AStride, q.BStride = xs, ys
		strassen(x, y, tp, rest, q)
	}

	// P1 = (A11+A22)(B11+B22) -> C11 += P1, C22 += P1
	addInto(ta, a11, a22, m2, k2, as)
	addInto(tb, b11, b22, k2, n2, bs)
	product(ta, k2, tb, n2)
	accumulate(c11, tp, m2, n2, cs, 1)
	accumulate(c22, tp, m2, n2, cs, 1)

	// P2 = (A21+A22)B11 -> C21 += P2, C22 -= P2
	addInto(ta, a21, a22, m2, k2, as)
	product(ta, k2, b11, bs)
	accumulate(c21, tp, m2, n2, cs, 1)
	accumulate(c22, tp, m2, n2, cs, -1)

	// P3 = A11(B12-B22) -> C12 += P3, C22 += P3
	subInto(tb, b12, b22, k2, n2, bs)
	product(a11, as, tb, n2)
	accumulate(c12, tp, m2, n2, cs, 1)
	accumulate(c22, tp, m2, n2, cs, 1)

	// P4 = A22(B21-B11) -> C11 += P4, C21 += P4
	subInto(tb, b21, b11, k2, n2, bs)
	product(a22, as, tb, n2)
	accumulate(c11, tp, m2, n2, cs, 1)
	accumulate(c21, tp, m2, n2, cs, 1)

	// P5 = (A11+A12)B22 -> C11 -= P5, C12 += P5
	addInto(ta, a11, a12, m2, k2, as)
	product(ta, k2, b22, bs)
	accumulate(c11, tp, m2, n2, cs, -1)
	accumulate(c12, tp, m2, n2, cs, 1)

	// P6 = (A21-A11)(B11+B12) -> C22 += P6
	subInto(ta, a21, a11, m2, k2, as)
	addInto(tb, b11, b12, k2, n2, bs)
	product(ta, k2, tb, n2)
	accumulate(c22, tp, m2, n2, cs, 1)

	// P7 = (A12-A22)(B21+B22) -> C11 += P7
	subInto(ta, a12, a22, m2, k2, as)
	addInto(tb, b21, b22, k2, n2, bs)
	product(ta, k2, tb, n2)
	accumulate(c11, tp, m2, n2, cs, 1)
}

// strideGemm computes C += A*B over strided views, tiled in gemmBlock
// squares to keep the working set cache-resident.
func strideGemm(a, b, c []float32, p MatMulParams) {
	for i0 := 0; i0 < p.Row; i0 += gemmBlock {
		iMax := min(i0+gemmBlock, p.Row)
		for k0 := 0; k0 < p.Deep; k0 += gemmBlock {
			kMax := min(k0+gemmBlock, p.Deep)
			for j0 := 0; j0 < p.Col; j0 += gemmBlock {
				jMax := min(j0+gemmBlock, p.Col)
				for i := i0; i < iMax; i++ {
					cRow := c[i*p.CStride : i*p.CStride+p.Col]
					aRow := a[i*p.AStride:]
					for k := k0; k < kMax; k++ {
						av := aRow[k]
						bRow := b[k*p.BStride:]
						for j := j0; j < jMax; j++ {
							cRow[j] += av * bRow[j]
						}
					}
				}
			}
		}
	}
}

// addInto writes x+y into dst, reading rows of cols values with stride s
// from both operands and packing the result densely.
func addInto(dst, x, y []float32, rows, cols, s int) {
	for i := 0; i < rows; i++ {
		d := dst[i*cols : (i+1)*cols]
		xr := x[i*s:]
		yr := y[i*s:]
		for j := range d {
			d[j] = xr[j] + yr[j]
		}
	}
}

// subInto writes x-y into dst with the same layout rules as addInto.
func subInto(dst, x, y []float32, rows, cols, s int) {
	for i := 0; i < rows; i++ {
		d := dst[i*cols : (i+1)*cols]
		xr := x[i*s:]
		yr := y[i*s:]
		for j := range d {
			d[j] = xr[j] - yr[j]
		}
	}
}

// accumulate adds sign*t into the strided quadrant c.
func accumulate(c, t []float32, rows, cols, cStride int, sign float32) {
	for i := 0; i < rows; i++ {
		cRow := c[i*cStride:]
		tRow := t[i*cols : (i+1)*cols]
		if sign > 0 {
			for j, v := range tRow {
				cRow[j] += v
			}
		} else {
			for j, v := range tRow {
				cRow[j] -= v
			}
		}
	}
}
