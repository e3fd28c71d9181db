package conv

// RunOneByOne executes the 1x1 strategy for one task. A 1x1 kernel with
// unit stride and no padding makes convolution exactly a
// (batch*height*width, inChannels) x (inChannels, outChannels) matrix
// multiply, so the task multiplies its slice of input rows against the
// transposed weight precomputed at compile time, then applies the bias and
// activation epilogue. This is the only strategy with a failure path:
// ErrScratch when the task's scratch cannot hold the Strassen recursion
// temporaries for its row count.
func RunOneByOne(c *CompiledConv, s *OneByOneScratch, input, output []float32, task int) error {
	m := c.p.Batch * c.p.OutputH * c.p.OutputW
	start, end := Partition(m, s.tasks, task)
	rows := end - start
	if rows == 0 {
		return nil
	}
	ic, oc := c.p.InputChannels, c.p.OutputChannels

	dst := output[start*oc : end*oc]
	zero(dst)
	mp := MatMulParams{Row: rows, Col: oc, Deep: ic, AStride: ic, BStride: oc, CStride: oc}
	if err := matMul(input[start*ic:], c.weightT, dst, s.task(task), mp); err != nil {
		return err
	}

	// Bias and activation cannot fuse through the recursion, so they run
	// as a second pass over the task's rows.
	bias := c.bias
	act := c.p.Act
	for r := 0; r < rows; r++ {
		out := dst[r*oc : (r+1)*oc]
		if bias != nil {
			for j := range out {
				out[j] = act.apply(out[j] + bias[j])
			}
		} else {
			for j := range out {
				out[j] = act.apply(out[j])
			}
		}
	}
	return nil
}
