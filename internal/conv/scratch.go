package conv

import "fmt"

// Scratch buffers are pure per-call workspace: core-populated,
// core-consumed, undefined after the call returns, never shared between
// tasks. Sizes are fully determined by the compiled convolution and the
// task count. Constructors take an optional caller-owned buffer and assert
// it against the sizing formula, so an undersized buffer fails at the
// boundary instead of corrupting a run; a nil buffer allocates exactly the
// required length.

func scratchBuf(name string, buf []float32, need int) ([]float32, error) {
	if buf == nil {
		return make([]float32, need), nil
	}
	if len(buf) < need {
		return nil, fmt.Errorf("%s scratch has %d floats, need %d: %w", name, len(buf), need, ErrScratch)
	}
	return buf[:need], nil
}

// DirectScratchLen returns the scratch requirement of the direct strategy:
// one packed im2col tile of Tile().Rows rows of depth values per task,
// where depth = kernelH*kernelW*icAligned.
func DirectScratchLen(c *CompiledConv, tasks int) int {
	return tasks * c.tile.Rows * c.depth
}

// DirectScratch holds the per-task packed-input tiles of the direct
// strategy.
type DirectScratch struct {
	buf     []float32
	perTask int
	tasks   int
}

// NewDirectScratch sizes scratch for the direct strategy across tasks.
func NewDirectScratch(c *CompiledConv, tasks int, buf []float32) (*DirectScratch, error) {
	if c.packedWeight == nil {
		return nil, fmt.Errorf("%s compilation has no packed weights for the direct strategy", c.algo)
	}
	buf, err := scratchBuf("direct", buf, DirectScratchLen(c, tasks))
	if err != nil {
		return nil, err
	}
	return &DirectScratch{buf: buf, perTask: c.tile.Rows * c.depth, tasks: tasks}, nil
}

// Tasks returns the task count the scratch was sized for.
func (s *DirectScratch) Tasks() int { return s.tasks }

func (s *DirectScratch) task(id int) []float32 {
	return s.buf[id*s.perTask : (id+1)*s.perTask]
}

// OneByOneScratchLen returns the scratch requirement of the 1x1 strategy:
// per task, the Strassen temporaries for the largest row slice any task
// owns (see StrassenScratchLen). Zero when every slice stays on the plain
// GEMM path.
func OneByOneScratchLen(c *CompiledConv, tasks int) int {
	return tasks * oneByOnePerTask(c, tasks)
}

func oneByOnePerTask(c *CompiledConv, tasks int) int {
	m := c.p.Batch * c.p.OutputH * c.p.OutputW
	ic, oc := c.p.InputChannels, c.p.OutputChannels
	chunk := m / tasks
	last := m - chunk*(tasks-1)
	return max(StrassenScratchLen(chunk, oc, ic), StrassenScratchLen(last, oc, ic))
}

// OneByOneScratch holds the per-task Strassen temporaries of the 1x1
// strategy.
type OneByOneScratch struct {
	buf     []float32
	perTask int
	tasks   int
}

// NewOneByOneScratch sizes scratch for the 1x1 strategy across tasks.
func NewOneByOneScratch(c *CompiledConv, tasks int, buf []float32) (*OneByOneScratch, error) {
	if c.weightT == nil {
		return nil, fmt.Errorf("%s compilation has no transposed weights for the 1x1 strategy", c.algo)
	}
	buf, err := scratchBuf("1x1", buf, OneByOneScratchLen(c, tasks))
	if err != nil {
		return nil, err
	}
	return &OneByOneScratch{buf: buf, perTask: oneByOnePerTask(c, tasks), tasks: tasks}, nil
}

// Tasks returns the task count the scratch was sized for.
func (s *OneByOneScratch) Tasks() int { return s.tasks }

func (s *OneByOneScratch) task(id int) []float32 {
	return s.buf[id*s.perTask : (id+1)*s.perTask]
}

// winogradTaskLen returns the per-task workspace block lengths of the
// Winograd pipeline: the gathered patch (whose length also serves its
// transform twin), the transformed input rows, the transform-domain
// products, and the output transform temporary.
func winogradTaskLen(c *CompiledConv) (patch, v, m, outTmp int) {
	tin := c.trans.tileIn
	points := tin * tin
	rows := c.tile.Rows
	patch = points * c.icAligned
	v = points * rows * c.icAligned
	m = points * rows * c.ocPadded
	outTmp = c.trans.unit * tin * c.ocPadded
	return patch, v, m, outTmp
}

// WinogradScratchLen returns the total scratch requirement of the Winograd
// strategies: a channel-aligned copy of the whole input, the unit-aligned
// tiled output, and per task two patch blocks plus the transform-domain
// input rows, product rows and output temporary.
func WinogradScratchLen(c *CompiledConv, tasks int) int {
	p := c.p
	packed := p.Batch * p.InputH * p.InputW * c.icAligned
	tiled := p.Batch * c.tilesH * c.trans.unit * c.tilesW * c.trans.unit * c.ocPadded
	patch, v, m, outTmp := winogradTaskLen(c)
	return packed + tiled + tasks*(2*patch+v+m+outTmp)
}

// WinogradScratch is the buffer list of the Winograd strategies: the shared
// channel-aligned input (read-only after the pack phase), the shared tiled
// output (disjoint tile writes), and per-task transform workspace.
type WinogradScratch struct {
	packedInput []float32
	tiledOutput []float32
	buf         []float32
	perTask     int
	tasks       int
}

// NewWinogradScratch sizes scratch for the Winograd strategies across
// tasks.
func NewWinogradScratch(c *CompiledConv, tasks int, buf []float32) (*WinogradScratch, error) {
	if c.trans == nil {
		return nil, fmt.Errorf("%s compilation has no transforms for the winograd strategies", c.algo)
	}
	buf, err := scratchBuf("winograd", buf, WinogradScratchLen(c, tasks))
	if err != nil {
		return nil, err
	}
	p := c.p
	packed := p.Batch * p.InputH * p.InputW * c.icAligned
	tiled := p.Batch * c.tilesH * c.trans.unit * c.tilesW * c.trans.unit * c.ocPadded
	patch, v, m, outTmp := winogradTaskLen(c)
	return &WinogradScratch{
		packedInput: buf[:packed],
		tiledOutput: buf[packed : packed+tiled],
		buf:         buf[packed+tiled:],
		perTask:     2*patch + v + m + outTmp,
		tasks:       tasks,
	}, nil
}

// Tasks returns the task count the scratch was sized for.
func (s *WinogradScratch) Tasks() int { return s.tasks }

func (s *WinogradScratch) task(id int) []float32 {
	return s.buf[id*s.perTask : (id+1)*s.perTask]
}
