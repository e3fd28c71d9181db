package conv

import (
	"fmt"

	"github.com/fold-ml/fold/internal/parallel"
	"github.com/fold-ml/fold/internal/tensor"
)

// Operator binds a compiled convolution to a parallel configuration and
// owns the scratch for its task count. It is the entry surface a graph
// executor drives: compile once at model load, then Run per inference.
// Concurrent Run calls on one Operator race on the scratch; use one
// Operator per concurrent stream.
type Operator struct {
	c     *CompiledConv
	cfg   parallel.Config
	tasks int

	direct   *DirectScratch
	one      *OneByOneScratch
	winograd *WinogradScratch
}

// NewOperator builds the scratch for c under cfg. The task count is
// cfg.NumWorkers, floored at one; a disabled config runs single-task.
func NewOperator(c *CompiledConv, cfg parallel.Config) (*Operator, error) {
	tasks := cfg.NumWorkers
	if !cfg.Enabled || tasks < 1 {
		tasks = 1
	}
	o := &Operator{c: c, cfg: cfg, tasks: tasks}
	var err error
	switch c.algo {
	case AlgoDirect:
		o.direct, err = NewDirectScratch(c, tasks, nil)
	case AlgoOneByOne:
		o.one, err = NewOneByOneScratch(c, tasks, nil)
	case AlgoWinograd, AlgoConv3x3:
		o.winograd, err = NewWinogradScratch(c, tasks, nil)
	default:
		err = fmt.Errorf("unknown algorithm %d", int(c.algo))
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Compiled returns the compiled convolution the operator runs.
func (o *Operator) Compiled() *CompiledConv { return o.c }

// Tasks returns the operator's task count.
func (o *Operator) Tasks() int { return o.tasks }

// Run executes one convolution. Input and output are NHWC buffers matching
// the compiled shapes; their lengths are asserted here at the boundary, and
// the per-task paths below that perform no further checks. Tasks write
// disjoint output regions, so the only coordination is the phase barrier
// between the Winograd pack, compute and unpack passes.
func (o *Operator) Run(input, output []float32) error {
	in, err := tensor.NewView(input, o.c.p.InputShape())
	if err != nil {
		return fmt.Errorf("conv input: %v: %w", err, ErrShape)
	}
	out, err := tensor.NewView(output, o.c.p.OutputShape())
	if err != nil {
		return fmt.Errorf("conv output: %v: %w", err, ErrShape)
	}
	src, dst := in.Data(), out.Data()

	workers := o.cfg.NumWorkers
	switch o.c.algo {
	case AlgoDirect:
		return parallel.Run(o.tasks, workers, func(task int) error {
			RunDirect(o.c, o.direct, src, dst, task)
			return nil
		})
	case AlgoOneByOne:
		return parallel.Run(o.tasks, workers, func(task int) error {
			return RunOneByOne(o.c, o.one, src, dst, task)
		})
	default:
		compute := RunWinograd
		if o.c.algo == AlgoConv3x3 {
			compute = RunConv3x3
		}
		if err := parallel.Run(o.tasks, workers, func(task int) error {
			PackWinogradInput(o.c, o.winograd, src, task)
			return nil
		}); err != nil {
			return err
		}
		if err := parallel.Run(o.tasks, workers, func(task int) error {
			compute(o.c, o.winograd, task)
			return nil
		}); err != nil {
			return err
		}
		return parallel.Run(o.tasks, workers, func(task int) error {
			UnpackWinogradOutput(o.c, o.winograd, dst, task)
			return nil
		})
	}
}
