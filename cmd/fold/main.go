// Package main provides the Fold inference runtime CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fold-ml/fold/conv"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("Fold %s\n", version)
			return
		case "bench":
			runBench()
			return
		}
	}

	fmt.Println("Fold - CPU inference runtime for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  bench      Time the convolution strategies on ResNet layer shapes")
	fmt.Println("")
	fmt.Println("Coming soon: run, convert")
}

type benchLayer struct {
	name string
	p    conv.Params
}

// runBench times one Run per strategy choice on representative layer
// shapes, with the strategy picked automatically per shape.
func runBench() {
	layers := []benchLayer{
		{
			name: "conv1 7x7/2",
			p: conv.Params{
				Batch: 1, InputH: 224, InputW: 224, InputChannels: 3,
				OutputH: 112, OutputW: 112, OutputChannels: 64,
				KernelH: 7, KernelW: 7, StrideH: 2, StrideW: 2,
				PadTop: 3, PadBottom: 2, PadLeft: 3, PadRight: 2,
				DilationH: 1, DilationW: 1, Groups: 1, Act: conv.ActReLU,
			},
		},
		{
			name: "res2 3x3",
			p: conv.Params{
				Batch: 1, InputH: 56, InputW: 56, InputChannels: 64,
				OutputH: 56, OutputW: 56, OutputChannels: 64,
				KernelH: 3, KernelW: 3, StrideH: 1, StrideW: 1,
				PadTop: 1, PadBottom: 1, PadLeft: 1, PadRight: 1,
				DilationH: 1, DilationW: 1, Groups: 1, Act: conv.ActReLU,
			},
		},
		{
			name: "res3 1x1 expand",
			p: conv.Params{
				Batch: 1, InputH: 28, InputW: 28, InputChannels: 128,
				OutputH: 28, OutputW: 28, OutputChannels: 512,
				KernelH: 1, KernelW: 1, StrideH: 1, StrideW: 1,
				DilationH: 1, DilationW: 1, Groups: 1,
			},
		},
		{
			name: "res4 3x3/2",
			p: conv.Params{
				Batch: 1, InputH: 28, InputW: 28, InputChannels: 256,
				OutputH: 14, OutputW: 14, OutputChannels: 256,
				KernelH: 3, KernelW: 3, StrideH: 2, StrideW: 2,
				PadTop: 1, PadBottom: 0, PadLeft: 1, PadRight: 0,
				DilationH: 1, DilationW: 1, Groups: 1, Act: conv.ActReLU,
			},
		},
	}

	const iters = 10
	fmt.Printf("%-18s %-9s %12s %10s\n", "layer", "strategy", "time/run", "GFLOP/s")
	for _, l := range layers {
		p := l.p
		weight := make([]float32, p.WeightCount())
		bias := make([]float32, p.OutputChannels)
		for i := range weight {
			weight[i] = float32((i%13)-6) * 0.1
		}
		input := make([]float32, p.Batch*p.InputH*p.InputW*p.InputChannels)
		for i := range input {
			input[i] = float32(i%17) * 0.05
		}
		output := make([]float32, p.Batch*p.OutputH*p.OutputW*p.OutputChannels)

		compiled, err := conv.Compile(p, weight, bias)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: compile: %v\n", l.name, err)
			os.Exit(1)
		}
		op, err := conv.NewOperator(compiled, conv.DefaultParallelConfig())
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: operator: %v\n", l.name, err)
			os.Exit(1)
		}

		// Warm-up run, then timed runs.
		if err := op.Run(input, output); err != nil {
			fmt.Fprintf(os.Stderr, "%s: run: %v\n", l.name, err)
			os.Exit(1)
		}
		start := time.Now()
		for i := 0; i < iters; i++ {
			if err := op.Run(input, output); err != nil {
				fmt.Fprintf(os.Stderr, "%s: run: %v\n", l.name, err)
				os.Exit(1)
			}
		}
		perRun := time.Since(start) / iters

		flops := 2 * float64(p.Batch*p.OutputH*p.OutputW*p.OutputChannels) *
			float64(p.KernelH*p.KernelW*p.InputChannels/p.Groups)
		gflops := flops / perRun.Seconds() / 1e9
		fmt.Printf("%-18s %-9s %12s %10.2f\n", l.name, compiled.Algorithm(), perRun, gflops)
	}
}
