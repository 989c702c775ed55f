// Command gridflow reads a grid case file, runs a power flow (and
// optionally a continuation power flow), and prints the results.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/edp1096/gridflow/pkg/compile"
	"github.com/edp1096/gridflow/pkg/cpf"
	"github.com/edp1096/gridflow/pkg/driver"
	"github.com/edp1096/gridflow/pkg/gridfile"
	"github.com/edp1096/gridflow/pkg/model"
	"github.com/edp1096/gridflow/pkg/pflog"
	"github.com/edp1096/gridflow/pkg/qcontrol"
	"github.com/edp1096/gridflow/pkg/solver"
	"github.com/edp1096/gridflow/pkg/util"
)

var (
	kernelFlag   = flag.String("solver", "nr", "power-flow kernel: nr, iwamoto, dc, helm")
	qcontrolFlag = flag.Bool("qcontrol", true, "enable PV/PQ reactive-limit switching")
	verboseFlag  = flag.Bool("v", false, "print per-island log entries")
	cpfFlag      = flag.Bool("cpf", false, "trace a continuation power flow instead of a single solve")
	cpfStepFlag  = flag.Float64("cpf-step", 0.05, "continuation initial step")
)

func kernelFromFlag(s string) solver.Type {
	switch s {
	case "iwamoto":
		return solver.IWAMOTO
	case "dc":
		return solver.DC
	case "helm":
		return solver.HELM
	default:
		return solver.NR
	}
}

func printPFResult(res *driver.Result) {
	fmt.Println("\nPower Flow Results:")
	fmt.Println("===================")
	fmt.Printf("Converged: %v\n", res.Converged)
	if len(res.Switched) > 0 {
		fmt.Printf("Buses switched to Q-limit: %v\n", res.Switched)
	}
	for _, w := range res.Warnings {
		fmt.Printf("warning: %s\n", w)
	}

	fmt.Println("\nBus voltages:")
	for _, b := range res.Buses {
		fmt.Printf("  %-12s %s  %6.2f deg  P=%8.3f MW  Q=%8.3f MVAr  (%s)\n",
			b.BusID, util.FormatPU(b.Vpu), b.AngleDeg, b.PMW, b.QMVAr, b.Type)
	}

	fmt.Println("\nBranch flows:")
	for _, br := range res.Branches {
		if !br.Active {
			fmt.Printf("  %-12s (inactive)\n", br.BranchID)
			continue
		}
		fmt.Printf("  %-12s Sf=%8.3f%+8.3fj MVA  loss=%.3f MW  loading=%s\n",
			br.BranchID, real(br.Sf), imag(br.Sf), br.LossMW, util.FormatLoadingPct(br.LoadingPct))
	}
}

// compileForCPF compiles grid's whole-network NumericCircuit for the
// continuation tracer, which (unlike driver.Run) operates on one circuit
// rather than per-island results.
func compileForCPF(grid *model.Grid) (*compile.NumericCircuit, error) {
	compiled, err := compile.Compile(grid)
	if err != nil {
		return nil, fmt.Errorf("compiling for continuation power flow: %w", err)
	}
	return compiled.Whole, nil
}

func printCPFResult(traj *cpf.Trajectory) {
	fmt.Println("\nContinuation Power Flow Results:")
	fmt.Println("=================================")
	fmt.Printf("Converged: %v, reason: %s\n", traj.Converged, traj.StopReason)
	if traj.NoseIndex >= 0 {
		fmt.Printf("Nose point: lambda=%.4f at step %d\n", traj.NoseLambda, traj.NoseIndex)
	}
	fmt.Printf("Traced %d points, final lambda=%.4f\n", len(traj.Points), traj.Points[len(traj.Points)-1].Lambda)
}

func run() error {
	flag.Parse()
	if flag.NArg() != 1 {
		return fmt.Errorf("usage: gridflow [flags] <case_file.yaml>")
	}

	grid, err := gridfile.Load(flag.Arg(0))
	if err != nil {
		return fmt.Errorf("loading case file: %w", err)
	}

	logger := pflog.New(os.Stdout, pflog.Info)
	if !*verboseFlag {
		logger = pflog.New(nil, pflog.Error)
	}

	ctx := context.Background()

	opts := driver.DefaultOptions()
	opts.Kernel = kernelFromFlag(*kernelFlag)
	opts.Logger = logger
	if !*qcontrolFlag {
		opts.QControl.Mode = qcontrol.Off
	}

	result, err := driver.Run(ctx, grid, opts)
	if err != nil {
		return fmt.Errorf("running power flow: %w", err)
	}
	printPFResult(result)

	if *cpfFlag {
		compiled, err := compileForCPF(grid)
		if err != nil {
			return err
		}
		direction := make([]complex128, compiled.N())
		for i, bt := range compiled.BusTypes {
			if bt.String() == "PQ" {
				direction[i] = complex(-0.1, -0.03) // 0.1 p.u. P / 0.03 p.u. Q load growth per lambda unit
			}
		}
		cpfOpts := cpf.DefaultOptions()
		cpfOpts.InitialStep = *cpfStepFlag
		traj, err := cpf.Run(ctx, compiled, direction, cpfOpts)
		if err != nil {
			return fmt.Errorf("running continuation power flow: %w", err)
		}
		printCPFResult(traj)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("gridflow: %v", err)
	}
}
