package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/aristath/frontier/internal/di"
	"github.com/aristath/frontier/internal/modules/analysis"
	"github.com/aristath/frontier/internal/modules/frontier"
)

var (
	simulateN         int
	simulateWorkers   int
	simulateSeed      uint64
	simulatePin       string
	simulateRule      string
	simulateThreshold float64
	simulateOut       string
	simulateNoExport  bool
	simulateQuiet     bool
)

// simulateCmd runs the Monte Carlo frontier search
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Sample allocations and extract the efficient frontier",
	Long: `Sample random allocations under the pinned-weight constraints, extract the
upper efficient frontier and report the tangency and minimum-risk portfolios.
The full sample, the acceptable frontier and the charts are exported.

Examples:
  frontier simulate --n 50000 --seed 7
  frontier simulate --pin SELIC=0.4 --rule min_sharpe --threshold 0.5
  frontier simulate --out ./results`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().IntVar(&simulateN, "n", 0, "Number of simulations (defaults to SIMULATIONS)")
	simulateCmd.Flags().IntVar(&simulateWorkers, "workers", 0, "Concurrent workers (defaults to SIMULATION_WORKERS)")
	simulateCmd.Flags().Uint64Var(&simulateSeed, "seed", 0, "Random seed (0 uses SIMULATION_SEED or a fresh seed)")
	simulateCmd.Flags().StringVar(&simulatePin, "pin", "", "Pinned weights as LABEL=weight pairs (replaces the configured ones)")
	simulateCmd.Flags().StringVar(&simulateRule, "rule", "", "Acceptability rule: return_over_risk, min_sharpe, max_risk, all")
	simulateCmd.Flags().Float64Var(&simulateThreshold, "threshold", 1.0, "Threshold of the acceptability rule")
	simulateCmd.Flags().StringVar(&simulateOut, "out", "", "Export directory (defaults to <data-dir>/exports)")
	simulateCmd.Flags().BoolVar(&simulateNoExport, "no-export", false, "Skip CSV and chart export")
	simulateCmd.Flags().BoolVar(&simulateQuiet, "quiet", false, "Hide the progress line")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	opts := analysis.RunOptions{
		Simulations: simulateN,
		Workers:     simulateWorkers,
		Seed:        simulateSeed,
		Export:      !simulateNoExport,
	}

	if simulatePin != "" {
		pinned, err := parseWeights(simulatePin)
		if err != nil {
			return err
		}
		opts.Pinned = pinned
	}
	if simulateRule != "" {
		accept, err := frontier.ParseAcceptance(simulateRule, simulateThreshold)
		if err != nil {
			return err
		}
		opts.Accept = accept
	}

	var wireOpts []di.Option
	if simulateOut != "" {
		wireOpts = append(wireOpts, di.WithExportDir(simulateOut))
	}

	sess, err := setup(cmd, wireOpts...)
	if err != nil {
		return err
	}
	defer sess.Close()

	var progress frontier.Progress
	if !simulateQuiet {
		progress = progressPrinter(cmd.ErrOrStderr())
	}

	run, err := sess.container.AnalysisService.RunFrontier(sess.ctx, opts, progress)
	if !simulateQuiet {
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (seed %d)\n", run.Summary.ID, run.Summary.Seed)
	fmt.Fprint(out, run.String())
	if len(run.Files) > 0 {
		fmt.Fprintln(out, "\nExported:")
		for _, f := range run.Files {
			fmt.Fprintf(out, "  %s\n", f)
		}
	}
	return nil
}

// progressPrinter rewrites a single status line as chunks complete
func progressPrinter(w io.Writer) frontier.Progress {
	var mu sync.Mutex
	return func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "\rSimulating: %d/%d (%.0f%%)", done, total, 100*float64(done)/float64(total))
	}
}
