package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var evaluateWeights string

// evaluateCmd reports metrics and confidence bands of one allocation
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate an allocation against the return statistics",
	Long: `Evaluate an allocation and print its expected annual return, volatility,
Sharpe ratio and the 68%, 95% and 99.7% confidence bands.

Examples:
  frontier evaluate                                  # configured allocation
  frontier evaluate --weights IBOV=0.5,SELIC=0.5`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&evaluateWeights, "weights", "", "Allocation as LABEL=weight pairs (omitted labels are 0)")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	allocation, err := parseWeights(evaluateWeights)
	if err != nil {
		return err
	}

	sess, err := setup(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	report, err := sess.container.AnalysisService.AnalyzeAllocation(sess.ctx, allocation)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), report.String())
	return nil
}
