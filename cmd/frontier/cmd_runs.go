package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var runsLimit int

// runsCmd lists stored frontier runs
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored frontier runs, newest first",
	RunE:  runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to list")
}

func runRuns(cmd *cobra.Command, args []string) error {
	// Listing never needs a price source
	offline = true

	sess, err := setup(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	summaries, err := sess.container.AnalysisService.Runs(runsLimit)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No frontier runs stored")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSIMULATIONS\tACCEPTABLE\tTANGENCY SHARPE\tMIN RISK")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d/%d\t%.3f\t%.2f%%\n",
			s.ID,
			s.CreatedAt.Local().Format(time.DateTime),
			s.Simulations,
			s.AcceptablePoints,
			s.FrontierPoints,
			s.Tangency.Sharpe,
			s.MinRisk.Risk*100,
		)
	}
	return w.Flush()
}
