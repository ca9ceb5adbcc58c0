package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// fetchCmd downloads monthly closes into the history database
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch monthly closes for every asset and store them",
	RunE:  runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	if offline {
		return fmt.Errorf("fetch cannot run with --offline")
	}

	sess, err := setup(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	n, err := sess.container.AnalysisService.RefreshPrices(sess.ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %d symbols\n", n)
	return nil
}
