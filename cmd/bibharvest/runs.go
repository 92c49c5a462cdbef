// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bibharvest/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent harvest runs from the ledger",
	Long: `Runs lists recent harvest sessions recorded in the run ledger: which
source was harvested for which query, how the session ended, and where
the export file landed.`,
	RunE: runRuns,
}

func runRuns(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	cfg := pipelineConfig()
	ledger, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer ledger.Close()

	runs, err := ledger.ListHarvests(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-19s  %-6s  %-30s  %-10s  %7s  %s\n",
		"Started", "Source", "Query", "State", "Records", "Export")
	for _, r := range runs {
		query := r.Query
		if len(query) > 30 {
			query = query[:27] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-19s  %-6s  %-30s  %-10s  %7d  %s\n",
			r.Started.Local().Format(time.DateTime), r.Source, query, r.State, r.Records, r.Export)
	}
	return nil
}

func init() {
	runsCmd.Flags().Int("limit", 20, "maximum number of runs to list")

	rootCmd.AddCommand(runsCmd)
}
