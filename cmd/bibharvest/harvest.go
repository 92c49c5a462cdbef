// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bibharvest/internal/harvest"
	"github.com/pdiddy/bibharvest/internal/site"
	"github.com/pdiddy/bibharvest/internal/store"
	"github.com/pdiddy/bibharvest/pkg/types"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest [query]",
	Short: "Harvest bibliographic records from the portals",
	Long: `Harvest runs the search query against each requested portal in a headless
browser, walks the result pages, and writes one timestamped BibTeX export
file per source under data/raw/<source>/.

A session that gets blocked by bot defense keeps everything collected so
far; the export is written for whatever terminal state the session
reaches. Blocked sources sit out a cooldown before the next attempt.`,
	Args: cobra.ArbitraryArgs,
	RunE: runHarvest,
}

func runHarvest(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")
	if query == "" {
		query = strings.Join(args, " ")
	}
	if query == "" {
		return fmt.Errorf("a search query is required")
	}

	cfg := pipelineConfig()
	overlayHarvestFlags(cmd, &cfg.Harvest)

	sources, err := parseSources(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := harvest.NewRunner(site.NewRegistry(), cfg.Harvest, os.Stderr)

	if ledger, err := store.Open(cfg.Store); err != nil {
		fmt.Fprintf(os.Stderr, "warning: run ledger unavailable: %v\n", err)
	} else {
		defer ledger.Close()
		runner.Ledger = ledger
	}

	runs := runner.Run(ctx, query, sources)

	failed := 0
	for _, run := range runs {
		switch run.State {
		case harvest.StateExhausted:
			fmt.Fprintf(os.Stdout, "%s: %d records in %d page(s) -> %s\n",
				run.Source, run.Records, run.Pages, run.Export)
		case harvest.StateBlocked:
			fmt.Fprintf(os.Stdout, "%s: blocked after %d record(s): %s\n",
				run.Source, run.Records, run.Cause)
			if run.Export != "" {
				fmt.Fprintf(os.Stdout, "%s: partial export -> %s\n", run.Source, run.Export)
			}
		default:
			failed++
			fmt.Fprintf(os.Stdout, "%s: %s: %s\n", run.Source, run.State, run.Cause)
		}
	}

	if failed == len(runs) {
		return fmt.Errorf("every source failed")
	}
	return nil
}

func overlayHarvestFlags(cmd *cobra.Command, cfg *types.HarvestConfig) {
	if cmd.Flags().Changed("raw-dir") {
		cfg.RawDir, _ = cmd.Flags().GetString("raw-dir")
	}
	if cmd.Flags().Changed("max-pages") {
		cfg.MaxPages, _ = cmd.Flags().GetInt("max-pages")
	}
	if cmd.Flags().Changed("page-size") {
		cfg.PageSize, _ = cmd.Flags().GetInt("page-size")
	}
	if cmd.Flags().Changed("headed") {
		headed, _ := cmd.Flags().GetBool("headed")
		cfg.Browser.Headless = !headed
	}
	if cmd.Flags().Changed("user-agent") {
		cfg.Browser.UserAgent, _ = cmd.Flags().GetString("user-agent")
	}
	durationFlag(cmd, "timeout", &cfg.Browser.Timeout)
	durationFlag(cmd, "page-delay", &cfg.PageDelay)
	durationFlag(cmd, "block-cooldown", &cfg.BlockCooldown)
}

func parseSources(cmd *cobra.Command) ([]types.Source, error) {
	raw, _ := cmd.Flags().GetString("sources")
	if raw == "" {
		return nil, nil // runner falls back to every registered source
	}

	registry := site.NewRegistry()
	var out []types.Source
	for _, part := range strings.Split(raw, ",") {
		s := types.Source(strings.ToLower(strings.TrimSpace(part)))
		if _, ok := registry.Lookup(s); !ok {
			return nil, fmt.Errorf("unknown source %q: known sources are %v", s, registry.Sources())
		}
		out = append(out, s)
	}
	return out, nil
}

func init() {
	harvestCmd.Flags().String("query", "", "search query (alternative to positional arguments)")
	harvestCmd.Flags().String("sources", "", "comma-separated sources to harvest (default: all)")
	harvestCmd.Flags().String("raw-dir", "", "base directory for export files")
	harvestCmd.Flags().Int("max-pages", 0, "maximum result pages per source")
	harvestCmd.Flags().Int("page-size", 0, "results requested per page")
	harvestCmd.Flags().Bool("headed", false, "run the browser with a visible window")
	harvestCmd.Flags().String("user-agent", "", "User-Agent string the browser presents")
	harvestCmd.Flags().Duration("timeout", 0, "per-operation browser timeout")
	harvestCmd.Flags().Duration("page-delay", 0, "minimum interval between page fetches")
	harvestCmd.Flags().Duration("block-cooldown", 0, "how long a blocked source is skipped")

	rootCmd.AddCommand(harvestCmd)
}
