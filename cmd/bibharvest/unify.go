// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pdiddy/bibharvest/internal/store"
	"github.com/pdiddy/bibharvest/internal/unify"
)

var unifyCmd = &cobra.Command{
	Use:   "unify",
	Short: "Unify harvested exports into the deduplicated corpus",
	Long: `Unify scans data/raw/ for BibTeX export files, merges them with the
existing corpus, and rewrites data/processed/corpus_unified.bib.

Duplicates are detected by DOI, or by title plus first author when no DOI
is present. When two records collide, the more complete one wins; on a
completeness tie the higher-priority source wins. Losing duplicates are
appended to duplicates.bib for audit. Running unify twice is a no-op.`,
	RunE: runUnify,
}

func runUnify(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()
	if cmd.Flags().Changed("raw-dir") {
		cfg.Unify.RawDir, _ = cmd.Flags().GetString("raw-dir")
	}
	if cmd.Flags().Changed("processed-dir") {
		cfg.Unify.ProcessedDir, _ = cmd.Flags().GetString("processed-dir")
	}
	if cmd.Flags().Changed("corpus") {
		cfg.Unify.CorpusFile, _ = cmd.Flags().GetString("corpus")
	}

	summary, err := unify.Run(cfg.Unify, os.Stderr)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "corpus: %d unique entries -> %s\n", summary.Unique, summary.CorpusPath)
	if summary.Duplicates > 0 {
		fmt.Fprintf(os.Stdout, "duplicates: %d merged -> %s\n", summary.Duplicates, summary.DuplicatesPath)
	}

	if ledger, err := store.Open(cfg.Store); err == nil {
		defer ledger.Close()
		record := store.UnifyRun{
			ID:         uuid.NewString(),
			Files:      summary.Files,
			Entries:    summary.Entries,
			Unique:     summary.Unique,
			Duplicates: summary.Duplicates,
			Corpus:     summary.CorpusPath,
			Finished:   time.Now(),
		}
		if err := ledger.RecordUnify(context.Background(), record); err != nil {
			fmt.Fprintf(os.Stderr, "warning: recording unify run: %v\n", err)
		}
	} else {
		fmt.Fprintf(os.Stderr, "warning: run ledger unavailable: %v\n", err)
	}

	return nil
}

func init() {
	unifyCmd.Flags().String("raw-dir", "", "directory scanned recursively for .bib exports")
	unifyCmd.Flags().String("processed-dir", "", "directory receiving the corpus and duplicates files")
	unifyCmd.Flags().String("corpus", "", "corpus filename inside the processed directory")

	rootCmd.AddCommand(unifyCmd)
}
