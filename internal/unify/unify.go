// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package unify folds every harvested export file, plus any previously
// unified corpus, into a single deduplicated corpus file. Unification is
// idempotent: feeding the corpus back through produces the same corpus.
package unify

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"

	"github.com/pdiddy/bibharvest/internal/bib"
	"github.com/pdiddy/bibharvest/pkg/types"
)

// Summary reports what one unification run did.
type Summary struct {
	Files      int
	Entries    int
	Unique     int
	Duplicates int

	CorpusPath     string
	DuplicatesPath string
}

// duplicate is one losing half of a merge, kept for the audit file.
type duplicate struct {
	record types.Record
	winner types.Source
}

// Run scans cfg.RawDir for export files, merges them with the existing
// corpus, and atomically rewrites the corpus and duplicates files under
// cfg.ProcessedDir. A file lock on the corpus path keeps concurrent runs
// from interleaving writes; a second runner fails fast instead of waiting.
func Run(cfg types.UnifyConfig, w io.Writer) (Summary, error) {
	if w == nil {
		w = io.Discard
	}

	corpusPath := filepath.Join(cfg.ProcessedDir, cfg.CorpusFile)
	duplicatesPath := filepath.Join(cfg.ProcessedDir, cfg.DuplicatesFile)
	summary := Summary{CorpusPath: corpusPath, DuplicatesPath: duplicatesPath}

	if err := os.MkdirAll(cfg.ProcessedDir, 0o755); err != nil {
		return summary, fmt.Errorf("creating processed directory: %w", err)
	}

	lock := flock.New(corpusPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return summary, fmt.Errorf("acquiring corpus lock: %w", err)
	}
	if !locked {
		return summary, fmt.Errorf("corpus %s is locked by another unification run", corpusPath)
	}
	defer lock.Unlock()

	// The existing corpus goes first so its entries anchor the output
	// order; fresh exports then fill or displace them.
	inputs := []string{}
	if _, err := os.Stat(corpusPath); err == nil {
		inputs = append(inputs, corpusPath)
	}
	exports, err := findExports(cfg.RawDir)
	if err != nil {
		return summary, err
	}
	inputs = append(inputs, exports...)
	if len(inputs) == 0 {
		return summary, fmt.Errorf("no .bib files found under %s", cfg.RawDir)
	}

	var (
		ordered []types.Record
		index   = map[string]int{}
		dups    []duplicate
	)

	for _, path := range inputs {
		records, err := readExport(path, corpusPath)
		if err != nil {
			fmt.Fprintf(w, "warning: skipping %s: %v\n", path, err)
			continue
		}
		summary.Files++
		summary.Entries += len(records)

		for _, r := range records {
			key := bib.Key(r)
			at, seen := index[key]
			if !seen {
				index[key] = len(ordered)
				ordered = append(ordered, r)
				continue
			}

			winner, loser := pickWinner(ordered[at], r)
			ordered[at] = winner.Merge(loser)
			dups = append(dups, duplicate{record: loser, winner: winner.Source})
		}
	}

	summary.Unique = len(ordered)
	summary.Duplicates = len(dups)

	if err := writeCorpus(corpusPath, ordered); err != nil {
		return summary, err
	}
	if err := writeDuplicates(duplicatesPath, dups); err != nil {
		return summary, err
	}

	fmt.Fprintf(w, "unified %d entries from %d files: %d unique, %d duplicates merged\n",
		summary.Entries, summary.Files, summary.Unique, summary.Duplicates)
	return summary, nil
}

// pickWinner orders two records for merging: the more complete record
// wins, and on a completeness tie the higher-priority source wins. The
// corpus source sorts last, so a fresh harvest displaces an equally
// complete corpus copy.
func pickWinner(a, b types.Record) (winner, loser types.Record) {
	ca, cb := a.Completeness(), b.Completeness()
	if cb > ca {
		return b, a
	}
	if cb == ca && types.SourcePriority(b.Source) < types.SourcePriority(a.Source) {
		return b, a
	}
	return a, b
}

// findExports walks root for .bib files, sorted for deterministic input
// order.
func findExports(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".bib") {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	sort.Strings(out)
	return out, nil
}

// readExport parses one export file into records, falling back to a
// source inferred from the file's location when an entry carries no
// source comment.
func readExport(path, corpusPath string) ([]types.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := bib.Parse(f)
	if err != nil {
		return nil, err
	}

	fallback := sourceFromPath(path)
	if path == corpusPath {
		fallback = types.SourceCorpus
	}

	records := make([]types.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, e.Record(fallback))
	}
	return records, nil
}

// sourceFromPath infers the harvest source from the export layout
// (data/raw/<source>/...). Unrecognized layouts read as corpus entries so
// they lose completeness ties to attributed harvests.
func sourceFromPath(path string) types.Source {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		for _, s := range types.KnownSources {
			if part == string(s) {
				return s
			}
		}
	}
	return types.SourceCorpus
}

// writeCorpus atomically replaces the corpus file. The write goes to a
// temp file in the same directory so the rename cannot cross filesystems.
func writeCorpus(path string, records []types.Record) error {
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%% Source: %s\n", r.Source)
		b.WriteString(bib.Format(r))
		b.WriteString("\n")
	}
	return atomicWrite(path, []byte(b.String()))
}

// writeDuplicates rewrites the merge audit file: one entry per losing
// duplicate, attributed to both its own source and the surviving record's.
func writeDuplicates(path string, dups []duplicate) error {
	var b strings.Builder
	for i, d := range dups {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%% Source (duplicate): %s, merged into %s\n", d.record.Source, d.winner)
		b.WriteString(bib.Format(d.record))
		b.WriteString("\n")
	}
	return atomicWrite(path, []byte(b.String()))
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
