// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export serializes a session's collected Records to per-source
// BibTeX files. Every run gets its own timestamped file under the source's
// directory, so historical harvests are never overwritten.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/bibharvest/internal/bib"
	"github.com/pdiddy/bibharvest/pkg/types"
)

const timestampFmt = "20060102_150405"

// Exporter writes export files under RawDir/<source>/.
type Exporter struct {
	RawDir string

	// Now is the clock, swapped in tests for deterministic filenames.
	Now func() time.Time
}

// NewExporter returns an exporter rooted at rawDir.
func NewExporter(rawDir string) *Exporter {
	return &Exporter{RawDir: rawDir, Now: time.Now}
}

// Export writes records to a new timestamped .bib file for the source and
// returns its path. RawEntry is written verbatim when present; otherwise
// an equivalent block is synthesized from the record's fields. Each entry
// is preceded by a source comment so unification can recover provenance.
func (e *Exporter) Export(source types.Source, query string, records []types.Record) (string, error) {
	if len(records) == 0 {
		return "", fmt.Errorf("nothing to export for %s", source)
	}

	dir := filepath.Join(e.RawDir, string(source))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	name := fmt.Sprintf("%s_%s_%s.bib",
		strings.ToUpper(string(source)), Slug(query), now().Format(timestampFmt))
	path := filepath.Join(dir, name)

	var b strings.Builder
	fmt.Fprintf(&b, "%% Query: %s\n%% Harvested: %s\n\n", query, now().Format(time.RFC3339))
	for _, r := range records {
		fmt.Fprintf(&b, "%% Source: %s\n", r.Source)
		b.WriteString(bib.Format(r))
		b.WriteString("\n\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("writing export file: %w", err)
	}
	return path, nil
}

// Slug turns a query string into a filename-safe token.
func Slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "query"
	}
	return b.String()
}
