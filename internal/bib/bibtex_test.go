// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bib

import (
	"strings"
	"testing"

	"github.com/pdiddy/bibharvest/pkg/types"
)

const sampleBib = `% Source: acm
@article{smith2023attention,
  title = {Attention Is Not {All} You Need},
  author = {Smith, Jane and Doe, John},
  year = {2023},
  journal = {ACM Computing Surveys},
  doi = {10.1145/3576915},
  abstract = {A survey of attention mechanisms.},
}

% Source: sage
@inproceedings{perez2022,
  title = "Generative Models in Education",
  author = {P{\'e}rez, Ana},
  year = 2022,
  booktitle = {Proc. Learning Analytics},
}
`

func TestParseWellFormed(t *testing.T) {
	entries, err := Parse(strings.NewReader(sampleBib))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Parse() returned %d entries, want 2", len(entries))
	}

	first := entries[0]
	if first.Type != "article" || first.CiteKey != "smith2023attention" {
		t.Errorf("header = (%q, %q), want (article, smith2023attention)", first.Type, first.CiteKey)
	}
	if first.SourceHint != "acm" {
		t.Errorf("SourceHint = %q, want acm", first.SourceHint)
	}
	if got := CleanValue(first.Fields["title"]); got != "Attention Is Not All You Need" {
		t.Errorf("title = %q", got)
	}
	if !strings.HasPrefix(first.Raw, "@article{smith2023attention,") {
		t.Errorf("Raw does not start with the original header: %q", first.Raw[:40])
	}

	second := entries[1]
	if second.Fields["year"] != "2022" {
		t.Errorf("bare year = %q, want 2022", second.Fields["year"])
	}
	if second.Fields["title"] != "Generative Models in Education" {
		t.Errorf("quoted title = %q", second.Fields["title"])
	}
}

func TestParseMalformedBlockSalvagesTitle(t *testing.T) {
	const malformed = `@article{broken
  title = {Still Recoverable},
  author = {Nobody
`
	entries, err := Parse(strings.NewReader(malformed))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Parse() returned %d entries, want 1", len(entries))
	}
	if got := entries[0].Fields["title"]; got != "Still Recoverable" {
		t.Errorf("salvaged title = %q, want %q", got, "Still Recoverable")
	}
	if entries[0].Raw == "" {
		t.Error("Raw is empty; malformed blocks must keep their original text")
	}
}

func TestRecordRoundTripPreservesRaw(t *testing.T) {
	entries, err := Parse(strings.NewReader(sampleBib))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	r := entries[0].Record(types.SourceACM)

	if r.Source != types.SourceACM {
		t.Errorf("Source = %q", r.Source)
	}
	if r.Year != 2023 {
		t.Errorf("Year = %d, want 2023", r.Year)
	}
	if len(r.Authors) != 2 || r.Authors[0] != "Smith, Jane" {
		t.Errorf("Authors = %v", r.Authors)
	}
	if r.Venue != "ACM Computing Surveys" {
		t.Errorf("Venue = %q", r.Venue)
	}

	// Formatting a record that carries its original block must reproduce
	// it byte for byte.
	if Format(r) != entries[0].Raw {
		t.Errorf("Format() did not return the verbatim raw entry:\n%s\nvs\n%s", Format(r), entries[0].Raw)
	}
}

func TestFormatSynthesizesWhenRawMissing(t *testing.T) {
	r := types.Record{
		Source:  types.SourceSAGE,
		Title:   "A Synthesized Entry",
		Authors: []string{"Lee, Kim"},
		Year:    2021,
		Venue:   "Journal of Tests",
		DOI:     "10.1177/xyz",
	}
	block := Format(r)

	for _, want := range []string{
		"@article{lee2021synthesized,",
		"title = {A Synthesized Entry}",
		"author = {Lee, Kim}",
		"year = {2021}",
		"journal = {Journal of Tests}",
		"doi = {10.1177/xyz}",
	} {
		if !strings.Contains(block, want) {
			t.Errorf("synthesized block missing %q:\n%s", want, block)
		}
	}

	// The synthesized block must itself parse back into the same record.
	entries, err := Parse(strings.NewReader(block))
	if err != nil || len(entries) != 1 {
		t.Fatalf("reparsing synthesized block: %v (%d entries)", err, len(entries))
	}
	back := entries[0].Record(types.SourceSAGE)
	if back.Title != r.Title || back.Year != r.Year || back.DOI != r.DOI {
		t.Errorf("round trip mismatch: %+v", back)
	}
}

func TestCiteKeySkipsLeadingArticles(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"A Synthesized Entry", "lee2021synthesized"},
		{"The Attention Economy", "lee2021attention"},
		{"An Empirical Study", "lee2021empirical"},
		{"Attention Is All You Need", "lee2021attention"},
		// A title that is nothing but an article still yields a token.
		{"The", "lee2021the"},
		{"", "lee2021"},
	}
	for _, tt := range tests {
		r := types.Record{Title: tt.title, Authors: []string{"Lee, Kim"}, Year: 2021}
		if got := CiteKey(r); got != tt.want {
			t.Errorf("CiteKey(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestSplitAuthors(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"Smith, Jane and Doe, John", 2},
		{"Single Author", 1},
		{"", 0},
		{"A and B and C", 3},
	}
	for _, tt := range tests {
		if got := SplitAuthors(tt.in); len(got) != tt.want {
			t.Errorf("SplitAuthors(%q) = %v, want %d authors", tt.in, got, tt.want)
		}
	}
}
