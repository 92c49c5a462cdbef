// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the bibharvest pipeline:
// the canonical bibliographic Record and the per-stage configuration structs.
package types

// Source identifies the portal a Record was harvested from.
type Source string

const (
	// SourceACM is the ACM Digital Library.
	SourceACM Source = "acm"

	// SourceSAGE is SAGE Journals.
	SourceSAGE Source = "sage"

	// SourceCorpus marks entries read back from a previously unified corpus
	// file whose original source comment was missing or unparseable.
	SourceCorpus Source = "corpus"
)

// KnownSources lists harvestable sources in priority order. The order is
// load-bearing: CorpusUnifier breaks completeness ties in favor of the
// source that appears first here. SourceCorpus is deliberately last so a
// fresh harvest beats a stale corpus copy of equal completeness.
var KnownSources = []Source{SourceACM, SourceSAGE, SourceCorpus}

// Record is one harvested article. A Record is immutable once created:
// merging two Records produces a new value, never an in-place update.
type Record struct {
	// Source is the portal this record was harvested from. Always set.
	Source Source `json:"source" yaml:"source"`

	// Title is the article title. Never empty; extraction skips results
	// without one.
	Title string `json:"title" yaml:"title"`

	// Authors lists the authors in the order the source presented them.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Year is the publication year, 0 when unknown.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// Venue is the journal or proceedings name, empty when unknown.
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`

	// DOI is the document identifier as published, empty when unknown.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Abstract is the article abstract, empty when unknown.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// CountryOfFirstAuthor is derived by downstream geographic analysis,
	// not filled at harvest time.
	CountryOfFirstAuthor string `json:"country_of_first_author,omitempty" yaml:"country_of_first_author,omitempty"`

	// RawEntry is the original BibTeX block exactly as the source exported
	// it. When present it is written back verbatim, so a round trip through
	// export and unification is lossless.
	RawEntry string `json:"raw_entry,omitempty" yaml:"raw_entry,omitempty"`
}

// Completeness counts the filled bibliographic fields. CorpusUnifier uses
// it to pick the merge winner among duplicates.
func (r Record) Completeness() int {
	n := 0
	if r.Title != "" {
		n++
	}
	if len(r.Authors) > 0 {
		n++
	}
	if r.Year != 0 {
		n++
	}
	if r.Venue != "" {
		n++
	}
	if r.DOI != "" {
		n++
	}
	if r.Abstract != "" {
		n++
	}
	return n
}

// Merge returns a new Record based on r with empty fields filled from other.
// Neither input is modified.
func (r Record) Merge(other Record) Record {
	out := r
	out.Authors = append([]string(nil), r.Authors...)
	if out.Title == "" {
		out.Title = other.Title
	}
	if len(out.Authors) == 0 && len(other.Authors) > 0 {
		out.Authors = append([]string(nil), other.Authors...)
	}
	if out.Year == 0 {
		out.Year = other.Year
	}
	if out.Venue == "" {
		out.Venue = other.Venue
	}
	if out.DOI == "" {
		out.DOI = other.DOI
	}
	if out.Abstract == "" {
		out.Abstract = other.Abstract
	}
	if out.CountryOfFirstAuthor == "" {
		out.CountryOfFirstAuthor = other.CountryOfFirstAuthor
	}
	if out.RawEntry == "" {
		out.RawEntry = other.RawEntry
	}
	return out
}

// SourcePriority returns the position of s in KnownSources, with unknown
// sources sorting after all known ones.
func SourcePriority(s Source) int {
	for i, k := range KnownSources {
		if k == s {
			return i
		}
	}
	return len(KnownSources)
}
