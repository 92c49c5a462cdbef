// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package site holds the per-portal adapters: pure configuration describing
// where one portal keeps its search form, result list, pagination, and bulk
// export affordance. Adapters never touch a browser; the harvest machinery
// interprets them, so adding a portal is a new adapter and a registry entry,
// nothing else.
package site

import (
	"regexp"
	"sort"

	"github.com/pdiddy/bibharvest/pkg/types"
)

// FieldRule describes how to extract one Record field from a result
// element: a CSS selector relative to the element, an optional attribute
// (text content when empty), and an optional capture pattern applied to
// the extracted string (group 1 wins).
type FieldRule struct {
	Selector string
	Attr     string
	Pattern  *regexp.Regexp
}

// ExportPlan is the selector sequence that drives a portal's bulk "export
// citations as BibTeX" modal. The download link carries a data: URI whose
// payload is the BibTeX text.
type ExportPlan struct {
	// SelectAll marks every result on the page.
	SelectAll string

	// OpenModal opens the export dialog.
	OpenModal string

	// Modal is the dialog container to wait for.
	Modal string

	// FormatOption selects the BibTeX format inside the dialog.
	FormatOption string

	// DownloadLink is the anchor whose href holds the data: URI payload.
	DownloadLink string

	// CloseModal dismisses the dialog so pagination can continue.
	CloseModal string
}

// Adapter is the site-specific configuration for one portal. Adapters are
// stateless and safe for concurrent use.
type Adapter interface {
	// Source names the portal this adapter serves.
	Source() types.Source

	// BaseURL is the portal origin, used for politeness preflight.
	BaseURL() string

	// BuildSearchURL returns the result-list URL for a query and a
	// 1-based page number.
	BuildSearchURL(query string, page, pageSize int) string

	// SearchPath is the path component probed against robots.txt.
	SearchPath() string

	// ResultSelector matches one result element in the list.
	ResultSelector() string

	// NoResultsSelector matches the portal's empty-state marker shown for
	// a zero-hit query. Paired with ResultSelector when waiting for the
	// page, it distinguishes "loaded, no hits" from "did not render".
	NoResultsSelector() string

	// FieldSelectors maps Record field names (title, authors, year,
	// venue, doi, abstract) to extraction rules.
	FieldSelectors() map[string]FieldRule

	// NextPageAffordance matches the "next page" control; its absence on
	// a page means the result list is exhausted.
	NextPageAffordance() string

	// ExportAffordance returns the bulk BibTeX export plan, or nil when
	// the portal has none and raw entries must be synthesized from
	// extracted fields.
	ExportAffordance() *ExportPlan
}

// Registry maps source names to adapters.
type Registry struct {
	adapters map[types.Source]Adapter
}

// NewRegistry returns a registry with the built-in adapters registered.
func NewRegistry() *Registry {
	r := &Registry{adapters: map[types.Source]Adapter{}}
	r.Register(NewACMAdapter())
	r.Register(NewSAGEAdapter())
	return r
}

// Register adds an adapter, replacing any previous one for the same source.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Source()] = a
}

// Lookup returns the adapter for a source.
func (r *Registry) Lookup(s types.Source) (Adapter, bool) {
	a, ok := r.adapters[s]
	return a, ok
}

// Sources lists registered sources in priority order, unknown ones last
// alphabetically.
func (r *Registry) Sources() []types.Source {
	out := make([]types.Source, 0, len(r.adapters))
	for s := range r.adapters {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := types.SourcePriority(out[i]), types.SourcePriority(out[j])
		if pi != pj {
			return pi < pj
		}
		return out[i] < out[j]
	})
	return out
}
