// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package site

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/pdiddy/bibharvest/pkg/types"
)

var sageDOIFromHref = regexp.MustCompile(`/doi/(?:abs/|full/|pdf/)?(10\.\d{4,}[^?#]*)`)

// SAGEAdapter targets SAGE Journals. The markup family is the same
// Atypon platform ACM uses, but the action-bar selectors and the export
// modal differ, and result pages are smaller.
type SAGEAdapter struct{}

// NewSAGEAdapter returns the SAGE Journals adapter.
func NewSAGEAdapter() *SAGEAdapter { return &SAGEAdapter{} }

func (s *SAGEAdapter) Source() types.Source { return types.SourceSAGE }

func (s *SAGEAdapter) BaseURL() string { return "https://journals.sagepub.com" }

func (s *SAGEAdapter) SearchPath() string { return "/action/doSearch" }

func (s *SAGEAdapter) BuildSearchURL(query string, page, pageSize int) string {
	if pageSize <= 0 {
		pageSize = 20
	}
	return fmt.Sprintf("%s%s?AllField=%s&pageSize=%d&startPage=%d",
		s.BaseURL(), s.SearchPath(), url.QueryEscape(query), pageSize, page-1)
}

func (s *SAGEAdapter) ResultSelector() string { return "div.issue-item" }

func (s *SAGEAdapter) NoResultsSelector() string { return "div.search-result__no-result" }

func (s *SAGEAdapter) FieldSelectors() map[string]FieldRule {
	return map[string]FieldRule{
		"title":   {Selector: "h5.issue-item__title a"},
		"authors": {Selector: "div.issue-item__authors a"},
		"year":    {Selector: "span.issue-item__date", Pattern: regexp.MustCompile(`(\d{4})`)},
		"venue":   {Selector: "div.issue-item__journal a"},
		"doi":     {Selector: "h5.issue-item__title a", Attr: "href", Pattern: sageDOIFromHref},
		"abstract": {
			Selector: "div.issue-item__abstract",
		},
	}
}

func (s *SAGEAdapter) NextPageAffordance() string { return "a[aria-label='next']" }

func (s *SAGEAdapter) ExportAffordance() *ExportPlan {
	return &ExportPlan{
		SelectAll:    "input#action-bar-select-all",
		OpenModal:    "a.article-actionbar__btn.export-citation",
		Modal:        "#exportCitation",
		FormatOption: "#citation-format option[value='bibtex']",
		DownloadLink: "#exportCitation a.download__btn",
		CloseModal:   "#exportCitation button.close",
	}
}
