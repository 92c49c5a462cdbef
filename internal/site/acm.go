// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package site

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/pdiddy/bibharvest/pkg/types"
)

// acmDOIFromHref pulls the DOI out of an ACM article link
// (e.g. "/doi/10.1145/3576915.3616676").
var acmDOIFromHref = regexp.MustCompile(`/doi/(?:abs/|full/)?(10\.\d{4,}[^?#]*)`)

// ACMAdapter targets the ACM Digital Library search interface. Its search
// URL uses a zero-based startPage parameter and supports a bulk citation
// export modal.
type ACMAdapter struct{}

// NewACMAdapter returns the ACM Digital Library adapter.
func NewACMAdapter() *ACMAdapter { return &ACMAdapter{} }

func (a *ACMAdapter) Source() types.Source { return types.SourceACM }

func (a *ACMAdapter) BaseURL() string { return "https://dl.acm.org" }

func (a *ACMAdapter) SearchPath() string { return "/action/doSearch" }

func (a *ACMAdapter) BuildSearchURL(query string, page, pageSize int) string {
	if pageSize <= 0 {
		pageSize = 50
	}
	// ACM pages are zero-based in the URL.
	return fmt.Sprintf("%s%s?AllField=%s&pageSize=%d&startPage=%d",
		a.BaseURL(), a.SearchPath(), url.QueryEscape(query), pageSize, page-1)
}

func (a *ACMAdapter) ResultSelector() string { return "li.search__item" }

func (a *ACMAdapter) NoResultsSelector() string { return "div.search-result__no-result" }

func (a *ACMAdapter) FieldSelectors() map[string]FieldRule {
	return map[string]FieldRule{
		"title":   {Selector: "h5.issue-item__title a"},
		"authors": {Selector: "ul[aria-label='authors'] li a"},
		"year":    {Selector: "div.bookPubDate", Pattern: regexp.MustCompile(`(\d{4})`)},
		"venue":   {Selector: "div.issue-item__detail a.epub-section__title"},
		"doi":     {Selector: "h5.issue-item__title a", Attr: "href", Pattern: acmDOIFromHref},
		"abstract": {
			Selector: "div.issue-item__abstract p",
		},
	}
}

func (a *ACMAdapter) NextPageAffordance() string { return "a.pagination__btn--next" }

func (a *ACMAdapter) ExportAffordance() *ExportPlan {
	return &ExportPlan{
		SelectAll:    "input[name='markall']",
		OpenModal:    "a.export-citation",
		Modal:        "div.modal__dialog",
		FormatOption: "#citation-format option[value='bibtex']",
		DownloadLink: "div.modal__dialog a.download__btn",
		CloseModal:   "i.icon-close_thin",
	}
}
