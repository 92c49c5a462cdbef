// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/bibharvest/internal/browser"
	"github.com/pdiddy/bibharvest/internal/site"
	"github.com/pdiddy/bibharvest/pkg/types"
)

// PageFunc fetches one result page and reports its records and whether the
// portal advertises a further page. The pagination controller consumes
// this signature; the real implementation is PageLoader.Fetch, tests use
// fakes.
type PageFunc func(ctx context.Context, page int) (records []types.Record, hasNext bool, err error)

// PageLoader interprets a site adapter against a live browser session to
// produce the records of one result page.
type PageLoader struct {
	Session   browser.Session
	Adapter   site.Adapter
	Extractor *Extractor
	Query     string
	PageSize  int
	Timeout   time.Duration
	Log       io.Writer
}

// Fetch loads one result page. The sequence mirrors the manual workflow on
// these portals: navigate, wait for the result list, run the bulk BibTeX
// export when the portal has one, then read the list markup for
// field-level extraction.
func (l *PageLoader) Fetch(ctx context.Context, page int) ([]types.Record, bool, error) {
	pageURL := l.Adapter.BuildSearchURL(l.Query, page, l.PageSize)
	log := l.Log
	if log == nil {
		log = io.Discard
	}

	if err := l.Session.Open(ctx, pageURL); err != nil {
		// A challenge interstitial often presents as a 403/503 document;
		// let the probe decide before the navigation error is reported.
		if l.Session.Blocked(ctx) {
			return nil, false, &BlockedError{URL: pageURL, Page: page}
		}
		return nil, false, err
	}

	// Wait for either a result item or the portal's empty-state marker: a
	// zero-hit query still renders a page, and must not read as a layout
	// change or a load failure.
	waitSel := l.Adapter.ResultSelector()
	if ns := l.Adapter.NoResultsSelector(); ns != "" {
		waitSel += ", " + ns
	}
	if err := l.Session.WaitVisible(ctx, waitSel, l.Timeout); err != nil {
		if l.Session.Blocked(ctx) {
			return nil, false, &BlockedError{URL: pageURL, Page: page}
		}
		var timeout *browser.TimeoutError
		if errors.As(err, &timeout) {
			return nil, false, err // transient; supervisor escalates on exhaustion
		}
		return nil, false, &StructuralError{URL: pageURL, Selector: waitSel, Page: page, Err: err}
	}

	// Grab the whole document once; extraction is pure from here on.
	pageHTML, err := l.Session.HTML(ctx, "body")
	if err != nil {
		return nil, false, fmt.Errorf("reading page %d markup: %w", page, err)
	}

	records, err := l.Extractor.Extract(l.Adapter, pageHTML)
	if err != nil {
		return nil, false, &StructuralError{URL: pageURL, Selector: l.Adapter.ResultSelector(), Page: page, Err: err}
	}

	if len(records) == 0 {
		// A loaded page with zero results, the first page included, is
		// the end of the result list; the controller treats it as
		// Exhausted.
		return nil, false, nil
	}

	if plan := l.Adapter.ExportAffordance(); plan != nil {
		payload, err := l.runExport(ctx, plan)
		if err != nil {
			// Best effort: raw entries are synthesized from fields when
			// the export modal misbehaves, exactly like a manual run.
			fmt.Fprintf(log, "warning: %s bulk export failed on page %d, synthesizing entries: %v\n",
				l.Adapter.Source(), page, err)
		} else if payload != "" {
			records = AttachRaw(records, payload, l.Adapter.Source())
		}
	}

	return records, l.hasNextPage(pageHTML), nil
}

// runExport drives the portal's export modal and decodes the BibTeX
// payload from the download link's data: URI.
func (l *PageLoader) runExport(ctx context.Context, plan *site.ExportPlan) (string, error) {
	if err := l.Session.Click(ctx, plan.SelectAll); err != nil {
		return "", fmt.Errorf("selecting all results: %w", err)
	}
	if err := l.Session.Click(ctx, plan.OpenModal); err != nil {
		return "", fmt.Errorf("opening export modal: %w", err)
	}
	if err := l.Session.WaitVisible(ctx, plan.Modal, l.Timeout); err != nil {
		return "", fmt.Errorf("export modal did not appear: %w", err)
	}
	if plan.FormatOption != "" {
		if err := l.Session.Click(ctx, plan.FormatOption); err != nil {
			return "", fmt.Errorf("selecting BibTeX format: %w", err)
		}
	}

	href, ok, err := l.Session.AttrValue(ctx, plan.DownloadLink, "href")
	if err != nil {
		return "", fmt.Errorf("reading download link: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("download link has no href attribute")
	}

	payload, err := decodeDataURI(href)
	if err != nil {
		return "", err
	}

	if plan.CloseModal != "" {
		// Ignore close failures; the next navigation discards the modal.
		_ = l.Session.Click(ctx, plan.CloseModal)
	}
	return payload, nil
}

// decodeDataURI extracts the payload of a data: URI as the portals emit
// them for citation downloads.
func decodeDataURI(href string) (string, error) {
	if !strings.HasPrefix(href, "data:") {
		return "", fmt.Errorf("download link is not a data URI: %.40q", href)
	}
	idx := strings.Index(href, ",")
	if idx < 0 {
		return "", fmt.Errorf("malformed data URI")
	}
	payload, err := url.QueryUnescape(href[idx+1:])
	if err != nil {
		return "", fmt.Errorf("decoding data URI payload: %w", err)
	}
	return payload, nil
}

// hasNextPage checks the fetched markup for the adapter's next-page
// affordance.
func (l *PageLoader) hasNextPage(pageHTML string) bool {
	sel := l.Adapter.NextPageAffordance()
	if sel == "" {
		return true // no affordance to inspect; rely on MaxPages
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return true
	}
	return doc.Find(sel).Length() > 0
}
