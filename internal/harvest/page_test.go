// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/bibharvest/internal/browser"
	"github.com/pdiddy/bibharvest/internal/site"
	"github.com/pdiddy/bibharvest/pkg/types"
)

const noHitsFixture = `
<html><body>
<div class="search-result__no-result">
  <p>Your search returned no results.</p>
</div>
</body></html>`

func newTestLoader(fake *fakeBrowser, adapter site.Adapter) *PageLoader {
	return &PageLoader{
		Session:   fake,
		Adapter:   adapter,
		Extractor: NewExtractor(io.Discard),
		Query:     "q",
		PageSize:  20,
		Timeout:   time.Second,
		Log:       io.Discard,
	}
}

func TestFetchTreatsNoHitPageAsEndOfResults(t *testing.T) {
	fake := &fakeBrowser{html: noHitsFixture}
	l := newTestLoader(fake, site.NewACMAdapter())

	records, hasNext, err := l.Fetch(context.Background(), 1)
	if err != nil {
		t.Fatalf("Fetch() on a zero-hit page = %v, want nil", err)
	}
	if len(records) != 0 || hasNext {
		t.Errorf("got %d records, hasNext=%v, want an empty final page", len(records), hasNext)
	}
}

func TestControllerExhaustsOnNoHitQuery(t *testing.T) {
	// End to end over the real loader: a portal page that renders only
	// its empty-state marker is a clean exhaustion, not a failure.
	fake := &fakeBrowser{html: noHitsFixture}
	l := newTestLoader(fake, site.NewSAGEAdapter())
	sess := NewSession(types.SourceSAGE, "q", 5)
	c := newTestController(sess, l.Fetch, types.RetryConfig{MaxTransientRetries: 2})

	if state := c.Run(context.Background()); state != StateExhausted {
		t.Fatalf("state = %s (%v), want exhausted", state, sess.Cause)
	}
	if len(sess.Collected) != 0 || sess.Cause != nil {
		t.Errorf("collected = %d, cause = %v, want an empty clean run", len(sess.Collected), sess.Cause)
	}
}

func TestFetchReportsTimeoutWhenNothingRenders(t *testing.T) {
	// Neither a result item nor the empty-state marker: the page did not
	// render, which stays a retryable timeout.
	fake := &fakeBrowser{html: "<html><body><p>loading…</p></body></html>"}
	l := newTestLoader(fake, site.NewACMAdapter())

	_, _, err := l.Fetch(context.Background(), 1)
	var timeout *browser.TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("Fetch() = %v, want a selector timeout", err)
	}
}

const exportableFixture = `
<html><body>
<li class="search__item">
  <h5 class="issue-item__title"><a href="/doi/10.1145/3576915.1111111">Exported Result</a></h5>
  <ul aria-label="authors"><li><a>Okafor, Chinwe</a></li></ul>
  <div class="bookPubDate">May 2023</div>
</li>
<div class="modal__dialog"></div>
</body></html>`

func TestRunExportFailsCleanlyOnMissingHref(t *testing.T) {
	// Download link present but without an href: the export fails with a
	// plain message rather than wrapping a nil error.
	fake := &fakeBrowser{html: exportableFixture, attrOK: false}
	l := newTestLoader(fake, site.NewACMAdapter())

	_, err := l.runExport(context.Background(), l.Adapter.ExportAffordance())
	if err == nil {
		t.Fatal("runExport() = nil, want an error for the missing href")
	}
	if !strings.Contains(err.Error(), "no href") {
		t.Errorf("error = %q, want it to name the missing href", err)
	}
	if strings.Contains(err.Error(), "%!w") {
		t.Errorf("error = %q, formats a nil wrap", err)
	}
}

func TestRunExportDecodesDataURI(t *testing.T) {
	const entry = "@article{okafor2023exported,\n  title = {Exported Result},\n}"
	fake := &fakeBrowser{
		html:    exportableFixture,
		attrVal: "data:text/plain;charset=utf-8," + strings.ReplaceAll(entry, "\n", "%0A"),
		attrOK:  true,
	}
	l := newTestLoader(fake, site.NewACMAdapter())

	payload, err := l.runExport(context.Background(), l.Adapter.ExportAffordance())
	if err != nil {
		t.Fatalf("runExport() = %v", err)
	}
	if payload != entry {
		t.Errorf("payload = %q, want the decoded entry", payload)
	}
}
