// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package browser owns the lifecycle of one automated browser context and
// exposes the navigate/wait/extract primitives the harvesting machinery is
// built on. The concrete implementation drives Chrome through chromedp;
// everything above it depends only on the Session interface so page logic
// is testable with fakes.
package browser

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/pdiddy/bibharvest/pkg/types"
)

// Session is the primitive surface one harvesting session needs from a
// browser. Open and WaitVisible may take seconds to minutes; nothing here
// is instantaneous.
type Session interface {
	// Open navigates to url and returns a *NavigationError on network
	// failure or a non-2xx final response.
	Open(ctx context.Context, url string) error

	// WaitVisible blocks until sel is visible or timeout elapses, in
	// which case it returns a *TimeoutError.
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error

	// Text returns the visible text of the first element matching sel.
	Text(ctx context.Context, sel string) (string, error)

	// HTML returns the outer HTML of the first element matching sel.
	HTML(ctx context.Context, sel string) (string, error)

	// AttrValue returns the value of attr on the first element matching
	// sel, and whether the attribute exists.
	AttrValue(ctx context.Context, sel, attr string) (string, bool, error)

	// Click clicks the first element matching sel.
	Click(ctx context.Context, sel string) error

	// Blocked probes the current page for known challenge-page
	// signatures. It never fails: any probe error reads as "not blocked".
	Blocked(ctx context.Context) bool

	// Close releases the browser context. Safe to call more than once.
	Close() error
}

// blockSignatures are lowercase substrings of challenge interstitials seen
// on the supported portals (Cloudflare "just a moment" pages, generic
// access-denied walls, captcha prompts).
var blockSignatures = []string{
	"just a moment",
	"cloudflare",
	"attention required",
	"access denied",
	"verify you are human",
	"captcha",
	"unusual traffic",
}

// ContentBlocked reports whether a page title or body text carries a known
// challenge signature. Split out from the Session so block detection is
// testable without a browser.
func ContentBlocked(title, body string) bool {
	title = strings.ToLower(title)
	body = strings.ToLower(body)
	for _, sig := range blockSignatures {
		if strings.Contains(title, sig) {
			return true
		}
	}
	// Body matches only count on short pages: a real result page can
	// legitimately mention "captcha" in an abstract.
	if len(body) < 4096 {
		for _, sig := range blockSignatures {
			if strings.Contains(body, sig) {
				return true
			}
		}
	}
	return false
}

// ChromeSession is the chromedp-backed Session.
type ChromeSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	timeout     time.Duration
	closeOnce   sync.Once
}

// NewChromeSession starts a Chrome context configured from cfg. The caller
// must Close the session to release the browser.
func NewChromeSession(cfg types.BrowserConfig) (*ChromeSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so construction fails fast when Chrome is
	// missing rather than on the first navigation.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &ChromeSession{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		timeout:     timeout,
	}, nil
}

// run executes actions against the session tab under the caller's context.
func (s *ChromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	tctx, tcancel := context.WithTimeout(s.ctx, timeout)
	defer tcancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(tctx, actions...) }()

	select {
	case <-ctx.Done():
		tcancel()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (s *ChromeSession) Open(ctx context.Context, url string) error {
	tctx, tcancel := context.WithTimeout(s.ctx, s.timeout)
	defer tcancel()

	type navResult struct {
		status int64
		err    error
	}
	done := make(chan navResult, 1)
	go func() {
		resp, err := chromedp.RunResponse(tctx, chromedp.Navigate(url))
		var status int64
		if resp != nil {
			status = resp.Status
		}
		done <- navResult{status: status, err: err}
	}()

	var res navResult
	select {
	case <-ctx.Done():
		tcancel()
		<-done
		return ctx.Err()
	case res = <-done:
	}

	if res.err != nil {
		return &NavigationError{URL: url, Err: res.err}
	}
	if res.status >= 300 {
		return &NavigationError{URL: url, Status: int(res.status)}
	}
	return nil
}

func (s *ChromeSession) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.timeout
	}
	err := s.run(ctx, timeout, chromedp.WaitVisible(sel, chromedp.ByQuery))
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Selector: sel, Timeout: timeout}
	}
	if errors.Is(err, context.Canceled) {
		return ctx.Err()
	}
	return err
}

func (s *ChromeSession) Text(ctx context.Context, sel string) (string, error) {
	var out string
	err := s.run(ctx, s.timeout, chromedp.Text(sel, &out, chromedp.ByQuery))
	return strings.TrimSpace(out), err
}

func (s *ChromeSession) HTML(ctx context.Context, sel string) (string, error) {
	var out string
	err := s.run(ctx, s.timeout, chromedp.OuterHTML(sel, &out, chromedp.ByQuery))
	return out, err
}

func (s *ChromeSession) AttrValue(ctx context.Context, sel, attr string) (string, bool, error) {
	var out string
	var ok bool
	err := s.run(ctx, s.timeout, chromedp.AttributeValue(sel, attr, &out, &ok, chromedp.ByQuery))
	return out, ok, err
}

func (s *ChromeSession) Click(ctx context.Context, sel string) error {
	return s.run(ctx, s.timeout, chromedp.Click(sel, chromedp.ByQuery))
}

func (s *ChromeSession) Blocked(ctx context.Context) bool {
	var title, body string
	// Short probe window: the page is already loaded when this runs.
	err := s.run(ctx, 5*time.Second,
		chromedp.Title(&title),
		chromedp.Text("body", &body, chromedp.ByQuery),
	)
	if err != nil {
		return false
	}
	return ContentBlocked(title, body)
}

func (s *ChromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.allocCancel()
	})
	return nil
}
