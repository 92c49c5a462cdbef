// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"fmt"
)

// BlockedError reports that a portal served a bot-defense challenge page
// instead of results. It is retried with backoff, then reported as a
// degraded-but-partial outcome, never as a crash.
type BlockedError struct {
	URL  string
	Page int
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("challenge page served for page %d (%s)", e.Page, e.URL)
}

// StructuralError reports a selector that is structurally absent, meaning
// the portal layout changed. It is fatal for the session and carries full
// diagnostic context.
type StructuralError struct {
	URL      string
	Selector string
	Page     int
	Err      error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("selector %q absent on page %d (%s): %v", e.Selector, e.Page, e.URL, e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }
