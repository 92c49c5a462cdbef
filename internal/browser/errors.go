// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"fmt"
	"time"
)

// NavigationError reports a failed page load: a network-level failure or a
// non-2xx final response. Navigation failures are transient from the retry
// policy's point of view.
type NavigationError struct {
	URL    string
	Status int
	Err    error
}

func (e *NavigationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("navigating %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("navigating %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// TimeoutError reports that a selector did not appear within its deadline.
type TimeoutError struct {
	Selector string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("selector %q not visible within %v", e.Selector, e.Timeout)
}
