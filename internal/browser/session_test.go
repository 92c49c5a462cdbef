// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestContentBlocked(t *testing.T) {
	tests := []struct {
		name  string
		title string
		body  string
		want  bool
	}{
		{"cloudflare interstitial", "Just a moment...", "Checking your browser", true},
		{"access denied wall", "Access Denied", "", true},
		{"captcha in short body", "", "Please solve the CAPTCHA to continue", true},
		{"clean result page", "Search Results - ACM Digital Library", "50 results found", false},
		{"captcha mentioned in long page", "Results", strings.Repeat("a", 5000) + " captcha usability study", false},
		{"empty page", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContentBlocked(tt.title, tt.body); got != tt.want {
				t.Errorf("ContentBlocked(%q, body) = %v, want %v", tt.title, got, tt.want)
			}
		})
	}
}

func TestNavigationErrorMessage(t *testing.T) {
	statusErr := &NavigationError{URL: "https://dl.acm.org/x", Status: 503}
	if !strings.Contains(statusErr.Error(), "503") {
		t.Errorf("status error message missing code: %q", statusErr.Error())
	}

	cause := errors.New("connection refused")
	netErr := &NavigationError{URL: "https://dl.acm.org/x", Err: cause}
	if !errors.Is(netErr, cause) {
		t.Error("NavigationError must unwrap to its cause")
	}
}

func TestTimeoutErrorMessage(t *testing.T) {
	err := &TimeoutError{Selector: "h5.issue-item__title", Timeout: 15 * time.Second}
	for _, want := range []string{"h5.issue-item__title", "15s"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("timeout message %q missing %q", err.Error(), want)
		}
	}
}
