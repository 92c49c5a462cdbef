// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/temoto/robotstxt"

	"github.com/pdiddy/bibharvest/internal/httputil"
	"github.com/pdiddy/bibharvest/internal/site"
)

// ProbeRobots fetches a portal's robots.txt and reports whether the
// adapter's search path is allowed for the given user agent. The verdict
// is recorded, not enforced: these portals gate real access behind their
// own defenses, but the run log should state when a harvest walks a
// disallowed path. Fetch failures read as allowed with an error attached.
func ProbeRobots(ctx context.Context, client *http.Client, adapter site.Adapter, userAgent string) (allowed bool, err error) {
	if client == nil {
		client = http.DefaultClient
	}

	body, err := httputil.Fetch(ctx, client, adapter.BaseURL()+"/robots.txt", userAgent, nil)
	if err != nil {
		return true, fmt.Errorf("fetching robots.txt for %s: %w", adapter.Source(), err)
	}

	robots, err := robotstxt.FromBytes(bytes.TrimSpace(body))
	if err != nil {
		return true, fmt.Errorf("parsing robots.txt for %s: %w", adapter.Source(), err)
	}

	group := robots.FindGroup(userAgent)
	return group.Test(adapter.SearchPath()), nil
}
