// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/time/rate"

	"github.com/pdiddy/bibharvest/pkg/types"
)

// Controller drives one SearchSession to a terminal state: page by page
// through the supervisor-guarded fetcher, appending session-deduplicated
// records, until the page budget is spent, the portal runs out of results,
// or a terminal failure is reached. Collected records survive every exit
// path so partial progress is always exportable.
type Controller struct {
	Session    *SearchSession
	Fetch      PageFunc
	Supervisor *Supervisor

	// Limiter paces page fetches within the session; nil means no pacing.
	Limiter *rate.Limiter

	Log io.Writer
}

// Run walks the session state machine and returns its terminal state.
// Cancellation is honored between pages, never mid-page.
func (c *Controller) Run(ctx context.Context) State {
	sess := c.Session
	log := c.Log
	if log == nil {
		log = io.Discard
	}

	for sess.CurrentPage <= sess.MaxPages {
		if err := ctx.Err(); err != nil {
			sess.finish(StateFailed, err)
			return sess.State
		}
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				sess.finish(StateFailed, err)
				return sess.State
			}
		}

		page := sess.CurrentPage
		sess.State = StateNavigating

		var records []types.Record
		var hasNext bool
		outcome := c.Supervisor.Run(ctx, func(ctx context.Context) error {
			var err error
			records, hasNext, err = c.Fetch(ctx, page)
			return err
		})
		sess.RetryCount = outcome.Attempts - 1

		switch outcome.Class {
		case ClassBlocked:
			fmt.Fprintf(log, "warning: %s blocked on page %d, keeping %d records from pages 1-%d\n",
				sess.Source, page, len(sess.Collected), page-1)
			sess.finish(StateBlocked, outcome.Err)
			return sess.State

		case ClassFatal:
			fmt.Fprintf(log, "error: %s failed on page %d: %v\n", sess.Source, page, outcome.Err)
			sess.finish(StateFailed, outcome.Err)
			return sess.State

		case ClassCanceled:
			sess.finish(StateFailed, outcome.Err)
			return sess.State
		}

		sess.State = StateExtracting
		sess.PagesFetched++
		if len(records) == 0 {
			// A short page before the budget is spent is the natural end
			// of the result list, not an error.
			sess.finish(StateExhausted, nil)
			return sess.State
		}

		kept := sess.Append(records)
		fmt.Fprintf(log, "%s page %d: %d results (%d new)\n", sess.Source, page, len(records), kept)

		if !hasNext {
			sess.finish(StateExhausted, nil)
			return sess.State
		}
		sess.advance()
	}

	sess.finish(StateExhausted, nil)
	return sess.State
}
