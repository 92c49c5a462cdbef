// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package harvest drives paginated searches against one portal at a time:
// the retry supervisor classifies page failures, the pagination controller
// walks the session through its state machine, and the extractor turns
// fetched result-list HTML into Records.
package harvest

import (
	"fmt"

	"github.com/pdiddy/bibharvest/internal/bib"
	"github.com/pdiddy/bibharvest/pkg/types"
)

// State is the lifecycle state of one search session.
type State string

const (
	StateIdle       State = "idle"
	StateNavigating State = "navigating"
	StateExtracting State = "extracting"
	StateBlocked    State = "blocked"
	StateExhausted  State = "exhausted"
	StateFailed     State = "failed"
)

// Terminal reports whether no further pages will be attempted in this
// state. Blocked is terminal for the run but retryable later with a fresh
// session; Exhausted is the success terminal.
func (s State) Terminal() bool {
	return s == StateBlocked || s == StateExhausted || s == StateFailed
}

// SearchSession is the bounded state of one harvesting attempt against one
// source for one query. It lives for a single run and is never persisted;
// a restarted run begins a fresh session from page 1.
type SearchSession struct {
	Source   types.Source
	Query    string
	MaxPages int

	// CurrentPage is the page being (or about to be) processed, 1-based.
	// It never decreases while the session is live.
	CurrentPage int

	// State is the session's position in the harvesting state machine.
	State State

	// Collected holds extracted Records in discovery order, deduplicated
	// within the session.
	Collected []types.Record

	// PagesFetched counts the pages that loaded successfully, which can
	// be fewer than CurrentPage when the session ends on a failing page.
	PagesFetched int

	// RetryCount is the per-page retry counter, reset on every
	// successful page transition.
	RetryCount int

	// Cause holds the terminal failure when State is Blocked or Failed.
	Cause error

	seen map[string]bool
}

// NewSession returns an Idle session positioned before page 1.
func NewSession(source types.Source, query string, maxPages int) *SearchSession {
	if maxPages <= 0 {
		maxPages = 1
	}
	return &SearchSession{
		Source:      source,
		Query:       query,
		MaxPages:    maxPages,
		CurrentPage: 1,
		State:       StateIdle,
		seen:        map[string]bool{},
	}
}

// Append adds records to Collected, discarding any whose dedupe key was
// already seen in this session. Portals occasionally repeat the final
// page's entries on an off-by-one request; those must not inflate the
// session. Returns how many records were actually kept.
func (s *SearchSession) Append(records []types.Record) int {
	kept := 0
	for _, r := range records {
		key := bib.Key(r)
		if s.seen[key] {
			continue
		}
		s.seen[key] = true
		s.Collected = append(s.Collected, r)
		kept++
	}
	return kept
}

// advance moves the session to the next page after a successful one,
// resetting the per-page retry counter.
func (s *SearchSession) advance() {
	s.CurrentPage++
	s.RetryCount = 0
}

// finish moves the session into a terminal state.
func (s *SearchSession) finish(state State, cause error) {
	s.State = state
	s.Cause = cause
}

// String summarizes the session for log lines.
func (s *SearchSession) String() string {
	return fmt.Sprintf("%s %q page %d/%d [%s] %d records",
		s.Source, s.Query, s.CurrentPage, s.MaxPages, s.State, len(s.Collected))
}
