// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/pdiddy/bibharvest/internal/browser"
	"github.com/pdiddy/bibharvest/pkg/types"
)

// transientDelays is the linear backoff schedule for transient failures.
// Its length is the default transient retry budget.
var transientDelays = []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second}

// Class is the terminal classification of one supervised unit of work.
type Class int

const (
	// ClassOK means the work succeeded, possibly after transient retries.
	ClassOK Class = iota

	// ClassBlocked means bot defense held through every backoff attempt.
	ClassBlocked

	// ClassFatal means a structural failure (or exhausted transient
	// retries escalated to one) that must not be retried.
	ClassFatal

	// ClassCanceled means the caller's context ended during the work.
	ClassCanceled
)

func (c Class) String() string {
	switch c {
	case ClassOK:
		return "ok"
	case ClassBlocked:
		return "blocked"
	case ClassFatal:
		return "fatal"
	case ClassCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Outcome reports how a supervised unit of work ended. Err holds the final
// cause for every class except ClassOK; the supervisor never swallows it.
type Outcome struct {
	Class    Class
	Err      error
	Attempts int
}

// sleepFn is swapped out by tests to avoid real waits.
type sleepFn func(ctx context.Context, d time.Duration) error

func realSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Supervisor wraps one page of work with the bounded retry policy:
// transient failures retry on a linear schedule, block detections retry
// after a long randomized backoff, structural failures stop immediately.
type Supervisor struct {
	maxTransient    int
	maxBlockRetries int
	blockBackoff    time.Duration

	sleep sleepFn
	randf func() float64
	log   io.Writer
}

// NewSupervisor builds a supervisor from cfg, writing retry notices to w.
func NewSupervisor(cfg types.RetryConfig, w io.Writer) *Supervisor {
	s := &Supervisor{
		maxTransient:    cfg.MaxTransientRetries,
		maxBlockRetries: cfg.MaxBlockRetries,
		blockBackoff:    cfg.BlockBackoff,
		sleep:           realSleep,
		randf:           rand.Float64,
		log:             w,
	}
	if s.maxTransient <= 0 {
		s.maxTransient = len(transientDelays)
	}
	if s.maxBlockRetries <= 0 {
		s.maxBlockRetries = 3
	}
	if s.blockBackoff <= 0 {
		s.blockBackoff = 20 * time.Second
	}
	if s.log == nil {
		s.log = io.Discard
	}
	return s
}

// Run executes work until it succeeds or a terminal classification is
// reached. The returned Outcome always names the terminal class and cause
// so the caller can persist whatever was already collected.
func (s *Supervisor) Run(ctx context.Context, work func(context.Context) error) Outcome {
	transients := 0
	blocks := 0
	attempts := 0

	for {
		if err := ctx.Err(); err != nil {
			return Outcome{Class: ClassCanceled, Err: err, Attempts: attempts}
		}

		attempts++
		err := work(ctx)
		if err == nil {
			return Outcome{Class: ClassOK, Attempts: attempts}
		}

		switch classify(err) {
		case ClassBlocked:
			blocks++
			if blocks > s.maxBlockRetries {
				return Outcome{Class: ClassBlocked, Err: err, Attempts: attempts}
			}
			wait := s.jittered(s.blockBackoff)
			fmt.Fprintf(s.log, "warning: block detected, backing off %v (attempt %d/%d): %v\n",
				wait.Round(time.Second), blocks, s.maxBlockRetries, err)
			if serr := s.sleep(ctx, wait); serr != nil {
				return Outcome{Class: ClassCanceled, Err: serr, Attempts: attempts}
			}

		case ClassCanceled:
			return Outcome{Class: ClassCanceled, Err: err, Attempts: attempts}

		case ClassFatal:
			return Outcome{Class: ClassFatal, Err: err, Attempts: attempts}

		default: // transient
			transients++
			if transients > s.maxTransient {
				// Exhausted transient retries on the same selector or
				// navigation: escalate, the layout has likely changed.
				return Outcome{Class: ClassFatal, Err: err, Attempts: attempts}
			}
			wait := transientDelays[min(transients-1, len(transientDelays)-1)]
			fmt.Fprintf(s.log, "warning: transient failure, retrying in %v (attempt %d/%d): %v\n",
				wait, transients, s.maxTransient, err)
			if serr := s.sleep(ctx, wait); serr != nil {
				return Outcome{Class: ClassCanceled, Err: serr, Attempts: attempts}
			}
		}
	}
}

// jittered randomizes d by ±20% so concurrent sessions do not hit a
// blocking portal in lockstep.
func (s *Supervisor) jittered(d time.Duration) time.Duration {
	frac := 0.8 + 0.4*s.randf()
	return time.Duration(float64(d) * frac)
}

// classTransient is internal to classification; transient failures never
// appear in an Outcome, they either recover to ClassOK or exhaust into
// ClassFatal.
const classTransient Class = -1

// classify maps an error to its outcome class. Timeouts, navigation
// failures, and anything unrecognized count as transient; they surface as
// fatal only when retries run out.
func classify(err error) Class {
	var blocked *BlockedError
	if errors.As(err, &blocked) {
		return ClassBlocked
	}
	var structural *StructuralError
	if errors.As(err, &structural) {
		return ClassFatal
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassCanceled
	}
	var timeout *browser.TimeoutError
	var nav *browser.NavigationError
	if errors.As(err, &timeout) || errors.As(err, &nav) {
		return classTransient
	}
	return classTransient
}
