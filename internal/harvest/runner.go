// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/pdiddy/bibharvest/internal/browser"
	"github.com/pdiddy/bibharvest/internal/export"
	"github.com/pdiddy/bibharvest/internal/site"
	"github.com/pdiddy/bibharvest/internal/store"
	"github.com/pdiddy/bibharvest/pkg/types"
)

// SourceRun is the result of harvesting one source for one query.
type SourceRun struct {
	RunID   string
	Source  types.Source
	Query   string
	State   State
	Cause   string
	Pages   int
	Records int
	Export  string

	RobotsOK bool
	Started  time.Time
	Finished time.Time
}

// Runner fans a query out across the registered source portals. Each
// source gets its own browser session, supervisor, and page pacer; a
// source that was recently blocked sits out its cooldown instead of
// hammering the portal again.
type Runner struct {
	Registry *site.Registry
	Config   types.HarvestConfig
	Exporter *export.Exporter

	// Ledger is optional; when set, every run is recorded in it.
	Ledger *store.Store

	Log io.Writer

	// NewBrowser opens a browser session for one source. Tests substitute
	// a fake; the default launches headless Chrome.
	NewBrowser func(cfg types.BrowserConfig) (browser.Session, error)

	// HTTPClient serves the robots.txt preflight.
	HTTPClient *http.Client

	cooldownOnce sync.Once
	cooldown     *cache.Cache
	cooldownTTL  time.Duration
}

// NewRunner wires a runner against live Chrome sessions.
func NewRunner(reg *site.Registry, cfg types.HarvestConfig, w io.Writer) *Runner {
	return &Runner{
		Registry: reg,
		Config:   cfg,
		Exporter: export.NewExporter(cfg.RawDir),
		Log:      w,
		NewBrowser: func(bcfg types.BrowserConfig) (browser.Session, error) {
			return browser.NewChromeSession(bcfg)
		},
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (r *Runner) blockCache() *cache.Cache {
	r.cooldownOnce.Do(func() {
		r.cooldownTTL = r.Config.BlockCooldown
		if r.cooldownTTL <= 0 {
			r.cooldownTTL = 30 * time.Minute
		}
		r.cooldown = cache.New(r.cooldownTTL, 5*time.Minute)
	})
	return r.cooldown
}

// Run harvests query from every requested source concurrently and returns
// one SourceRun per source, ordered by source priority. Unknown sources
// fail their own run; the others proceed.
func (r *Runner) Run(ctx context.Context, query string, sources []types.Source) []SourceRun {
	log := r.Log
	if log == nil {
		log = io.Discard
	}
	if len(sources) == 0 {
		sources = r.Registry.Sources()
	}

	results := make(chan SourceRun, len(sources))
	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src types.Source) {
			defer wg.Done()
			results <- r.runSource(ctx, src, query, log)
		}(src)
	}
	wg.Wait()
	close(results)

	var runs []SourceRun
	for run := range results {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return types.SourcePriority(runs[i].Source) < types.SourcePriority(runs[j].Source)
	})
	return runs
}

func (r *Runner) runSource(ctx context.Context, src types.Source, query string, log io.Writer) SourceRun {
	run := SourceRun{
		RunID:   uuid.NewString(),
		Source:  src,
		Query:   query,
		Started: time.Now(),
	}
	defer func() { run.Finished = time.Now() }()

	adapter, ok := r.Registry.Lookup(src)
	if !ok {
		run.State = StateFailed
		run.Cause = fmt.Sprintf("unknown source %q", src)
		return run
	}

	if since, found := r.blockCache().Get(string(src)); found {
		run.State = StateBlocked
		run.Cause = fmt.Sprintf("cooling down after a block at %v",
			since.(time.Time).Format(time.RFC3339))
		fmt.Fprintf(log, "warning: skipping %s: %s\n", src, run.Cause)
		return run
	}

	allowed, probeErr := ProbeRobots(ctx, r.HTTPClient, adapter, r.Config.Browser.UserAgent)
	run.RobotsOK = allowed
	if probeErr != nil {
		fmt.Fprintf(log, "warning: robots.txt probe for %s: %v\n", src, probeErr)
	}
	if !allowed {
		fmt.Fprintf(log, "warning: robots.txt disallows the %s search path for this agent\n", src)
	}

	sess, err := r.NewBrowser(r.Config.Browser)
	if err != nil {
		run.State = StateFailed
		run.Cause = fmt.Sprintf("opening browser: %v", err)
		return run
	}
	defer sess.Close()

	loader := &PageLoader{
		Session:   sess,
		Adapter:   adapter,
		Extractor: NewExtractor(log),
		Query:     query,
		PageSize:  r.Config.PageSize,
		Timeout:   r.Config.Browser.Timeout,
		Log:       log,
	}

	session := NewSession(src, query, r.Config.MaxPages)
	ctrl := &Controller{
		Session:    session,
		Fetch:      loader.Fetch,
		Supervisor: NewSupervisor(r.Config.Retry, log),
		Log:        log,
	}
	if r.Config.PageDelay > 0 {
		ctrl.Limiter = rate.NewLimiter(rate.Every(r.Config.PageDelay), 1)
	}

	state := ctrl.Run(ctx)
	run.State = state
	if session.Cause != nil {
		run.Cause = session.Cause.Error()
	}
	run.Pages = session.PagesFetched
	run.Records = len(session.Collected)

	if state == StateBlocked {
		r.blockCache().SetDefault(string(src), time.Now())
	}

	// Partial progress is still progress: export whatever was collected,
	// whatever terminal state the session reached.
	if len(session.Collected) > 0 {
		path, err := r.Exporter.Export(src, query, session.Collected)
		if err != nil {
			fmt.Fprintf(log, "warning: exporting %s records: %v\n", src, err)
		} else {
			run.Export = path
			r.writeManifest(run, log)
		}
	}

	r.recordRun(ctx, run, log)
	return run
}

func (r *Runner) writeManifest(run SourceRun, log io.Writer) {
	m := export.Manifest{
		RunID:     run.RunID,
		Source:    run.Source,
		Query:     run.Query,
		State:     string(run.State),
		Cause:     run.Cause,
		Pages:     run.Pages,
		MaxPages:  r.Config.MaxPages,
		Records:   run.Records,
		Export:    run.Export,
		Started:   run.Started,
		Finished:  time.Now(),
		RobotsOK:  run.RobotsOK,
		UserAgent: r.Config.Browser.UserAgent,
	}
	if _, err := export.WriteManifest(m); err != nil {
		fmt.Fprintf(log, "warning: writing %s manifest: %v\n", run.Source, err)
	}
}

func (r *Runner) recordRun(ctx context.Context, run SourceRun, log io.Writer) {
	if r.Ledger == nil {
		return
	}
	err := r.Ledger.RecordHarvest(ctx, store.HarvestRun{
		ID:       run.RunID,
		Source:   run.Source,
		Query:    run.Query,
		State:    string(run.State),
		Cause:    run.Cause,
		Pages:    run.Pages,
		Records:  run.Records,
		Export:   run.Export,
		Started:  run.Started,
		Finished: time.Now(),
	})
	if err != nil {
		fmt.Fprintf(log, "warning: recording %s run in ledger: %v\n", run.Source, err)
	}
}
