// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// BrowserConfig holds the settings for one automated browser context.
// Everything the browser layer needs is passed in here explicitly; the
// core never reads ambient process state to decide headless vs interactive.
type BrowserConfig struct {
	// Headless runs the browser without a visible window.
	Headless bool `json:"headless" yaml:"headless"`

	// UserAgent is the User-Agent string the browser presents.
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// Timeout bounds a single browser operation (navigate, wait, read).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// RetryConfig holds the RetrySupervisor policy knobs.
type RetryConfig struct {
	// MaxTransientRetries bounds retries of timeouts and navigation
	// hiccups within one page (default 3).
	MaxTransientRetries int `json:"max_transient_retries" yaml:"max_transient_retries"`

	// MaxBlockRetries bounds retries after a challenge page is detected
	// (default 3).
	MaxBlockRetries int `json:"max_block_retries" yaml:"max_block_retries"`

	// BlockBackoff is the base wait after a block detection (default 20s).
	// The actual wait is randomized by ±20% so concurrent sessions do not
	// poll in lockstep.
	BlockBackoff time.Duration `json:"block_backoff" yaml:"block_backoff"`
}

// HarvestConfig holds settings for the harvesting stage.
type HarvestConfig struct {
	Browser BrowserConfig `json:"browser" yaml:"browser"`
	Retry   RetryConfig   `json:"retry" yaml:"retry"`

	// RawDir is the base directory for per-source export files
	// (one subdirectory per source).
	RawDir string `json:"raw_dir" yaml:"raw_dir"`

	// MaxPages bounds the number of result pages requested per source.
	MaxPages int `json:"max_pages" yaml:"max_pages"`

	// PageSize is the number of results requested per page where the
	// portal supports it.
	PageSize int `json:"page_size" yaml:"page_size"`

	// PageDelay is the minimum interval between page fetches within one
	// session.
	PageDelay time.Duration `json:"page_delay" yaml:"page_delay"`

	// BlockCooldown is how long a source that ended Blocked is skipped
	// before a fresh session may be scheduled against it.
	BlockCooldown time.Duration `json:"block_cooldown" yaml:"block_cooldown"`
}

// UnifyConfig holds settings for corpus unification.
type UnifyConfig struct {
	// RawDir is scanned recursively for .bib export files.
	RawDir string `json:"raw_dir" yaml:"raw_dir"`

	// ProcessedDir receives the corpus and duplicates files.
	ProcessedDir string `json:"processed_dir" yaml:"processed_dir"`

	// CorpusFile is the unified corpus filename inside ProcessedDir.
	CorpusFile string `json:"corpus_file" yaml:"corpus_file"`

	// DuplicatesFile is the merge audit filename inside ProcessedDir.
	DuplicatesFile string `json:"duplicates_file" yaml:"duplicates_file"`
}

// StoreConfig holds settings for the run ledger.
type StoreConfig struct {
	// Path is the SQLite database file recording harvest and unify runs.
	Path string `json:"path" yaml:"path"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Harvest HarvestConfig `json:"harvest" yaml:"harvest"`
	Unify   UnifyConfig   `json:"unify" yaml:"unify"`
	Store   StoreConfig   `json:"store" yaml:"store"`
}

// DefaultConfig returns the pipeline defaults used when no config file
// overrides them.
func DefaultConfig() PipelineConfig {
	return PipelineConfig{
		Harvest: HarvestConfig{
			Browser: BrowserConfig{
				Headless:  true,
				UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				Timeout:   20 * time.Second,
			},
			Retry: RetryConfig{
				MaxTransientRetries: 3,
				MaxBlockRetries:     3,
				BlockBackoff:        20 * time.Second,
			},
			RawDir:        "data/raw",
			MaxPages:      5,
			PageSize:      50,
			PageDelay:     3 * time.Second,
			BlockCooldown: 30 * time.Minute,
		},
		Unify: UnifyConfig{
			RawDir:         "data/raw",
			ProcessedDir:   "data/processed",
			CorpusFile:     "corpus_unified.bib",
			DuplicatesFile: "duplicates.bib",
		},
		Store: StoreConfig{
			Path: "data/index/bibharvest.db",
		},
	}
}
