// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package unify

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bibharvest/pkg/types"
)

func writeExport(t *testing.T, rawDir string, source, name, content string) {
	t.Helper()
	dir := filepath.Join(rawDir, source)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func testConfig(t *testing.T) types.UnifyConfig {
	t.Helper()
	base := t.TempDir()
	cfg := types.DefaultConfig().Unify
	cfg.RawDir = filepath.Join(base, "raw")
	cfg.ProcessedDir = filepath.Join(base, "processed")
	return cfg
}

const acmExport = `% Query: serverless computing
% Source: acm
@inproceedings{patel2023cold,
  title = {Cold Start Mitigation in Serverless Platforms},
  author = {Patel, Riya and Johansson, Erik},
  year = {2023},
  booktitle = {SoCC '23},
  doi = {10.1145/3620678.3624793},
  abstract = {We measure cold start latency across providers.}
}

% Source: acm
@article{kim2022edge,
  title = {Edge Offloading Under Uncertainty},
  author = {Kim, Minjun},
  year = {2022},
  doi = {10.1145/3517745}
}
`

const sageExport = `% Source: sage
@article{patel2023coldstart,
  title = {Cold Start Mitigation in Serverless Platforms},
  author = {Patel, Riya},
  year = {2023},
  doi = {https://doi.org/10.1145/3620678.3624793}
}

% Source: sage
@article{osei2021policy,
  title = {Platform Governance in the Global South},
  author = {Osei, Kwame},
  year = {2021},
  journal = {Big Data \& Society}
}
`

func TestRunMergesDuplicatesAcrossSources(t *testing.T) {
	cfg := testConfig(t)
	writeExport(t, cfg.RawDir, "acm", "ACM_serverless_20260301_100000.bib", acmExport)
	writeExport(t, cfg.RawDir, "sage", "SAGE_serverless_20260301_110000.bib", sageExport)

	summary, err := Run(cfg, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Files)
	assert.Equal(t, 4, summary.Entries)
	assert.Equal(t, 3, summary.Unique)
	assert.Equal(t, 1, summary.Duplicates)

	corpus, err := os.ReadFile(summary.CorpusPath)
	require.NoError(t, err)

	// The DOI match collapses despite the https://doi.org/ prefix; the more
	// complete ACM record wins and its raw block survives verbatim.
	assert.Equal(t, 1, strings.Count(string(corpus), "Cold Start Mitigation"))
	assert.Contains(t, string(corpus), "patel2023cold,")
	assert.NotContains(t, string(corpus), "patel2023coldstart")
	assert.Contains(t, string(corpus), "Platform Governance in the Global South")
	assert.Contains(t, string(corpus), "Edge Offloading Under Uncertainty")

	dups, err := os.ReadFile(summary.DuplicatesPath)
	require.NoError(t, err)
	assert.Contains(t, string(dups), "% Source (duplicate): sage, merged into acm")
	assert.Contains(t, string(dups), "patel2023coldstart")
}

func TestRunDeduplicatesByTitleAndFirstAuthor(t *testing.T) {
	cfg := testConfig(t)
	writeExport(t, cfg.RawDir, "acm", "a.bib", `% Source: acm
@article{a1,
  title = {Trust {Calibration} in Human--AI Teams},
  author = {Nakamura, Yui and Smith, Jo},
  year = {2024}
}
`)
	writeExport(t, cfg.RawDir, "sage", "b.bib", `% Source: sage
@article{b1,
  title = {Trust Calibration in Human--AI Teams},
  author = {Nakamura, Yui},
  year = {2024},
  journal = {Human Factors}
}
`)

	summary, err := Run(cfg, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unique)
	assert.Equal(t, 1, summary.Duplicates)
}

func TestRunCompletenessBeatsSourcePriority(t *testing.T) {
	cfg := testConfig(t)
	// ACM outranks SAGE, but the SAGE record is more complete and must win.
	writeExport(t, cfg.RawDir, "acm", "a.bib", `% Source: acm
@article{thin2020,
  title = {Sparse Reward Shaping},
  author = {Novak, Petra},
  doi = {10.1145/3401234}
}
`)
	writeExport(t, cfg.RawDir, "sage", "b.bib", `% Source: sage
@article{rich2020,
  title = {Sparse Reward Shaping},
  author = {Novak, Petra},
  year = {2020},
  journal = {Adaptive Behavior},
  doi = {10.1145/3401234},
  abstract = {Shaping sparse rewards without bias.}
}
`)

	summary, err := Run(cfg, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unique)

	corpus, err := os.ReadFile(summary.CorpusPath)
	require.NoError(t, err)
	assert.Contains(t, string(corpus), "% Source: sage")
	assert.Contains(t, string(corpus), "rich2020")

	dups, err := os.ReadFile(summary.DuplicatesPath)
	require.NoError(t, err)
	assert.Contains(t, string(dups), "% Source (duplicate): acm, merged into sage")
}

func TestRunIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	writeExport(t, cfg.RawDir, "acm", "a.bib", acmExport)
	writeExport(t, cfg.RawDir, "sage", "b.bib", sageExport)

	first, err := Run(cfg, io.Discard)
	require.NoError(t, err)
	corpus1, err := os.ReadFile(first.CorpusPath)
	require.NoError(t, err)

	second, err := Run(cfg, io.Discard)
	require.NoError(t, err)
	corpus2, err := os.ReadFile(second.CorpusPath)
	require.NoError(t, err)

	assert.Equal(t, first.Unique, second.Unique)
	assert.Equal(t, string(corpus1), string(corpus2), "re-running unification must not change the corpus")
}

func TestRunInfersSourceFromLayout(t *testing.T) {
	cfg := testConfig(t)
	// No source comments at all: the data/raw/sage/ directory attributes it.
	writeExport(t, cfg.RawDir, "sage", "bare.bib", `@article{bare2019,
  title = {An Unattributed Export},
  author = {Haddad, Lina},
  year = {2019}
}
`)

	summary, err := Run(cfg, io.Discard)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Unique)

	corpus, err := os.ReadFile(summary.CorpusPath)
	require.NoError(t, err)
	assert.Contains(t, string(corpus), "% Source: sage")
}

func TestRunFailsWhenLocked(t *testing.T) {
	cfg := testConfig(t)
	writeExport(t, cfg.RawDir, "acm", "a.bib", acmExport)
	require.NoError(t, os.MkdirAll(cfg.ProcessedDir, 0o755))

	holder := flock.New(filepath.Join(cfg.ProcessedDir, cfg.CorpusFile) + ".lock")
	locked, err := holder.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer holder.Unlock()

	_, err = Run(cfg, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked by another unification run")
}

func TestRunWithNothingToUnify(t *testing.T) {
	cfg := testConfig(t)
	_, err := Run(cfg, io.Discard)
	require.Error(t, err)
}
