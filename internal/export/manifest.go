// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bibharvest/pkg/types"
)

// Manifest is the on-disk summary written beside each export file. It
// records what was asked, what came back, and how the session ended, so a
// run can be audited without replaying it.
type Manifest struct {
	RunID     string       `yaml:"run_id"`
	Source    types.Source `yaml:"source"`
	Query     string       `yaml:"query"`
	State     string       `yaml:"state"`
	Cause     string       `yaml:"cause,omitempty"`
	Pages     int          `yaml:"pages"`
	MaxPages  int          `yaml:"max_pages"`
	Records   int          `yaml:"records"`
	Export    string       `yaml:"export,omitempty"`
	Started   time.Time    `yaml:"started"`
	Finished  time.Time    `yaml:"finished"`
	RobotsOK  bool         `yaml:"robots_ok"`
	UserAgent string       `yaml:"user_agent,omitempty"`
}

// WriteManifest stores the manifest next to the export file (or, when the
// run exported nothing, derives a path from the export directory).
func WriteManifest(m Manifest) (string, error) {
	path := m.Export
	if path == "" {
		return "", fmt.Errorf("manifest for %s has no export path", m.Source)
	}
	path = strings.TrimSuffix(path, ".bib") + ".yaml"

	data, err := yaml.Marshal(&m)
	if err != nil {
		return "", fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing manifest: %w", err)
	}
	return path, nil
}
