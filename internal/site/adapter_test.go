// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package site

import (
	"strings"
	"testing"

	"github.com/pdiddy/bibharvest/pkg/types"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()

	for _, src := range []types.Source{types.SourceACM, types.SourceSAGE} {
		a, ok := r.Lookup(src)
		if !ok {
			t.Fatalf("Lookup(%q) not found", src)
		}
		if a.Source() != src {
			t.Errorf("adapter for %q reports source %q", src, a.Source())
		}
	}

	if _, ok := r.Lookup(types.Source("ieee")); ok {
		t.Error("unregistered source must not resolve")
	}
}

func TestRegistrySourcesOrder(t *testing.T) {
	r := NewRegistry()
	got := r.Sources()
	if len(got) != 2 || got[0] != types.SourceACM || got[1] != types.SourceSAGE {
		t.Errorf("Sources() = %v, want [acm sage]", got)
	}
}

func TestBuildSearchURL(t *testing.T) {
	tests := []struct {
		name    string
		adapter Adapter
		page    int
		want    []string
	}{
		{
			"acm first page", NewACMAdapter(), 1,
			[]string{"dl.acm.org/action/doSearch", "AllField=generative+artificial+intelligence", "startPage=0", "pageSize=50"},
		},
		{
			"acm third page is zero-based", NewACMAdapter(), 3,
			[]string{"startPage=2"},
		},
		{
			"sage first page", NewSAGEAdapter(), 1,
			[]string{"journals.sagepub.com/action/doSearch", "startPage=0"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := tt.adapter.BuildSearchURL("generative artificial intelligence", tt.page, 0)
			for _, want := range tt.want {
				if !strings.Contains(url, want) {
					t.Errorf("URL %q missing %q", url, want)
				}
			}
		})
	}
}

func TestFieldSelectorsCoverRequiredFields(t *testing.T) {
	for _, a := range []Adapter{NewACMAdapter(), NewSAGEAdapter()} {
		rules := a.FieldSelectors()
		for _, field := range []string{"title", "authors", "year", "venue", "doi", "abstract"} {
			rule, ok := rules[field]
			if !ok {
				t.Errorf("%s: no rule for %q", a.Source(), field)
				continue
			}
			if rule.Selector == "" {
				t.Errorf("%s: empty selector for %q", a.Source(), field)
			}
		}
	}
}

func TestDOIPatternFromHref(t *testing.T) {
	rule := NewACMAdapter().FieldSelectors()["doi"]
	m := rule.Pattern.FindStringSubmatch("/doi/10.1145/3576915.3616676")
	if m == nil || m[1] != "10.1145/3576915.3616676" {
		t.Errorf("ACM DOI pattern match = %v", m)
	}

	rule = NewSAGEAdapter().FieldSelectors()["doi"]
	m = rule.Pattern.FindStringSubmatch("https://journals.sagepub.com/doi/full/10.1177/1234?icid=x")
	if m == nil || m[1] != "10.1177/1234" {
		t.Errorf("SAGE DOI pattern match = %v", m)
	}
}

func TestExportAffordancePresent(t *testing.T) {
	for _, a := range []Adapter{NewACMAdapter(), NewSAGEAdapter()} {
		plan := a.ExportAffordance()
		if plan == nil {
			t.Errorf("%s: both built-in portals support bulk export", a.Source())
			continue
		}
		if plan.SelectAll == "" || plan.Modal == "" || plan.DownloadLink == "" {
			t.Errorf("%s: incomplete export plan: %+v", a.Source(), plan)
		}
	}
}
