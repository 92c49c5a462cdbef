// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/bibharvest/internal/bib"
	"github.com/pdiddy/bibharvest/internal/site"
	"github.com/pdiddy/bibharvest/pkg/types"
)

// Extractor turns already-fetched result-list HTML into Records using an
// adapter's field rules. It performs no network or browser calls, so it is
// unit-testable against fixture HTML.
type Extractor struct {
	log io.Writer
}

// NewExtractor returns an extractor writing skip warnings to w.
func NewExtractor(w io.Writer) *Extractor {
	if w == nil {
		w = io.Discard
	}
	return &Extractor{log: w}
}

// Extract parses pageHTML and maps every element matching the adapter's
// result selector to a Record. A result without a title is skipped with a
// warning; the rest of the page is still extracted.
func (e *Extractor) Extract(adapter site.Adapter, pageHTML string) ([]types.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("parsing result page: %w", err)
	}

	rules := adapter.FieldSelectors()
	var records []types.Record

	doc.Find(adapter.ResultSelector()).Each(func(i int, sel *goquery.Selection) {
		title := applyRule(sel, rules["title"])
		if title == "" {
			fmt.Fprintf(e.log, "warning: %s result %d has no title, skipping\n", adapter.Source(), i+1)
			return
		}

		r := types.Record{
			Source:   adapter.Source(),
			Title:    title,
			Venue:    applyRule(sel, rules["venue"]),
			DOI:      applyRule(sel, rules["doi"]),
			Abstract: applyRule(sel, rules["abstract"]),
		}
		if y := applyRule(sel, rules["year"]); y != "" {
			if n, err := strconv.Atoi(y); err == nil {
				r.Year = n
			}
		}
		r.Authors = applyRuleAll(sel, rules["authors"])
		records = append(records, r)
	})

	return records, nil
}

// applyRule extracts one value from the first match of a rule within el.
func applyRule(el *goquery.Selection, rule site.FieldRule) string {
	if rule.Selector == "" {
		return ""
	}
	found := el.Find(rule.Selector).First()
	if found.Length() == 0 {
		return ""
	}
	return captured(ruleValue(found, rule), rule)
}

// applyRuleAll extracts a value per match, preserving document order.
func applyRuleAll(el *goquery.Selection, rule site.FieldRule) []string {
	if rule.Selector == "" {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	el.Find(rule.Selector).Each(func(_ int, m *goquery.Selection) {
		v := captured(ruleValue(m, rule), rule)
		if v == "" || seen[v] {
			return
		}
		seen[v] = true
		out = append(out, v)
	})
	return out
}

func ruleValue(m *goquery.Selection, rule site.FieldRule) string {
	if rule.Attr != "" {
		v, _ := m.Attr(rule.Attr)
		return strings.TrimSpace(v)
	}
	return strings.Join(strings.Fields(m.Text()), " ")
}

func captured(v string, rule site.FieldRule) string {
	if v == "" || rule.Pattern == nil {
		return v
	}
	m := rule.Pattern.FindStringSubmatch(v)
	if m == nil {
		return ""
	}
	if len(m) > 1 {
		return m[1]
	}
	return m[0]
}

// AttachRaw matches a page's bulk-exported BibTeX payload to extracted
// records by normalized title and fills RawEntry on the matches. Records
// the payload does not cover keep an empty RawEntry and get a synthesized
// block at export time. Parsed blocks that match no extracted record are
// returned as extra records so the export payload is never lossy.
func AttachRaw(records []types.Record, payload string, source types.Source) []types.Record {
	entries, err := bib.Parse(strings.NewReader(payload))
	if err != nil || len(entries) == 0 {
		return records
	}

	byTitle := map[string]int{}
	for i, r := range records {
		byTitle[bib.NormalizeTitle(r.Title)] = i
	}

	var extras []types.Record
	for _, entry := range entries {
		parsed := entry.Record(source)
		key := bib.NormalizeTitle(parsed.Title)
		if key == "" {
			continue
		}
		if idx, ok := byTitle[key]; ok {
			merged := records[idx].Merge(parsed)
			merged.RawEntry = entry.Raw
			records[idx] = merged
			continue
		}
		extras = append(extras, parsed)
	}
	return append(records, extras...)
}
