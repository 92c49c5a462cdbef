// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bib reads and writes BibTeX bibliographic entries. The parser is
// deliberately tolerant: portal export files are frequently malformed, so a
// block that cannot be parsed still survives as a raw entry with whatever
// title can be salvaged, and the original text is preserved verbatim for a
// lossless round trip.
package bib

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdiddy/bibharvest/pkg/types"
)

// Entry is one parsed BibTeX block. Raw always holds the block exactly as
// it appeared in the input.
type Entry struct {
	Type    string
	CiteKey string
	Fields  map[string]string

	// Raw is the verbatim block text.
	Raw string

	// SourceHint is the source named by a "% Source: x" comment
	// immediately preceding the block, empty when absent.
	SourceHint string
}

var (
	sourceComment = regexp.MustCompile(`(?i)^%+\s*source(?:\s*\(duplicate\))?\s*:\s*(\S+)`)
	blockHeader   = regexp.MustCompile(`^@\s*([A-Za-z]+)\s*\{\s*([^,\s{}]*)\s*,?`)
	titleFallback = regexp.MustCompile(`(?is)title\s*=\s*[{"](.+?)[}"]`)
	yearDigits    = regexp.MustCompile(`\d{4}`)
)

// Parse reads a stream of BibTeX blocks. Malformed blocks are kept with a
// regex-salvaged title rather than dropped; Parse fails only when the
// reader itself fails.
func Parse(r io.Reader) ([]Entry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var entries []Entry
	var cur []string
	var curSource, pendingSource string

	flush := func() {
		if len(cur) == 0 {
			return
		}
		raw := strings.TrimRight(strings.Join(cur, "\n"), " \t\n")
		e := parseBlock(raw)
		e.SourceHint = curSource
		entries = append(entries, e)
		cur = nil
	}

	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "%") {
			if m := sourceComment.FindStringSubmatch(trimmed); m != nil {
				pendingSource = m[1]
			}
			continue
		}
		if strings.HasPrefix(trimmed, "@") {
			flush()
			curSource = pendingSource
			pendingSource = ""
			cur = append(cur, line)
			continue
		}
		if len(cur) > 0 {
			cur = append(cur, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading bibliography: %w", err)
	}
	flush()
	return entries, nil
}

// parseBlock parses one raw block. On structural failure it salvages the
// title and returns a minimal entry, matching the fallback behavior the
// exporter relies on for malformed portal output.
func parseBlock(raw string) Entry {
	e := Entry{Fields: map[string]string{}, Raw: raw}

	m := blockHeader.FindStringSubmatch(raw)
	if m == nil {
		if t := titleFallback.FindStringSubmatch(raw); t != nil {
			e.Fields["title"] = strings.TrimSpace(t[1])
		}
		return e
	}
	e.Type = strings.ToLower(m[1])
	e.CiteKey = m[2]

	body := raw[len(m[0]):]
	fields, ok := parseFields(body)
	if !ok {
		if t := titleFallback.FindStringSubmatch(raw); t != nil {
			e.Fields["title"] = strings.TrimSpace(t[1])
		}
		return e
	}
	e.Fields = fields
	return e
}

// parseFields scans "name = value" pairs with brace-aware values. It
// reports ok=false when the body cannot be walked at all.
func parseFields(body string) (map[string]string, bool) {
	fields := map[string]string{}
	i := 0
	n := len(body)

	skipSpace := func() {
		for i < n && (body[i] == ' ' || body[i] == '\t' || body[i] == '\n' || body[i] == '\r' || body[i] == ',') {
			i++
		}
	}

	for {
		skipSpace()
		if i >= n || body[i] == '}' {
			return fields, true
		}

		start := i
		for i < n && (isNameByte(body[i])) {
			i++
		}
		name := strings.ToLower(strings.TrimSpace(body[start:i]))
		skipSpace()
		if name == "" || i >= n || body[i] != '=' {
			return fields, len(fields) > 0
		}
		i++ // '='
		skipSpace()
		if i >= n {
			return fields, len(fields) > 0
		}

		var value string
		switch body[i] {
		case '{':
			depth := 0
			vs := i
			for ; i < n; i++ {
				if body[i] == '{' {
					depth++
				} else if body[i] == '}' {
					depth--
					if depth == 0 {
						i++
						break
					}
				}
			}
			if depth != 0 {
				return fields, len(fields) > 0
			}
			value = body[vs+1 : i-1]
		case '"':
			i++
			vs := i
			for i < n && body[i] != '"' {
				i++
			}
			if i >= n {
				return fields, len(fields) > 0
			}
			value = body[vs:i]
			i++
		default:
			vs := i
			for i < n && body[i] != ',' && body[i] != '}' && body[i] != '\n' {
				i++
			}
			value = body[vs:i]
		}
		fields[name] = strings.TrimSpace(value)
	}
}

func isNameByte(b byte) bool {
	return b == '-' || b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// CleanValue strips BibTeX brace groups and collapses whitespace, turning a
// stored field value into display text.
func CleanValue(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '{' || r == '}' {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// SplitAuthors splits a BibTeX author field on the "and" keyword,
// preserving source order.
func SplitAuthors(field string) []string {
	field = CleanValue(field)
	if field == "" {
		return nil
	}
	parts := strings.Split(field, " and ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Record converts the entry into a canonical Record. fallback is used when
// the block carried no recognizable source comment.
func (e Entry) Record(fallback types.Source) types.Record {
	src := fallback
	if e.SourceHint != "" {
		hint := types.Source(strings.ToLower(e.SourceHint))
		for _, k := range types.KnownSources {
			if hint == k {
				src = k
				break
			}
		}
	}

	r := types.Record{
		Source:   src,
		Title:    CleanValue(e.Fields["title"]),
		Authors:  SplitAuthors(e.Fields["author"]),
		DOI:      CleanValue(e.Fields["doi"]),
		Abstract: CleanValue(e.Fields["abstract"]),
		RawEntry: e.Raw,
	}

	if v := e.Fields["journal"]; v != "" {
		r.Venue = CleanValue(v)
	} else if v := e.Fields["booktitle"]; v != "" {
		r.Venue = CleanValue(v)
	} else if v := e.Fields["series"]; v != "" {
		r.Venue = CleanValue(v)
	}

	if m := yearDigits.FindString(e.Fields["year"]); m != "" {
		r.Year = atoi4(m)
	}
	return r
}

func atoi4(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

// Format renders a Record as a BibTeX block. When RawEntry is present it is
// returned verbatim; otherwise an equivalent block is synthesized from the
// record's fields.
func Format(r types.Record) string {
	if r.RawEntry != "" {
		return strings.TrimRight(r.RawEntry, " \t\n")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "@article{%s,\n", CiteKey(r))
	fmt.Fprintf(&b, "  title = {%s},\n", r.Title)
	if len(r.Authors) > 0 {
		fmt.Fprintf(&b, "  author = {%s},\n", strings.Join(r.Authors, " and "))
	}
	if r.Year != 0 {
		fmt.Fprintf(&b, "  year = {%d},\n", r.Year)
	}
	if r.Venue != "" {
		fmt.Fprintf(&b, "  journal = {%s},\n", r.Venue)
	}
	if r.DOI != "" {
		fmt.Fprintf(&b, "  doi = {%s},\n", r.DOI)
	}
	if r.Abstract != "" {
		fmt.Fprintf(&b, "  abstract = {%s},\n", r.Abstract)
	}
	b.WriteString("}")
	return b.String()
}

// CiteKey derives a stable citation key from the record's first author
// surname, year, and first substantive title word.
func CiteKey(r types.Record) string {
	var parts []string
	if len(r.Authors) > 0 {
		parts = append(parts, keyToken(surname(r.Authors[0])))
	}
	if r.Year != 0 {
		parts = append(parts, fmt.Sprintf("%d", r.Year))
	}
	if w := titleKeyWord(r.Title); w != "" {
		parts = append(parts, keyToken(w))
	}
	key := strings.Join(parts, "")
	if key == "" {
		h := fnv.New32a()
		h.Write([]byte(r.Title + r.RawEntry))
		key = fmt.Sprintf("entry%08x", h.Sum32())
	}
	return key
}

// surname extracts the family name from "Last, First" or "First Last".
func surname(name string) string {
	name = strings.TrimSpace(name)
	if idx := strings.Index(name, ","); idx >= 0 {
		return strings.TrimSpace(name[:idx])
	}
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// titleKeyWord picks the first title word that is not a leading
// article, so "A Synthesized Entry" keys on "synthesized".
func titleKeyWord(title string) string {
	words := strings.Fields(NormalizeTitle(title))
	for i, w := range words {
		switch w {
		case "a", "an", "the":
			if i < len(words)-1 {
				continue
			}
		}
		return w
	}
	return ""
}

func keyToken(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
