// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bib

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/bibharvest/pkg/types"
)

var (
	latexCmdArg = regexp.MustCompile(`\\[A-Za-z]+\*?\{([^}]*)\}`)
	latexCmd    = regexp.MustCompile(`\\[A-Za-z]+\*?`)
	outerWrap   = regexp.MustCompile(`^\s*[{"]|[}"]\s*$`)

	// accentFold decomposes accented letters and drops the combining marks,
	// so "Pérez" and "Perez" normalize identically.
	accentFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// NormalizeTitle reduces a title to a comparison form: outer braces and
// quotes removed, LaTeX commands unwrapped, accents folded, punctuation
// dropped, whitespace collapsed, lowercased.
func NormalizeTitle(title string) string {
	s := outerWrap.ReplaceAllString(title, "")
	s = latexCmdArg.ReplaceAllString(s, "$1")
	s = latexCmd.ReplaceAllString(s, "")
	if folded, _, err := transform.String(accentFold, s); err == nil {
		s = folded
	}

	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeDOI reduces a DOI to a comparison form, tolerating the URL and
// "doi:" prefixed variants portals emit.
func NormalizeDOI(doi string) string {
	s := strings.ToLower(strings.TrimSpace(CleanValue(doi)))
	for _, prefix := range []string{
		"https://doi.org/",
		"http://doi.org/",
		"https://dx.doi.org/",
		"http://dx.doi.org/",
		"doi:",
	} {
		s = strings.TrimPrefix(s, prefix)
	}
	return strings.TrimSpace(s)
}

// NormalizeAuthor reduces an author name to a folded surname token.
func NormalizeAuthor(name string) string {
	s := surname(CleanValue(name))
	if folded, _, err := transform.String(accentFold, s); err == nil {
		s = folded
	}
	return keyToken(s)
}

// Key derives the dedupe key that decides whether two Records refer to the
// same article: the normalized DOI when present, else normalized title plus
// first-author surname. Records with neither fall back to a content hash so
// they are never collapsed with each other.
func Key(r types.Record) string {
	if d := NormalizeDOI(r.DOI); d != "" {
		return "doi:" + d
	}
	if t := NormalizeTitle(r.Title); t != "" {
		first := ""
		if len(r.Authors) > 0 {
			first = NormalizeAuthor(r.Authors[0])
		}
		return "title:" + t + "|" + first
	}
	h := fnv.New64a()
	h.Write([]byte(r.RawEntry))
	return fmt.Sprintf("raw:%016x", h.Sum64())
}
