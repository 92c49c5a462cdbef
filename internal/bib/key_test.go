// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bib

import (
	"testing"

	"github.com/pdiddy/bibharvest/pkg/types"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"plain", "Machine Learning Models", "machine learning models"},
		{"latex command", `{Machine \textbf{Learning} Models}`, "machine learning models"},
		{"accents", "Aprendizaje Automático: Una Visión", "aprendizaje automatico una vision"},
		{"punctuation and spacing", "AI:   The Future!", "ai the future"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTitle(tt.title); got != tt.want {
				t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestNormalizeDOI(t *testing.T) {
	want := "10.1145/3576915"
	for _, in := range []string{
		"10.1145/3576915",
		"DOI:10.1145/3576915",
		"https://doi.org/10.1145/3576915",
		"http://dx.doi.org/10.1145/3576915",
		"  10.1145/3576915  ",
	} {
		if got := NormalizeDOI(in); got != want {
			t.Errorf("NormalizeDOI(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKeyPrefersDOI(t *testing.T) {
	a := types.Record{Title: "A Title", DOI: "10.1/x", Authors: []string{"Smith, J."}}
	b := types.Record{Title: "A Title (dup)", DOI: "https://doi.org/10.1/X"}
	if Key(a) != Key(b) {
		t.Errorf("records sharing a normalized DOI must share a key: %q vs %q", Key(a), Key(b))
	}
}

func TestKeyTitleAuthorFallback(t *testing.T) {
	a := types.Record{Title: "Generative AI in Education", Authors: []string{"Pérez, Ana"}}
	b := types.Record{Title: "generative ai in education", Authors: []string{"Perez, Ana Maria"}}
	if Key(a) != Key(b) {
		t.Errorf("accent and case variants must collapse: %q vs %q", Key(a), Key(b))
	}

	c := types.Record{Title: "Generative AI in Education", Authors: []string{"Nguyen, Bao"}}
	if Key(a) == Key(c) {
		t.Error("same title with a different first author must not collapse")
	}
}

func TestKeyRawHashFallback(t *testing.T) {
	a := types.Record{RawEntry: "@misc{a, note={one}}"}
	b := types.Record{RawEntry: "@misc{b, note={two}}"}
	if Key(a) == Key(b) {
		t.Error("records with no title or DOI must not collapse with each other")
	}
	if Key(a) != Key(a) {
		t.Error("raw-hash keys must be stable")
	}
}
