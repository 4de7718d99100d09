package starschema

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Matcher turns an (artist, title) pair into the join key shared by events
// and catalog records. Two pairs join when their keys are equal.
type Matcher interface {
	Key(artist, title string) string
	Name() string
}

// Exact joins byte-identical pairs only. It is the default.
type Exact struct{}

// Key implements Matcher.
func (Exact) Key(artist, title string) string { return artist + "\x00" + title }

// Name implements Matcher.
func (Exact) Name() string { return "exact" }

// Folded joins pairs that are equal after Unicode NFC normalization, case
// folding and whitespace collapsing, so "The  Killers" matches "the killers".
// Spelling differences such as Lorelai and Lorelei still do not match.
type Folded struct{}

// Key implements Matcher.
func (Folded) Key(artist, title string) string { return fold(artist) + "\x00" + fold(title) }

// Name implements Matcher.
func (Folded) Name() string { return "folded" }

func fold(s string) string {
	// A Caser keeps state between calls, so each key gets its own.
	s = cases.Fold().String(norm.NFC.String(s))
	return strings.Join(strings.Fields(s), " ")
}

// MatcherFor returns the matcher registered under name. An empty name selects
// Exact.
func MatcherFor(name string) (Matcher, error) {
	switch strings.ToLower(name) {
	case "", "exact":
		return Exact{}, nil
	case "folded":
		return Folded{}, nil
	}
	return nil, fmt.Errorf("starschema: unknown matcher %q (want exact or folded)", name)
}
