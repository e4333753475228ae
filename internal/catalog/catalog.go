// Package catalog holds the versioned table of known misconceptions about
// the tracked library: textual corrections from legacy (v1) idioms to the
// current ones, free-text exemplar phrases, and the narrower legacy-syntax
// rule table the verifier checks separately.
//
// A Catalog is a plain value. It is built once (usually by Default) and
// passed to the verifier and enhancer; nothing mutates it at run time.
package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

// Correction maps a legacy token to its current replacement.
type Correction struct {
	// Legacy is the regular expression that detects the legacy token.
	Legacy string
	// Replacement is the literal text substituted for every match.
	Replacement string

	re *regexp.Regexp
}

// Regexp returns the compiled Legacy pattern.
func (c Correction) Regexp() *regexp.Regexp {
	if c.re == nil {
		return regexp.MustCompile(c.Legacy)
	}
	return c.re
}

// Category is one misconception category.
type Category struct {
	ID          string
	Description string
	Corrections []Correction
	Exemplars   []string
	// Facts are reference statements surfaced alongside findings.
	Facts []string
}

// SyntaxRule is one entry of the legacy-syntax table.
type SyntaxRule struct {
	Pattern    string
	Suggestion string

	re *regexp.Regexp
}

func (r SyntaxRule) Regexp() *regexp.Regexp {
	if r.re == nil {
		return regexp.MustCompile(r.Pattern)
	}
	return r.re
}

// DeprecatedCall is a literal call form that must be flagged as deprecated
// whenever a response claims to describe the current major version.
type DeprecatedCall struct {
	Token       string
	Replacement string
}

type Catalog struct {
	Library         string
	CurrentMajor    string
	Categories      []Category
	SyntaxRules     []SyntaxRule
	DeprecatedCalls []DeprecatedCall
}

// New compiles every pattern and validates the authoring invariants.
func New(c Catalog) (Catalog, error) {
	out := c
	out.Categories = make([]Category, len(c.Categories))
	for i, cat := range c.Categories {
		cat.Corrections = append([]Correction(nil), cat.Corrections...)
		for j := range cat.Corrections {
			re, err := regexp.Compile(cat.Corrections[j].Legacy)
			if err != nil {
				return Catalog{}, fmt.Errorf("category %s: correction %q: %w", cat.ID, cat.Corrections[j].Legacy, err)
			}
			cat.Corrections[j].re = re
		}
		out.Categories[i] = cat
	}

	out.SyntaxRules = append([]SyntaxRule(nil), c.SyntaxRules...)
	for i := range out.SyntaxRules {
		re, err := regexp.Compile(out.SyntaxRules[i].Pattern)
		if err != nil {
			return Catalog{}, fmt.Errorf("syntax rule %q: %w", out.SyntaxRules[i].Pattern, err)
		}
		out.SyntaxRules[i].re = re
	}

	if err := out.Validate(); err != nil {
		return Catalog{}, err
	}
	return out, nil
}

// Validate checks that no correction's replacement text is matched by any
// correction pattern. The enhancer applies corrections in one pass, so a
// replacement that another pattern recognises would leave the output
// non-idempotent.
func (c Catalog) Validate() error {
	if c.Library == "" {
		return fmt.Errorf("catalog: library name is required")
	}
	seen := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.ID == "" {
			return fmt.Errorf("catalog: category without id")
		}
		if seen[cat.ID] {
			return fmt.Errorf("catalog: duplicate category %q", cat.ID)
		}
		seen[cat.ID] = true
	}

	corrections := c.Corrections()
	for _, a := range corrections {
		for _, b := range corrections {
			if b.Regexp().MatchString(a.Replacement) {
				return fmt.Errorf("catalog: replacement %q is matched by pattern %q", a.Replacement, b.Legacy)
			}
		}
	}
	return nil
}

// Corrections returns every correction in catalog order.
func (c Catalog) Corrections() []Correction {
	var out []Correction
	for _, cat := range c.Categories {
		out = append(out, cat.Corrections...)
	}
	return out
}

// CategoryByID returns the category with the given id.
func (c Catalog) CategoryByID(id string) (Category, bool) {
	for _, cat := range c.Categories {
		if cat.ID == id {
			return cat, true
		}
	}
	return Category{}, false
}

// VersionClaims returns the lowercase phrases that mark a response as
// describing the given major version ("pydantic v2", "pydantic 2").
func (c Catalog) VersionClaims(major string) []string {
	if major == "" {
		major = c.CurrentMajor
	}
	lib := strings.ToLower(c.Library)
	return []string{lib + " v" + major, lib + " " + major}
}
