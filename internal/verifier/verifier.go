// Package verifier scans a drafted answer against the pattern catalog and
// the knowledge store and classifies it into one of five accuracy levels.
//
// Verification is pure string scanning: it never fails and never calls out
// to the network.
package verifier

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pydverify/backend/internal/catalog"
	"github.com/pydverify/backend/internal/knowledge"
	"github.com/pydverify/backend/pkg/logger"
)

type Level string

const (
	LevelVerified       Level = "verified"
	LevelLikelyAccurate Level = "likely_accurate"
	LevelNeedsReview    Level = "needs_review"
	LevelInaccurate     Level = "inaccurate"
	LevelOutdated       Level = "outdated"
)

// Levels lists every level in reporting order.
var Levels = []Level{LevelVerified, LevelLikelyAccurate, LevelNeedsReview, LevelInaccurate, LevelOutdated}

// confidence is a fixed lookup per level; reports depend on these values.
var confidence = map[Level]float64{
	LevelVerified:       0.95,
	LevelLikelyAccurate: 0.8,
	LevelNeedsReview:    0.6,
	LevelOutdated:       0.3,
	LevelInaccurate:     0.2,
}

func (l Level) Confidence() float64 {
	return confidence[l]
}

// AtLeastNeedsReview reports whether l is NEEDS_REVIEW or worse.
func (l Level) AtLeastNeedsReview() bool {
	return l == LevelNeedsReview || l == LevelInaccurate || l == LevelOutdated
}

const (
	SourceCatalog   = "misconception_catalog"
	SourceSyntax    = "syntax_rules"
	SourceKnowledge = "knowledge_store"
)

type Result struct {
	AccuracyLevel   Level    `json:"accuracy_level"`
	ConfidenceScore float64  `json:"confidence_score"`
	Issues          []Issue  `json:"-"`
	Recommendations []string `json:"recommendations"`
	SourcesChecked  []string `json:"sources_checked"`
}

// IssuesFound returns the human-readable issue strings in detection order.
func (r Result) IssuesFound() []string {
	out := make([]string, len(r.Issues))
	for i, issue := range r.Issues {
		out[i] = issue.Message
	}
	return out
}

func (r Result) HasKind(kind Kind) bool {
	for _, issue := range r.Issues {
		if issue.Kind == kind {
			return true
		}
	}
	return false
}

func (r Result) MarshalJSON() ([]byte, error) {
	type wire struct {
		AccuracyLevel   Level    `json:"accuracy_level"`
		ConfidenceScore float64  `json:"confidence_score"`
		IssuesFound     []string `json:"issues_found"`
		Issues          []Issue  `json:"issues"`
		Recommendations []string `json:"recommendations"`
		SourcesChecked  []string `json:"sources_checked"`
	}
	issues := r.Issues
	if issues == nil {
		issues = []Issue{}
	}
	return json.Marshal(wire{
		AccuracyLevel:   r.AccuracyLevel,
		ConfidenceScore: r.ConfidenceScore,
		IssuesFound:     r.IssuesFound(),
		Issues:          issues,
		Recommendations: r.Recommendations,
		SourcesChecked:  r.SourcesChecked,
	})
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var wire struct {
		AccuracyLevel   Level    `json:"accuracy_level"`
		ConfidenceScore float64  `json:"confidence_score"`
		Issues          []Issue  `json:"issues"`
		Recommendations []string `json:"recommendations"`
		SourcesChecked  []string `json:"sources_checked"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = Result{
		AccuracyLevel:   wire.AccuracyLevel,
		ConfidenceScore: wire.ConfidenceScore,
		Issues:          wire.Issues,
		Recommendations: wire.Recommendations,
		SourcesChecked:  wire.SourcesChecked,
	}
	return nil
}

// KnowledgeSource is the read side of the knowledge store.
type KnowledgeSource interface {
	Latest() knowledge.Snapshot
}

type Verifier struct {
	catalog catalog.Catalog
	source  KnowledgeSource
}

// New returns a verifier. source may be nil, in which case the catalog's
// current major version is assumed.
func New(c catalog.Catalog, source KnowledgeSource) *Verifier {
	return &Verifier{catalog: c, source: source}
}

func (v *Verifier) Catalog() catalog.Catalog {
	return v.catalog
}

// Snapshot returns the knowledge snapshot Verify would use.
func (v *Verifier) Snapshot() knowledge.Snapshot {
	if v.source == nil {
		return knowledge.Snapshot{}
	}
	return v.source.Latest()
}

// Verify checks response against the current knowledge snapshot.
func (v *Verifier) Verify(response string) Result {
	return v.VerifyAgainst(response, v.Snapshot())
}

// VerifyAgainst checks response against a caller-provided snapshot, so a
// batch can share a single store read.
func (v *Verifier) VerifyAgainst(response string, snap knowledge.Snapshot) Result {
	major := v.catalog.CurrentMajor
	if snap.VersionInfo != nil && snap.VersionInfo.Major() != "" {
		major = snap.VersionInfo.Major()
	}

	var issues []Issue
	issues = append(issues, v.checkMisconceptions(response)...)
	issues = append(issues, v.checkSyntax(response)...)
	issues = append(issues, v.checkDocumentation(response, major)...)

	level := classify(issues, response)

	logger.Debug("Response verified",
		zap.String("level", string(level)),
		zap.Int("issues", len(issues)),
	)

	return Result{
		AccuracyLevel:   level,
		ConfidenceScore: level.Confidence(),
		Issues:          issues,
		Recommendations: v.recommend(issues, major),
		SourcesChecked:  []string{SourceCatalog, SourceSyntax, SourceKnowledge},
	}
}

// Facts returns the reference facts of every catalog category that
// contributed an issue to result, in catalog order.
func (v *Verifier) Facts(result Result) []string {
	seen := make(map[string]bool)
	for _, issue := range result.Issues {
		if issue.Category != "" {
			seen[issue.Category] = true
		}
	}

	facts := []string{}
	for _, cat := range v.catalog.Categories {
		if seen[cat.ID] {
			facts = append(facts, cat.Facts...)
		}
	}
	return facts
}

func (v *Verifier) checkMisconceptions(response string) []Issue {
	var issues []Issue
	lower := strings.ToLower(response)
	major := v.catalog.CurrentMajor

	for _, cat := range v.catalog.Categories {
		for _, c := range cat.Corrections {
			if c.Regexp().MatchString(response) {
				msg := fmt.Sprintf("Detected v1 syntax '%s' - should use v%s syntax '%s'", c.Legacy, major, c.Replacement)
				issues = append(issues, Issue{
					Kind:     KindLegacySyntax,
					Message:  msg,
					Category: cat.ID,
				})
			}
		}

		for _, exemplar := range cat.Exemplars {
			if matchesExemplar(strings.ToLower(exemplar), lower) {
				issues = append(issues, Issue{
					Kind:        KindMisconception,
					Message:     "Potential misconception: " + exemplar,
					Category:    cat.ID,
					Deprecation: strings.Contains(strings.ToLower(exemplar), "deprecated"),
				})
			}
		}
	}
	return issues
}

// matchesExemplar reports whether every word longer than three characters
// in exemplar appears somewhere in text.
func matchesExemplar(exemplar, text string) bool {
	for _, word := range strings.Fields(exemplar) {
		if utf8.RuneCountInString(word) <= 3 {
			continue
		}
		if !strings.Contains(text, word) {
			return false
		}
	}
	return true
}

func (v *Verifier) checkSyntax(response string) []Issue {
	var issues []Issue
	for _, rule := range v.catalog.SyntaxRules {
		if rule.Regexp().MatchString(response) {
			issues = append(issues, Issue{
				Kind:    KindOutdatedSyntax,
				Message: "Outdated syntax detected: " + rule.Suggestion,
			})
		}
	}
	return issues
}

func (v *Verifier) checkDocumentation(response, major string) []Issue {
	lower := strings.ToLower(response)

	claimed := false
	for _, claim := range v.catalog.VersionClaims(major) {
		if strings.Contains(lower, claim) {
			claimed = true
			break
		}
	}
	if !claimed || strings.Contains(lower, "deprecated") {
		return nil
	}

	var issues []Issue
	for _, call := range v.catalog.DeprecatedCalls {
		if strings.Contains(response, call.Token) {
			issues = append(issues, Issue{
				Kind:        KindDocGap,
				Message:     fmt.Sprintf("Response mentions %s without noting it's deprecated in v%s", call.Token, major),
				Deprecation: true,
			})
		}
	}
	return issues
}

// classify applies the fixed precedence chain. density is issues per 100
// words, with responses under 100 words counted as 100.
func classify(issues []Issue, response string) Level {
	n := len(issues)
	words := len(strings.Fields(response))
	density := float64(n) / math.Max(float64(words)/100, 1)

	legacy := false
	for _, issue := range issues {
		if issue.Kind == KindLegacySyntax {
			legacy = true
			break
		}
	}

	switch {
	case n == 0:
		return LevelVerified
	case n <= 1 && density < 0.1:
		return LevelLikelyAccurate
	case n <= 3 && density < 0.3:
		return LevelNeedsReview
	case legacy:
		return LevelOutdated
	default:
		return LevelInaccurate
	}
}

func (v *Verifier) recommend(issues []Issue, major string) []string {
	var legacy, deprecated, misconception bool
	for _, issue := range issues {
		if issue.Kind == KindLegacySyntax {
			legacy = true
		}
		if issue.Deprecation {
			deprecated = true
		}
		if issue.Kind == KindMisconception {
			misconception = true
		}
	}

	lib := v.catalog.Library
	var recs []string
	if legacy {
		recs = append(recs, fmt.Sprintf("Update all code examples to use %s v%s syntax", lib, major))
	}
	if deprecated {
		recs = append(recs, "Include deprecation warnings for outdated methods")
	}
	if misconception {
		recs = append(recs, "Add clarification about common misconceptions")
	}
	if len(issues) > 3 {
		recs = append(recs, "Consider completely rewriting response with verified information")
	}
	recs = append(recs, fmt.Sprintf("Cross-reference with official %s documentation", lib))
	return recs
}
