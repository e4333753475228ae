package enhancer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pydverify/backend/internal/catalog"
	"github.com/pydverify/backend/internal/verifier"
)

const disclaimerFormat = "\n\n⚠️  This response has been automatically enhanced for accuracy. " +
	"Please verify against official %s documentation for the latest information."

type Enhancer struct {
	corrections []catalog.Correction
	disclaimer  string
}

func New(c catalog.Catalog) *Enhancer {
	return &Enhancer{
		corrections: c.Corrections(),
		disclaimer:  fmt.Sprintf(disclaimerFormat, c.Library),
	}
}

// Disclaimer returns the paragraph appended to NEEDS_REVIEW or worse.
func (e *Enhancer) Disclaimer() string {
	return e.disclaimer
}

// Enhance returns original unchanged when the verdict is VERIFIED.
// Otherwise every catalog correction is applied in a single pass over the
// original text and, for NEEDS_REVIEW or worse, the disclaimer is appended.
func (e *Enhancer) Enhance(original string, result verifier.Result) string {
	if result.AccuracyLevel == verifier.LevelVerified {
		return original
	}

	enhanced := e.Correct(original)
	if result.AccuracyLevel.AtLeastNeedsReview() {
		enhanced += e.disclaimer
	}
	return enhanced
}

type span struct {
	start, end  int
	replacement string
}

// Correct substitutes every correction match found in text. Matches are
// located on the original text only, so no replacement is rescanned. When
// two matches overlap the earlier correction in catalog order wins.
func (e *Enhancer) Correct(text string) string {
	var accepted []span
	for _, c := range e.corrections {
		for _, loc := range c.Regexp().FindAllStringIndex(text, -1) {
			candidate := span{start: loc[0], end: loc[1], replacement: c.Replacement}
			if candidate.start == candidate.end || overlaps(accepted, candidate) {
				continue
			}
			accepted = append(accepted, candidate)
		}
	}
	if len(accepted) == 0 {
		return text
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].start < accepted[j].start })

	var b strings.Builder
	b.Grow(len(text))
	pos := 0
	for _, s := range accepted {
		b.WriteString(text[pos:s.start])
		b.WriteString(s.replacement)
		pos = s.end
	}
	b.WriteString(text[pos:])
	return b.String()
}

func overlaps(spans []span, s span) bool {
	for _, o := range spans {
		if s.start < o.end && o.start < s.end {
			return true
		}
	}
	return false
}
