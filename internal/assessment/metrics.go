package assessment

import (
	"fmt"
	"sort"

	"github.com/pydverify/backend/internal/verifier"
)

const maxCommonIssues = 5

// Metrics is the run-level summary persisted in the assessment history.
type Metrics struct {
	TotalResponses          int      `json:"total_responses"`
	VerifiedResponses       int      `json:"verified_responses"`
	LikelyAccurateResponses int      `json:"likely_accurate_responses"`
	NeedsReviewResponses    int      `json:"needs_review_responses"`
	InaccurateResponses     int      `json:"inaccurate_responses"`
	OutdatedResponses       int      `json:"outdated_responses"`
	AverageConfidence       float64  `json:"average_confidence"`
	CommonIssues            []string `json:"common_issues"`
	ImprovementRate         float64  `json:"improvement_rate"`
}

// Count returns the number of responses classified at level.
func (m Metrics) Count(level verifier.Level) int {
	switch level {
	case verifier.LevelVerified:
		return m.VerifiedResponses
	case verifier.LevelLikelyAccurate:
		return m.LikelyAccurateResponses
	case verifier.LevelNeedsReview:
		return m.NeedsReviewResponses
	case verifier.LevelInaccurate:
		return m.InaccurateResponses
	case verifier.LevelOutdated:
		return m.OutdatedResponses
	default:
		return 0
	}
}

func summarize(details []Detail) Metrics {
	m := Metrics{TotalResponses: len(details)}

	var confidence float64
	changed := 0
	for _, d := range details {
		result := d.Assessment.VerificationResult
		switch result.AccuracyLevel {
		case verifier.LevelVerified:
			m.VerifiedResponses++
		case verifier.LevelLikelyAccurate:
			m.LikelyAccurateResponses++
		case verifier.LevelNeedsReview:
			m.NeedsReviewResponses++
		case verifier.LevelInaccurate:
			m.InaccurateResponses++
		case verifier.LevelOutdated:
			m.OutdatedResponses++
		}
		confidence += result.ConfidenceScore
		if d.Assessment.Changed {
			changed++
		}
	}

	if m.TotalResponses > 0 {
		m.AverageConfidence = confidence / float64(m.TotalResponses)
		m.ImprovementRate = float64(changed) / float64(m.TotalResponses)
	}
	m.CommonIssues = commonIssues(details)
	return m
}

// commonIssues buckets every issue and returns up to five "bucket: count"
// lines, by count descending with ties in first-seen order.
func commonIssues(details []Detail) []string {
	counts := make(map[verifier.Bucket]int)
	var order []verifier.Bucket

	for _, d := range details {
		for _, issue := range d.Assessment.VerificationResult.Issues {
			b := issue.Bucket()
			if b == verifier.BucketNone {
				continue
			}
			if _, seen := counts[b]; !seen {
				order = append(order, b)
			}
			counts[b]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > maxCommonIssues {
		order = order[:maxCommonIssues]
	}

	out := make([]string, 0, len(order))
	for _, b := range order {
		out = append(out, fmt.Sprintf("%s: %d", b, counts[b]))
	}
	return out
}
