package assessment

import (
	"fmt"
	"math"
	"time"

	"github.com/pydverify/backend/internal/knowledge"
)

const ReportVersion = "1.0"

const (
	PriorityHigh   = "HIGH"
	PriorityMedium = "MEDIUM"
	PriorityLow    = "LOW"
)

// confidenceTarget is the average confidence below which a MEDIUM
// recommendation is raised.
const confidenceTarget = 0.8

type Report struct {
	ReportMetadata           ReportMetadata   `json:"report_metadata"`
	ExecutiveSummary         ExecutiveSummary `json:"executive_summary"`
	DetailedFindings         DetailedFindings `json:"detailed_findings"`
	Recommendations          []Recommendation `json:"recommendations"`
	VerificationSystemStatus SystemStatus     `json:"verification_system_status"`
}

type ReportMetadata struct {
	RunID            string    `json:"run_id"`
	GeneratedAt      time.Time `json:"generated_at"`
	ReportVersion    string    `json:"report_version"`
	AssessmentPeriod string    `json:"assessment_period"`
}

type Distribution struct {
	Verified       int `json:"verified"`
	LikelyAccurate int `json:"likely_accurate"`
	NeedsReview    int `json:"needs_review"`
	Inaccurate     int `json:"inaccurate"`
	Outdated       int `json:"outdated"`
}

type ExecutiveSummary struct {
	TotalResponsesAssessed int          `json:"total_responses_assessed"`
	AccuracyDistribution   Distribution `json:"accuracy_distribution"`
	AverageConfidenceScore float64      `json:"average_confidence_score"`
	// ImprovementRate is a percentage rounded to one decimal.
	ImprovementRate float64 `json:"improvement_rate"`
}

type KnowledgeBaseStatus struct {
	LastUpdated    string `json:"last_updated"`
	EntriesCount   int    `json:"entries_count"`
	CurrentVersion string `json:"current_version"`
}

type DetailedFindings struct {
	CommonInaccuracies  []string            `json:"common_inaccuracies"`
	AssessmentDetails   []Detail            `json:"assessment_details"`
	KnowledgeBaseStatus KnowledgeBaseStatus `json:"knowledge_base_status"`
}

type Recommendation struct {
	Priority       string   `json:"priority"`
	Category       string   `json:"category"`
	Issue          string   `json:"issue"`
	Recommendation string   `json:"recommendation"`
	Implementation []string `json:"implementation"`
}

type SystemStatus struct {
	Active                  bool `json:"active"`
	VerificationEnabled     bool `json:"verification_enabled"`
	AutoEnhancementEnabled  bool `json:"auto_enhancement_enabled"`
	KnowledgeBaseAutoUpdate bool `json:"knowledge_base_auto_update"`
}

func buildReport(run *Run, snap knowledge.Snapshot, library string, autoUpdate bool) Report {
	m := run.Metrics

	currentVersion := snap.CurrentVersion()
	if currentVersion == "" {
		currentVersion = "Unknown"
	}

	return Report{
		ReportMetadata: ReportMetadata{
			RunID:            run.ID,
			GeneratedAt:      run.FinishedAt,
			ReportVersion:    ReportVersion,
			AssessmentPeriod: run.Batch,
		},
		ExecutiveSummary: ExecutiveSummary{
			TotalResponsesAssessed: m.TotalResponses,
			AccuracyDistribution: Distribution{
				Verified:       m.VerifiedResponses,
				LikelyAccurate: m.LikelyAccurateResponses,
				NeedsReview:    m.NeedsReviewResponses,
				Inaccurate:     m.InaccurateResponses,
				Outdated:       m.OutdatedResponses,
			},
			AverageConfidenceScore: round(m.AverageConfidence, 3),
			ImprovementRate:        round(m.ImprovementRate*100, 1),
		},
		DetailedFindings: DetailedFindings{
			CommonInaccuracies: m.CommonIssues,
			AssessmentDetails:  run.Details,
			KnowledgeBaseStatus: KnowledgeBaseStatus{
				LastUpdated:    snap.LastUpdated.UTC().Format(time.RFC3339),
				EntriesCount:   len(snap.KnowledgeBase),
				CurrentVersion: currentVersion,
			},
		},
		Recommendations: recommendations(m, library),
		VerificationSystemStatus: SystemStatus{
			Active:                  true,
			VerificationEnabled:     true,
			AutoEnhancementEnabled:  true,
			KnowledgeBaseAutoUpdate: autoUpdate,
		},
	}
}

func recommendations(m Metrics, library string) []Recommendation {
	var recs []Recommendation

	if m.OutdatedResponses > 0 {
		recs = append(recs, Recommendation{
			Priority:       PriorityHigh,
			Category:       "Outdated Information",
			Issue:          fmt.Sprintf("%d responses contained outdated v1 syntax", m.OutdatedResponses),
			Recommendation: fmt.Sprintf("Update training data to emphasize %s v2 syntax and deprecate v1 examples", library),
			Implementation: []string{
				"Add explicit v2 syntax examples to training data",
				"Include v1-to-v2 migration information",
				"Flag responses containing v1 patterns for review",
			},
		})
	}

	if m.InaccurateResponses > 0 {
		recs = append(recs, Recommendation{
			Priority:       PriorityHigh,
			Category:       "Factual Inaccuracies",
			Issue:          fmt.Sprintf("%d responses contained factual errors", m.InaccurateResponses),
			Recommendation: "Implement stricter fact-checking against official documentation",
			Implementation: []string{
				fmt.Sprintf("Cross-reference all %s claims with official docs", library),
				"Implement real-time documentation sync",
				"Add confidence scoring to responses",
			},
		})
	}

	if m.AverageConfidence < confidenceTarget {
		recs = append(recs, Recommendation{
			Priority:       PriorityMedium,
			Category:       "Response Confidence",
			Issue:          fmt.Sprintf("Average confidence score is %.2f", m.AverageConfidence),
			Recommendation: "Improve training data quality and verification processes",
			Implementation: []string{
				"Enhance knowledge base with verified examples",
				"Implement multi-source verification",
				"Add uncertainty indicators to responses",
			},
		})
	}

	recs = append(recs, Recommendation{
		Priority:       PriorityLow,
		Category:       "Continuous Improvement",
		Issue:          "Ongoing accuracy maintenance needed",
		Recommendation: "Establish regular accuracy monitoring and improvement cycle",
		Implementation: []string{
			"Schedule weekly accuracy assessments",
			fmt.Sprintf("Monitor %s release notes for updates", library),
			"Collect user feedback on response accuracy",
		},
	})

	return recs
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
