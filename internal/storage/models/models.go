package models

import "time"

type AssessmentRun struct {
	ID                  string
	Batch               string
	TotalResponses      int
	VerifiedCount       int
	LikelyAccurateCount int
	NeedsReviewCount    int
	InaccurateCount     int
	OutdatedCount       int
	AverageConfidence   float64
	ImprovementRate     float64
	CommonIssues        []string
	StartedAt           time.Time
	FinishedAt          time.Time
}

type AssessmentItem struct {
	ID                string
	RunID             string
	ItemID            string
	Position          int
	Query             string
	AccuracyLevel     string
	ConfidenceScore   float64
	IssuesCount       int
	Issues            []string
	Changed           bool
	ImprovementNeeded bool
	CreatedAt         time.Time
}
