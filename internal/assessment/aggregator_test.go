package assessment

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pydverify/backend/internal/catalog"
	"github.com/pydverify/backend/internal/enhancer"
	"github.com/pydverify/backend/internal/knowledge"
	"github.com/pydverify/backend/internal/pipeline"
	"github.com/pydverify/backend/internal/verifier"
)

const (
	misconceptionResponse = `Some writers keep claiming pydantic is only marginally faster than before, ` +
		`but the real story is different. Others publish outdated memory usage statistics from old blog posts.`
	docGapResponse = "In Pydantic v2 you call user.dict() to export data."
	cleanResponse  = "Use model_validate to parse input and model_dump to export it."
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestAggregator(t *testing.T, assessor Assessor, cfg Config) (*Aggregator, *knowledge.Store) {
	t.Helper()
	store, err := knowledge.NewStore(t.TempDir())
	require.NoError(t, err)

	if assessor == nil {
		assessor = newEngine()
	}
	if cfg.Now == nil {
		c := &clock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
		cfg.Now = c.now
	}
	return NewAggregator(assessor, store, cfg), store
}

func newEngine() *pipeline.Engine {
	c := catalog.Default()
	return pipeline.NewEngine(verifier.New(c, nil), enhancer.New(c))
}

func levelSum(m Metrics) int {
	total := 0
	for _, level := range verifier.Levels {
		total += m.Count(level)
	}
	return total
}

func TestRunSampleBatch(t *testing.T) {
	agg, _ := newTestAggregator(t, nil, Config{})

	run := agg.Run(context.Background(), SampleBatch())
	m := run.Metrics

	assert.Equal(t, 4, m.TotalResponses)
	assert.Equal(t, 4, levelSum(m))
	assert.Equal(t, 1, m.OutdatedResponses)
	assert.Equal(t, 3, m.VerifiedResponses)
	assert.InDelta(t, 0.7875, m.AverageConfidence, 1e-9)
	assert.InDelta(t, 0.25, m.ImprovementRate, 1e-9)
	assert.Equal(t, []string{"v1_syntax_usage: 3"}, m.CommonIssues)

	require.Len(t, run.Details, 4)
	assert.Equal(t, "response_1", run.Details[0].ID)
	assert.Equal(t, verifier.LevelOutdated, run.Details[0].Assessment.VerificationResult.AccuracyLevel)
}

func TestRunCommonIssuesOrdering(t *testing.T) {
	agg, _ := newTestAggregator(t, nil, Config{})
	batch := Batch{Name: "mixed", Items: []Item{
		{ID: "a", Response: SampleBatch().Items[0].Response},
		{ID: "b", Response: misconceptionResponse},
		{ID: "c", Response: docGapResponse},
		{ID: "d", Response: cleanResponse},
	}}

	m := agg.Run(context.Background(), batch).Metrics

	assert.Equal(t, []string{
		"v1_syntax_usage: 4",
		"common_misconceptions: 2",
		"deprecated_methods: 1",
	}, m.CommonIssues)
	assert.Equal(t, 4, levelSum(m))
	assert.Equal(t, 2, m.OutdatedResponses)
	assert.Equal(t, 1, m.InaccurateResponses)
	assert.Equal(t, 1, m.VerifiedResponses)
}

func TestCommonIssuesTiesKeepFirstSeenOrder(t *testing.T) {
	detail := func(issues ...verifier.Issue) Detail {
		return Detail{Assessment: pipeline.Assessment{VerificationResult: verifier.Result{Issues: issues}}}
	}
	deprecated := verifier.Issue{Kind: verifier.KindDocGap, Deprecation: true}
	misconception := verifier.Issue{Kind: verifier.KindMisconception}
	syntax := verifier.Issue{Kind: verifier.KindLegacySyntax}
	ignored := verifier.Issue{Kind: verifier.KindOutdatedSyntax}

	got := commonIssues([]Detail{
		detail(deprecated, ignored),
		detail(misconception),
		detail(syntax),
	})
	assert.Equal(t, []string{"deprecated_methods: 1", "common_misconceptions: 1", "v1_syntax_usage: 1"}, got)

	assert.Empty(t, commonIssues([]Detail{detail(ignored)}))
}

func TestRunEmptyBatch(t *testing.T) {
	agg, _ := newTestAggregator(t, nil, Config{})

	m := agg.Run(context.Background(), Batch{Name: "empty"}).Metrics
	assert.Equal(t, 0, m.TotalResponses)
	assert.Equal(t, 0.0, m.AverageConfidence)
	assert.Equal(t, 0.0, m.ImprovementRate)
	assert.Empty(t, m.CommonIssues)
}

type panickyAssessor struct {
	next Assessor
}

func (p panickyAssessor) AssessWith(ctx context.Context, req pipeline.Request, snap knowledge.Snapshot) pipeline.Assessment {
	if strings.Contains(req.Response, "boom") {
		panic("malformed input")
	}
	return p.next.AssessWith(ctx, req, snap)
}

func TestRunRecoversPerItem(t *testing.T) {
	agg, _ := newTestAggregator(t, panickyAssessor{next: newEngine()}, Config{})
	batch := Batch{Name: "faulty", Items: []Item{
		{ID: "ok-1", Response: cleanResponse},
		{ID: "bad", Response: "boom"},
		{ID: "ok-2", Response: cleanResponse},
	}}

	run := agg.Run(context.Background(), batch)

	require.Len(t, run.Details, 3)
	bad := run.Details[1].Assessment
	assert.Equal(t, verifier.LevelNeedsReview, bad.VerificationResult.AccuracyLevel)
	assert.Equal(t, 0.6, bad.VerificationResult.ConfidenceScore)
	assert.True(t, bad.VerificationResult.HasKind(verifier.KindInternal))
	assert.Equal(t, "boom", bad.EnhancedResponse)
	assert.Equal(t, 2, run.Metrics.VerifiedResponses)
	assert.Equal(t, 1, run.Metrics.NeedsReviewResponses)
	assert.Empty(t, run.Metrics.CommonIssues)
}

type recorder struct {
	runs []*Run
}

func (r *recorder) RecordRun(ctx context.Context, run *Run) error {
	r.runs = append(r.runs, run)
	return nil
}

func TestGenerateReport(t *testing.T) {
	rec := &recorder{}
	agg, store := newTestAggregator(t, nil, Config{Recorder: rec, AutoUpdate: true})
	require.NoError(t, store.SaveVersionInfo(knowledge.VersionInfo{Version: "2.11.0"}))

	report, path, err := agg.GenerateReport(context.Background(), SampleBatch())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(store.Dir(), knowledge.ReportsDir), filepath.Dir(path))
	assert.Regexp(t, `accuracy_report_\d{8}_\d{6}\.json$`, path)

	assert.Equal(t, "1.0", report.ReportMetadata.ReportVersion)
	assert.Equal(t, "sample_responses", report.ReportMetadata.AssessmentPeriod)
	assert.Equal(t, 4, report.ExecutiveSummary.TotalResponsesAssessed)
	assert.Equal(t, 1, report.ExecutiveSummary.AccuracyDistribution.Outdated)
	assert.InDelta(t, 0.788, report.ExecutiveSummary.AverageConfidenceScore, 0.0011)
	assert.Equal(t, 25.0, report.ExecutiveSummary.ImprovementRate)
	assert.Equal(t, "2.11.0", report.DetailedFindings.KnowledgeBaseStatus.CurrentVersion)
	assert.Len(t, report.DetailedFindings.AssessmentDetails, 4)
	assert.True(t, report.VerificationSystemStatus.KnowledgeBaseAutoUpdate)

	require.Len(t, report.Recommendations, 3)
	assert.Equal(t, PriorityHigh, report.Recommendations[0].Priority)
	assert.Equal(t, "Outdated Information", report.Recommendations[0].Category)
	assert.Equal(t, PriorityMedium, report.Recommendations[1].Priority)
	assert.Equal(t, PriorityLow, report.Recommendations[2].Priority)
	assert.Equal(t, "Continuous Improvement", report.Recommendations[2].Category)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &onDisk))
	for _, key := range []string{"report_metadata", "executive_summary", "detailed_findings", "recommendations", "verification_system_status"} {
		assert.Contains(t, onDisk, key)
	}

	history, err := agg.History()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, report.ReportMetadata.RunID, history[0].RunID)
	assert.Equal(t, 4, history[0].Metrics.TotalResponses)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, report.ReportMetadata.RunID, rec.runs[0].ID)
}

func TestGenerateReportUnknownVersion(t *testing.T) {
	agg, _ := newTestAggregator(t, nil, Config{})

	report, _, err := agg.GenerateReport(context.Background(), Batch{Name: "clean", Items: []Item{{ID: "x", Response: cleanResponse}}})
	require.NoError(t, err)

	assert.Equal(t, "Unknown", report.DetailedFindings.KnowledgeBaseStatus.CurrentVersion)
	require.Len(t, report.Recommendations, 1)
	assert.Equal(t, PriorityLow, report.Recommendations[0].Priority)
}

func TestGenerateReportUnwritableStorage(t *testing.T) {
	agg, store := newTestAggregator(t, nil, Config{})
	require.NoError(t, os.WriteFile(store.Path(knowledge.ReportsDir), []byte("not a dir"), 0644))

	_, _, err := agg.GenerateReport(context.Background(), SampleBatch())
	assert.ErrorIs(t, err, ErrStorageUnwritable)
}

func TestHistoryIsCapped(t *testing.T) {
	agg, _ := newTestAggregator(t, nil, Config{})

	var first string
	for i := 0; i < HistoryLimit+3; i++ {
		report, _, err := agg.GenerateReport(context.Background(), Batch{Name: "empty"})
		require.NoError(t, err)
		if i == 3 {
			first = report.ReportMetadata.RunID
		}
	}

	history, err := agg.History()
	require.NoError(t, err)
	require.Len(t, history, HistoryLimit)
	assert.Equal(t, first, history[0].RunID)
}

func TestRecommendationsThresholds(t *testing.T) {
	recs := recommendations(Metrics{AverageConfidence: 0.95}, "Pydantic")
	require.Len(t, recs, 1)
	assert.Equal(t, "Continuous Improvement", recs[0].Category)

	recs = recommendations(Metrics{InaccurateResponses: 2, OutdatedResponses: 1, AverageConfidence: 0.5}, "Pydantic")
	require.Len(t, recs, 4)
	assert.Equal(t, "Outdated Information", recs[0].Category)
	assert.Equal(t, "Factual Inaccuracies", recs[1].Category)
	assert.Equal(t, "2 responses contained factual errors", recs[1].Issue)
	assert.Equal(t, "Response Confidence", recs[2].Category)
	assert.Equal(t, "Average confidence score is 0.50", recs[2].Issue)
	assert.Equal(t, PriorityLow, recs[3].Priority)
}

func TestLoadBatch(t *testing.T) {
	b, err := LoadBatch(strings.NewReader(`[{"response":"a"},{"id":"x","response":"b"}]`), "file")
	require.NoError(t, err)
	assert.Equal(t, "file", b.Name)
	require.Len(t, b.Items, 2)
	assert.Equal(t, "response_1", b.Items[0].ID)
	assert.Equal(t, "x", b.Items[1].ID)
	assert.NotNil(t, b.Items[0].ExpectedIssues)

	b, err = LoadBatch(strings.NewReader(`{"name":"nightly","items":[{"response":"a"}]}`), "file")
	require.NoError(t, err)
	assert.Equal(t, "nightly", b.Name)
	assert.Len(t, b.Items, 1)

	_, err = LoadBatch(strings.NewReader(`not json`), "file")
	assert.Error(t, err)
}
