// Package assessment runs batches of drafted answers through the
// verification pipeline, summarises them into run metrics and persists a
// report file plus a capped run history.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pydverify/backend/internal/knowledge"
	"github.com/pydverify/backend/internal/metrics"
	"github.com/pydverify/backend/internal/pipeline"
	"github.com/pydverify/backend/internal/verifier"
	"github.com/pydverify/backend/pkg/logger"
)

// HistoryLimit caps the assessment history journal.
const HistoryLimit = 100

// ErrStorageUnwritable is returned when the report or history cannot be
// written. It is a configuration problem and is not retried.
var ErrStorageUnwritable = errors.New("assessment: storage path is unwritable")

// Assessor is the per-response pipeline step.
type Assessor interface {
	AssessWith(ctx context.Context, req pipeline.Request, snap knowledge.Snapshot) pipeline.Assessment
}

// RunRecorder mirrors finished runs into a queryable store.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *Run) error
}

type Detail struct {
	ID               string              `json:"id"`
	Query            string              `json:"query"`
	OriginalResponse string              `json:"original_response"`
	Assessment       pipeline.Assessment `json:"assessment"`
	ExpectedIssues   []string            `json:"expected_issues"`
	Timestamp        time.Time           `json:"timestamp"`
}

type Run struct {
	ID         string    `json:"id"`
	Batch      string    `json:"batch"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Metrics    Metrics   `json:"metrics"`
	Details    []Detail  `json:"details"`
}

type HistoryRecord struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	Batch     string    `json:"batch"`
	Metrics   Metrics   `json:"metrics"`
}

type Config struct {
	Library    string
	AutoUpdate bool
	Recorder   RunRecorder
	Now        func() time.Time
}

type Aggregator struct {
	assessor   Assessor
	store      *knowledge.Store
	library    string
	autoUpdate bool
	recorder   RunRecorder
	now        func() time.Time
}

func NewAggregator(assessor Assessor, store *knowledge.Store, cfg Config) *Aggregator {
	if cfg.Library == "" {
		cfg.Library = "Pydantic"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Aggregator{
		assessor:   assessor,
		store:      store,
		library:    cfg.Library,
		autoUpdate: cfg.AutoUpdate,
		recorder:   cfg.Recorder,
		now:        cfg.Now,
	}
}

// Run assesses every item in input order and computes run metrics. It does
// not persist anything.
func (a *Aggregator) Run(ctx context.Context, batch Batch) *Run {
	snap := a.store.Latest()
	return a.run(ctx, batch, snap)
}

func (a *Aggregator) run(ctx context.Context, batch Batch, snap knowledge.Snapshot) *Run {
	run := &Run{
		ID:        uuid.New().String(),
		Batch:     batch.Name,
		StartedAt: a.now(),
		Details:   make([]Detail, 0, len(batch.Items)),
	}

	logger.Info("Running batch assessment",
		zap.String("run_id", run.ID),
		zap.String("batch", batch.Name),
		zap.Int("items", len(batch.Items)),
	)

	for i, item := range batch.Items {
		logger.Debug("Assessing item", zap.Int("index", i+1), zap.Int("total", len(batch.Items)))

		assessment := a.assessItem(ctx, item, snap)
		run.Details = append(run.Details, Detail{
			ID:               item.ID,
			Query:            item.Query,
			OriginalResponse: item.Response,
			Assessment:       assessment,
			ExpectedIssues:   item.ExpectedIssues,
			Timestamp:        a.now(),
		})
	}

	run.Metrics = summarize(run.Details)
	run.FinishedAt = a.now()

	metrics.ImprovementRate.Set(run.Metrics.ImprovementRate)

	logger.Info("Batch assessment completed",
		zap.String("run_id", run.ID),
		zap.Int("total", run.Metrics.TotalResponses),
		zap.Int("verified", run.Metrics.VerifiedResponses),
		zap.Int("outdated", run.Metrics.OutdatedResponses),
		zap.Int("inaccurate", run.Metrics.InaccurateResponses),
		zap.Float64("average_confidence", run.Metrics.AverageConfidence),
	)

	return run
}

// assessItem isolates one item: a panic becomes a NEEDS_REVIEW verdict with
// an internal issue and the batch continues.
func (a *Aggregator) assessItem(ctx context.Context, item Item, snap knowledge.Snapshot) (out pipeline.Assessment) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Item assessment failed",
				zap.String("item_id", item.ID),
				zap.Any("panic", r),
			)
			out = a.failedAssessment(item, r)
		}
	}()

	return a.assessor.AssessWith(ctx, pipeline.Request{Query: item.Query, Response: item.Response}, snap)
}

func (a *Aggregator) failedAssessment(item Item, cause any) pipeline.Assessment {
	level := verifier.LevelNeedsReview
	return pipeline.Assessment{
		ID:               uuid.New().String(),
		Query:            item.Query,
		OriginalResponse: item.Response,
		EnhancedResponse: item.Response,
		VerificationResult: verifier.Result{
			AccuracyLevel:   level,
			ConfidenceScore: level.Confidence(),
			Issues: []verifier.Issue{{
				Kind:    verifier.KindInternal,
				Message: fmt.Sprintf("Internal verification error: %v", cause),
			}},
			Recommendations: []string{fmt.Sprintf("Cross-reference with official %s documentation", a.library)},
			SourcesChecked:  []string{},
		},
		ImprovementNeeded: true,
		Timestamp:         a.now(),
	}
}

// GenerateReport runs the batch, writes the report file and appends the
// run to the capped history. Storage failures wrap ErrStorageUnwritable.
func (a *Aggregator) GenerateReport(ctx context.Context, batch Batch) (*Report, string, error) {
	snap := a.store.Latest()
	run := a.run(ctx, batch, snap)
	report := buildReport(run, snap, a.library, a.autoUpdate)

	name := fmt.Sprintf("accuracy_report_%s.json", run.FinishedAt.Format("20060102_150405"))
	path, err := a.store.SaveReport(name, report)
	if err != nil {
		metrics.AssessmentRuns.WithLabelValues("error").Inc()
		return nil, "", fmt.Errorf("%w: %v", ErrStorageUnwritable, err)
	}

	record := HistoryRecord{
		Timestamp: run.FinishedAt,
		RunID:     run.ID,
		Batch:     run.Batch,
		Metrics:   run.Metrics,
	}
	if err := knowledge.AppendCapped(a.store, knowledge.AssessmentLogFile, record, HistoryLimit); err != nil {
		metrics.AssessmentRuns.WithLabelValues("error").Inc()
		return nil, "", fmt.Errorf("%w: %v", ErrStorageUnwritable, err)
	}

	if a.recorder != nil {
		if err := a.recorder.RecordRun(ctx, run); err != nil {
			logger.Warn("Failed to mirror assessment run", zap.String("run_id", run.ID), zap.Error(err))
		}
	}

	metrics.AssessmentRuns.WithLabelValues("success").Inc()
	logger.Info("Accuracy report written", zap.String("path", path))

	return &report, path, nil
}

// History returns the assessment history, oldest first.
func (a *Aggregator) History() ([]HistoryRecord, error) {
	return knowledge.ReadJournal[HistoryRecord](a.store, knowledge.AssessmentLogFile)
}
