// Package pipeline runs a single drafted answer through verification and
// enhancement, optionally memoising the outcome in a verdict cache.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pydverify/backend/internal/enhancer"
	"github.com/pydverify/backend/internal/knowledge"
	"github.com/pydverify/backend/internal/metrics"
	"github.com/pydverify/backend/internal/verifier"
	"github.com/pydverify/backend/pkg/logger"
	"github.com/pydverify/backend/pkg/utils"
)

// VerdictCache stores assessments keyed by knowledge version and response.
type VerdictCache interface {
	GetVerdict(ctx context.Context, key string, dst any) (bool, error)
	SetVerdict(ctx context.Context, key string, v any, ttl time.Duration) error
}

type Request struct {
	Query    string `json:"query,omitempty"`
	Response string `json:"response"`
}

type Assessment struct {
	ID                 string          `json:"id"`
	Query              string          `json:"query,omitempty"`
	OriginalResponse   string          `json:"original_response"`
	EnhancedResponse   string          `json:"enhanced_response"`
	VerificationResult verifier.Result `json:"verification_result"`
	ImprovementNeeded  bool            `json:"improvement_needed"`
	Changed            bool            `json:"changed"`
	Timestamp          time.Time       `json:"timestamp"`
	LatencyMS          int             `json:"latency_ms"`
	Cached             bool            `json:"cached"`
}

type Engine struct {
	verifier *verifier.Verifier
	enhancer *enhancer.Enhancer
	cache    VerdictCache
	cacheTTL time.Duration
	now      func() time.Time
}

type Option func(*Engine)

func WithCache(cache VerdictCache, ttl time.Duration) Option {
	return func(e *Engine) {
		e.cache = cache
		e.cacheTTL = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(v *verifier.Verifier, enh *enhancer.Enhancer, opts ...Option) *Engine {
	e := &Engine{
		verifier: v,
		enhancer: enh,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Verifier() *verifier.Verifier {
	return e.verifier
}

// Verify runs verification only.
func (e *Engine) Verify(response string) verifier.Result {
	start := time.Now()
	result := e.verifier.Verify(response)
	e.observe(result, time.Since(start))
	return result
}

// Assess verifies and enhances one response against the current snapshot.
func (e *Engine) Assess(ctx context.Context, req Request) Assessment {
	return e.AssessWith(ctx, req, e.verifier.Snapshot())
}

// AssessWith is Assess against a caller-provided snapshot. It never fails:
// cache errors are logged and the response is assessed directly.
func (e *Engine) AssessWith(ctx context.Context, req Request, snap knowledge.Snapshot) Assessment {
	start := e.now()
	id := uuid.New().String()

	key := ""
	if e.cache != nil {
		key = utils.HashString(snap.CurrentVersion(), req.Response)

		var cached Assessment
		found, err := e.cache.GetVerdict(ctx, key, &cached)
		if err != nil {
			logger.Warn("Verdict cache lookup failed", zap.Error(err))
		}
		if found {
			metrics.CacheHits.WithLabelValues("verdict").Inc()
			cached.ID = id
			cached.Query = req.Query
			cached.Timestamp = start
			cached.LatencyMS = int(e.now().Sub(start).Milliseconds())
			cached.Cached = true
			return cached
		}
		metrics.CacheMisses.WithLabelValues("verdict").Inc()
	}

	verifyStart := time.Now()
	result := e.verifier.VerifyAgainst(req.Response, snap)
	e.observe(result, time.Since(verifyStart))

	enhanced := e.enhancer.Enhance(req.Response, result)
	changed := enhanced != req.Response
	if changed {
		metrics.EnhancementsTotal.Inc()
	}

	assessment := Assessment{
		ID:                 id,
		Query:              req.Query,
		OriginalResponse:   req.Response,
		EnhancedResponse:   enhanced,
		VerificationResult: result,
		ImprovementNeeded:  result.AccuracyLevel != verifier.LevelVerified,
		Changed:            changed,
		Timestamp:          start,
		LatencyMS:          int(e.now().Sub(start).Milliseconds()),
	}

	logger.Debug("Response assessed",
		zap.String("assessment_id", id),
		zap.String("level", string(result.AccuracyLevel)),
		zap.Int("issues", len(result.Issues)),
		zap.Bool("changed", changed),
	)

	if e.cache != nil {
		if err := e.cache.SetVerdict(ctx, key, assessment, e.cacheTTL); err != nil {
			logger.Warn("Failed to cache verdict", zap.Error(err))
		}
	}

	return assessment
}

func (e *Engine) observe(result verifier.Result, took time.Duration) {
	metrics.VerificationDuration.Observe(took.Seconds())
	metrics.VerificationTotal.WithLabelValues(string(result.AccuracyLevel)).Inc()
	metrics.ConfidenceScore.Observe(result.ConfidenceScore)
	for _, issue := range result.Issues {
		metrics.IssuesFound.WithLabelValues(string(issue.Kind)).Inc()
	}
}
