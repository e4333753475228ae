package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	VerificationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pydverify_verification_duration_seconds",
			Help:    "Response verification duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	VerificationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pydverify_verification_total",
			Help: "Total responses verified by accuracy level",
		},
		[]string{"level"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pydverify_confidence_score",
			Help:    "Verification confidence scores",
			Buckets: []float64{0.2, 0.3, 0.6, 0.8, 0.95, 1.0},
		},
	)

	IssuesFound = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pydverify_issues_found_total",
			Help: "Total issues found by kind",
		},
		[]string{"kind"},
	)

	EnhancementsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pydverify_enhancements_total",
			Help: "Total responses whose text was changed by enhancement",
		},
	)

	AssessmentRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pydverify_assessment_runs_total",
			Help: "Total batch assessment runs",
		},
		[]string{"status"},
	)

	ImprovementRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pydverify_improvement_rate",
			Help: "Fraction of responses changed by enhancement in the last run",
		},
	)

	KnowledgeUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pydverify_knowledge_updates_total",
			Help: "Total knowledge base updates by outcome",
		},
		[]string{"status"},
	)

	FetchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pydverify_fetch_failures_total",
			Help: "Total failed fetches from external sources",
		},
		[]string{"source"},
	)

	KnowledgeEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pydverify_knowledge_entries",
			Help: "Entries in the current knowledge base",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pydverify_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pydverify_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

var initOnce sync.Once

// Init registers the collectors with the default registry. Safe to call
// more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(VerificationDuration)
		prometheus.MustRegister(VerificationTotal)
		prometheus.MustRegister(ConfidenceScore)
		prometheus.MustRegister(IssuesFound)
		prometheus.MustRegister(EnhancementsTotal)
		prometheus.MustRegister(AssessmentRuns)
		prometheus.MustRegister(ImprovementRate)
		prometheus.MustRegister(KnowledgeUpdates)
		prometheus.MustRegister(FetchFailures)
		prometheus.MustRegister(KnowledgeEntries)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
