// Package telemetry provides Prometheus metrics and structured logging setup.
package telemetry

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the generation layer
type Metrics struct {
	// Generation metrics
	GenerationsTotal   *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	GenerationsInFlight prometheus.Gauge

	// Token metrics
	TokensInput  *prometheus.CounterVec
	TokensOutput *prometheus.CounterVec

	// Resilience metrics
	RetryAttempts *prometheus.CounterVec
	FallbackUsed  *prometheus.CounterVec

	// Healing metrics
	HealingAttempts *prometheus.CounterVec

	// Rate limit metrics
	RateLimitRejections *prometheus.CounterVec

	// Quality metrics
	QualityScore  *prometheus.HistogramVec
	CritiquePasses *prometheus.CounterVec

	// Reconciliation metrics
	ReconciledImages *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	return newMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsForTest creates metrics on a private registry so tests can run
// in parallel without duplicate registration panics
func NewMetricsForTest() *Metrics {
	return newMetricsWith(prometheus.NewRegistry())
}

func newMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		GenerationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contentforge_generations_total",
			Help: "Total generation calls by task and outcome",
		}, []string{"task", "outcome"}),

		GenerationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contentforge_generation_duration_seconds",
			Help:    "Wall-clock generation time by task",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"task"}),

		GenerationsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "contentforge_generations_in_flight",
			Help: "Provider calls currently holding a concurrency slot",
		}),

		TokensInput: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contentforge_tokens_input_total",
			Help: "Input tokens by task",
		}, []string{"task"}),

		TokensOutput: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contentforge_tokens_output_total",
			Help: "Output tokens by task",
		}, []string{"task"}),

		RetryAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contentforge_retry_attempts_total",
			Help: "Retry attempts by reason",
		}, []string{"reason"}),

		FallbackUsed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contentforge_fallback_used_total",
			Help: "Responses answered by a non-primary chain model",
		}, []string{"task"}),

		HealingAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contentforge_healing_attempts_total",
			Help: "Structured-output healing attempts by stage and outcome",
		}, []string{"stage", "outcome"}),

		RateLimitRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contentforge_rate_limit_rejections_total",
			Help: "Rate limit rejections by action",
		}, []string{"action"}),

		QualityScore: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contentforge_quality_score",
			Help:    "Quality score distribution by task",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}, []string{"task"}),

		CritiquePasses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contentforge_critique_passes_total",
			Help: "Critique passes by outcome (accepted, discarded)",
		}, []string{"outcome"}),

		ReconciledImages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contentforge_reconciled_images_total",
			Help: "Reconciled images by outcome (paired, generated_meta, failed)",
		}, []string{"outcome"}),
	}
}

// Handler returns the Prometheus scrape handler for embedders; the CLI
// itself does not listen.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetupLogging configures the default slog logger
func SetupLogging(level, format string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if format == "pretty" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
