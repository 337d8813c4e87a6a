package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job lifecycle counters, labeled by the terminal (or initial) status the
// event produced.
var (
	JobsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quizforge",
		Name:      "jobs_created_total",
		Help:      "Number of generation jobs accepted.",
	})

	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizforge",
		Name:      "jobs_finished_total",
		Help:      "Number of generation jobs reaching a terminal state.",
	}, []string{"status"})

	JobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quizforge",
		Name:      "jobs_in_flight",
		Help:      "Number of jobs currently being dispatched.",
	})

	ChunkGenerationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "quizforge",
		Name:      "chunk_generation_seconds",
		Help:      "Latency of single chunk generation calls.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
	})

	ChunkFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quizforge",
		Name:      "chunk_failures_total",
		Help:      "Number of failed chunk generation calls.",
	})

	StaleJobsReaped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quizforge",
		Name:      "stale_jobs_reaped_total",
		Help:      "Number of PENDING jobs failed by the activation timeout sweep.",
	})

	RateLimitDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizforge",
		Name:      "rate_limit_denials_total",
		Help:      "Number of denied start/cancel requests.",
	}, []string{"action"})
)
