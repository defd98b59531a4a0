package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Turn outcomes recorded by ObserveTurn.
const (
	OutcomeOK              = "ok"
	OutcomeSQLError        = "sql_error"
	OutcomeSanitizeEmpty   = "sanitize_empty"
	OutcomeGenerationError = "generation_error"
	OutcomeError           = "error"
)

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlrag_turns_total",
			Help: "Total number of pipeline turns by outcome.",
		},
		[]string{"outcome"},
	)

	generationDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlrag_generation_duration_ms",
			Help:    "Generation backend latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000},
		},
		[]string{"backend"},
	)

	retrievedChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlrag_retrieved_chunks",
			Help:    "Number of context chunks retrieved per turn.",
			Buckets: []float64{0, 1, 2, 3, 5, 8},
		},
	)

	executionDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlrag_execution_duration_ms",
			Help:    "SQL execution latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
	)
)

func init() {
	prometheus.MustRegister(turnsTotal, generationDurationMs, retrievedChunks, executionDurationMs)
}

func ObserveTurn(outcome string) {
	turnsTotal.WithLabelValues(outcome).Inc()
}

func ObserveGeneration(backend string, elapsed time.Duration) {
	generationDurationMs.WithLabelValues(backend).Observe(float64(elapsed.Milliseconds()))
}

func ObserveRetrieval(chunks int) {
	if chunks < 0 {
		chunks = 0
	}
	retrievedChunks.Observe(float64(chunks))
}

func ObserveExecution(elapsed time.Duration) {
	executionDurationMs.Observe(float64(elapsed.Milliseconds()))
}
