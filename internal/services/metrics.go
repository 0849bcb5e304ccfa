package services

import "github.com/prometheus/client_golang/prometheus"

// Turn outcomes recorded in chat_turns_total.
const (
	OutcomeCompleted        = "completed"
	OutcomeReplayed         = "replayed"
	OutcomeValidationFailed = "validation_failed"
	OutcomeUnauthorized     = "unauthorized"
	OutcomeStoreFailed      = "store_failed"
	OutcomeGenerationFailed = "generation_failed"
)

var (
	// turnsTotal counts submit calls by outcome.
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Chat submissions by outcome.",
		},
		[]string{"outcome"},
	)

	// generationDuration records how long the reply generator took, success or not.
	generationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_generation_duration_seconds",
			Help:    "Duration of reply generation calls in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60, 90},
		},
	)

	// historyClearedTotal counts turns soft-deleted by clear-history.
	historyClearedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_history_cleared_turns_total",
			Help: "Turns soft-deleted by clearing history.",
		},
	)
)

func init() {
	prometheus.MustRegister(turnsTotal, generationDuration, historyClearedTotal)
}

func outcomeOf(err error) string {
	switch Kind(err) {
	case nil:
		return OutcomeCompleted
	case ErrValidation:
		return OutcomeValidationFailed
	case ErrUnauthorized:
		return OutcomeUnauthorized
	case ErrGeneration:
		return OutcomeGenerationFailed
	default:
		return OutcomeStoreFailed
	}
}
