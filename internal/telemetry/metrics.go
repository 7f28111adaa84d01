package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bananaquiz"

var (
	PuzzlesServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "puzzles_served_total",
		Help:      "Puzzles handed out, by source.",
	}, []string{"source"})

	PuzzlesCached = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "puzzles_cached_total",
		Help:      "Puzzles written to the offline store.",
	})

	AnswersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "answers_submitted_total",
		Help:      "Answers submitted, by mode and correctness.",
	}, []string{"mode", "correct"})

	SessionsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_finished_total",
		Help:      "Sessions that reached FINISHED, by mode.",
	}, []string{"mode"})

	PersistenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persistence_failures_total",
		Help:      "Non-blocking bookkeeping writes that failed, by operation.",
	}, []string{"operation"})
)
