package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	answersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidmetrics_answers_total",
			Help: "Answered questions by outcome and, for failures, the failing stage.",
		},
		[]string{"outcome", "stage"},
	)
	answerStageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidmetrics_answer_stage_duration_seconds",
			Help:    "Latency of each answer pipeline stage.",
			Buckets: []float64{0.001, 0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)
	statementsTruncatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vidmetrics_statements_truncated_total",
			Help: "Completions whose text held more than one statement.",
		},
	)
	loaderRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidmetrics_loader_rows_total",
			Help: "Dataset rows processed by the loader by table and result.",
		},
		[]string{"table", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		answersTotal,
		answerStageDurationSeconds,
		statementsTruncatedTotal,
		loaderRowsTotal,
	)
}

// ObserveAnswer counts one finished answer. stage is empty on success.
func ObserveAnswer(outcome, stage string) {
	answersTotal.WithLabelValues(outcome, stage).Inc()
}

func ObserveStageDuration(stage string, elapsed time.Duration) {
	answerStageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func IncrementTruncatedStatements() {
	statementsTruncatedTotal.Inc()
}

func AddLoaderRows(table, result string, rows int) {
	if rows <= 0 {
		return
	}
	loaderRowsTotal.WithLabelValues(table, result).Add(float64(rows))
}
