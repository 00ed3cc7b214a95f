package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Generate outcomes as reported by the /generate_sql handler.
const (
	GenerateOutcomeOK                = "ok"
	GenerateOutcomeInvalid           = "invalid"
	GenerateOutcomeTranslationFailed = "translation_failed"
	GenerateOutcomeExecutionFailed   = "execution_failed"
)

var (
	generateRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlquery_generate_requests_total",
			Help: "Total number of generate_sql requests by outcome.",
		},
		[]string{"outcome"},
	)
	translateLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nlquery_translate_latency_ms",
			Help:    "Natural-language to SQL translation latency in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 20000, 60000},
		},
	)
	executeLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nlquery_execute_latency_ms",
			Help:    "Generated SQL execution latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
	)
	resultRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nlquery_result_rows",
			Help:    "Number of rows returned per executed query.",
			Buckets: []float64{0, 1, 10, 100, 1000, 10000},
		},
	)
	consoleSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlquery_console_submissions_total",
			Help: "Total number of console submissions by outcome.",
		},
		[]string{"outcome"},
	)
	journalFlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlquery_journal_flushes_total",
			Help: "Total number of query journal flushes by result.",
		},
		[]string{"result"},
	)
	journalEntriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nlquery_journal_entries_written_total",
			Help: "Total number of journal entries written to the object store.",
		},
	)
	journalDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nlquery_journal_entries_dropped_total",
			Help: "Total number of journal entries dropped because the buffer was full.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		generateRequestsTotal,
		translateLatencyMs,
		executeLatencyMs,
		resultRows,
		consoleSubmissionsTotal,
		journalFlushesTotal,
		journalEntriesTotal,
		journalDroppedTotal,
	)
}

func ObserveGenerate(outcome string) {
	generateRequestsTotal.WithLabelValues(outcome).Inc()
}

func ObserveTranslate(elapsed time.Duration) {
	translateLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveExecute(rows int, elapsed time.Duration) {
	executeLatencyMs.Observe(float64(elapsed.Milliseconds()))
	if rows < 0 {
		rows = 0
	}
	resultRows.Observe(float64(rows))
}

// ObserveConsoleSubmission counts a finished console submission. outcome is one of
// ok, failed, stale or invalid.
func ObserveConsoleSubmission(outcome string) {
	consoleSubmissionsTotal.WithLabelValues(outcome).Inc()
}

func ObserveJournalFlush(entries int, err error) {
	if err != nil {
		journalFlushesTotal.WithLabelValues("error").Inc()
		return
	}
	journalFlushesTotal.WithLabelValues("ok").Inc()
	journalEntriesTotal.Add(float64(entries))
}

func IncrementJournalDropped(n int) {
	if n > 0 {
		journalDroppedTotal.Add(float64(n))
	}
}
