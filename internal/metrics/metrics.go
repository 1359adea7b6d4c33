package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the relay's prometheus collectors. A nil registry builds
// working but unregistered collectors.
type Metrics struct {
	submissions    *prometheus.CounterVec
	chainCalls     *prometheus.HistogramVec
	journalDropped prometheus.Counter
}

func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_submissions_total",
			Help: "Report submissions handled by the relay, by outcome",
		}, []string{"outcome"}),
		chainCalls: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_chain_call_duration_seconds",
			Help:    "Latency of calls to the report contract",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 30, 60, 120},
		}, []string{"method", "result"}),
		journalDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_journal_dropped_total",
			Help: "Journal entries dropped because the write queue was full or the journal was closed",
		}),
	}
}

// Submission counts one submission attempt. outcome is "mined", "rejected",
// "invalid", "timeout", "connectivity" or "internal".
func (m *Metrics) Submission(outcome string) {
	m.submissions.WithLabelValues(outcome).Inc()
}

// ChainCall records the latency of a contract call that started at start.
func (m *Metrics) ChainCall(method string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.chainCalls.WithLabelValues(method, result).Observe(time.Since(start).Seconds())
}

func (m *Metrics) JournalDropped() {
	m.journalDropped.Inc()
}
