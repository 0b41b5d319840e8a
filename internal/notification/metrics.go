package notification

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects per-channel attempt counters and latency. A nil *Metrics
// records nothing.
type Metrics struct {
	attempts   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	dispatches *prometheus.CounterVec
}

// NewMetrics registers the dispatcher collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inquiry_notification_attempts_total",
			Help: "Notification channel attempts by channel and result kind",
		}, []string{"channel", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inquiry_notification_attempt_seconds",
			Help:    "Duration of a single notification channel attempt",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		}, []string{"channel"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inquiry_notification_dispatches_total",
			Help: "Completed dispatches by final result",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.latency, m.dispatches)
	}
	return m
}

func (m *Metrics) observeAttempt(channel string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(channel, resultLabel(err)).Inc()
	m.latency.WithLabelValues(channel).Observe(elapsed.Seconds())
}

func (m *Metrics) observeDispatch(err error) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	if de, ok := AsDispatchError(err); ok {
		return string(de.Kind)
	}
	return "error"
}
