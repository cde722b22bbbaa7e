// Package prometheus provides a Prometheus implementation of
// pollingclient.Metrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pollingclient "github.com/shogotsuneto/go-simple-pollingclient"
)

// Default histogram buckets for poll latency (in seconds).
var defaultBuckets = []float64{
	.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

// timer wraps a Prometheus histogram to implement the Timer interface.
type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) pollingclient.Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

type clientMetrics struct {
	pollDuration   prometheus.Histogram
	pollsSkipped   prometheus.Counter
	pollsFailed    prometheus.Counter
	commitsHandled *prometheus.CounterVec
	checkpoint     prometheus.Gauge
}

// NewMetrics registers the metrics of the polling client called name on reg.
// Several clients can share a registry as long as their names differ.
func NewMetrics(reg prometheus.Registerer, name string) pollingclient.Metrics {
	labels := prometheus.Labels{"client": name}
	m := &clientMetrics{
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "pollingclient_poll_duration_seconds",
			Help:        "Poll cycle latency in seconds",
			Buckets:     defaultBuckets,
			ConstLabels: labels,
		}),
		pollsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "pollingclient_polls_skipped_total",
			Help:        "Total number of polls skipped because another cycle was in flight",
			ConstLabels: labels,
		}),
		pollsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "pollingclient_polls_failed_total",
			Help:        "Total number of poll cycles ended by a fetch or handler fault",
			ConstLabels: labels,
		}),
		commitsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "pollingclient_commits_handled_total",
			Help:        "Total number of handler decisions",
			ConstLabels: labels,
		}, []string{"result"}),
		checkpoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "pollingclient_checkpoint",
			Help:        "Checkpoint token of the last handled commit",
			ConstLabels: labels,
		}),
	}

	reg.MustRegister(
		m.pollDuration,
		m.pollsSkipped,
		m.pollsFailed,
		m.commitsHandled,
		m.checkpoint,
	)

	return m
}

func (m *clientMetrics) PollDuration() pollingclient.Timer { return newTimer(m.pollDuration) }
func (m *clientMetrics) PollSkipped()                      { m.pollsSkipped.Inc() }
func (m *clientMetrics) PollFailed()                       { m.pollsFailed.Inc() }

func (m *clientMetrics) CommitHandled(result pollingclient.HandlingResult) {
	m.commitsHandled.WithLabelValues(result.String()).Inc()
}

func (m *clientMetrics) CheckpointAdvanced(token int64) {
	m.checkpoint.Set(float64(token))
}

var _ pollingclient.Metrics = (*clientMetrics)(nil)
