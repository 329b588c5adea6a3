// Package metrics exposes Prometheus counters for the assistant.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the auth, classifier, router and HTTP layers report to.
type Recorder interface {
	RecordIntent(intent string)
	RecordNoteSaved()
	RecordLoginRequest(outcome string)
	RecordVerify(outcome string)
	RecordClassifierLatency(op string, d time.Duration)
	RecordClassifierFailure(op string)
	RecordHTTPStatus(statusCode int)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	intents           *prometheus.CounterVec
	notesSaved        prometheus.Counter
	loginRequests     *prometheus.CounterVec
	verifications     *prometheus.CounterVec
	classifierLatency *prometheus.HistogramVec
	classifierFail    *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mnemo_messages_total",
			Help: "Messages routed, by classified intent.",
		}, []string{"intent"}),
		notesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mnemo_notes_saved_total",
			Help: "Notes persisted.",
		}),
		loginRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mnemo_login_requests_total",
			Help: "Magic-link requests, by outcome.",
		}, []string{"outcome"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mnemo_login_verifications_total",
			Help: "Magic-link verifications, by outcome.",
		}, []string{"outcome"}),
		classifierLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mnemo_classifier_latency_seconds",
			Help:    "Language model call latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		classifierFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mnemo_classifier_failures_total",
			Help: "Failed language model calls.",
		}, []string{"op"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mnemo_http_status_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.intents,
		c.notesSaved,
		c.loginRequests,
		c.verifications,
		c.classifierLatency,
		c.classifierFail,
		c.httpStatus,
	)

	return c
}

func (c *Collector) RecordIntent(intent string) {
	c.intents.WithLabelValues(intent).Inc()
}

func (c *Collector) RecordNoteSaved() {
	c.notesSaved.Inc()
}

func (c *Collector) RecordLoginRequest(outcome string) {
	c.loginRequests.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordVerify(outcome string) {
	c.verifications.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordClassifierLatency(op string, d time.Duration) {
	c.classifierLatency.WithLabelValues(op).Observe(d.Seconds())
}

func (c *Collector) RecordClassifierFailure(op string) {
	c.classifierFail.WithLabelValues(op).Inc()
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop discards everything. Used by tests and the CLI.
type Nop struct{}

func (Nop) RecordIntent(string)                           {}
func (Nop) RecordNoteSaved()                              {}
func (Nop) RecordLoginRequest(string)                     {}
func (Nop) RecordVerify(string)                           {}
func (Nop) RecordClassifierLatency(string, time.Duration) {}
func (Nop) RecordClassifierFailure(string)                {}
func (Nop) RecordHTTPStatus(int)                          {}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
