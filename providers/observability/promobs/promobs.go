// Package promobs provides an observability.Observer that records client
// activity as Prometheus metrics. The Observer is itself a
// prometheus.Collector; register it with the registry of your choice.
package promobs

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xagent-cli/xagent/providers/ai"
	"github.com/xagent-cli/xagent/providers/observability"
)

// Outcome labels of the requests counter. Failed calls are labelled with
// their error class, or OutcomeUnknown when they carry none.
const (
	OutcomeSuccess = "success"
	OutcomeUnknown = "unknown"
)

// Observer collects:
//
//	xagent_llm_requests_total{family,outcome}
//	xagent_llm_request_duration_seconds{family}
//	xagent_llm_retries_total{class}
//	xagent_llm_stream_events_total{type}
//	xagent_llm_tokens_total{kind}
type Observer struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  *prometheus.CounterVec
	events   *prometheus.CounterVec
	tokens   *prometheus.CounterVec
}

var (
	_ observability.Observer = (*Observer)(nil)
	_ prometheus.Collector   = (*Observer)(nil)
)

// New creates an unregistered Observer.
func New() *Observer {
	return &Observer{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: observability.MetricRequestsTotal,
				Help: "Total number of completion calls by endpoint family and outcome.",
			},
			[]string{"family", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    observability.MetricRequestDuration,
				Help:    "Wall time of completion calls, retries included.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"family"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: observability.MetricRetriesTotal,
				Help: "Total number of retries by the error class that caused them.",
			},
			[]string{"class"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: observability.MetricStreamEventTotal,
				Help: "Total number of streamed events by type.",
			},
			[]string{"type"},
		),
		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: observability.MetricTokensTotal,
				Help: "Total number of tokens reported by vendors, by kind.",
			},
			[]string{"kind"},
		),
	}
}

// Describe implements prometheus.Collector.
func (o *Observer) Describe(ch chan<- *prometheus.Desc) {
	o.requests.Describe(ch)
	o.duration.Describe(ch)
	o.retries.Describe(ch)
	o.events.Describe(ch)
	o.tokens.Describe(ch)
}

// Collect implements prometheus.Collector.
func (o *Observer) Collect(ch chan<- prometheus.Metric) {
	o.requests.Collect(ch)
	o.duration.Collect(ch)
	o.retries.Collect(ch)
	o.events.Collect(ch)
	o.tokens.Collect(ch)
}

// BeforeRequest is a no-op; calls are counted once they finish.
func (o *Observer) BeforeRequest(context.Context, observability.RequestInfo) {}

// AfterResponse counts the call, its duration and its token usage.
func (o *Observer) AfterResponse(_ context.Context, response observability.ResponseInfo) {
	family := response.Request.Family
	outcome := OutcomeSuccess
	switch {
	case response.Err == nil:
	case response.ErrorClass == "":
		outcome = OutcomeUnknown
	default:
		outcome = string(response.ErrorClass)
	}
	o.requests.WithLabelValues(family, outcome).Inc()
	o.duration.WithLabelValues(family).Observe(response.Duration.Seconds())

	if response.Response != nil && response.Response.Usage != nil {
		usage := response.Response.Usage
		o.tokens.WithLabelValues("prompt").Add(float64(usage.PromptTokens))
		o.tokens.WithLabelValues("completion").Add(float64(usage.CompletionTokens))
	}
}

// OnDelta counts streamed events by type.
func (o *Observer) OnDelta(_ context.Context, _ observability.RequestInfo, event ai.StreamEvent) {
	o.events.WithLabelValues(string(event.Type)).Inc()
}

// OnRetry counts retries by class.
func (o *Observer) OnRetry(_ context.Context, retry observability.RetryInfo) {
	class := string(retry.Class)
	if class == "" {
		class = OutcomeUnknown
	}
	o.retries.WithLabelValues(class).Inc()
}
