package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Registry *prometheus.Registry

	Evaluations        *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	ResponseWrites     *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "milestone_tracker_evaluations_total",
			Help: "Evaluation reconciliations by outcome",
		}, []string{"outcome"}),
		EvaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "milestone_tracker_evaluation_duration_seconds",
			Help:    "Time spent waiting for the evaluation service",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
		ResponseWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "milestone_tracker_response_writes_total",
			Help: "Durable response store writes by operation and result",
		}, []string{"op", "result"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "milestone_tracker_http_requests_total",
			Help: "HTTP API requests by route pattern and status code class",
		}, []string{"route", "code"}),
	}
}

// Evaluation records a finished reconciliation.
func (m *Metrics) Evaluation(outcome string, elapsed time.Duration) {
	m.Evaluations.WithLabelValues(outcome).Inc()
	m.EvaluationDuration.Observe(elapsed.Seconds())
}

// ResponseWrite records a response store write.
func (m *Metrics) ResponseWrite(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ResponseWrites.WithLabelValues(op, result).Inc()
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(route string, status int) {
	m.HTTPRequests.WithLabelValues(route, statusClass(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
