// Package metrics holds the Prometheus instruments of the conformance service
// and runner. All collectors are registered with the global registry, so
// importing this package is enough to expose them on /metrics.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/reoring/conformance"
)

// Validation targets.
const (
	TargetPayload  = "payload"
	TargetResponse = "response"
)

// Validation outcomes.
const (
	ResultPass  = "pass"
	ResultFail  = "fail"
	ResultFault = "fault"
)

var (
	ValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conformance_validations_total",
			Help: "Validation calls by target and outcome.",
		},
		[]string{"target", "result"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conformance_errors_total",
			Help: "Conformance errors reported, by kind.",
		},
		[]string{"kind"},
	)

	FaultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conformance_faults_total",
			Help: "Integration faults raised while validating, by cause.",
		},
		[]string{"cause"},
	)

	ValidationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conformance_validation_duration_seconds",
			Help:    "Duration of validation calls in seconds.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"target"},
	)

	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conformance_upstream_requests_total",
			Help: "Requests sent to the API under test, by operation and HTTP status.",
		},
		[]string{"operation", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		ValidationsTotal,
		ErrorsTotal,
		FaultsTotal,
		ValidationDuration,
		UpstreamRequestsTotal,
	)
}

// Observe records one validation call.
func Observe(target string, errs conformance.Errors, err error, took time.Duration) {
	ValidationDuration.WithLabelValues(target).Observe(took.Seconds())
	for _, e := range errs {
		ErrorsTotal.WithLabelValues(string(e.Kind)).Inc()
	}
	switch {
	case err != nil:
		ValidationsTotal.WithLabelValues(target, ResultFault).Inc()
		FaultsTotal.WithLabelValues(FaultCause(err)).Inc()
	case len(errs) > 0:
		ValidationsTotal.WithLabelValues(target, ResultFail).Inc()
	default:
		ValidationsTotal.WithLabelValues(target, ResultPass).Inc()
	}
}

// FaultCause names the sentinel behind a fault.
func FaultCause(err error) string {
	switch {
	case errors.Is(err, conformance.ErrShapeMismatch):
		return "shape_mismatch"
	case errors.Is(err, conformance.ErrDepthExceeded):
		return "depth_exceeded"
	case errors.Is(err, conformance.ErrUnknownSchema):
		return "unknown_schema"
	case errors.Is(err, conformance.ErrUnknownPayload):
		return "no_payload_schemas"
	}
	return "other"
}
