package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful calls to the scoring service.
	OutcomeSuccess = "success"
	// OutcomeError labels failed calls (transport, status or decode issues).
	OutcomeError = "error"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "risk_client",
			Name:      "requests_total",
			Help:      "Total number of scoring service calls, partitioned by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	requestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "risk_client",
			Name:      "request_seconds",
			Help:      "Scoring service call latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 10},
		},
		[]string{"operation"},
	)

	validationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "risk_client",
			Name:      "validation_failures_total",
			Help:      "Submissions rejected locally before reaching the scoring service.",
		},
	)

	mockRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "risk_mock",
			Name:      "http_requests_total",
			Help:      "Requests served by the mock scoring service, partitioned by route and status code.",
		},
		[]string{"route", "code"},
	)
)

// Register attaches risk-client collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		requestsTotal,
		requestDurationSeconds,
		validationFailuresTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

// RegisterMock attaches the mock scoring service collectors to reg.
func RegisterMock(reg prometheus.Registerer) error {
	if err := reg.Register(mockRequestsTotal); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
	}
	return nil
}

// ObserveMockRequest counts one request served by the mock scoring service.
func ObserveMockRequest(route string, status int) {
	mockRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// ObserveRequest records a call duration and outcome label for operation.
func ObserveRequest(operation string, duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	requestsTotal.WithLabelValues(operation, label).Inc()
	if duration < 0 {
		duration = 0
	}
	requestDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveValidationFailure counts a submission rejected by local validation.
func ObserveValidationFailure() {
	validationFailuresTotal.Inc()
}

// WriteTextfile writes every metric gathered by g to path in the
// node-exporter textfile collector format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, g)
}
