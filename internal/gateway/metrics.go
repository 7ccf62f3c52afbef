package gateway

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for forwarded calls.
const (
	outcomeOK          = "ok"
	outcomeInvalidJSON = "invalid_json"
	outcomeUnreachable = "unreachable"
)

// Metrics are the prometheus collectors for forwarded calls.
type Metrics struct {
	registry *prometheus.Registry

	duration *prometheus.HistogramVec
	forwards *prometheus.CounterVec
	inFlight prometheus.Gauge
	limited  prometheus.Counter
}

// NewMetrics registers the gateway collectors on reg. Registering twice on
// the same registry reuses the existing collectors.
func NewMetrics(reg *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: reg}

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taskbridge_backend_duration_seconds",
		Help:    "Time taken by one outbound call to the backend",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})
	if err := register(reg, duration, &m.duration); err != nil {
		return nil, fmt.Errorf("failed to register duration metric: %w", err)
	}

	forwards := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "taskbridge_forwards_total",
		Help: "Forwarded calls by action, caller-visible status and outcome",
	}, []string{"action", "code", "outcome"})
	if err := register(reg, forwards, &m.forwards); err != nil {
		return nil, fmt.Errorf("failed to register forwards metric: %w", err)
	}

	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "taskbridge_backend_in_flight",
		Help: "Outbound backend calls currently running",
	})
	if err := register(reg, inFlight, &m.inFlight); err != nil {
		return nil, fmt.Errorf("failed to register in-flight metric: %w", err)
	}

	limited := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taskbridge_rate_limited_total",
		Help: "Inbound requests rejected by the rate limiter",
	})
	if err := register(reg, limited, &m.limited); err != nil {
		return nil, fmt.Errorf("failed to register rate-limited metric: %w", err)
	}

	return m, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T, dst *T) error {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return err
			}
			*dst = existing
			return nil
		}
		return err
	}
	*dst = c
	return nil
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) begin() func(action Action, status int, outcome string) {
	if m == nil {
		return func(Action, int, string) {}
	}
	start := time.Now()
	m.inFlight.Inc()
	return func(action Action, status int, outcome string) {
		m.inFlight.Dec()
		m.duration.WithLabelValues(string(action)).Observe(time.Since(start).Seconds())
		m.forwards.WithLabelValues(string(action), strconv.Itoa(status), outcome).Inc()
	}
}

func (m *Metrics) rateLimited() {
	if m != nil {
		m.limited.Inc()
	}
}
