// Package observability provides Prometheus metrics for the audio lifecycle service.
// Sentry error telemetry is handled in the telemetry package.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/swordlegend/dava.engine/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the service.
type Metrics struct {
	registry  *prometheus.Registry
	Lifecycle *metrics.LifecycleMetrics
	MQTT      *metrics.MQTTMetrics
}

// NewMetrics creates a registry with runtime collectors and the service metrics.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register Go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	lifecycleMetrics, err := metrics.NewLifecycleMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create lifecycle metrics: %w", err)
	}

	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	getLogger().Debug("metrics registry initialized")

	return &Metrics{
		registry:  registry,
		Lifecycle: lifecycleMetrics,
		MQTT:      mqttMetrics,
	}, nil
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler serving the metrics in exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
