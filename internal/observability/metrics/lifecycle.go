// Package metrics provides Prometheus collectors for the audio lifecycle service.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LifecycleMetrics tracks device operations, host visibility and the UI task
// queue. It implements both lifecycle.Recorder and host.Recorder.
type LifecycleMetrics struct {
	deviceOperationsTotal   *prometheus.CounterVec
	deviceOperationDuration *prometheus.HistogramVec
	deviceRunning           prometheus.Gauge
	visibilityChangesTotal  *prometheus.CounterVec
	hostVisible             prometheus.Gauge
	listenersRegistered     prometheus.Gauge
	uiTasksTotal            *prometheus.CounterVec
	registry                *prometheus.Registry
}

// NewLifecycleMetrics creates and registers lifecycle metrics.
func NewLifecycleMetrics(registry *prometheus.Registry) (*LifecycleMetrics, error) {
	m := &LifecycleMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register lifecycle metrics: %w", err)
	}
	return m, nil
}

func (m *LifecycleMetrics) initMetrics() {
	m.deviceOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_device_operations_total",
			Help: "Total number of audio device operations",
		},
		[]string{"operation", "status"}, // operation: create, start, stop, close; status: ok, error
	)

	m.deviceOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lifecycle_device_operation_duration_seconds",
			Help:    "Time taken by audio device operations",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
		[]string{"operation"},
	)

	m.deviceRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lifecycle_device_running",
		Help: "Whether the audio device is started (1) or stopped (0)",
	})

	m.visibilityChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_host_visibility_changes_total",
			Help: "Total number of host visibility transitions",
		},
		[]string{"to"}, // visible, hidden
	)

	m.hostVisible = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lifecycle_host_visible",
		Help: "Whether the host activity is visible (1) or hidden (0)",
	})

	m.listenersRegistered = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lifecycle_host_listeners",
		Help: "Number of lifecycle listeners registered with the host",
	})

	m.uiTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_ui_tasks_total",
			Help: "Total number of tasks run on the host UI context",
		},
		[]string{"status"}, // ok, panic
	)
}

// RecordDeviceOperation records the outcome and duration of a device call.
func (m *LifecycleMetrics) RecordDeviceOperation(op, status string, elapsed time.Duration) {
	m.deviceOperationsTotal.WithLabelValues(op, status).Inc()
	m.deviceOperationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// SetDeviceRunning updates the device running gauge.
func (m *LifecycleMetrics) SetDeviceRunning(running bool) {
	m.deviceRunning.Set(boolToFloat(running))
}

// RecordVisibilityChange counts a host transition and updates the visible gauge.
func (m *LifecycleMetrics) RecordVisibilityChange(visible bool) {
	to := "hidden"
	if visible {
		to = "visible"
	}
	m.visibilityChangesTotal.WithLabelValues(to).Inc()
	m.hostVisible.Set(boolToFloat(visible))
}

// SetListeners updates the registered listener gauge.
func (m *LifecycleMetrics) SetListeners(n int) {
	m.listenersRegistered.Set(float64(n))
}

// RecordUITask counts a task run on the UI context.
func (m *LifecycleMetrics) RecordUITask(status string) {
	m.uiTasksTotal.WithLabelValues(status).Inc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Describe implements the prometheus.Collector interface.
func (m *LifecycleMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.deviceOperationsTotal.Describe(ch)
	m.deviceOperationDuration.Describe(ch)
	m.deviceRunning.Describe(ch)
	m.visibilityChangesTotal.Describe(ch)
	m.hostVisible.Describe(ch)
	m.listenersRegistered.Describe(ch)
	m.uiTasksTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *LifecycleMetrics) Collect(ch chan<- prometheus.Metric) {
	m.deviceOperationsTotal.Collect(ch)
	m.deviceOperationDuration.Collect(ch)
	m.deviceRunning.Collect(ch)
	m.visibilityChangesTotal.Collect(ch)
	m.hostVisible.Collect(ch)
	m.listenersRegistered.Collect(ch)
	m.uiTasksTotal.Collect(ch)
}
