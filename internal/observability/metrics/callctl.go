// Package metrics provides call control metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CallControlMetrics contains Prometheus metrics for audio routing, hardware
// events, screen-capture authorization and the notification hub.
type CallControlMetrics struct {
	registry *prometheus.Registry

	// Generic operation metrics (Recorder)
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec

	// Route controller metrics
	routeSwitchesTotal    *prometheus.CounterVec
	platformCommandsTotal *prometheus.CounterVec

	// Hardware event metrics
	hardwareEventsTotal *prometheus.CounterVec

	// Capture session metrics
	captureTransitionsTotal  *prometheus.CounterVec
	staleGrantCallbacksTotal prometheus.Counter

	// Notification hub metrics
	notificationsTotal      *prometheus.CounterVec
	hubSubscribers          prometheus.Gauge
	subscribersDroppedTotal *prometheus.CounterVec
}

// NewCallControlMetrics creates and registers new call control metrics
func NewCallControlMetrics(registry *prometheus.Registry) (*CallControlMetrics, error) {
	m := &CallControlMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *CallControlMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callctl_operations_total",
			Help: "Total number of call control operations",
		},
		[]string{"operation", "status"},
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "callctl_operation_duration_seconds",
			Help:    "Time taken by call control operations",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8), // 100us to ~1.6s
		},
		[]string{"operation"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callctl_errors_total",
			Help: "Total number of call control errors",
		},
		[]string{"operation", "error_type"},
	)

	m.routeSwitchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callctl_route_switches_total",
			Help: "Total number of audio route switch requests",
		},
		[]string{"route", "status"}, // status: success, rejected
	)

	m.platformCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callctl_platform_commands_total",
			Help: "Total number of hardware commands issued by the route controller",
		},
		[]string{"step", "status"},
	)

	m.hardwareEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callctl_hardware_events_total",
			Help: "Total number of hardware events processed",
		},
		[]string{"kind"},
	)

	m.captureTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callctl_capture_transitions_total",
			Help: "Total number of capture session state transitions",
		},
		[]string{"from", "to"},
	)

	m.staleGrantCallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "callctl_capture_stale_grant_callbacks_total",
			Help: "Total number of grant results discarded as stale",
		},
	)

	m.notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callctl_notifications_total",
			Help: "Total number of notifications published to the event sink",
		},
		[]string{"event"},
	)

	m.hubSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "callctl_hub_subscribers",
			Help: "Current number of event stream subscribers",
		},
	)

	m.subscribersDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callctl_hub_subscribers_dropped_total",
			Help: "Total number of event stream subscribers disconnected by the hub",
		},
		[]string{"reason"}, // reason: overflow, closed
	)
}

// RecordOperation implements Recorder.
func (m *CallControlMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder.
func (m *CallControlMetrics) RecordDuration(operation string, seconds float64) {
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder.
func (m *CallControlMetrics) RecordError(operation, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordRouteSwitch records one SetRoute outcome.
func (m *CallControlMetrics) RecordRouteSwitch(route, status string) {
	m.routeSwitchesTotal.WithLabelValues(route, status).Inc()
}

// RecordPlatformCommand records one hardware command issued during a route switch.
func (m *CallControlMetrics) RecordPlatformCommand(step, status string) {
	m.platformCommandsTotal.WithLabelValues(step, status).Inc()
}

// RecordHardwareEvent records one processed hardware event.
func (m *CallControlMetrics) RecordHardwareEvent(kind string) {
	m.hardwareEventsTotal.WithLabelValues(kind).Inc()
}

// RecordCaptureTransition records a capture state machine transition.
func (m *CallControlMetrics) RecordCaptureTransition(from, to string) {
	m.captureTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordStaleGrantCallback records a discarded grant result.
func (m *CallControlMetrics) RecordStaleGrantCallback() {
	m.staleGrantCallbacksTotal.Inc()
}

// RecordNotification records one event published to the sink.
func (m *CallControlMetrics) RecordNotification(event string) {
	m.notificationsTotal.WithLabelValues(event).Inc()
}

// SetSubscribers sets the current subscriber count.
func (m *CallControlMetrics) SetSubscribers(count int) {
	m.hubSubscribers.Set(float64(count))
}

// RecordSubscriberDropped records a subscriber the hub disconnected.
func (m *CallControlMetrics) RecordSubscriberDropped(reason string) {
	m.subscribersDroppedTotal.WithLabelValues(reason).Inc()
}

// Describe implements the prometheus.Collector interface
func (m *CallControlMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operationsTotal.Describe(ch)
	m.operationDuration.Describe(ch)
	m.errorsTotal.Describe(ch)
	m.routeSwitchesTotal.Describe(ch)
	m.platformCommandsTotal.Describe(ch)
	m.hardwareEventsTotal.Describe(ch)
	m.captureTransitionsTotal.Describe(ch)
	m.staleGrantCallbacksTotal.Describe(ch)
	m.notificationsTotal.Describe(ch)
	m.hubSubscribers.Describe(ch)
	m.subscribersDroppedTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface
func (m *CallControlMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operationsTotal.Collect(ch)
	m.operationDuration.Collect(ch)
	m.errorsTotal.Collect(ch)
	m.routeSwitchesTotal.Collect(ch)
	m.platformCommandsTotal.Collect(ch)
	m.hardwareEventsTotal.Collect(ch)
	m.captureTransitionsTotal.Collect(ch)
	m.staleGrantCallbacksTotal.Collect(ch)
	m.notificationsTotal.Collect(ch)
	m.hubSubscribers.Collect(ch)
	m.subscribersDroppedTotal.Collect(ch)
}

var (
	_ RouteRecorder         = (*CallControlMetrics)(nil)
	_ HardwareEventRecorder = (*CallControlMetrics)(nil)
	_ CaptureRecorder       = (*CallControlMetrics)(nil)
	_ NotificationRecorder  = (*CallControlMetrics)(nil)
	_ RouteRecorder         = NoOpRecorder{}
	_ CaptureRecorder       = NoOpRecorder{}
	_ NotificationRecorder  = NoOpRecorder{}
)
