// Package metrics provides custom Prometheus metrics for callctl.
package metrics

// Recorder defines a minimal interface for recording metrics.
// This interface improves testability by allowing components to depend on
// an abstraction rather than concrete metric implementations.
type Recorder interface {
	// RecordOperation records a generic operation with its status.
	// The operation parameter describes what was performed (e.g., "set_route", "start_capture").
	// The status parameter indicates the outcome (e.g., "success", "error").
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its type.
	// The errorType parameter categorizes the error (e.g., "platform", "validation").
	RecordError(operation, errorType string)
}

// RouteRecorder is the metrics surface of the route controller.
type RouteRecorder interface {
	Recorder
	RecordRouteSwitch(route, status string)
	RecordPlatformCommand(step, status string)
}

// HardwareEventRecorder is the metrics surface of the hardware event listener.
type HardwareEventRecorder interface {
	Recorder
	RecordHardwareEvent(kind string)
}

// CaptureRecorder is the metrics surface of the capture session manager.
type CaptureRecorder interface {
	Recorder
	RecordCaptureTransition(from, to string)
	RecordStaleGrantCallback()
}

// NotificationRecorder is the metrics surface of the notification hub.
type NotificationRecorder interface {
	RecordNotification(event string)
	SetSubscribers(count int)
	RecordSubscriberDropped(reason string)
}

// NoOpRecorder is a no-op implementation of every recorder interface.
// It can be used when metrics recording is not needed.
type NoOpRecorder struct{}

func (NoOpRecorder) RecordOperation(operation, status string)         {}
func (NoOpRecorder) RecordDuration(operation string, seconds float64) {}
func (NoOpRecorder) RecordError(operation, errorType string)          {}
func (NoOpRecorder) RecordRouteSwitch(route, status string)           {}
func (NoOpRecorder) RecordPlatformCommand(step, status string)        {}
func (NoOpRecorder) RecordHardwareEvent(kind string)                  {}
func (NoOpRecorder) RecordCaptureTransition(from, to string)          {}
func (NoOpRecorder) RecordStaleGrantCallback()                        {}
func (NoOpRecorder) RecordNotification(event string)                  {}
func (NoOpRecorder) SetSubscribers(count int)                         {}
func (NoOpRecorder) RecordSubscriberDropped(reason string)            {}
