// Package notify carries change notifications from the call controllers to the UI bridge.
package notify

// Notification names shared with the UI bridge.
const (
	EventAudioDeviceChanged        = "audioDeviceChanged"
	EventScreenCaptureStateChanged = "screenCaptureStateChanged"

	// Published by host components that share the sink.
	EventPipModeChanged   = "pipModeChanged"
	EventPipAction        = "pipAction"
	EventCallServiceEnded = "callServiceEnded"
)

// Sink receives notifications. Implementations must not block for long;
// publishers call Notify synchronously but outside their state locks, so a
// sink may query the publisher, for example capture status, while handling
// a notification.
type Sink interface {
	Notify(event string, payload map[string]any)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(event string, payload map[string]any)

// Notify calls f.
func (f SinkFunc) Notify(event string, payload map[string]any) {
	f(event, payload)
}

// Discard drops every notification.
var Discard Sink = SinkFunc(func(string, map[string]any) {})
