// Package metrics provides constants used across metric definitions.
package metrics

// Operation names passed to Recorder methods.
const (
	OpSetRoute          = "set_route"
	OpHardwareEvent     = "hardware_event"
	OpRequestPermission = "request_permission"
	OpGrantResult       = "grant_result"
	OpStartCapture      = "start_capture"
	OpStopCapture       = "stop_capture"
	OpReleaseResource   = "release_resource"
	OpBridgeCommand     = "bridge_command"
)

// RouteInvalid labels route switches rejected before any command was issued.
const RouteInvalid = "invalid"

// Status label values.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusRejected = "rejected"
	StatusIgnored  = "ignored"
)
