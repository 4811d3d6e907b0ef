// Package bridge exposes the call controllers as the named commands the UI layer invokes.
package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/tphakala/callctl/internal/audioroute"
	"github.com/tphakala/callctl/internal/audioroute/device"
	"github.com/tphakala/callctl/internal/capture"
	"github.com/tphakala/callctl/internal/logging"
	"github.com/tphakala/callctl/internal/observability/metrics"
)

// Command names.
const (
	MethodGetAvailableAudioDevices       = "getAvailableAudioDevices"
	MethodSetAudioRoute                  = "setAudioRoute"
	MethodRequestScreenCapturePermission = "requestScreenCapturePermission"
	MethodStartScreenCapture             = "startScreenCapture"
	MethodStopScreenCapture              = "stopScreenCapture"
	MethodIsScreenCaptureSupported       = "isScreenCaptureSupported"
	MethodGetPermissionStatus            = "getPermissionStatus"
)

// DeviceEnumerator lists the audio endpoints the platform currently reports.
type DeviceEnumerator interface {
	EnumerateDevices() ([]device.AudioDevice, error)
}

// AudioStatus reports the platform's own view of the audio system.
type AudioStatus interface {
	IsSpeakerphoneOn() bool
	IsBluetoothScoOn() bool
	Mode() int
}

// Deps are the collaborators of a Bridge.
type Deps struct {
	Routes   *audioroute.Controller
	Capture  *capture.Manager
	Registry *device.Registry
	Devices  DeviceEnumerator
	Status   AudioStatus
	Logger   *slog.Logger
	Metrics  metrics.Recorder
}

// Bridge dispatches UI commands to the route controller and capture manager.
type Bridge struct {
	deps     Deps
	logger   *slog.Logger
	metrics  metrics.Recorder
	handlers map[string]handlerFunc
}

type handlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// New creates a bridge.
func New(deps Deps) *Bridge {
	logger := deps.Logger
	if logger == nil {
		logger = logging.ForService("bridge")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var recorder metrics.Recorder = metrics.NoOpRecorder{}
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}

	b := &Bridge{deps: deps, logger: logger, metrics: recorder}
	b.handlers = map[string]handlerFunc{
		MethodGetAvailableAudioDevices: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return b.GetAvailableAudioDevices(ctx)
		},
		MethodSetAudioRoute: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var params SetAudioRouteParams
			if err := decodeParams(raw, &params); err != nil {
				return nil, err
			}
			return b.SetAudioRoute(ctx, params)
		},
		MethodRequestScreenCapturePermission: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return b.RequestScreenCapturePermission(ctx)
		},
		MethodStartScreenCapture: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return b.StartScreenCapture(ctx)
		},
		MethodStopScreenCapture: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return b.StopScreenCapture(ctx)
		},
		MethodIsScreenCaptureSupported: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return b.IsScreenCaptureSupported(ctx)
		},
		MethodGetPermissionStatus: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return b.GetPermissionStatus(ctx)
		},
	}
	return b
}

// Methods returns the supported command names, sorted.
func (b *Bridge) Methods() []string {
	names := make([]string, 0, len(b.handlers))
	for name := range b.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Invoke runs the named command. Every failure is a *Rejection.
func (b *Bridge) Invoke(ctx context.Context, method string, params json.RawMessage) (any, error) {
	handler, ok := b.handlers[method]
	if !ok {
		b.metrics.RecordOperation(metrics.OpBridgeCommand, metrics.StatusRejected)
		return nil, reject(CodeUnknownMethod, "unknown method %q", method)
	}
	if err := ctx.Err(); err != nil {
		return nil, &Rejection{Code: CodeInternal, Message: err.Error(), cause: err}
	}

	start := time.Now()
	result, err := handler(ctx, params)
	b.metrics.RecordDuration(metrics.OpBridgeCommand, time.Since(start).Seconds())

	if err != nil {
		rej := AsRejection(err)
		b.metrics.RecordOperation(metrics.OpBridgeCommand, metrics.StatusRejected)
		b.metrics.RecordError(metrics.OpBridgeCommand, string(rej.Code))
		b.logger.Info("bridge command rejected", "method", method, "code", string(rej.Code), "message", rej.Message)
		return nil, rej
	}

	b.metrics.RecordOperation(metrics.OpBridgeCommand, metrics.StatusSuccess)
	b.logger.Debug("bridge command completed", "method", method)
	return result, nil
}

func decodeParams(raw json.RawMessage, dst any) error {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &Rejection{Code: CodeInvalidArgument, Message: "malformed parameters: " + err.Error(), cause: err}
	}
	return nil
}
