package bridge

import (
	"context"

	"github.com/tphakala/callctl/internal/audioroute"
)

// DeviceInfo describes one device in getAvailableAudioDevices.
type DeviceInfo struct {
	ID          int    `json:"id"`
	Type        int    `json:"type"`
	TypeName    string `json:"typeName"`
	ProductName string `json:"productName"`
	IsBluetooth bool   `json:"isBluetooth"`
	IsHeadphone bool   `json:"isHeadphone"`
}

// DevicesResult is the getAvailableAudioDevices payload.
type DevicesResult struct {
	Devices          []DeviceInfo `json:"devices"`
	HasBluetooth     bool         `json:"hasBluetooth"`
	HasWiredHeadset  bool         `json:"hasWiredHeadset"`
	IsSpeakerphoneOn bool         `json:"isSpeakerphoneOn"`
	IsBluetoothScoOn bool         `json:"isBluetoothScoOn"`
	Mode             int          `json:"mode"`
}

// SetAudioRouteParams are the setAudioRoute parameters.
type SetAudioRouteParams struct {
	Route *string `json:"route"`
}

// SetAudioRouteResult is the setAudioRoute payload.
type SetAudioRouteResult struct {
	Success bool   `json:"success"`
	Route   string `json:"route"`
}

// PermissionRequestResult is the requestScreenCapturePermission payload.
type PermissionRequestResult struct {
	Pending bool   `json:"pending"`
	Token   uint64 `json:"token"`
}

// SuccessResult acknowledges a command.
type SuccessResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// SupportedResult is the isScreenCaptureSupported payload.
type SupportedResult struct {
	Supported bool `json:"supported"`
}

// PermissionStatusResult is the getPermissionStatus payload.
type PermissionStatusResult struct {
	HasPermission bool `json:"hasPermission"`
	IsActive      bool `json:"isActive"`
}

// GetAvailableAudioDevices re-enumerates devices into the registry and reports them.
func (b *Bridge) GetAvailableAudioDevices(_ context.Context) (DevicesResult, error) {
	if b.deps.Devices != nil {
		devices, err := b.deps.Devices.EnumerateDevices()
		if err != nil {
			return DevicesResult{}, &Rejection{Code: CodePlatformRejected, Message: "device enumeration failed: " + err.Error(), cause: err}
		}
		b.deps.Registry.Refresh(devices)
	}

	snap := b.deps.Registry.Query()
	result := DevicesResult{
		Devices:         make([]DeviceInfo, 0, len(snap.Devices)),
		HasBluetooth:    snap.HasBluetooth || snap.Link.BluetoothConnected,
		HasWiredHeadset: snap.HasWiredHeadset || snap.Link.WiredHeadsetPlugged,
	}
	for _, d := range snap.Devices {
		result.Devices = append(result.Devices, DeviceInfo{
			ID:          d.ID,
			Type:        d.RawType,
			TypeName:    d.TypeName(),
			ProductName: d.DisplayName,
			IsBluetooth: d.IsBluetooth(),
			IsHeadphone: d.IsHeadphone(),
		})
	}

	if b.deps.Status != nil {
		result.IsSpeakerphoneOn = b.deps.Status.IsSpeakerphoneOn()
		result.IsBluetoothScoOn = b.deps.Status.IsBluetoothScoOn()
		result.Mode = b.deps.Status.Mode()
	} else {
		state := b.deps.Routes.State()
		result.IsSpeakerphoneOn = state.ActiveRoute == audioroute.RouteSpeaker
		result.IsBluetoothScoOn = state.BluetoothScoRequested
	}

	return result, nil
}

// SetAudioRoute switches the call audio route.
func (b *Bridge) SetAudioRoute(_ context.Context, params SetAudioRouteParams) (SetAudioRouteResult, error) {
	if params.Route == nil {
		return SetAudioRouteResult{}, reject(CodeInvalidArgument, "route parameter is required")
	}

	route, err := audioroute.ParseRoute(*params.Route)
	if err != nil {
		return SetAudioRouteResult{}, &Rejection{Code: CodeInvalidRoute, Message: "unknown route: " + *params.Route, cause: err}
	}

	state, err := b.deps.Routes.SetRoute(route)
	if err != nil {
		return SetAudioRouteResult{}, err
	}
	return SetAudioRouteResult{Success: true, Route: state.ActiveRoute.String()}, nil
}

// RequestScreenCapturePermission starts a permission request. The outcome
// arrives later as a screenCaptureStateChanged notification.
func (b *Bridge) RequestScreenCapturePermission(_ context.Context) (PermissionRequestResult, error) {
	token, err := b.deps.Capture.RequestPermission()
	if err != nil {
		return PermissionRequestResult{}, err
	}
	return PermissionRequestResult{Pending: true, Token: uint64(token)}, nil
}

// StartScreenCapture consumes the current grant.
func (b *Bridge) StartScreenCapture(_ context.Context) (SuccessResult, error) {
	if err := b.deps.Capture.Start(); err != nil {
		return SuccessResult{}, err
	}
	return SuccessResult{Success: true, Message: "Screen capture started"}, nil
}

// StopScreenCapture ends any capture session. It always succeeds.
func (b *Bridge) StopScreenCapture(_ context.Context) (SuccessResult, error) {
	b.deps.Capture.Stop()
	return SuccessResult{Success: true}, nil
}

// IsScreenCaptureSupported reports platform capability.
func (b *Bridge) IsScreenCaptureSupported(_ context.Context) (SupportedResult, error) {
	return SupportedResult{Supported: b.deps.Capture.Supported()}, nil
}

// GetPermissionStatus reports the capture permission status.
func (b *Bridge) GetPermissionStatus(_ context.Context) (PermissionStatusResult, error) {
	status := b.deps.Capture.QueryStatus()
	return PermissionStatusResult{HasPermission: status.HasPermission, IsActive: status.IsActive}, nil
}
