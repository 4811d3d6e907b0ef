// Package hwevent turns platform audio hardware broadcasts into registry
// updates and audioDeviceChanged notifications.
package hwevent

import (
	"fmt"
	"slices"

	"github.com/tphakala/callctl/internal/audioroute/device"
)

// Kind discriminates hardware events.
type Kind int

const (
	KindScoStateChanged Kind = iota
	KindHeadsetPlugged
	KindBluetoothConnectionChanged
)

// String returns the wire name used in notification payloads.
func (k Kind) String() string {
	switch k {
	case KindScoStateChanged:
		return "scoStateChanged"
	case KindHeadsetPlugged:
		return "headsetPlugged"
	case KindBluetoothConnectionChanged:
		return "bluetoothConnectionChanged"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses a wire name.
func ParseKind(name string) (Kind, error) {
	for _, k := range []Kind{KindScoStateChanged, KindHeadsetPlugged, KindBluetoothConnectionChanged} {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown hardware event kind %q", name)
}

// Raw platform states that mean "connected".
const (
	headsetStatePlugged     = 1
	bluetoothStateConnected = 2 // BluetoothProfile.STATE_CONNECTED
)

// Event is one platform notification. State is meaningful for
// KindScoStateChanged, Connected for the other kinds.
type Event struct {
	Kind      Kind
	State     int
	Connected bool

	// Devices is a fresh enumeration when HasDevices is set.
	Devices    []device.AudioDevice
	HasDevices bool
}

// ScoStateChanged reports a new Bluetooth SCO audio state.
func ScoStateChanged(state int) Event {
	return Event{Kind: KindScoStateChanged, State: state}
}

// HeadsetPlugged reports a wired headset plug change; rawState 1 means plugged.
func HeadsetPlugged(rawState int) Event {
	return Event{Kind: KindHeadsetPlugged, State: rawState, Connected: rawState == headsetStatePlugged}
}

// BluetoothConnectionChanged reports a headset profile connection change;
// rawState 2 means connected.
func BluetoothConnectionChanged(rawState int) Event {
	return Event{Kind: KindBluetoothConnectionChanged, State: rawState, Connected: rawState == bluetoothStateConnected}
}

// WithDevices attaches a device enumeration to e.
func (e Event) WithDevices(devices []device.AudioDevice) Event {
	e.Devices = slices.Clone(devices)
	e.HasDevices = true
	return e
}

// Payload returns the audioDeviceChanged notification body for e.
func (e Event) Payload() map[string]any {
	if e.Kind == KindScoStateChanged {
		return map[string]any{"event": e.Kind.String(), "state": e.State}
	}
	return map[string]any{"event": e.Kind.String(), "connected": e.Connected}
}

// Source delivers platform hardware events. The handler may be invoked from
// any goroutine; per kind, events arrive in platform order.
type Source interface {
	Subscribe(handler func(Event)) error
	Unsubscribe() error
}
