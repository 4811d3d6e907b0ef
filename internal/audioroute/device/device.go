// Package device holds the registry of currently attached audio endpoints.
package device

import (
	"fmt"
	"slices"
)

// Kind classifies an audio endpoint.
type Kind int

const (
	KindUnknown Kind = iota
	KindEarpiece
	KindBuiltinSpeaker
	KindWiredHeadset
	KindWiredHeadphones
	KindBluetoothSco
	KindBluetoothA2dp
	KindUsbHeadset
)

// Android AudioDeviceInfo.TYPE_* codes.
const (
	typeBuiltinEarpiece = 1
	typeBuiltinSpeaker  = 2
	typeWiredHeadset    = 3
	typeWiredHeadphones = 4
	typeBluetoothSco    = 7
	typeBluetoothA2dp   = 8
	typeUsbHeadset      = 22
)

// KindFromPlatformType maps a platform device type code to a Kind.
func KindFromPlatformType(code int) Kind {
	switch code {
	case typeBuiltinEarpiece:
		return KindEarpiece
	case typeBuiltinSpeaker:
		return KindBuiltinSpeaker
	case typeWiredHeadset:
		return KindWiredHeadset
	case typeWiredHeadphones:
		return KindWiredHeadphones
	case typeBluetoothSco:
		return KindBluetoothSco
	case typeBluetoothA2dp:
		return KindBluetoothA2dp
	case typeUsbHeadset:
		return KindUsbHeadset
	default:
		return KindUnknown
	}
}

func (k Kind) String() string {
	switch k {
	case KindEarpiece:
		return "earpiece"
	case KindBuiltinSpeaker:
		return "speaker"
	case KindWiredHeadset:
		return "wiredHeadset"
	case KindWiredHeadphones:
		return "wiredHeadphones"
	case KindBluetoothSco:
		return "bluetoothSco"
	case KindBluetoothA2dp:
		return "bluetoothA2dp"
	case KindUsbHeadset:
		return "usbHeadset"
	default:
		return "unknown"
	}
}

// AudioDevice is an immutable snapshot of one endpoint reported by the platform.
type AudioDevice struct {
	ID          int
	Kind        Kind
	RawType     int // platform type code, kept for display of unknown kinds
	DisplayName string
}

// New builds an AudioDevice from a platform type code.
func New(id, rawType int, name string) AudioDevice {
	return AudioDevice{
		ID:          id,
		Kind:        KindFromPlatformType(rawType),
		RawType:     rawType,
		DisplayName: name,
	}
}

// TypeName returns the human readable device type.
func (d AudioDevice) TypeName() string {
	switch d.Kind {
	case KindEarpiece:
		return "Earpiece"
	case KindBuiltinSpeaker:
		return "Speaker"
	case KindWiredHeadset:
		return "Wired Headset"
	case KindWiredHeadphones:
		return "Wired Headphones"
	case KindBluetoothSco:
		return "Bluetooth SCO"
	case KindBluetoothA2dp:
		return "Bluetooth A2DP"
	case KindUsbHeadset:
		return "USB Headset"
	default:
		return fmt.Sprintf("Unknown (%d)", d.RawType)
	}
}

// IsBluetooth reports whether the device is a Bluetooth SCO or A2DP endpoint.
func (d AudioDevice) IsBluetooth() bool {
	return d.Kind == KindBluetoothSco || d.Kind == KindBluetoothA2dp
}

// IsHeadphone reports whether the device is a wired or USB headset.
func (d AudioDevice) IsHeadphone() bool {
	return d.Kind == KindWiredHeadset || d.Kind == KindWiredHeadphones || d.Kind == KindUsbHeadset
}

// isWired is narrower than IsHeadphone: USB headsets do not count as wired.
func (d AudioDevice) isWired() bool {
	return d.Kind == KindWiredHeadset || d.Kind == KindWiredHeadphones
}

// LinkState carries the link flags that hardware events update directly.
type LinkState struct {
	ScoState            int
	ScoStateKnown       bool
	BluetoothConnected  bool
	WiredHeadsetPlugged bool
}

// Snapshot is a consistent view of the registry.
type Snapshot struct {
	Devices         []AudioDevice
	HasBluetooth    bool
	HasWiredHeadset bool
	Link            LinkState
}

// Clone returns a copy that shares no memory with s.
func (s Snapshot) Clone() Snapshot {
	s.Devices = slices.Clone(s.Devices)
	return s
}
