package sim

import (
	"slices"

	"github.com/tphakala/callctl/internal/audioroute/device"
	"github.com/tphakala/callctl/internal/errors"
	"github.com/tphakala/callctl/internal/hwevent"
)

// Device ids used for hot-plugged endpoints.
const (
	WiredHeadsetID = 100
	BluetoothID    = 101
)

// Platform device type codes used by the hot-plug helpers.
const (
	typeWiredHeadset = 3
	typeBluetoothSco = 7
)

var errAlreadySubscribed = errors.New(errors.NewStd("hardware event handler already registered")).
	Component("platform").
	Category(errors.CategoryState).
	Build()

// SetCommunicationMode switches the audio system into call mode.
func (p *Platform) SetCommunicationMode() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.recordLocked(CmdCommunicationMode); err != nil {
		return err
	}
	p.mode = ModeInCommunication
	return nil
}

// StopBluetoothSco tears down the SCO link and reports the new state.
func (p *Platform) StopBluetoothSco() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.recordLocked(CmdStopSco); err != nil {
		return err
	}
	wasOn := p.scoOn
	p.scoOn = false
	if wasOn {
		p.emitLocked(hwevent.ScoStateChanged(ScoAudioStateDisconnected))
	}
	return nil
}

// StartBluetoothSco brings up the SCO link and reports the new state.
func (p *Platform) StartBluetoothSco() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.recordLocked(CmdStartSco); err != nil {
		return err
	}
	wasOn := p.scoOn
	p.scoOn = true
	if !wasOn {
		p.emitLocked(hwevent.ScoStateChanged(ScoAudioStateConnected))
	}
	return nil
}

// SetSpeakerphoneOn toggles the loudspeaker.
func (p *Platform) SetSpeakerphoneOn(on bool) error {
	cmd := CmdSpeakerOff
	if on {
		cmd = CmdSpeakerOn
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.recordLocked(cmd); err != nil {
		return err
	}
	p.speakerOn = on
	return nil
}

// EnumerateDevices lists the attached output devices.
func (p *Platform) EnumerateDevices() ([]device.AudioDevice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.failures[CmdEnumerate]; ok {
		return nil, err
	}
	return slices.Clone(p.devices), nil
}

// IsSpeakerphoneOn reports the loudspeaker state.
func (p *Platform) IsSpeakerphoneOn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speakerOn
}

// IsBluetoothScoOn reports whether the SCO link is up.
func (p *Platform) IsBluetoothScoOn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scoOn
}

// Mode returns the platform audio mode code.
func (p *Platform) Mode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// Subscribe registers the hardware event handler.
func (p *Platform) Subscribe(handler func(hwevent.Event)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handler != nil {
		return errAlreadySubscribed
	}
	p.handler = handler
	return nil
}

// Unsubscribe drops the hardware event handler. Events already queued for
// delivery are discarded.
func (p *Platform) Unsubscribe() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = nil
	return nil
}

// Emit delivers ev to the subscribed handler on the delivery goroutine.
func (p *Platform) Emit(ev hwevent.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emitLocked(ev)
}

func (p *Platform) emitLocked(ev hwevent.Event) {
	p.queue.push(func() {
		p.mu.Lock()
		handler := p.handler
		p.mu.Unlock()
		if handler == nil {
			return
		}
		handler(ev)
	})
}

// PlugWiredHeadset attaches or detaches a wired headset and broadcasts the
// plug change with a fresh device list.
func (p *Platform) PlugWiredHeadset(plugged bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := 0
	if plugged {
		state = 1
		p.attachLocked(device.New(WiredHeadsetID, typeWiredHeadset, "Wired headset"))
	} else {
		p.detachLocked(WiredHeadsetID)
	}
	p.emitLocked(hwevent.HeadsetPlugged(state).WithDevices(p.devices))
}

// ConnectBluetooth connects or disconnects a Bluetooth headset and
// broadcasts the profile change with a fresh device list.
func (p *Platform) ConnectBluetooth(connected bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := BluetoothStateDisconnected
	if connected {
		state = BluetoothStateConnected
		p.attachLocked(device.New(BluetoothID, typeBluetoothSco, "Bluetooth headset"))
	} else {
		p.detachLocked(BluetoothID)
		if p.scoOn {
			p.scoOn = false
			p.emitLocked(hwevent.ScoStateChanged(ScoAudioStateDisconnected))
		}
	}
	p.emitLocked(hwevent.BluetoothConnectionChanged(state).WithDevices(p.devices))
}

func (p *Platform) attachLocked(d device.AudioDevice) {
	if slices.ContainsFunc(p.devices, func(existing device.AudioDevice) bool { return existing.ID == d.ID }) {
		return
	}
	p.devices = append(p.devices, d)
}

func (p *Platform) detachLocked(id int) {
	p.devices = slices.DeleteFunc(p.devices, func(d device.AudioDevice) bool { return d.ID == id })
}
