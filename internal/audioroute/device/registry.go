package device

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// contents is swapped as a whole on Refresh and never mutated afterwards.
type contents struct {
	devices         *orderedmap.OrderedMap[int, AudioDevice]
	hasBluetooth    bool
	hasWiredHeadset bool
}

// Registry is the set of currently attached audio endpoints, keyed by id in
// enumeration order. Safe for concurrent use; readers never observe a
// partially applied refresh.
type Registry struct {
	mu      sync.RWMutex
	current *contents
	link    LinkState
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{current: buildContents(nil)}
}

func buildContents(devices []AudioDevice) *contents {
	c := &contents{devices: orderedmap.New[int, AudioDevice](len(devices))}
	// A duplicate id replaces the earlier entry in place and keeps its position.
	for _, d := range devices {
		c.devices.Set(d.ID, d)
	}
	for pair := c.devices.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.IsBluetooth() {
			c.hasBluetooth = true
		}
		if pair.Value.isWired() {
			c.hasWiredHeadset = true
		}
	}
	return c
}

// Refresh replaces the registry contents with a freshly enumerated snapshot.
func (r *Registry) Refresh(devices []AudioDevice) {
	next := buildContents(devices)

	r.mu.Lock()
	r.current = next
	r.mu.Unlock()
}

// Query returns the devices in enumeration order with the derived flags.
func (r *Registry) Query() Snapshot {
	r.mu.RLock()
	c, link := r.current, r.link
	r.mu.RUnlock()

	devices := make([]AudioDevice, 0, c.devices.Len())
	for pair := c.devices.Oldest(); pair != nil; pair = pair.Next() {
		devices = append(devices, pair.Value)
	}

	return Snapshot{
		Devices:         devices,
		HasBluetooth:    c.hasBluetooth,
		HasWiredHeadset: c.hasWiredHeadset,
		Link:            link,
	}
}

// Lookup returns the device with the given id.
func (r *Registry) Lookup(id int) (AudioDevice, bool) {
	r.mu.RLock()
	c := r.current
	r.mu.RUnlock()
	return c.devices.Get(id)
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.devices.Len()
}

// SetScoState records the last SCO state reported by the platform.
func (r *Registry) SetScoState(state int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.link.ScoState = state
	r.link.ScoStateKnown = true
}

// SetBluetoothConnected records the Bluetooth headset connection state.
func (r *Registry) SetBluetoothConnected(connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.link.BluetoothConnected = connected
}

// SetWiredHeadsetPlugged records the wired headset plug state.
func (r *Registry) SetWiredHeadsetPlugged(plugged bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.link.WiredHeadsetPlugged = plugged
}
