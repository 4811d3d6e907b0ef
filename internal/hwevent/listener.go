package hwevent

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tphakala/callctl/internal/audioroute/device"
	"github.com/tphakala/callctl/internal/errors"
	"github.com/tphakala/callctl/internal/logging"
	"github.com/tphakala/callctl/internal/notify"
	"github.com/tphakala/callctl/internal/observability/metrics"
)

// ErrAlreadyStarted is returned by a second Start.
var ErrAlreadyStarted = errors.New(errors.NewStd("hardware event listener already started")).
	Component("hwevent").
	Category(errors.CategoryState).
	Build()

// Options configures a Listener.
type Options struct {
	Logger  *slog.Logger
	Metrics metrics.HardwareEventRecorder
}

// Listener applies hardware events to the device registry and emits exactly
// one audioDeviceChanged notification per event, in arrival order.
type Listener struct {
	source   Source
	registry *device.Registry
	sink     notify.Sink
	logger   *slog.Logger
	metrics  metrics.HardwareEventRecorder

	lifecycle sync.Mutex
	started   bool
	stopped   atomic.Bool

	// handleMu serializes event handling across delivery goroutines.
	handleMu sync.Mutex
}

// NewListener creates a listener. It does nothing until Start.
func NewListener(source Source, registry *device.Registry, sink notify.Sink, opts Options) *Listener {
	logger := opts.Logger
	if logger == nil {
		logger = logging.ForService("hwevent")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = notify.Discard
	}

	var recorder metrics.HardwareEventRecorder = metrics.NoOpRecorder{}
	if opts.Metrics != nil {
		recorder = opts.Metrics
	}

	return &Listener{
		source:   source,
		registry: registry,
		sink:     sink,
		logger:   logger,
		metrics:  recorder,
	}
}

// Start subscribes to the platform source. It may be called once.
func (l *Listener) Start() error {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()

	if l.started {
		return ErrAlreadyStarted
	}
	if err := l.source.Subscribe(l.handle); err != nil {
		return errors.New(err).
			Component("hwevent").
			Category(errors.CategoryHardwareEvent).
			Context("operation", "subscribe").
			Build()
	}
	l.started = true
	l.logger.Info("hardware event listener started")
	return nil
}

// Stop unsubscribes. Failures are logged and swallowed.
func (l *Listener) Stop() {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()

	if !l.started || l.stopped.Load() {
		return
	}
	l.stopped.Store(true)

	if err := l.source.Unsubscribe(); err != nil {
		l.logger.Warn("failed to unsubscribe from hardware events", "error", err)
	} else {
		l.logger.Info("hardware event listener stopped")
	}

	// Wait for an in-flight event so nothing is emitted after Stop returns.
	l.handleMu.Lock()
	l.handleMu.Unlock()
}

func (l *Listener) handle(ev Event) {
	l.handleMu.Lock()
	defer l.handleMu.Unlock()

	if l.stopped.Load() {
		l.logger.Debug("dropping hardware event after stop", "event", ev.Kind.String())
		return
	}

	if ev.HasDevices {
		l.registry.Refresh(ev.Devices)
	}
	switch ev.Kind {
	case KindScoStateChanged:
		l.registry.SetScoState(ev.State)
	case KindHeadsetPlugged:
		l.registry.SetWiredHeadsetPlugged(ev.Connected)
	case KindBluetoothConnectionChanged:
		l.registry.SetBluetoothConnected(ev.Connected)
	default:
		l.logger.Warn("unknown hardware event kind", "kind", int(ev.Kind))
	}

	l.metrics.RecordHardwareEvent(ev.Kind.String())
	l.logger.Debug("hardware event",
		"event", ev.Kind.String(),
		"state", ev.State,
		"connected", ev.Connected,
		"devices", len(ev.Devices))

	l.sink.Notify(notify.EventAudioDeviceChanged, ev.Payload())
}
