package audioroute

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tphakala/callctl/internal/audioroute/device"
	"github.com/tphakala/callctl/internal/errors"
	"github.com/tphakala/callctl/internal/logging"
	"github.com/tphakala/callctl/internal/observability/metrics"
)

// Platform issues the hardware commands of a route switch. Each call is
// synchronous and either takes effect or returns an error.
type Platform interface {
	SetCommunicationMode() error
	StopBluetoothSco() error
	SetSpeakerphoneOn(on bool) error
	StartBluetoothSco() error
}

// Options configures a Controller.
type Options struct {
	// CommunicationMode puts the audio system into voice-call mode before every switch.
	CommunicationMode bool
	// Registry, when set, is consulted to warn about routes with no matching device.
	Registry *device.Registry
	Logger   *slog.Logger
	Metrics  metrics.RouteRecorder
}

// Controller owns the route state of one call.
type Controller struct {
	platform Platform
	opts     Options
	logger   *slog.Logger
	metrics  metrics.RouteRecorder

	mu    sync.Mutex
	state State
}

// NewController creates a controller with no active route.
func NewController(platform Platform, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = logging.ForService("audioroute")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var recorder metrics.RouteRecorder = metrics.NoOpRecorder{}
	if opts.Metrics != nil {
		recorder = opts.Metrics
	}

	return &Controller{
		platform: platform,
		opts:     opts,
		logger:   logger,
		metrics:  recorder,
	}
}

// State returns the current route state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetRoute switches call audio to target. The previous output is torn down
// before the new one is engaged. On failure ActiveRoute keeps its prior value
// and the remaining steps are skipped; commands already issued are not undone.
func (c *Controller) SetRoute(target Route) (State, error) {
	if !target.Valid() {
		c.metrics.RecordRouteSwitch(metrics.RouteInvalid, metrics.StatusRejected)
		c.metrics.RecordError(metrics.OpSetRoute, string(errors.CategoryValidation))
		return c.State(), errors.New(ErrInvalidRoute).
			Component(ComponentAudioRoute).
			Category(errors.CategoryValidation).
			Context("route", target.String()).
			Build()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	previous := c.state.ActiveRoute
	c.warnIfUnavailable(target)

	if err := c.apply(target); err != nil {
		c.metrics.RecordRouteSwitch(target.String(), metrics.StatusRejected)
		c.metrics.RecordError(metrics.OpSetRoute, string(errors.CategoryPlatform))
		c.logger.Warn("route switch rejected by platform",
			"from", previous.String(),
			"to", target.String(),
			"step", err.Step.String(),
			"error", err.Err)
		return c.state, err
	}

	c.metrics.RecordRouteSwitch(target.String(), metrics.StatusSuccess)
	c.metrics.RecordDuration(metrics.OpSetRoute, time.Since(start).Seconds())
	c.logger.Info("audio route changed",
		"from", previous.String(),
		"to", target.String(),
		"sco_requested", c.state.BluetoothScoRequested)

	return c.state, nil
}

// apply runs the switch sequence. It must be called with c.mu held.
func (c *Controller) apply(target Route) *PlatformRejectedError {
	// SCO goes down before any other change.
	if target != c.state.ActiveRoute && c.state.BluetoothScoRequested {
		if err := c.issue(StepTeardownSco, c.platform.StopBluetoothSco); err != nil {
			return err
		}
		c.state.BluetoothScoRequested = false
	}

	if c.opts.CommunicationMode {
		if err := c.issue(StepCommunicationMode, c.platform.SetCommunicationMode); err != nil {
			return err
		}
	}

	speakerOn := target == RouteSpeaker
	if err := c.issue(StepSpeakerphone, func() error { return c.platform.SetSpeakerphoneOn(speakerOn) }); err != nil {
		return err
	}

	if target == RouteBluetooth {
		if err := c.issue(StepEnableSco, c.platform.StartBluetoothSco); err != nil {
			return err
		}
		c.state.BluetoothScoRequested = true
	}

	c.state.ActiveRoute = target
	return nil
}

func (c *Controller) issue(step Step, command func() error) *PlatformRejectedError {
	if err := command(); err != nil {
		c.metrics.RecordPlatformCommand(step.String(), metrics.StatusError)
		return &PlatformRejectedError{Step: step, Err: err}
	}
	c.metrics.RecordPlatformCommand(step.String(), metrics.StatusSuccess)
	return nil
}

func (c *Controller) warnIfUnavailable(target Route) {
	if c.opts.Registry == nil {
		return
	}
	snap := c.opts.Registry.Query()
	switch target {
	case RouteBluetooth:
		if !snap.HasBluetooth && !snap.Link.BluetoothConnected {
			c.logger.Warn("bluetooth route requested with no bluetooth device reported")
		}
	case RouteHeadphones:
		if !snap.HasWiredHeadset && !snap.Link.WiredHeadsetPlugged {
			c.logger.Warn("headphones route requested with no wired headset reported")
		}
	}
}

// Close releases the SCO link if this controller requested it.
// A teardown failure is logged and swallowed.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.BluetoothScoRequested {
		return
	}
	if err := c.platform.StopBluetoothSco(); err != nil {
		c.logger.Warn("failed to tear down bluetooth sco on close", "error", err)
		return
	}
	c.state.BluetoothScoRequested = false
	c.logger.Debug("bluetooth sco released on close")
}
