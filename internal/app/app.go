// Package app assembles the call controllers on top of the simulated platform.
package app

import (
	"fmt"
	"log/slog"

	"github.com/tphakala/callctl/internal/audioroute"
	"github.com/tphakala/callctl/internal/audioroute/device"
	"github.com/tphakala/callctl/internal/bridge"
	"github.com/tphakala/callctl/internal/capture"
	"github.com/tphakala/callctl/internal/conf"
	"github.com/tphakala/callctl/internal/errors"
	"github.com/tphakala/callctl/internal/hwevent"
	"github.com/tphakala/callctl/internal/logging"
	"github.com/tphakala/callctl/internal/notify"
	"github.com/tphakala/callctl/internal/observability"
	"github.com/tphakala/callctl/internal/platform/sim"
)

// App owns every long-lived component of a callctl process.
type App struct {
	Settings *conf.Settings
	Platform *sim.Platform
	Registry *device.Registry
	Routes   *audioroute.Controller
	Listener *hwevent.Listener
	Capture  *capture.Manager
	Hub      *notify.Hub
	Bridge   *bridge.Bridge
	Metrics  *observability.Metrics // nil when metrics are disabled

	logger *slog.Logger
}

// New wires the components described by settings. Nothing runs until Start.
func New(settings *conf.Settings) (*App, error) {
	logger := logging.ForService("app")
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Settings: settings, logger: logger}

	if settings.Metrics.Enabled {
		m, err := observability.NewMetrics()
		if err != nil {
			return nil, errors.New(err).
				Component("app").
				Category(errors.CategoryConfiguration).
				Context("operation", "init_metrics").
				Build()
		}
		a.Metrics = m
	}

	devices := make([]device.AudioDevice, 0, len(settings.Sim.Devices))
	for _, d := range settings.Sim.Devices {
		devices = append(devices, device.New(d.ID, d.Type, d.Name))
	}

	a.Platform = sim.New(sim.Options{
		Devices:          devices,
		CaptureSupported: settings.Capture.Supported,
		GrantPolicy:      settings.Capture.GrantPolicy,
		GrantDelay:       settings.Capture.GrantDelay,
	})
	a.Registry = device.NewRegistry()
	a.Registry.Refresh(devices)

	hubOpts := notify.HubOptions{BufferSize: settings.Server.SubscriberBuffer}
	routeOpts := audioroute.Options{CommunicationMode: settings.Audio.CommunicationMode, Registry: a.Registry}
	listenerOpts := hwevent.Options{}
	captureOpts := capture.Options{}
	bridgeDeps := bridge.Deps{
		Registry: a.Registry,
		Devices:  a.Platform,
		Status:   a.Platform,
	}
	if a.Metrics != nil {
		hubOpts.Metrics = a.Metrics.CallControl
		routeOpts.Metrics = a.Metrics.CallControl
		listenerOpts.Metrics = a.Metrics.CallControl
		captureOpts.Metrics = a.Metrics.CallControl
		bridgeDeps.Metrics = a.Metrics.CallControl
	}

	a.Hub = notify.NewHub(hubOpts)
	captureOpts.Sink = a.Hub

	a.Routes = audioroute.NewController(a.Platform, routeOpts)
	a.Listener = hwevent.NewListener(a.Platform, a.Registry, a.Hub, listenerOpts)
	a.Capture = capture.NewManager(a.Platform, captureOpts)
	a.Platform.SetGrantReceiver(func(token capture.Token, result capture.GrantResult) {
		a.Capture.OnGrantResult(token, result)
	})

	bridgeDeps.Routes = a.Routes
	bridgeDeps.Capture = a.Capture
	a.Bridge = bridge.New(bridgeDeps)

	return a, nil
}

// Start subscribes to hardware events and applies the configured initial route.
func (a *App) Start() error {
	if err := a.Listener.Start(); err != nil {
		return err
	}

	if a.Settings.Audio.InitialRoute == "" {
		return nil
	}
	route, err := audioroute.ParseRoute(a.Settings.Audio.InitialRoute)
	if err != nil {
		return err
	}
	if _, err := a.Routes.SetRoute(route); err != nil {
		return errors.New(fmt.Errorf("applying initial route: %w", err)).
			Component("app").
			Category(errors.CategoryAudioRoute).
			Context("route", route.String()).
			Build()
	}
	a.logger.Info("initial audio route applied", "route", route.String())
	return nil
}

// Close stops every component in reverse dependency order.
func (a *App) Close() {
	a.Listener.Stop()
	a.Capture.Close()
	a.Routes.Close()
	a.Platform.Close()
	a.Hub.Close()
	a.logger.Info("call controllers stopped")
}
