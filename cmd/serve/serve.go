// Package serve runs the bridge API on top of the simulated platform.
package serve

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/callctl/cmd/version"
	"github.com/tphakala/callctl/internal/api"
	"github.com/tphakala/callctl/internal/app"
	"github.com/tphakala/callctl/internal/conf"
	"github.com/tphakala/callctl/internal/errors"
	"github.com/tphakala/callctl/internal/logging"
	"github.com/tphakala/callctl/internal/notify"
)

const sentryFlushTimeout = 2 * time.Second

// Command creates the serve command. Its flags are bound to v.
func Command(v *viper.Viper, settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the bridge API on the simulated platform",
		Long: "Start the HTTP bridge: commands on /api/v1/commands/:method, " +
			"notifications on the /api/v1/events WebSocket, and simulator controls under /api/v1/sim.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, settings)
		},
	}

	// Set up flags specific to the serve command
	if err := setupFlags(cmd, v); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, v *viper.Viper) error {
	cmd.Flags().String("listen", conf.DefaultListen, "Listen address of the bridge API (host:port)")
	cmd.Flags().String("grant-policy", conf.GrantPolicyManual, "Simulated permission dialog answer: manual, grant or deny")

	// Bind flags to the viper settings
	if err := v.BindPFlag("server.listen", cmd.Flags().Lookup("listen")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	if err := v.BindPFlag("capture.grantpolicy", cmd.Flags().Lookup("grant-policy")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

// Run serves until ctx is done.
func Run(ctx context.Context, settings *conf.Settings) error {
	closeLogs, err := setupFileLogging(settings)
	if err != nil {
		return err
	}
	defer closeLogs()

	logger := logging.ForService("serve")
	if logger == nil {
		logger = slog.Default()
	}

	if settings.Telemetry.Enabled {
		if err := initTelemetry(settings); err != nil {
			logger.Warn("telemetry disabled", "error", err)
		} else {
			defer sentry.Flush(sentryFlushTimeout)
		}
	}

	a, err := app.New(settings)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Start(); err != nil {
		return err
	}

	opts := []api.ServerOption{api.WithSimulator(a.Platform)}
	if a.Metrics != nil {
		opts = append(opts, api.WithMetrics(a.Metrics))
	}
	srv, err := api.New(api.ConfigFromSettings(settings), a.Bridge, a.Hub, opts...)
	if err != nil {
		return err
	}

	tap, closeTap, err := eventTapLogger(settings)
	if err != nil {
		return err
	}
	defer closeTap()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		return tapEvents(gctx, a.Hub, tap)
	})

	logger.Info("callctl serving",
		"listen", settings.Server.Listen,
		"grant_policy", settings.Capture.GrantPolicy,
		"capture_supported", settings.Capture.Supported)

	err = g.Wait()
	logger.Info("callctl stopped", "error", err)
	return err
}

// setupFileLogging mirrors the structured log into a rotating file when enabled.
func setupFileLogging(settings *conf.Settings) (func(), error) {
	if !settings.Log.File.Enabled {
		return func() {}, nil
	}

	writer, err := logging.NewRotatingWriter(settings.Log.File.Path, fileOptions(settings))
	if err != nil {
		return nil, errors.New(err).
			Component("configuration").
			Category(errors.CategoryFileIO).
			Context("path", settings.Log.File.Path).
			Build()
	}
	logging.SetOutput(io.MultiWriter(os.Stdout, writer), os.Stderr)

	return func() {
		logging.SetOutput(os.Stdout, os.Stderr)
		_ = writer.Close()
	}, nil
}

func fileOptions(settings *conf.Settings) logging.FileOptions {
	return logging.FileOptions{
		MaxSizeMB:  settings.Log.File.MaxSize,
		MaxBackups: settings.Log.File.MaxBackups,
		MaxAgeDays: settings.Log.File.MaxAge,
	}
}

// eventTapLogger returns the logger that records every notification. With
// file logging on, notifications go to events.log next to the main log.
func eventTapLogger(settings *conf.Settings) (*slog.Logger, func(), error) {
	if !settings.Log.File.Enabled {
		logger := logging.ForService("events")
		if logger == nil {
			logger = slog.Default()
		}
		return logger, func() {}, nil
	}

	path := filepath.Join(filepath.Dir(settings.Log.File.Path), "events.log")
	logger, closer, err := logging.NewFileLogger(path, "events", slog.LevelInfo, fileOptions(settings))
	if err != nil {
		return nil, nil, errors.New(err).
			Component("configuration").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return logger, func() { _ = closer() }, nil
}

// tapEvents logs every hub notification until ctx is done.
func tapEvents(ctx context.Context, hub *notify.Hub, logger *slog.Logger) error {
	sub, err := hub.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	for ev := range sub.Events() {
		logger.Info("notification",
			"seq", ev.Seq,
			"event", ev.Name,
			"payload", ev.Payload)
	}
	if err := sub.Err(); err != nil {
		logger.Warn("event tap disconnected", "error", err)
	}
	return nil
}

// initTelemetry starts Sentry and routes enhanced errors to it.
func initTelemetry(settings *conf.Settings) error {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Telemetry.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "", // Explicitly clear server name to prevent hostname leakage
		Release:          fmt.Sprintf("callctl@%s", version.Version),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			event.User = sentry.User{}
			event.ServerName = ""
			return event
		},
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	return nil
}
