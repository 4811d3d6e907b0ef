// Package api serves the bridge commands and the notification stream over
// HTTP and WebSocket.
package api

import (
	"fmt"
	"net"
	"time"

	"github.com/tphakala/callctl/internal/conf"
	"github.com/tphakala/callctl/internal/errors"
)

// Default constants for the HTTP server.
const (
	DefaultListen          = "127.0.0.1:8787"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultBodyLimit       = "64K"
)

// Config holds the HTTP server configuration.
type Config struct {
	Listen string // host:port to bind

	// Security settings
	AllowedOrigins []string // CORS allowed origins

	// Timeouts
	ReadTimeout     time.Duration // Maximum duration for reading request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum time to wait for next request
	ShutdownTimeout time.Duration // Maximum time to wait for graceful shutdown

	// Limits
	BodyLimit string // Maximum request body size (e.g., "64K", "1M")

	Debug bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Listen:          DefaultListen,
		AllowedOrigins:  []string{"http://localhost", "http://127.0.0.1"},
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       DefaultBodyLimit,
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) Config {
	cfg := DefaultConfig()
	if settings.Server.Listen != "" {
		cfg.Listen = settings.Server.Listen
	}
	cfg.Debug = settings.Debug
	return cfg
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return errors.New(fmt.Errorf("invalid listen address %q: %w", c.Listen, err)).
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return errors.New(errors.NewStd("read and write timeouts must be positive")).
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// String returns a human-readable representation of the config.
func (c Config) String() string {
	return fmt.Sprintf("Server Config: listen=%s, debug=%v", c.Listen, c.Debug)
}
