package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/tphakala/callctl/internal/api/middleware"
	"github.com/tphakala/callctl/internal/bridge"
	"github.com/tphakala/callctl/internal/errors"
	"github.com/tphakala/callctl/internal/logging"
	"github.com/tphakala/callctl/internal/notify"
	"github.com/tphakala/callctl/internal/observability"
)

// Route paths.
const (
	PathCommand      = "/api/v1/commands/:method"
	PathEvents       = "/api/v1/events"
	PathRecentEvents = "/api/v1/events/recent"
	PathSimHardware  = "/api/v1/sim/hardware"
	PathSimGrant     = "/api/v1/sim/grant"
	PathSimCommands  = "/api/v1/sim/commands"
	PathMetrics      = "/metrics"
	PathHealth       = "/healthz"
)

// Server is the bridge HTTP server.
type Server struct {
	echo   *echo.Echo
	config Config
	logger *slog.Logger

	bridge    *bridge.Bridge
	hub       *notify.Hub
	simulator Simulator
	metrics   *observability.Metrics
	upgrader  websocket.Upgrader

	// Lifecycle management
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startTime time.Time
	stopOnce  sync.Once

	// streamMu orders stream registration against Shutdown's wg.Wait.
	streamMu sync.Mutex
	closing  bool
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger sets the structured logger for the server.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics exposes the Prometheus registry on /metrics.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithSimulator enables the simulator injection endpoints.
func WithSimulator(sim Simulator) ServerOption {
	return func(s *Server) {
		s.simulator = sim
	}
}

// New creates a server for b that streams notifications from hub.
func New(config Config, b *bridge.Bridge, hub *notify.Hub, opts ...ServerOption) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if b == nil || hub == nil {
		return nil, errors.New(errors.NewStd("server needs a bridge and a notification hub")).
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:    config,
		bridge:    b,
		hub:       hub,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logging.ForService("api")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = config.Debug
	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.logger.Info("HTTP server initialized",
		"listen", config.Listen,
		"simulator", s.simulator != nil,
		"metrics", s.metrics != nil)

	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.logger, mw.SkipPaths(PathHealth, PathMetrics)))

	securityConfig := mw.DefaultSecurityConfig()
	securityConfig.AllowedOrigins = s.config.AllowedOrigins

	s.echo.Use(mw.NewCORS(securityConfig))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewSecureHeaders(securityConfig))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.echo.GET(PathHealth, s.healthCheck)
	if s.metrics != nil {
		s.echo.GET(PathMetrics, echo.WrapHandler(s.metrics.Handler()))
	}

	s.echo.POST(PathCommand, s.handleCommand)
	s.echo.GET(PathEvents, s.handleEvents)
	s.echo.GET(PathRecentEvents, s.handleRecentEvents)

	if s.simulator != nil {
		s.echo.POST(PathSimHardware, s.handleSimHardware)
		s.echo.POST(PathSimGrant, s.handleSimGrant)
		s.echo.GET(PathSimCommands, s.handleSimCommands)
	}
}

// healthCheck handles the server health check endpoint.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)

	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"subscribers":    s.hub.Subscribers(),
		"methods":        s.bridge.Methods(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// trackStream registers a stream with the shutdown wait group. It reports
// false once Shutdown has begun.
func (s *Server) trackStream() bool {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(1)
	return true
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(s.config.Listen)
	}()
	s.logger.Info("HTTP server starting", "listen", s.config.Listen)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.cancel()
			return errors.New(fmt.Errorf("server error: %w", err)).
				Component("api").
				Category(errors.CategoryNetwork).
				Context("listen", s.config.Listen).
				Build()
		}
		return nil
	case <-ctx.Done():
	}

	err := s.Shutdown()
	<-errCh
	return err
}

// Shutdown ends every event stream and stops the HTTP server.
func (s *Server) Shutdown() error {
	var shutdownErr error
	s.stopOnce.Do(func() {
		s.streamMu.Lock()
		s.closing = true
		s.streamMu.Unlock()
		s.cancel()

		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := s.echo.Shutdown(ctx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = errors.New(fmt.Errorf("shutdown error: %w", err)).
				Component("api").
				Category(errors.CategoryNetwork).
				Build()
		}

		// Hijacked websocket connections are not covered by echo.Shutdown.
		s.wg.Wait()
		s.logger.Info("HTTP server shutdown complete")
	})
	return shutdownErr
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get(echo.HeaderOrigin)
	if origin == "" {
		return true
	}
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	s.logger.Warn("rejected websocket origin", "origin", origin)
	return false
}
