package capture

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tphakala/callctl/internal/errors"
	"github.com/tphakala/callctl/internal/logging"
	"github.com/tphakala/callctl/internal/notify"
	"github.com/tphakala/callctl/internal/observability/metrics"
)

const defaultDenyReason = "permission denied"

// Options configures a Manager.
type Options struct {
	Sink    notify.Sink
	Logger  *slog.Logger
	Metrics metrics.CaptureRecorder
}

// Manager owns the capture session state machine. All methods are safe for
// concurrent use; grant results arriving on a platform goroutine are
// serialized with user commands and checked against the pending token.
// Notifications are delivered after mu is released, in transition order,
// so a sink may call back into the manager.
type Manager struct {
	platform Platform
	sink     notify.Sink
	logger   *slog.Logger
	metrics  metrics.CaptureRecorder

	mu        sync.Mutex
	state     State
	lastToken Token
	pending   Token
	grant     *Grant
	resource  Resource
	outcome   Outcome

	outbox   []notification
	flushing bool
}

type notification struct {
	event   string
	payload map[string]any
}

// NewManager creates a manager in the Idle state.
func NewManager(platform Platform, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = logging.ForService("capture")
	}
	if logger == nil {
		logger = slog.Default()
	}

	sink := opts.Sink
	if sink == nil {
		sink = notify.Discard
	}

	var recorder metrics.CaptureRecorder = metrics.NoOpRecorder{}
	if opts.Metrics != nil {
		recorder = opts.Metrics
	}

	return &Manager{
		platform: platform,
		sink:     sink,
		logger:   logger,
		metrics:  recorder,
	}
}

// Supported reports whether the platform can capture the screen.
func (m *Manager) Supported() bool {
	return m.platform.Supported()
}

// RequestPermission asks the platform for a new grant and returns its token.
// Any pending request or unused grant is superseded; a running session is
// stopped first. The result arrives later through OnGrantResult.
func (m *Manager) RequestPermission() (Token, error) {
	if !m.platform.Supported() {
		m.metrics.RecordOperation(metrics.OpRequestPermission, metrics.StatusRejected)
		return 0, ErrUnsupported
	}

	m.mu.Lock()
	defer m.unlock()

	m.settleLocked()
	if m.state == StateActive {
		m.logger.Info("stopping active capture session before new permission request")
		m.stopLocked("superseded by new permission request")
	}

	m.lastToken++
	token := m.lastToken
	m.pending = token
	m.grant = nil
	m.transitionLocked(StatePermissionPending, "", token)

	if err := m.platform.RequestGrant(token); err != nil {
		m.pending = 0
		m.metrics.RecordOperation(metrics.OpRequestPermission, metrics.StatusError)
		m.metrics.RecordError(metrics.OpRequestPermission, string(errors.CategoryPlatform))
		m.transitionLocked(StateError, err.Error(), token)
		return 0, errors.New(fmt.Errorf("%w: %w", ErrPlatformRejected, err)).
			Component(ComponentCapture).
			Category(errors.CategoryPlatform).
			Context("operation", "request_grant").
			Build()
	}

	m.metrics.RecordOperation(metrics.OpRequestPermission, metrics.StatusSuccess)
	m.logger.Info("screen capture permission requested", "token", uint64(token))
	return token, nil
}

// OnGrantResult applies the platform's answer for token. It reports whether
// the result was applied; results for any token other than the pending one
// are discarded without a state change or notification.
func (m *Manager) OnGrantResult(token Token, result GrantResult) bool {
	m.mu.Lock()
	defer m.unlock()

	if m.state != StatePermissionPending || token == 0 || token != m.pending {
		m.metrics.RecordStaleGrantCallback()
		m.metrics.RecordOperation(metrics.OpGrantResult, metrics.StatusIgnored)
		m.logger.Debug("discarding stale grant result",
			"token", uint64(token),
			"pending", uint64(m.pending),
			"state", m.state.String())
		return false
	}

	m.pending = 0
	if result.Granted && result.Payload != nil {
		m.grant = &Grant{Token: token, Payload: result.Payload}
		m.metrics.RecordOperation(metrics.OpGrantResult, metrics.StatusSuccess)
		m.transitionLocked(StateGranted, "", token)
		return true
	}

	reason := result.Reason
	switch {
	case reason != "":
	case result.Granted:
		reason = "grant carried no capture data"
	default:
		reason = defaultDenyReason
	}
	m.metrics.RecordOperation(metrics.OpGrantResult, metrics.StatusRejected)
	m.transitionLocked(StateDenied, reason, token)
	return true
}

// Start consumes the current grant and acquires the capture resource.
// It fails with ErrNotAuthorized, without any state change, unless the
// session is Granted with an unconsumed grant.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.unlock()

	if m.state != StateGranted || m.grant == nil || m.grant.Consumed {
		m.metrics.RecordOperation(metrics.OpStartCapture, metrics.StatusRejected)
		m.metrics.RecordError(metrics.OpStartCapture, string(errors.CategoryAuthorization))
		return ErrNotAuthorized
	}

	start := time.Now()
	grant := m.grant
	resource, err := m.platform.Acquire(grant.Payload)
	if err != nil {
		// The grant is spent either way; a fresh request is required.
		m.grant = nil
		m.metrics.RecordOperation(metrics.OpStartCapture, metrics.StatusError)
		m.metrics.RecordError(metrics.OpStartCapture, string(errors.CategoryPlatform))
		m.transitionLocked(StateError, err.Error(), grant.Token)
		return errors.New(fmt.Errorf("%w: %w", ErrPlatformRejected, err)).
			Component(ComponentCapture).
			Category(errors.CategoryPlatform).
			Context("operation", "acquire_resource").
			Build()
	}

	grant.Consumed = true
	m.resource = resource
	m.metrics.RecordOperation(metrics.OpStartCapture, metrics.StatusSuccess)
	m.metrics.RecordDuration(metrics.OpStartCapture, time.Since(start).Seconds())
	m.transitionLocked(StateActive, "", grant.Token)
	m.logger.Info("screen capture started", "resource", resource.ID(), "token", uint64(grant.Token))
	return nil
}

// Stop ends the session from any state and leaves it Idle. It never fails.
// A pending permission request is abandoned; its eventual result is stale.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.unlock()

	m.stopLocked("stopped")
}

func (m *Manager) stopLocked(reason string) {
	switch m.state {
	case StateActive:
		m.releaseLocked()
		m.grant = nil
		m.metrics.RecordOperation(metrics.OpStopCapture, metrics.StatusSuccess)
		m.transitionLocked(StateIdle, reason, m.outcome.Token)
	case StateGranted:
		m.grant = nil
		m.transitionLocked(StateIdle, reason, m.outcome.Token)
	case StatePermissionPending:
		m.pending = 0
		m.transitionLocked(StateIdle, "permission request cancelled", m.outcome.Token)
	case StateDenied, StateError:
		m.settleLocked()
	case StateIdle:
	}
}

func (m *Manager) releaseLocked() {
	if m.resource == nil {
		return
	}
	id := m.resource.ID()
	if err := m.resource.Release(); err != nil {
		m.metrics.RecordError(metrics.OpReleaseResource, string(errors.CategoryPlatform))
		m.logger.Warn("failed to release capture resource", "resource", id, "error", err)
	} else {
		m.logger.Info("screen capture stopped", "resource", id)
	}
	m.resource = nil
}

// Acknowledge clears a Denied or Error outcome back to Idle.
func (m *Manager) Acknowledge() {
	m.mu.Lock()
	defer m.unlock()
	m.settleLocked()
}

// settleLocked performs the automatic Denied/Error to Idle reset.
func (m *Manager) settleLocked() {
	if m.state != StateDenied && m.state != StateError {
		return
	}
	reason := m.outcome.Reason
	m.transitionLocked(StateIdle, reason, m.outcome.Token)
	// Keep the failure reason visible through LastOutcome.
	m.outcome.Reason = reason
}

// QueryStatus reports whether a usable grant or session exists.
func (m *Manager) QueryStatus() Status {
	m.mu.Lock()
	defer m.unlock()

	m.settleLocked()
	return Status{
		HasPermission: m.state == StateGranted || m.state == StateActive,
		IsActive:      m.state == StateActive,
	}
}

// Session returns a snapshot of the session.
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.unlock()

	m.settleLocked()
	s := Session{State: m.state, PendingToken: m.pending}
	if m.grant != nil {
		g := *m.grant
		s.Grant = &g
	}
	if m.resource != nil {
		s.ResourceID = m.resource.ID()
	}
	return s
}

// State returns the raw state without applying the automatic reset.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.unlock()
	return m.state
}

// LastOutcome returns the most recent state change with its reason.
func (m *Manager) LastOutcome() Outcome {
	m.mu.Lock()
	defer m.unlock()
	return m.outcome
}

// Close stops any session; used at process teardown.
func (m *Manager) Close() {
	m.Stop()
}

// transitionLocked moves to next and emits screenCaptureStateChanged.
func (m *Manager) transitionLocked(next State, reason string, token Token) {
	prev := m.state
	m.state = next
	m.outcome = Outcome{State: next, Reason: reason, Token: token}

	m.metrics.RecordCaptureTransition(prev.String(), next.String())
	m.logger.Debug("capture state changed",
		"from", prev.String(),
		"to", next.String(),
		"reason", reason,
		"token", uint64(token))

	payload := map[string]any{"state": next.String()}
	if reason != "" {
		payload["reason"] = reason
	}
	if token != 0 {
		payload["token"] = uint64(token)
	}
	m.outbox = append(m.outbox, notification{event: notify.EventScreenCaptureStateChanged, payload: payload})
}

// unlock releases mu and delivers queued notifications. Only one caller
// flushes at a time; notifications queued meanwhile, including those from a
// re-entrant sink, are picked up by the active flusher.
func (m *Manager) unlock() {
	if m.flushing || len(m.outbox) == 0 {
		m.mu.Unlock()
		return
	}

	m.flushing = true
	defer func() {
		m.flushing = false
		m.mu.Unlock()
	}()
	for len(m.outbox) > 0 {
		batch := m.outbox
		m.outbox = nil
		m.deliver(batch)
	}
}

// deliver publishes batch with mu released and reacquires it on return.
func (m *Manager) deliver(batch []notification) {
	m.mu.Unlock()
	defer m.mu.Lock()
	for _, n := range batch {
		m.sink.Notify(n.event, n.payload)
	}
}
