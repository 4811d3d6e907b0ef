package capture

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/callctl/internal/errors"
	"github.com/tphakala/callctl/internal/notify"
)

type fakeResource struct {
	id         string
	released   int
	releaseErr error
}

func (r *fakeResource) ID() string { return r.id }
func (r *fakeResource) Release() error {
	r.released++
	return r.releaseErr
}

// fakePlatform records grant requests; tests deliver results explicitly.
type fakePlatform struct {
	unsupported bool
	requestErr  error
	acquireErr  error
	requested   []Token
	acquired    []*fakeResource
}

func (p *fakePlatform) Supported() bool { return !p.unsupported }

func (p *fakePlatform) RequestGrant(token Token) error {
	if p.requestErr != nil {
		return p.requestErr
	}
	p.requested = append(p.requested, token)
	return nil
}

func (p *fakePlatform) Acquire(payload Payload) (Resource, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	r := &fakeResource{id: fmt.Sprintf("res-%d", len(p.acquired)+1)}
	p.acquired = append(p.acquired, r)
	return r, nil
}

type recordingSink struct {
	mu     sync.Mutex
	states []string
}

func (s *recordingSink) Notify(event string, payload map[string]any) {
	if event != notify.EventScreenCaptureStateChanged {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, payload["state"].(string))
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

func newManager() (*Manager, *fakePlatform, *recordingSink) {
	p := &fakePlatform{}
	sink := &recordingSink{}
	return NewManager(p, Options{Sink: sink}), p, sink
}

var granted = GrantResult{Granted: true, Payload: "projection-intent"}

// drive puts a fresh manager into the requested state.
func drive(t *testing.T, target State) (*Manager, *fakePlatform, *recordingSink) {
	t.Helper()
	m, p, sink := newManager()

	switch target {
	case StateIdle:
	case StatePermissionPending:
		_, err := m.RequestPermission()
		require.NoError(t, err)
	case StateGranted:
		tok, err := m.RequestPermission()
		require.NoError(t, err)
		require.True(t, m.OnGrantResult(tok, granted))
	case StateActive:
		tok, err := m.RequestPermission()
		require.NoError(t, err)
		require.True(t, m.OnGrantResult(tok, granted))
		require.NoError(t, m.Start())
	case StateDenied:
		tok, err := m.RequestPermission()
		require.NoError(t, err)
		require.True(t, m.OnGrantResult(tok, GrantResult{Reason: "user cancelled"}))
	case StateError:
		tok, err := m.RequestPermission()
		require.NoError(t, err)
		require.True(t, m.OnGrantResult(tok, granted))
		p.acquireErr = fmt.Errorf("projection revoked")
		require.Error(t, m.Start())
		p.acquireErr = nil
	}
	require.Equal(t, target, m.State())
	return m, p, sink
}

func TestTokensStartAtOneAndIncrease(t *testing.T) {
	m, p, _ := newManager()

	t1, err := m.RequestPermission()
	require.NoError(t, err)
	t2, err := m.RequestPermission()
	require.NoError(t, err)

	assert.Equal(t, Token(1), t1)
	assert.Equal(t, Token(2), t2)
	assert.Equal(t, []Token{1, 2}, p.requested)
}

func TestHappyPath(t *testing.T) {
	m, p, sink := newManager()

	tok, err := m.RequestPermission()
	require.NoError(t, err)
	assert.Equal(t, Status{}, m.QueryStatus())

	require.True(t, m.OnGrantResult(tok, granted))
	assert.Equal(t, Status{HasPermission: true}, m.QueryStatus())

	require.NoError(t, m.Start())
	assert.Equal(t, Status{HasPermission: true, IsActive: true}, m.QueryStatus())

	s := m.Session()
	require.NotNil(t, s.Grant)
	assert.True(t, s.Grant.Consumed)
	assert.Equal(t, "res-1", s.ResourceID)

	m.Stop()
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, 1, p.acquired[0].released)
	assert.Equal(t, []string{"permissionPending", "granted", "active", "idle"}, sink.states)
}

func TestRapidDoubleRequest(t *testing.T) {
	m, _, sink := newManager()

	t1, err := m.RequestPermission()
	require.NoError(t, err)
	t2, err := m.RequestPermission()
	require.NoError(t, err)
	before := sink.count()

	assert.False(t, m.OnGrantResult(t1, granted))
	assert.Equal(t, StatePermissionPending, m.State())
	assert.Equal(t, t2, m.Session().PendingToken)
	assert.Equal(t, before, sink.count(), "stale callback must not notify")

	assert.True(t, m.OnGrantResult(t2, granted))
	assert.Equal(t, StateGranted, m.State())
}

func TestDenyThenLateGrantIsIgnored(t *testing.T) {
	m, _, _ := newManager()

	t1, err := m.RequestPermission()
	require.NoError(t, err)
	require.True(t, m.OnGrantResult(t1, GrantResult{Granted: false}))
	assert.Equal(t, StateDenied, m.State())

	assert.Equal(t, Status{}, m.QueryStatus())
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, defaultDenyReason, m.LastOutcome().Reason)

	assert.False(t, m.OnGrantResult(t1, granted))
	assert.Equal(t, StateIdle, m.State())
}

func TestGrantWithoutPayloadIsDenied(t *testing.T) {
	m, _, _ := newManager()

	tok, err := m.RequestPermission()
	require.NoError(t, err)
	require.True(t, m.OnGrantResult(tok, GrantResult{Granted: true}))

	assert.Equal(t, StateDenied, m.State())
	assert.Equal(t, "grant carried no capture data", m.LastOutcome().Reason)
}

func TestStaleCallbackNeverChangesState(t *testing.T) {
	for _, state := range []State{StateIdle, StatePermissionPending, StateGranted, StateActive, StateDenied, StateError} {
		t.Run(state.String(), func(t *testing.T) {
			m, _, sink := drive(t, state)
			before := sink.count()

			assert.False(t, m.OnGrantResult(99, granted))
			assert.False(t, m.OnGrantResult(0, granted))
			assert.Equal(t, state, m.State())
			assert.Equal(t, before, sink.count())
		})
	}
}

func TestStartRequiresGranted(t *testing.T) {
	for _, state := range []State{StateIdle, StatePermissionPending, StateActive, StateDenied, StateError} {
		t.Run(state.String(), func(t *testing.T) {
			m, _, sink := drive(t, state)
			before := sink.count()

			err := m.Start()
			require.ErrorIs(t, err, ErrNotAuthorized)
			assert.True(t, errors.IsCategory(err, errors.CategoryAuthorization))
			assert.Equal(t, state, m.State(), "failed start must not mutate the session")
			assert.Equal(t, before, sink.count())
		})
	}
}

func TestConsumedGrantCannotStartTwice(t *testing.T) {
	m, _, _ := drive(t, StateActive)

	m.Stop()
	assert.ErrorIs(t, m.Start(), ErrNotAuthorized)

	tok, err := m.RequestPermission()
	require.NoError(t, err)
	require.True(t, m.OnGrantResult(tok, granted))
	assert.NoError(t, m.Start())
}

func TestStopIsIdempotentFromEveryState(t *testing.T) {
	for _, state := range []State{StateIdle, StatePermissionPending, StateGranted, StateActive, StateDenied, StateError} {
		t.Run(state.String(), func(t *testing.T) {
			m, _, _ := drive(t, state)

			m.Stop()
			assert.Equal(t, StateIdle, m.State())
			m.Stop()
			assert.Equal(t, StateIdle, m.State())
			assert.Equal(t, Status{}, m.QueryStatus())
		})
	}
}

func TestStopWhilePendingMakesLateGrantStale(t *testing.T) {
	m, _, _ := drive(t, StatePermissionPending)

	m.Stop()
	assert.False(t, m.OnGrantResult(1, granted))
	assert.Equal(t, StateIdle, m.State())
}

func TestRequestWhileGrantedSupersedesGrant(t *testing.T) {
	m, _, _ := drive(t, StateGranted)

	tok, err := m.RequestPermission()
	require.NoError(t, err)
	assert.Equal(t, Token(2), tok)
	assert.Equal(t, StatePermissionPending, m.State())
	assert.Nil(t, m.Session().Grant)
	assert.ErrorIs(t, m.Start(), ErrNotAuthorized)
}

func TestRequestWhileActiveStopsSessionFirst(t *testing.T) {
	m, p, _ := drive(t, StateActive)

	_, err := m.RequestPermission()
	require.NoError(t, err)

	assert.Equal(t, 1, p.acquired[0].released)
	assert.Equal(t, StatePermissionPending, m.State())
	assert.Empty(t, m.Session().ResourceID)
}

func TestAcquireFailureGoesToErrorThenIdle(t *testing.T) {
	m, _, sink := drive(t, StateError)

	assert.Contains(t, m.LastOutcome().Reason, "projection revoked")
	m.Acknowledge()
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, "idle", sink.states[len(sink.states)-1])
	assert.ErrorIs(t, m.Start(), ErrNotAuthorized)
}

func TestAcquireFailureReturnsPlatformRejected(t *testing.T) {
	m, p, _ := drive(t, StateGranted)
	p.acquireErr = fmt.Errorf("media projection busy")

	err := m.Start()
	require.ErrorIs(t, err, ErrPlatformRejected)
	assert.True(t, errors.IsCategory(err, errors.CategoryPlatform))
	assert.Equal(t, StateError, m.State())
}

func TestRequestGrantFailure(t *testing.T) {
	m, p, _ := newManager()
	p.requestErr = fmt.Errorf("activity not attached")

	tok, err := m.RequestPermission()
	require.ErrorIs(t, err, ErrPlatformRejected)
	assert.Zero(t, tok)
	assert.Equal(t, StateError, m.State())
	assert.False(t, m.OnGrantResult(1, granted))
}

func TestUnsupportedPlatform(t *testing.T) {
	m, p, sink := newManager()
	p.unsupported = true

	_, err := m.RequestPermission()
	require.ErrorIs(t, err, ErrUnsupported)
	assert.False(t, m.Supported())
	assert.Equal(t, StateIdle, m.State())
	assert.Zero(t, sink.count())
}

func TestReleaseFailureStillStops(t *testing.T) {
	m, p, _ := drive(t, StateActive)
	p.acquired[0].releaseErr = fmt.Errorf("already released")

	m.Stop()
	assert.Equal(t, StateIdle, m.State())
}

func TestCloseReleasesResource(t *testing.T) {
	m, p, _ := drive(t, StateActive)
	m.Close()
	assert.Equal(t, 1, p.acquired[0].released)
}

func TestRandomOperationSequences(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	m, p, sink := newManager()

	for range 2000 {
		before := m.State()
		notes := sink.count()

		switch rng.IntN(5) {
		case 0:
			_, err := m.RequestPermission()
			require.NoError(t, err)
			assert.Equal(t, StatePermissionPending, m.State())
		case 1:
			tok := Token(rng.Uint64N(uint64(len(p.requested)) + 2))
			pending := m.Session().PendingToken
			before = m.State()
			notes = sink.count()
			applied := m.OnGrantResult(tok, GrantResult{Granted: rng.IntN(2) == 0, Payload: "p"})
			if pending == 0 || tok != pending {
				assert.False(t, applied)
				assert.Equal(t, before, m.State())
				assert.Equal(t, notes, sink.count())
			} else {
				assert.True(t, applied)
			}
		case 2:
			err := m.Start()
			if before == StateGranted {
				assert.NoError(t, err)
				assert.Equal(t, StateActive, m.State())
			} else {
				assert.ErrorIs(t, err, ErrNotAuthorized)
				assert.Equal(t, before, m.State())
			}
		case 3:
			m.Stop()
			assert.Equal(t, StateIdle, m.State())
		case 4:
			status := m.QueryStatus()
			state := m.State()
			assert.NotEqual(t, StateDenied, state)
			assert.NotEqual(t, StateError, state)
			assert.Equal(t, state == StateGranted || state == StateActive, status.HasPermission)
			assert.Equal(t, state == StateActive, status.IsActive)
		}
	}

	live := 0
	for _, r := range p.acquired {
		if r.released == 0 {
			live++
		}
	}
	assert.LessOrEqual(t, live, 1, "at most one capture resource may be live")
}

func TestConcurrentGrantDelivery(t *testing.T) {
	m, _, _ := newManager()

	var tokens []Token
	for range 5 {
		tok, err := m.RequestPermission()
		require.NoError(t, err)
		tokens = append(tokens, tok)
	}

	var wg sync.WaitGroup
	results := make([]bool, len(tokens))
	for i, tok := range tokens {
		wg.Go(func() {
			results[i] = m.OnGrantResult(tok, granted)
		})
	}
	wg.Wait()

	assert.Equal(t, []bool{false, false, false, false, true}, results)
	assert.Equal(t, StateGranted, m.State())
}

func TestSinkMayCallBackIntoManager(t *testing.T) {
	p := &fakePlatform{}
	var m *Manager
	var seen []Status
	var states []string
	m = NewManager(p, Options{Sink: notify.SinkFunc(func(event string, payload map[string]any) {
		states = append(states, payload["state"].(string))
		seen = append(seen, m.QueryStatus())
	})})

	done := make(chan struct{})
	go func() {
		defer close(done)
		tok, err := m.RequestPermission()
		assert.NoError(t, err)
		assert.True(t, m.OnGrantResult(tok, granted))
		assert.NoError(t, m.Start())
		m.Stop()
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("manager blocked while a notification was being delivered")
	}

	assert.Equal(t, []string{
		StatePermissionPending.String(),
		StateGranted.String(),
		StateActive.String(),
		StateIdle.String(),
	}, states)
	assert.Equal(t, []Status{
		{},
		{HasPermission: true},
		{HasPermission: true, IsActive: true},
		{},
	}, seen)
}

func TestReentrantTransitionsKeepOrder(t *testing.T) {
	p := &fakePlatform{}
	var m *Manager
	var states []string
	m = NewManager(p, Options{Sink: notify.SinkFunc(func(event string, payload map[string]any) {
		state := payload["state"].(string)
		states = append(states, state)
		if state == StateDenied.String() {
			// Settles Denied to Idle from inside the delivery.
			m.Acknowledge()
		}
	})})

	tok, err := m.RequestPermission()
	require.NoError(t, err)
	require.True(t, m.OnGrantResult(tok, GrantResult{Reason: "user cancelled"}))

	assert.Equal(t, []string{
		StatePermissionPending.String(),
		StateDenied.String(),
		StateIdle.String(),
	}, states)
	assert.Equal(t, StateIdle, m.State())
}
