package notify

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/tphakala/callctl/internal/errors"
	"github.com/tphakala/callctl/internal/logging"
	"github.com/tphakala/callctl/internal/observability/metrics"
)

const (
	defaultBufferSize  = 64
	defaultHistorySize = 128
)

var (
	// ErrSlowSubscriber closes a subscription whose buffer filled up.
	ErrSlowSubscriber = errors.New(errors.NewStd("subscriber fell behind and was disconnected")).
				Component("notify").
				Category(errors.CategoryBroadcast).
				Build()

	// ErrHubClosed is returned by Subscribe after Close.
	ErrHubClosed = errors.New(errors.NewStd("notification hub closed")).
			Component("notify").
			Category(errors.CategoryState).
			Build()
)

// Event is one published notification.
type Event struct {
	Seq     uint64         `json:"seq"`
	Name    string         `json:"event"`
	Payload map[string]any `json:"payload"`
	Time    time.Time      `json:"time"`
}

// HubOptions configures a Hub.
type HubOptions struct {
	BufferSize  int // per-subscriber channel capacity
	HistorySize int // events kept for Recent
	Logger      *slog.Logger
	Metrics     metrics.NotificationRecorder
}

// Hub is a Sink that fans notifications out to subscribers in publish order.
// A subscriber that cannot keep up is disconnected rather than skipped.
type Hub struct {
	bufferSize int
	logger     *slog.Logger
	metrics    metrics.NotificationRecorder

	subs *xsync.MapOf[string, *Subscription]

	mu      sync.Mutex // serializes publishing, history and subscription teardown
	seq     uint64
	history []Event
	histCap int
	closed  bool
}

// NewHub creates a hub.
func NewHub(opts HubOptions) *Hub {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = defaultHistorySize
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.ForService("notify")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var recorder metrics.NotificationRecorder = metrics.NoOpRecorder{}
	if opts.Metrics != nil {
		recorder = opts.Metrics
	}

	return &Hub{
		bufferSize: opts.BufferSize,
		logger:     logger,
		metrics:    recorder,
		subs:       xsync.NewMapOf[string, *Subscription](),
		history:    make([]Event, 0, opts.HistorySize),
		histCap:    opts.HistorySize,
	}
}

// Notify implements Sink.
func (h *Hub) Notify(event string, payload map[string]any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.seq++
	ev := Event{
		Seq:     h.seq,
		Name:    event,
		Payload: maps.Clone(payload),
		Time:    time.Now(),
	}

	if len(h.history) == h.histCap {
		copy(h.history, h.history[1:])
		h.history = h.history[:len(h.history)-1]
	}
	h.history = append(h.history, ev)

	h.metrics.RecordNotification(event)

	h.subs.Range(func(id string, sub *Subscription) bool {
		select {
		case sub.ch <- ev:
		default:
			h.logger.Warn("disconnecting slow subscriber", "subscriber", id, "buffer", h.bufferSize)
			h.removeLocked(sub, ErrSlowSubscriber)
			h.metrics.RecordSubscriberDropped("overflow")
		}
		return true
	})
}

// Subscribe registers a subscriber that receives every event published from
// now on. The subscription ends when ctx is done, Close is called, or the
// subscriber falls behind.
func (h *Hub) Subscribe(ctx context.Context) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	sub := &Subscription{
		id:   uuid.NewString(),
		ch:   make(chan Event, h.bufferSize),
		done: make(chan struct{}),
		hub:  h,
	}
	h.subs.Store(sub.id, sub)
	h.metrics.SetSubscribers(h.subs.Size())
	h.logger.Debug("subscriber added", "subscriber", sub.id)

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// Recent returns up to n of the most recently published events, oldest first.
func (h *Hub) Recent(n int) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n <= 0 || n > len(h.history) {
		n = len(h.history)
	}
	out := make([]Event, n)
	copy(out, h.history[len(h.history)-n:])
	return out
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	return h.subs.Size()
}

// Close disconnects every subscriber. Later notifications are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	h.subs.Range(func(_ string, sub *Subscription) bool {
		h.removeLocked(sub, nil)
		return true
	})
}

// removeLocked ends sub. Must be called with h.mu held.
func (h *Hub) removeLocked(sub *Subscription, reason error) {
	if _, ok := h.subs.LoadAndDelete(sub.id); !ok {
		return
	}
	sub.err = reason
	close(sub.ch)
	close(sub.done)
	h.metrics.SetSubscribers(h.subs.Size())
}

// Subscription is one subscriber's ordered event stream.
type Subscription struct {
	id   string
	ch   chan Event
	done chan struct{}
	hub  *Hub
	err  error // set before ch is closed
}

// ID returns the subscriber id.
func (s *Subscription) ID() string { return s.id }

// Events returns the event channel. It is closed when the subscription ends.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err reports why the subscription ended: ErrSlowSubscriber after an
// overflow, nil otherwise. Only meaningful after Events is closed.
func (s *Subscription) Err() error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.err
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.removeLocked(s, nil)
}

var _ Sink = (*Hub)(nil)
