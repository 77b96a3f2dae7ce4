package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/frahmantamala/attendance-management/internal"
	"github.com/frahmantamala/attendance-management/internal/attendance"
	"github.com/frahmantamala/attendance-management/internal/core/events"
)

// ErrFeedUnavailable is returned by Subscribe while the hub is closed or
// its upstream relay is down.
var ErrFeedUnavailable = internal.ErrStorageUnavailable

const DefaultBuffer = 64

// Filter narrows a subscription. Nil fields match everything.
type Filter struct {
	UserID     *int64 `json:"userId,omitempty"`
	EmployeeID *int64 `json:"employeeId,omitempty"`
}

func (f Filter) Match(ev *attendance.Event) bool {
	if f.UserID != nil && ev.UserID != *f.UserID {
		return false
	}
	if f.EmployeeID != nil && (ev.EmployeeID == nil || *ev.EmployeeID != *f.EmployeeID) {
		return false
	}
	return true
}

// Subscription receives events from "now" on. Delivery is best-effort:
// when the buffer is full the event is dropped for this subscriber only.
type Subscription struct {
	id     uint64
	filter Filter
	ch     chan *attendance.Event
	done   chan struct{}
	hub    *Hub
	once   sync.Once
	err    error
}

func (s *Subscription) Events() <-chan *attendance.Event { return s.ch }

// Done is closed when the subscription ends; Err tells why.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *Subscription) Filter() Filter { return s.filter }

func (s *Subscription) Close() {
	s.hub.remove(s.id)
	s.end(nil)
}

func (s *Subscription) end(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}

// Hub fans attendance events out to live subscribers. Broadcast never
// blocks on a slow reader.
type Hub struct {
	mu        sync.RWMutex
	subs      map[uint64]*Subscription
	nextID    uint64
	buffer    int
	closed    bool
	available atomic.Bool
	dropped   atomic.Int64
	logger    *slog.Logger
}

func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	h := &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
		logger: logger,
	}
	h.available.Store(true)
	return h
}

func (h *Hub) Subscribe(f Filter) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || !h.available.Load() {
		return nil, ErrFeedUnavailable
	}

	h.nextID++
	s := &Subscription{
		id:     h.nextID,
		filter: f,
		ch:     make(chan *attendance.Event, h.buffer),
		done:   make(chan struct{}),
		hub:    h,
	}
	h.subs[s.id] = s
	h.logger.Debug("feed subscriber added", "subscription_id", s.id, "subscribers", len(h.subs))
	return s, nil
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Broadcast delivers ev to every matching subscriber and returns how many
// received it.
func (h *Hub) Broadcast(ev *attendance.Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, s := range h.subs {
		if !s.filter.Match(ev) {
			continue
		}
		select {
		case s.ch <- ev:
			delivered++
		default:
			n := h.dropped.Add(1)
			h.logger.Warn("feed subscriber too slow, event dropped",
				"subscription_id", s.id,
				"event_id", ev.ID,
				"dropped_total", n)
		}
	}
	return delivered
}

// HandleEvent adapts Broadcast to an events.Handler for the in-process bus.
func (h *Hub) HandleEvent(_ context.Context, e events.Event) error {
	ev, ok := e.(*attendance.Event)
	if !ok {
		return fmt.Errorf("feed: unexpected event type %T", e)
	}
	if h.isClosed() {
		return ErrFeedUnavailable
	}
	h.Broadcast(ev)
	return nil
}

// Deliver is the poller sink form of Broadcast.
func (h *Hub) Deliver(_ context.Context, ev *attendance.Event) error {
	h.Broadcast(ev)
	return nil
}

// SetAvailable records the upstream relay state. Going unavailable ends
// every current subscription with ErrFeedUnavailable so clients are told
// instead of silently starving.
func (h *Hub) SetAvailable(ok bool) {
	if h.available.Swap(ok) == ok {
		return
	}
	if ok {
		h.logger.Info("live feed available")
		return
	}
	h.logger.Warn("live feed unavailable, ending subscriptions")
	h.endAll(ErrFeedUnavailable)
}

func (h *Hub) Available() bool {
	return h.available.Load() && !h.isClosed()
}

func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.endAll(ErrFeedUnavailable)
}

func (h *Hub) endAll(err error) {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[uint64]*Subscription)
	h.mu.Unlock()

	for _, s := range subs {
		s.end(err)
	}
}

func (h *Hub) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// IsUnavailable reports whether err means the feed could not be joined.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrFeedUnavailable)
}
