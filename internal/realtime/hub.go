package realtime

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const defaultSubscriberBuffer = 64

type HubStats struct {
	Subscribers int   `json:"subscribers"`
	Published   int64 `json:"published"`
	Dropped     int64 `json:"dropped"`
}

// Hub fans events out to subscriptions. A full subscriber loses the event
// instead of blocking the publisher and is sent one KindReconnected so it
// can refetch what it missed.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]*Subscription
	buffer int
	closed bool

	published atomic.Int64
	dropped   atomic.Int64
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{
		subs:   make(map[string]*Subscription),
		buffer: buffer,
	}
}

type Subscription struct {
	id   string
	ch   chan Event
	hub  *Hub
	once sync.Once

	// lagged is set while a resync event is queued behind dropped events.
	// Guarded by hub.mu.
	lagged bool
}

func (s *Subscription) ID() string { return s.id }

// C is closed after Close or after the hub ends the session.
func (s *Subscription) C() <-chan Event { return s.ch }

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s.id)
	})
}

func (h *Hub) Subscribe() *Subscription {
	// one slot past buffer is kept for the resync event
	s := &Subscription{
		id:  uuid.NewString(),
		ch:  make(chan Event, h.buffer+1),
		hub: h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.ch)
		return s
	}
	h.subs[s.id] = s
	return s
}

func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	h.published.Add(1)

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.subs {
		// only the hub sends, so len can only shrink behind our back
		if len(s.ch) < h.buffer {
			s.ch <- ev
			s.lagged = false
			continue
		}
		h.dropped.Add(1)
		slog.Warn("realtime subscriber is full, event dropped", "subscription", id, "kind", string(ev.Kind))
		if !s.lagged && len(s.ch) < cap(s.ch) {
			s.ch <- Event{Kind: KindReconnected, At: ev.At}
			s.lagged = true
		}
	}
}

// Close delivers KindSessionEnded to every subscription and closes them.
// Later Subscribe calls get an already closed subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	end := Event{Kind: KindSessionEnded, At: time.Now()}
	for id, s := range h.subs {
		select {
		case s.ch <- end:
		default:
		}
		close(s.ch)
		delete(h.subs, id)
	}
}

func (h *Hub) Stats() HubStats {
	h.mu.Lock()
	n := len(h.subs)
	h.mu.Unlock()
	return HubStats{
		Subscribers: n,
		Published:   h.published.Load(),
		Dropped:     h.dropped.Load(),
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(s.ch)
}
