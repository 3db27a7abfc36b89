package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/sillsdev/silauto-backend/internal/platform/logger"
)

const outboundBuffer = 16

type Subscriber struct {
	ID       uuid.UUID
	Outbound chan TaskEvent
	done     chan struct{}
}

// Done is closed once the subscriber has been removed from the hub.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Hub fans task events out to the open event streams of this process.
type Hub struct {
	mu     sync.RWMutex
	log    *logger.Logger
	subs   map[*Subscriber]bool
	closed bool
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:  log.With("component", "TaskEventHub"),
		subs: make(map[*Subscriber]bool),
	}
}

func (h *Hub) Subscribe() *Subscriber {
	s := &Subscriber{
		ID:       uuid.New(),
		Outbound: make(chan TaskEvent, outboundBuffer),
		done:     make(chan struct{}),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.done)
		close(s.Outbound)
		return s
	}
	h.subs[s] = true
	h.log.Debug("event subscriber added", "subscriberID", s.ID, "subscribers", len(h.subs))
	return s
}

func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.subs[s] {
		return
	}
	delete(h.subs, s)
	close(s.done)
	close(s.Outbound)
	h.log.Debug("event subscriber removed", "subscriberID", s.ID, "subscribers", len(h.subs))
}

// Broadcast never blocks; a subscriber with a full buffer misses the event.
func (h *Hub) Broadcast(ev TaskEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		select {
		case s.Outbound <- ev:
		default:
			h.log.Warn("dropping task event; outbound buffer full", "subscriberID", s.ID, "event", ev.Event)
		}
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close drops every subscriber. Later subscriptions are closed immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		close(s.done)
		close(s.Outbound)
	}
	h.subs = make(map[*Subscriber]bool)
	h.closed = true
}
