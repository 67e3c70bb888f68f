// Package events provides an in-process per-place publish/subscribe hub.
// Job lifecycle and progress events fan out through it to SSE subscribers.
package events

import (
	"log/slog"
	"sync"

	"github.com/nineylabs/placefeed/internal/models"
)

const subscriberBuffer = 64

// Subscription is a live feed of events for one place. Close it with the
// cancel function returned by Subscribe when the consumer goes away.
type Subscription struct {
	C       <-chan models.Event
	PlaceID string

	id int
	ch chan models.Event
}

// Hub fans events out to per-place subscribers. Publish never blocks: a
// subscriber whose buffer is full misses the event and relies on the
// current_state snapshot it gets on reconnect.
type Hub struct {
	mu     sync.RWMutex
	logger *slog.Logger
	nextID int
	subs   map[string]map[int]*Subscription
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger.With("component", "events"),
		subs:   make(map[string]map[int]*Subscription),
	}
}

// Subscribe registers a new subscriber for the place. The returned cancel
// function removes the subscription and closes its channel; it is safe to
// call more than once.
func (h *Hub) Subscribe(placeID string) (*Subscription, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		PlaceID: placeID,
		id:      h.nextID,
		ch:      make(chan models.Event, subscriberBuffer),
	}
	sub.C = sub.ch

	if h.subs[placeID] == nil {
		h.subs[placeID] = make(map[int]*Subscription)
	}
	h.subs[placeID][sub.id] = sub

	h.logger.Debug("subscriber added", "place_id", placeID, "subscribers", len(h.subs[placeID]))

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.unsubscribe(sub)
		})
	}
	return sub, cancel
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if m := h.subs[sub.PlaceID]; m != nil {
		delete(m, sub.id)
		if len(m) == 0 {
			delete(h.subs, sub.PlaceID)
		}
	}
	close(sub.ch)
}

// Publish delivers an event to every subscriber of its place. Delivery order
// matches publish order for each subscriber that keeps up.
func (h *Hub) Publish(event models.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs[event.PlaceID] {
		select {
		case sub.ch <- event:
		default:
			h.logger.Warn("subscriber buffer full, dropping event",
				"place_id", event.PlaceID, "event", event.Name)
		}
	}
}

// SubscriberCount reports how many subscribers a place currently has.
func (h *Hub) SubscriberCount(placeID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[placeID])
}
