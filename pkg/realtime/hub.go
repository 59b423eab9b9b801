package realtime

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const subscriptionBuffer = 16

// Subscription receives events for a single stream client.
type Subscription struct {
	ID      string
	UserID  string
	C       <-chan ChangeEvent
	out     chan ChangeEvent
	admin   bool
	tables  map[string]bool
	hub     *Hub
	closeMu sync.Once
}

// Close detaches the subscription from the hub and closes its channel.
func (s *Subscription) Close() {
	s.closeMu.Do(func() {
		s.hub.remove(s)
	})
}

func (s *Subscription) wants(event ChangeEvent) bool {
	if len(s.tables) > 0 && !s.tables[event.Table] {
		return false
	}
	return s.admin || event.visibleTo(s.UserID)
}

// Hub dispatches change events to local subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subs: make(map[string]*Subscription), logger: logger.Named("realtime_hub")}
}

// Subscribe registers a client. An empty table list means every table.
func (h *Hub) Subscribe(userID string, admin bool, tables ...string) *Subscription {
	out := make(chan ChangeEvent, subscriptionBuffer)
	sub := &Subscription{
		ID:     uuid.NewString(),
		UserID: userID,
		C:      out,
		out:    out,
		admin:  admin,
		tables: make(map[string]bool, len(tables)),
		hub:    h,
	}
	for _, t := range tables {
		if t != "" {
			sub.tables[t] = true
		}
	}
	h.mu.Lock()
	h.subs[sub.ID] = sub
	h.mu.Unlock()
	h.logger.Debug("subscribed", zap.String("subscription_id", sub.ID), zap.String("user_id", userID))
	return sub
}

// Broadcast delivers event to every subscriber allowed to see it. Slow consumers drop
// events instead of blocking the publisher.
func (h *Hub) Broadcast(event ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !sub.wants(event) {
			continue
		}
		select {
		case sub.out <- event:
		default:
			h.logger.Warn("dropping change event; subscriber buffer full", zap.String("subscription_id", sub.ID), zap.String("table", event.Table))
		}
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	delete(h.subs, sub.ID)
	h.mu.Unlock()
	close(sub.out)
}
