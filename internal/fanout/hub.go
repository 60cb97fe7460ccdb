package fanout

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Quint4n4/MenuInteractivo/internal/metrics"
)

// Subscriber is one live connection. Send must not block; it returns
// false when the message could not be queued.
type Subscriber interface {
	ID() string
	Send(payload []byte) bool
}

// Hub is the registry of live subscribers keyed by group. Membership only
// changes on connect and disconnect and is never persisted.
type Hub struct {
	mu      sync.RWMutex
	groups  map[string]map[Subscriber]struct{}
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewHub(logger *zap.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		groups:  make(map[string]map[Subscriber]struct{}),
		logger:  logger,
		metrics: m,
	}
}

func (h *Hub) Subscribe(group string, sub Subscriber) {
	h.mu.Lock()
	members, ok := h.groups[group]
	if !ok {
		members = make(map[Subscriber]struct{})
		h.groups[group] = members
	}
	_, dup := members[sub]
	members[sub] = struct{}{}
	h.mu.Unlock()

	if !dup && h.metrics != nil {
		h.metrics.Subscribers.WithLabelValues(Audience(group)).Inc()
	}
	h.logger.Debug("subscriber joined", zap.String("group", group), zap.String("subscriber", sub.ID()))
}

func (h *Hub) Unsubscribe(group string, sub Subscriber) {
	h.mu.Lock()
	members := h.groups[group]
	_, ok := members[sub]
	if ok {
		delete(members, sub)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	h.mu.Unlock()

	if ok && h.metrics != nil {
		h.metrics.Subscribers.WithLabelValues(Audience(group)).Dec()
	}
	h.logger.Debug("subscriber left", zap.String("group", group), zap.String("subscriber", sub.ID()))
}

// Publish encodes e and broadcasts it to the group's current members. It
// satisfies Publisher so a single process can fan out without a broker.
func (h *Hub) Publish(_ context.Context, group string, e Event) error {
	payload, err := Encode(e)
	if err != nil {
		return err
	}
	h.Broadcast(group, payload)
	return nil
}

// Broadcast hands payload to every member and returns how many accepted
// it. A member whose buffer is full misses this message only.
func (h *Hub) Broadcast(group string, payload []byte) int {
	h.mu.RLock()
	members := make([]Subscriber, 0, len(h.groups[group]))
	for sub := range h.groups[group] {
		members = append(members, sub)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, sub := range members {
		if sub.Send(payload) {
			delivered++
			continue
		}
		if h.metrics != nil {
			h.metrics.FanoutDropped.WithLabelValues("subscriber").Inc()
		}
		h.logger.Warn("dropped message for slow subscriber",
			zap.String("group", group), zap.String("subscriber", sub.ID()))
	}
	return delivered
}

func (h *Hub) Members(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}
