package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fedsport/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60

	// EventPaymentStatus carries a PaymentEvent.
	EventPaymentStatus = "payment_status"
)

// PaymentEvent is the status snapshot pushed to watchers of a payment.
type PaymentEvent struct {
	PaymentID     uuid.UUID            `json:"payment_id"`
	Status        models.PaymentStatus `json:"status"`
	FailureReason string               `json:"failure_reason,omitempty"`
	PayURL        string               `json:"pay_url,omitempty"`
	AmountCents   int64                `json:"amount_cents"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// NewPaymentEvent builds the pushed snapshot of p.
func NewPaymentEvent(p *models.Payment) PaymentEvent {
	return PaymentEvent{
		PaymentID:     p.ID,
		Status:        p.Status,
		FailureReason: p.FailureReason,
		PayURL:        p.PayURL,
		AmountCents:   p.AmountCents,
		UpdatedAt:     p.UpdatedAt,
	}
}

// Publisher publishes payment events to other instances.
type Publisher interface {
	PublishPaymentEvent(ctx context.Context, paymentID uuid.UUID, event string, payload []byte) error
}

// Subscriber subscribes to a payment channel and invokes handler for incoming events.
type Subscriber interface {
	SubscribePayment(paymentID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains payment_id -> set of connections and pushes status changes.
// With Redis configured, changes are published once and delivered by the subscriber on every instance.
type Hub struct {
	payments map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func()
	mu       sync.RWMutex
	logger   *zap.Logger
	pub      Publisher
	sub      Subscriber
}

// NewHub creates a new WebSocket hub. pub and sub may be nil for a single instance.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		payments: make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		pub:      pub,
		sub:      sub,
	}
}

// Register adds a client to a payment room. The first watcher starts the Redis
// subscription, which is opened outside the lock and is live when Register returns.
func (h *Hub) Register(c *Client) {
	paymentID := c.PaymentID
	h.mu.Lock()
	_, watched := h.payments[paymentID]
	if !watched {
		h.payments[paymentID] = make(map[string]*Client)
	}
	h.payments[paymentID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client watching payment", zap.String("client_id", c.ID), zap.String("payment_id", paymentID.String()))

	if watched || h.sub == nil {
		return
	}
	cancel, err := h.sub.SubscribePayment(paymentID, func(event string, payload []byte) {
		h.Broadcast(paymentID, event, json.RawMessage(payload))
	})
	if err != nil {
		h.logger.Warn("payment subscription failed", zap.String("payment_id", paymentID.String()), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, open := h.payments[paymentID]
	_, dup := h.subs[paymentID]
	if !open || dup {
		cancel()
		return
	}
	h.subs[paymentID] = cancel
}

// Unregister removes a client. Cancels the Redis subscription when the last watcher leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.payments[c.PaymentID]
	if !ok {
		return
	}
	if _, ok := m[c.ID]; !ok {
		return
	}
	delete(m, c.ID)
	close(c.send)
	if len(m) == 0 {
		delete(h.payments, c.PaymentID)
		if cancel, ok := h.subs[c.PaymentID]; ok {
			cancel()
			delete(h.subs, c.PaymentID)
		}
	}
	h.logger.Debug("client left payment", zap.String("client_id", c.ID), zap.String("payment_id", c.PaymentID.String()))
}

// Broadcast sends a message to local watchers of a payment.
func (h *Hub) Broadcast(paymentID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return
		}
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.payments[paymentID] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Watchers returns the number of local connections for a payment.
func (h *Hub) Watchers(paymentID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.payments[paymentID])
}

// PaymentChanged pushes the committed state of p to its watchers.
func (h *Hub) PaymentChanged(ctx context.Context, p *models.Payment) {
	event := NewPaymentEvent(p)
	if h.pub == nil {
		h.Broadcast(p.ID, EventPaymentStatus, event)
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := h.pub.PublishPaymentEvent(ctx, p.ID, EventPaymentStatus, data); err != nil {
		h.logger.Warn("publish payment event failed, delivering locally",
			zap.String("payment_id", p.ID.String()), zap.Error(err))
		h.Broadcast(p.ID, EventPaymentStatus, json.RawMessage(data))
	}
}
