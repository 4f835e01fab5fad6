package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/pkg/response"
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// PaymentLookup loads a payment the actor may see. Implemented by checkout.Orchestrator.
type PaymentLookup interface {
	GetPayment(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Payment, error)
}

// Authenticator resolves a bearer token to an actor.
type Authenticator func(token string) (models.Actor, error)

// Client is a single WebSocket connection watching one payment.
type Client struct {
	ID        string
	PaymentID uuid.UUID
	Actor     models.Actor
	hub       *Hub
	conn      *websocket.Conn
	send      chan WSMessage
	logger    *zap.Logger

	// lastUpdate is owned by writePump.
	lastUpdate time.Time
}

// Upgrader builds the WebSocket upgrader. An empty origin list accepts any origin.
func Upgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}
}

// ServeWs upgrades GET /ws/payments/:id?token= for the payment's owner or an administrator.
// The current status is sent right after the upgrade.
func ServeWs(hub *Hub, payments PaymentLookup, authenticate Authenticator, upgrader websocket.Upgrader, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		paymentID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid payment id")
			return
		}
		token := c.Query("token")
		if token == "" {
			response.Unauthorized(c, "token required")
			return
		}
		actor, err := authenticate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}
		p, err := payments.GetPayment(c.Request.Context(), actor, paymentID)
		if err != nil {
			response.Error(c, err)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:        uuid.New().String(),
			PaymentID: paymentID,
			Actor:     actor,
			hub:       hub,
			conn:      conn,
			send:      make(chan WSMessage, 16),
			logger:    logger,
		}
		hub.Register(client)
		// Reload once watching so a change committed since the first lookup is not lost.
		if cur, err := payments.GetPayment(c.Request.Context(), actor, paymentID); err == nil {
			p = cur
		} else {
			logger.Warn("payment reload failed", zap.String("payment_id", paymentID.String()), zap.Error(err))
		}
		if data, err := json.Marshal(NewPaymentEvent(p)); err == nil {
			select {
			case client.send <- WSMessage{Event: EventPaymentStatus, Data: data}:
			default:
			}
		}
		go client.writePump()
		client.readPump()
	}
}

// readPump only services control frames; watchers never send events.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if c.stale(msg) {
				continue
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("websocket write failed", zap.String("client_id", c.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// stale reports whether msg is a status older than one already written.
func (c *Client) stale(msg WSMessage) bool {
	if msg.Event != EventPaymentStatus {
		return false
	}
	var ev PaymentEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return false
	}
	if ev.UpdatedAt.Before(c.lastUpdate) {
		return true
	}
	c.lastUpdate = ev.UpdatedAt
	return false
}
