package checkout

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fedsport/backend/internal/payments"
	"github.com/fedsport/backend/pkg/queue"
	"github.com/fedsport/backend/pkg/response"
)

const maxWebhookBody = 1 << 20

// CallbackQueue hands verified callbacks to the worker.
type CallbackQueue interface {
	EnqueuePaymentCallback(ctx context.Context, payload queue.PaymentCallbackPayload) error
}

// WebhookHandler receives gateway callbacks. Without a queue, callbacks are
// applied inline.
type WebhookHandler struct {
	orch    *Orchestrator
	gateway payments.Provider
	queue   CallbackQueue
	logger  *zap.Logger
}

// NewWebhookHandler creates a webhook handler. q may be nil.
func NewWebhookHandler(orch *Orchestrator, gateway payments.Provider, q CallbackQueue, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{orch: orch, gateway: gateway, queue: q, logger: logger}
}

// PaymentCallback handles POST /webhooks/payments/:provider.
func (h *WebhookHandler) PaymentCallback(c *gin.Context) {
	if c.Param("provider") != h.gateway.Name() {
		response.NotFound(c, "unknown payment provider")
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	headers := make(map[string]string, len(c.Request.Header))
	for k := range c.Request.Header {
		headers[strings.ToLower(k)] = c.Request.Header.Get(k)
	}

	cb, err := h.gateway.ParseCallback(c.Request.Context(), body, headers)
	if err != nil {
		h.logger.Warn("webhook rejected", zap.String("provider", h.gateway.Name()), zap.Error(err))
		if errors.Is(err, payments.ErrInvalidSignature) {
			response.Unauthorized(c, "invalid signature")
			return
		}
		response.BadRequest(c, "invalid callback")
		return
	}

	if h.queue != nil {
		err := h.queue.EnqueuePaymentCallback(c.Request.Context(), queue.PaymentCallbackPayload{
			Provider:    h.gateway.Name(),
			ExternalRef: cb.ExternalRef,
			Outcome:     string(cb.Outcome),
			ReceivedAt:  time.Now().UTC(),
		})
		if err == nil {
			response.Accepted(c, gin.H{"queued": true})
			return
		}
		h.logger.Error("enqueue payment callback failed, applying inline", zap.String("external_ref", cb.ExternalRef), zap.Error(err))
	}

	p, err := h.orch.HandleGatewayEvent(c.Request.Context(), h.gateway.Name(), cb.ExternalRef, cb.Outcome)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"payment_id": p.ID, "status": p.Status})
}
