package checkout

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fedsport/backend/internal/middleware"
	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/pkg/response"
)

// CheckoutRequest is the body for POST /checkout.
type CheckoutRequest struct {
	RegistrationIDs []uuid.UUID `json:"registration_ids" binding:"required,min=1"`
	MethodID        string      `json:"method_id" binding:"required"`
}

// Handler handles checkout and payment HTTP endpoints.
type Handler struct {
	orch *Orchestrator
}

// NewHandler creates a checkout handler.
func NewHandler(orch *Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// Checkout handles POST /checkout.
func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actor, _ := middleware.ActorFrom(c)
	p, err := h.orch.Checkout(c.Request.Context(), actor, req.RegistrationIDs, req.MethodID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, p)
}

// CancelRegistration handles POST /registrations/:id/cancel.
func (h *Handler) CancelRegistration(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	actor, _ := middleware.ActorFrom(c)
	res, err := h.orch.CancelRegistration(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// GetPayment handles GET /payments/:id.
func (h *Handler) GetPayment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid payment id")
		return
	}
	actor, _ := middleware.ActorFrom(c)
	p, err := h.orch.GetPayment(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}

// ListMyPayments handles GET /me/payments.
func (h *Handler) ListMyPayments(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	list, err := h.orch.ListMyPayments(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	if list == nil {
		list = []*models.Payment{}
	}
	response.OK(c, list)
}
