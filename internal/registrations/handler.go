package registrations

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fedsport/backend/internal/middleware"
	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/pkg/response"
)

// AddItemRequest is the body for POST /cart/items.
type AddItemRequest struct {
	EventID    uuid.UUID                     `json:"event_id" binding:"required"`
	ModalityID uuid.UUID                     `json:"competition_modality_id" binding:"required"`
	Attributes models.RegistrationAttributes `json:"attributes"`
}

// UpdateItemRequest is the body for PATCH /cart/items/:id.
type UpdateItemRequest struct {
	Attributes models.RegistrationAttributes `json:"attributes"`
}

// Handler handles cart HTTP endpoints.
type Handler struct {
	cart *Cart
}

// NewHandler creates a cart handler.
func NewHandler(cart *Cart) *Handler {
	return &Handler{cart: cart}
}

// MyCart handles GET /me/cart.
func (h *Handler) MyCart(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	items, err := h.cart.ListCart(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	var total int64
	for _, r := range items {
		total += r.FeeCents
	}
	response.OK(c, gin.H{"items": nonNil(items), "total_cents": total})
}

// AddItem handles POST /cart/items.
func (h *Handler) AddItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actor, _ := middleware.ActorFrom(c)
	reg, err := h.cart.AddItem(c.Request.Context(), actor, req.EventID, req.ModalityID, req.Attributes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reg)
}

// UpdateItem handles PATCH /cart/items/:id.
func (h *Handler) UpdateItem(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actor, _ := middleware.ActorFrom(c)
	reg, err := h.cart.UpdateItem(c.Request.Context(), actor, id, req.Attributes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reg)
}

// RemoveItem handles DELETE /cart/items/:id.
func (h *Handler) RemoveItem(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	actor, _ := middleware.ActorFrom(c)
	if err := h.cart.RemoveItem(c.Request.Context(), actor, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MyRegistrations handles GET /me/registrations.
func (h *Handler) MyRegistrations(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	list, err := h.cart.MyRegistrations(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, nonNil(list))
}

func nonNil(list []*models.Registration) []*models.Registration {
	if list == nil {
		return []*models.Registration{}
	}
	return list
}
