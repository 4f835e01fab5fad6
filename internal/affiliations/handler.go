package affiliations

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fedsport/backend/internal/middleware"
	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/pkg/response"
	"github.com/fedsport/backend/pkg/storage"
)

// SubmitRequest is the body for POST /affiliations.
type SubmitRequest struct {
	AcademyID  uuid.UUID `json:"academy_id" binding:"required"`
	ModalityID uuid.UUID `json:"modality_id" binding:"required"`
}

// DecisionRequest is the body for the gate endpoints.
type DecisionRequest struct {
	Decision models.GateStatus `json:"decision" binding:"required"`
}

// UploadURLRequest is the body for POST /affiliations/:id/documents/upload-url.
type UploadURLRequest struct {
	Filename string `json:"filename" binding:"required"`
}

// Handler handles affiliation HTTP endpoints.
type Handler struct {
	engine *Engine
	docs   *Documents
}

// NewHandler creates an affiliations handler. docs may be nil when storage is not configured.
func NewHandler(engine *Engine, docs *Documents) *Handler {
	return &Handler{engine: engine, docs: docs}
}

// Submit handles POST /affiliations.
func (h *Handler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actor, _ := middleware.ActorFrom(c)
	a, err := h.engine.Submit(c.Request.Context(), actor, req.AcademyID, req.ModalityID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, a)
}

// ListMine handles GET /me/affiliations.
func (h *Handler) ListMine(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	list, err := h.engine.ListMine(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, nonNil(list))
}

// Get handles GET /affiliations/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	actor, _ := middleware.ActorFrom(c)
	a, err := h.engine.Get(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, a)
}

// PendingDocuments handles GET /approvals/documents.
func (h *Handler) PendingDocuments(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	list, err := h.engine.ListPendingDocuments(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, nonNil(list))
}

// PendingTechnical handles GET /approvals/technical.
func (h *Handler) PendingTechnical(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	list, err := h.engine.ListPendingTechnical(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, nonNil(list))
}

// DecideDocument handles POST /affiliations/:id/document-gate.
func (h *Handler) DecideDocument(c *gin.Context) {
	h.decide(c, h.engine.SetDocumentGate)
}

// DecideTechnical handles POST /affiliations/:id/technical-gate.
func (h *Handler) DecideTechnical(c *gin.Context) {
	h.decide(c, h.engine.SetTechnicalGate)
}

type gateSetter func(context.Context, models.Actor, uuid.UUID, models.GateStatus) (*models.Affiliation, error)

func (h *Handler) decide(c *gin.Context, set gateSetter) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actor, _ := middleware.ActorFrom(c)
	a, err := set(c.Request.Context(), actor, id, req.Decision)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, a)
}

// UploadDocument handles POST /affiliations/:id/documents (multipart field "file").
func (h *Handler) UploadDocument(c *gin.Context) {
	if h.docs == nil {
		response.ServiceUnavailable(c, "document storage not configured")
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxDocumentSize+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "unreadable file")
		return
	}
	defer f.Close()

	actor, _ := middleware.ActorFrom(c)
	obj, err := h.docs.Upload(c.Request.Context(), actor, id, fh.Filename, fh.Size, f)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, obj)
}

// UploadURL handles POST /affiliations/:id/documents/upload-url.
func (h *Handler) UploadURL(c *gin.Context) {
	if h.docs == nil {
		response.ServiceUnavailable(c, "document storage not configured")
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actor, _ := middleware.ActorFrom(c)
	ticket, err := h.docs.UploadURL(c.Request.Context(), actor, id, req.Filename)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, ticket)
}

// ListDocuments handles GET /affiliations/:id/documents.
func (h *Handler) ListDocuments(c *gin.Context) {
	if h.docs == nil {
		response.ServiceUnavailable(c, "document storage not configured")
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	actor, _ := middleware.ActorFrom(c)
	docs, err := h.docs.List(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, docs)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid affiliation id")
		return uuid.Nil, false
	}
	return id, true
}

func nonNil(list []*models.Affiliation) []*models.Affiliation {
	if list == nil {
		return []*models.Affiliation{}
	}
	return list
}
