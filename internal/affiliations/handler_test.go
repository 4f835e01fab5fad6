package affiliations

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedsport/backend/internal/auth"
	"github.com/fedsport/backend/internal/middleware"
	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/internal/store/memory"
)

type envelope struct {
	Success bool               `json:"success"`
	Data    models.Affiliation `json:"data"`
	Error   string             `json:"error"`
	Code    string             `json:"code"`
}

func TestHandlerApprovalFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwtSvc := auth.NewJWTService("secret", 1)
	h := NewHandler(NewEngine(memory.New().Affiliations(), nil, nil), nil)

	r := gin.New()
	api := r.Group("", middleware.JWT(jwtSvc))
	api.POST("/affiliations", h.Submit)
	api.POST("/affiliations/:id/document-gate", h.DecideDocument)
	api.POST("/affiliations/:id/technical-gate", h.DecideTechnical)
	api.GET("/affiliations/:id/documents", h.ListDocuments)

	token := func(role models.Role) string {
		tok, err := jwtSvc.Generate(uuid.New(), string(role)+"@fed.test", role)
		require.NoError(t, err)
		return tok
	}
	do := func(method, path, tok string, body any) (*httptest.ResponseRecorder, envelope) {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Authorization", "Bearer "+tok)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		var env envelope
		_ = json.Unmarshal(w.Body.Bytes(), &env)
		return w, env
	}

	w, env := do(http.MethodPost, "/affiliations", token(models.RoleAthlete), gin.H{"academy_id": uuid.New(), "modality_id": uuid.New()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := env.Data.ID.String()

	w, env = do(http.MethodPost, "/affiliations/"+id+"/technical-gate", token(models.RoleCoach), gin.H{"decision": "approved"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "invalid_state", env.Code)

	w, _ = do(http.MethodPost, "/affiliations/"+id+"/document-gate", token(models.RoleCoach), gin.H{"decision": "approved"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = do(http.MethodPost, "/affiliations/"+id+"/document-gate", token(models.RoleAdmin), gin.H{"decision": "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(http.MethodPost, "/affiliations/"+id+"/document-gate", token(models.RoleAdmin), gin.H{"decision": "approved"})
	require.Equal(t, http.StatusOK, w.Code)

	w, env = do(http.MethodPost, "/affiliations/"+id+"/technical-gate", token(models.RoleCoach), gin.H{"decision": "approved"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.AffiliationApproved, env.Data.Status)

	w, _ = do(http.MethodGet, "/affiliations/"+id+"/documents", token(models.RoleAdmin), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
