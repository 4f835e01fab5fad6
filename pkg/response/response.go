package response

import (
	"net/http"

	"github.com/fedsport/backend/pkg/apperr"
	"github.com/gin-gonic/gin"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// Accepted sends a 202 JSON response with data.
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	fail(c, http.StatusBadRequest, string(apperr.KindValidation), err)
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	fail(c, http.StatusUnauthorized, "unauthenticated", err)
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	fail(c, http.StatusForbidden, string(apperr.KindAuthorization), err)
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	fail(c, http.StatusNotFound, string(apperr.KindNotFound), err)
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, err string) {
	fail(c, http.StatusServiceUnavailable, string(apperr.KindUnavailable), err)
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	fail(c, http.StatusInternalServerError, string(apperr.KindInternal), err)
}

// Error maps a domain error to its HTTP status and writes the envelope.
// Internal errors never leak their message.
func Error(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	fail(c, Status(kind), string(kind), apperr.Message(err))
}

// Status returns the HTTP status for an error kind.
func Status(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindInvalidState:
		return http.StatusUnprocessableEntity
	case apperr.KindPaymentCreation:
		return http.StatusBadGateway
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, Body{Success: false, Error: msg, Code: code})
}
