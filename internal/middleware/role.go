package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/fedsport/backend/internal/access"
	"github.com/fedsport/backend/pkg/response"
)

// RequireCapability rejects callers whose role may not perform op.
// Services repeat the check.
func RequireCapability(op access.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			return
		}
		if err := access.Authorize(actor, op); err != nil {
			response.Error(c, err)
			return
		}
		c.Next()
	}
}
