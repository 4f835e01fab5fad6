package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fedsport/backend/internal/auth"
	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/pkg/response"
)

const (
	// ContextActor is the key for the authenticated models.Actor in gin context.
	ContextActor = "actor"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
)

// JWT returns a middleware that validates the bearer token and stores the actor in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, "invalid authorization header")
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}
		c.Set(ContextActor, claims.Actor())
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}

// ActorFrom returns the actor set by JWT.
func ActorFrom(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(ContextActor)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}
