// internal/api/middleware/auth.go
package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"pcba-mpi-api-server/internal/apperr"
	"pcba-mpi-api-server/internal/auth"
	"pcba-mpi-api-server/internal/service"
)

const actorKey = "actor"

// Authenticate verifies the bearer token and stores the caller in the context.
func Authenticate(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, apperr.KindUnauthenticated, "Authorization header is required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || strings.TrimSpace(tokenString) == "" {
			abort(c, apperr.KindInvalidToken, "Invalid token format")
			return
		}

		claims, err := tokens.Parse(tokenString)
		if errors.Is(err, auth.ErrExpiredToken) {
			abort(c, apperr.KindExpiredToken, "Token has expired")
			return
		}
		if err != nil {
			abort(c, apperr.KindInvalidToken, "Invalid token")
			return
		}
		actor, err := service.ActorFromClaims(claims)
		if err != nil {
			abort(c, apperr.KindInvalidToken, "Invalid token")
			return
		}

		c.Set(actorKey, actor)
		c.Set("user_id", actor.ID.Hex())
		c.Next()
	}
}

// Authorize lets the request through only if the caller's role is in allowedRoles.
func Authorize(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			abort(c, apperr.KindUnauthenticated, "Authentication required")
			return
		}
		for _, role := range allowedRoles {
			if role == actor.Role {
				c.Next()
				return
			}
		}
		abort(c, apperr.KindForbidden, "You do not have permission to access this resource")
	}
}

// ActorFrom returns the caller stored by Authenticate.
func ActorFrom(c *gin.Context) (service.Actor, bool) {
	v, exists := c.Get(actorKey)
	if !exists {
		return service.Actor{}, false
	}
	actor, ok := v.(service.Actor)
	return actor, ok
}

func abort(c *gin.Context, kind apperr.Kind, message string) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(kind), gin.H{"error": message, "code": kind})
}
