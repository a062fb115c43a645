package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"grimoire-backend/internal/shared"
	"grimoire-backend/internal/shared/response"
	"grimoire-backend/pkg/jwt"
)

// TokenValidator verifies an access token and returns its claims.
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// AuthMiddleware requires a valid bearer token and stores the caller's
// uuid.UUID under the "userID" context key.
func AuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.AbortWithError(c, 401, "UNAUTHORIZED", "missing authorization header")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			response.AbortWithError(c, 401, "UNAUTHORIZED", "invalid authorization header format")
			return
		}

		claims, err := tokens.ValidateToken(token)
		if err != nil {
			log.Debug().Err(err).Str("request_id", c.GetString(shared.ContextKeyRequestID)).Msg("Rejected token")
			response.AbortWithError(c, 401, "UNAUTHORIZED", "invalid token")
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			response.AbortWithError(c, 401, "UNAUTHORIZED", "invalid user ID in token")
			return
		}

		c.Set(shared.ContextKeyUserID, userID)
		c.Next()
	}
}

// GetUserID returns the authenticated user set by AuthMiddleware.
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(shared.ContextKeyUserID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}
