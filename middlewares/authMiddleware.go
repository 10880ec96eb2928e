package middlewares

import (
	"context"
	"strings"

	"civicguardian-be/apperrors"
	"civicguardian-be/models"
	"civicguardian-be/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	userIDKey = "user_id"
	actorKey  = "actor"
)

// TokenParser verifies a bearer token and returns its subject.
type TokenParser interface {
	ParseToken(token string) (string, error)
}

// ActorResolver loads the current role for a token subject, so role changes
// take effect without reissuing tokens.
type ActorResolver interface {
	ResolveActor(ctx context.Context, userID string) (services.Actor, error)
}

// AbortWithError writes the standard error body and stops the chain.
func AbortWithError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		log.Error().Err(err).Str("path", c.FullPath()).Str("request_id", RequestIDFrom(c)).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": apperrors.Message(err),
		"kind":  apperrors.KindOf(err),
	})
}

func AuthMiddleware(tokens TokenParser, resolver ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.Request.Header.Get("Authorization")
		if authHeader == "" {
			AbortWithError(c, apperrors.Unauthorized("No authorization token provided"))
			return
		}

		// Extracting token from "Bearer <token>" format
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		userID, err := tokens.ParseToken(tokenString)
		if err != nil {
			log.Debug().Err(err).Msg("token validation failed")
			AbortWithError(c, apperrors.Unauthorized("Invalid authorization token"))
			return
		}

		actor, err := resolver.ResolveActor(c.Request.Context(), userID)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(userIDKey, userID)
		c.Set(actorKey, actor)
		c.Next()
	}
}

// ActorFrom returns the authenticated actor, or the anonymous zero value.
func ActorFrom(c *gin.Context) services.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(services.Actor); ok {
			return actor
		}
	}
	return services.Actor{}
}

// RequireRole lets the request through only for the listed roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ActorFrom(c)
		if !actor.Authenticated() {
			AbortWithError(c, apperrors.Unauthorized("authentication required"))
			return
		}
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		AbortWithError(c, apperrors.Forbidden("access denied: insufficient role"))
	}
}
