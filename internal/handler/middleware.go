package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/access-service/internal/domain"
	"github.com/prperemyshlev/access-service/internal/dto"
	"github.com/prperemyshlev/access-service/internal/session"
)

const (
	claimsKey  = "claims"
	sessionKey = "session"
)

// TokenValidator checks bearer tokens
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*domain.TokenClaims, error)
}

// SessionProvider hands out the per-user session bootstrapper
type SessionProvider interface {
	Acquire(identity domain.Identity) *session.Bootstrapper
}

// AuthMiddleware validates the bearer token and adds its claims to the context
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Authorization header is required")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			abortUnauthorized(c, "Invalid authorization header format")
			return
		}

		claims, err := validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(claimsKey, claims)

		c.Next()
	}
}

// SessionMiddleware attaches the caller's session. Must run after AuthMiddleware.
func SessionMiddleware(sessions SessionProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFrom(c)
		if !ok {
			abortUnauthorized(c, "User not found in context")
			return
		}

		c.Set(sessionKey, sessions.Acquire(claims.Identity()))

		c.Next()
	}
}

// RequireAdmin lets the request through only when the resolved profile is
// an admin's. Must run after SessionMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		state, ok := readySession(c)
		if !ok {
			return
		}

		if state.Profile == nil || !state.Profile.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.ErrorResponse{
				Error:   "Forbidden",
				Message: "Admin access required",
			})
			return
		}

		c.Next()
	}
}

func claimsFrom(c *gin.Context) (*domain.TokenClaims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*domain.TokenClaims)
	return claims, ok
}

func sessionFrom(c *gin.Context) (*session.Bootstrapper, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	boot, ok := v.(*session.Bootstrapper)
	return boot, ok
}

// readySession waits until the caller's session has left the loading state.
// On failure the response is already written.
func readySession(c *gin.Context) (session.State, bool) {
	boot, ok := sessionFrom(c)
	if !ok {
		abortUnauthorized(c, "Session not found in context")
		return session.State{}, false
	}

	if err := boot.WaitReady(c.Request.Context()); err != nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Error:   "Service unavailable",
			Message: "Session is still loading",
		})
		return session.State{}, false
	}

	return boot.Snapshot(), true
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
		Error:   "Unauthorized",
		Message: message,
	})
}
