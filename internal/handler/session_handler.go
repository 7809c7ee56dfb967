package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/access-service/internal/domain"
	"github.com/prperemyshlev/access-service/internal/dto"
)

// AccessDecider answers feature access questions for a resolved profile
type AccessDecider interface {
	HasAccess(ctx context.Context, profile *domain.UserProfile, feature string) bool
}

// SessionHandler exposes the caller's session and entitlements
type SessionHandler struct {
	access AccessDecider
}

func NewSessionHandler(access AccessDecider) *SessionHandler {
	return &SessionHandler{access: access}
}

// Get returns the session once it has left the loading state
// @Summary Current session
// @Tags session
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SessionResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /session [get]
func (h *SessionHandler) Get(c *gin.Context) {
	state, ok := readySession(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, dto.SessionResponse{
		Loading:  state.Loading,
		Identity: state.Identity,
		Profile:  state.Profile,
	})
}

// Refresh forces a profile re-resolution and returns the new session
// @Summary Re-resolve profile
// @Tags session
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SessionResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /session/refresh [post]
func (h *SessionHandler) Refresh(c *gin.Context) {
	boot, ok := sessionFrom(c)
	if !ok {
		abortUnauthorized(c, "Session not found in context")
		return
	}

	boot.Refresh(c.Request.Context())
	state := boot.Snapshot()

	c.JSON(http.StatusOK, dto.SessionResponse{
		Loading:  state.Loading,
		Identity: state.Identity,
		Profile:  state.Profile,
	})
}

// Access reports whether the caller may use a feature
// @Summary Feature access
// @Tags session
// @Security BearerAuth
// @Produce json
// @Param feature path string true "Feature name"
// @Success 200 {object} dto.AccessResponse
// @Router /access/{feature} [get]
func (h *SessionHandler) Access(c *gin.Context) {
	state, ok := readySession(c)
	if !ok {
		return
	}

	feature := c.Param("feature")

	c.JSON(http.StatusOK, dto.AccessResponse{
		Feature: feature,
		Granted: h.access.HasAccess(c.Request.Context(), state.Profile, feature),
	})
}
