package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/access-service/internal/domain"
	"github.com/prperemyshlev/access-service/internal/dto"
	"go.uber.org/zap"
)

// AdminStatusClearer records an authoritative non-admin result
type AdminStatusClearer interface {
	ClearAdminStatus(ctx context.Context, userID string) error
}

// AdminMemory is the in-process record of positive admin results
type AdminMemory interface {
	Forget(userID string)
}

// SessionRefresher re-resolves a user's live session, if there is one
type SessionRefresher interface {
	Refresh(ctx context.Context, userID string) (*domain.UserProfile, bool)
}

type AdminHandler struct {
	cache    AdminStatusClearer
	memory   AdminMemory
	sessions SessionRefresher
	logger   *zap.Logger
}

func NewAdminHandler(cache AdminStatusClearer, memory AdminMemory, sessions SessionRefresher, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		cache:    cache,
		memory:   memory,
		sessions: sessions,
		logger:   logger.Named("admin_handler"),
	}
}

// Unblock clears a stale admin flag and re-resolves the user's live session
// so the change applies without a new sign-in
// @Summary Clear admin status
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} dto.SuccessResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /admin/users/{id}/unblock [post]
func (h *AdminHandler) Unblock(c *gin.Context) {
	userID := c.Param("id")

	if err := h.cache.ClearAdminStatus(c.Request.Context(), userID); err != nil {
		h.logger.Error("failed to clear admin status", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "failed to clear admin status",
		})
		return
	}
	h.memory.Forget(userID)

	if profile, ok := h.sessions.Refresh(c.Request.Context(), userID); ok && profile.IsAdmin {
		h.logger.Warn("user still resolves as admin after unblock", zap.String("user_id", userID))
	}

	if claims, ok := claimsFrom(c); ok {
		h.logger.Info("admin status cleared",
			zap.String("user_id", userID),
			zap.String("by", claims.UserID),
		)
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Admin status cleared"})
}
