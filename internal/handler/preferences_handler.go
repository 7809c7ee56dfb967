package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/access-service/internal/cache"
	"github.com/prperemyshlev/access-service/internal/dto"
	"go.uber.org/zap"
)

// PreferenceStore reads and writes per-user flags
type PreferenceStore interface {
	Get(ctx context.Context, userID string) (cache.Preferences, error)
	Set(ctx context.Context, userID string, prefs cache.Preferences) error
}

type PreferencesHandler struct {
	store  PreferenceStore
	logger *zap.Logger
}

func NewPreferencesHandler(store PreferenceStore, logger *zap.Logger) *PreferencesHandler {
	return &PreferencesHandler{store: store, logger: logger.Named("preferences_handler")}
}

// Get returns the caller's flags
// @Summary Read preferences
// @Tags preferences
// @Security BearerAuth
// @Produce json
// @Success 200 {object} cache.Preferences
// @Router /preferences [get]
func (h *PreferencesHandler) Get(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		abortUnauthorized(c, "User not found in context")
		return
	}

	prefs, err := h.store.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("failed to read preferences", zap.String("user_id", claims.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "failed to read preferences",
		})
		return
	}

	c.JSON(http.StatusOK, prefs)
}

// Put replaces the caller's flags
// @Summary Write preferences
// @Tags preferences
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.PreferencesRequest true "Flags"
// @Success 200 {object} cache.Preferences
// @Router /preferences [put]
func (h *PreferencesHandler) Put(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		abortUnauthorized(c, "User not found in context")
		return
	}

	var req dto.PreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	prefs := cache.Preferences{
		FirstVisitDone: *req.FirstVisitDone,
		PopupSilenced:  *req.PopupSilenced,
	}

	if err := h.store.Set(c.Request.Context(), claims.UserID, prefs); err != nil {
		h.logger.Error("failed to save preferences", zap.String("user_id", claims.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "failed to save preferences",
		})
		return
	}

	c.JSON(http.StatusOK, prefs)
}
