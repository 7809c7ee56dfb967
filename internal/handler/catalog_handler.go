package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/access-service/internal/domain"
	"github.com/prperemyshlev/access-service/internal/dto"
	"github.com/prperemyshlev/access-service/internal/entitlement"
	"go.uber.org/zap"
)

// PlanCatalog reads purchasable plans
type PlanCatalog interface {
	AvailablePlans(ctx context.Context, feature string) ([]domain.Plan, error)
	CheapestPlan(ctx context.Context) (domain.Plan, error)
}

// SubscriptionLister reads a user's subscription history
type SubscriptionLister interface {
	ListByUser(ctx context.Context, userID string) ([]*domain.Subscription, error)
}

// CatalogHandler serves plan and subscription reads
type CatalogHandler struct {
	plans         PlanCatalog
	subscriptions SubscriptionLister
	logger        *zap.Logger
}

func NewCatalogHandler(plans PlanCatalog, subscriptions SubscriptionLister, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		plans:         plans,
		subscriptions: subscriptions,
		logger:        logger.Named("catalog_handler"),
	}
}

// Plans lists paid plans, optionally for one feature
// @Summary List plans
// @Tags plans
// @Produce json
// @Param feature query string false "Feature name"
// @Success 200 {object} dto.PlansResponse
// @Router /plans [get]
func (h *CatalogHandler) Plans(c *gin.Context) {
	plans, err := h.plans.AvailablePlans(c.Request.Context(), c.Query("feature"))
	if err != nil {
		h.internalError(c, "failed to list plans", err)
		return
	}

	if plans == nil {
		plans = []domain.Plan{}
	}
	c.JSON(http.StatusOK, dto.PlansResponse{Plans: plans})
}

// CheapestPlan returns the lowest priced recurring plan
// @Summary Cheapest plan
// @Tags plans
// @Produce json
// @Success 200 {object} domain.Plan
// @Failure 404 {object} dto.ErrorResponse
// @Router /plans/cheapest [get]
func (h *CatalogHandler) CheapestPlan(c *gin.Context) {
	plan, err := h.plans.CheapestPlan(c.Request.Context())
	if errors.Is(err, entitlement.ErrNoPlanAvailable) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "Not found",
			Message: err.Error(),
		})
		return
	}
	if err != nil {
		h.internalError(c, "failed to find cheapest plan", err)
		return
	}

	c.JSON(http.StatusOK, plan)
}

// Subscriptions lists the caller's subscriptions, newest first
// @Summary Subscription history
// @Tags subscriptions
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SubscriptionsResponse
// @Router /subscriptions [get]
func (h *CatalogHandler) Subscriptions(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		abortUnauthorized(c, "User not found in context")
		return
	}

	subs, err := h.subscriptions.ListByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		h.internalError(c, "failed to list subscriptions", err)
		return
	}

	if subs == nil {
		subs = []*domain.Subscription{}
	}
	c.JSON(http.StatusOK, dto.SubscriptionsResponse{Subscriptions: subs})
}

func (h *CatalogHandler) internalError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
		Error:   "Internal server error",
		Message: msg,
	})
}
