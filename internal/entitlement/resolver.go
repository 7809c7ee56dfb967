// Package entitlement decides whether a profile may use a paid feature.
package entitlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/prperemyshlev/access-service/internal/domain"
	"github.com/prperemyshlev/access-service/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const meterName = "github.com/prperemyshlev/access-service/internal/entitlement"

// ErrNoPlanAvailable is returned when the catalog has no paid recurring plan
var ErrNoPlanAvailable = errors.New("no paid recurring plan available")

// SubscriptionReader answers the single entitlement question asked of the subscription store
type SubscriptionReader interface {
	HasActivePaid(ctx context.Context, userID string) (bool, error)
}

// PlanDirectory is the read-only plan catalog
type PlanDirectory interface {
	List(ctx context.Context) ([]domain.Plan, error)
}

// Resolver grants every paid feature to admins and lifetime buyers, and
// otherwise to holders of an active paid subscription. It fails closed.
type Resolver struct {
	subscriptions SubscriptionReader
	plans         PlanDirectory
	logger        *zap.Logger
	decisions     metric.Int64Counter
}

func NewResolver(subscriptions SubscriptionReader, plans PlanDirectory, logger *zap.Logger) *Resolver {
	decisions := observability.Counter(meterName, "entitlement.decisions",
		"Feature access decisions by outcome and reason")

	return &Resolver{
		subscriptions: subscriptions,
		plans:         plans,
		logger:        logger.Named("entitlement"),
		decisions:     decisions,
	}
}

// HasAccess reports whether profile may use feature. Errors never escape;
// a failed lookup denies access.
func (r *Resolver) HasAccess(ctx context.Context, profile *domain.UserProfile, feature string) bool {
	granted, reason := r.decide(ctx, profile, feature)

	r.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("granted", granted),
		attribute.String("reason", reason),
	))

	return granted
}

func (r *Resolver) decide(ctx context.Context, profile *domain.UserProfile, feature string) (bool, string) {
	switch {
	case profile == nil:
		return false, "no_profile"
	case profile.IsAdmin:
		return true, "admin"
	case profile.HasLifetimeAccess:
		return true, "lifetime"
	}

	active, err := r.subscriptions.HasActivePaid(ctx, profile.ID)
	if err != nil {
		r.logger.Warn("subscription lookup failed, denying access",
			zap.String("user_id", profile.ID),
			zap.String("feature", feature),
			zap.Error(err),
		)
		return false, "lookup_failed"
	}

	if !active {
		return false, "free"
	}
	return true, "subscription"
}

// AvailablePlans lists every paid plan. Any paid plan unlocks every feature,
// so the feature name does not narrow the list.
func (r *Resolver) AvailablePlans(ctx context.Context, feature string) ([]domain.Plan, error) {
	plans, err := r.plans.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans for %s: %w", feature, err)
	}

	paid := make([]domain.Plan, 0, len(plans))
	for _, plan := range plans {
		if plan.IsPaid() {
			paid = append(paid, plan)
		}
	}

	return paid, nil
}

// CheapestPlan returns the lowest-priced paid recurring plan; ties go to the lower id
func (r *Resolver) CheapestPlan(ctx context.Context) (domain.Plan, error) {
	plans, err := r.plans.List(ctx)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("failed to list plans: %w", err)
	}

	var cheapest *domain.Plan
	for i := range plans {
		plan := &plans[i]
		if !plan.IsPaid() || plan.PaymentType != domain.PaymentRecurring {
			continue
		}
		if cheapest == nil || plan.Price < cheapest.Price || (plan.Price == cheapest.Price && plan.ID < cheapest.ID) {
			cheapest = plan
		}
	}

	if cheapest == nil {
		return domain.Plan{}, ErrNoPlanAvailable
	}
	return *cheapest, nil
}
