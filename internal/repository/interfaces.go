package repository

import (
	"context"

	"github.com/prperemyshlev/access-service/internal/domain"
)

// UserRepository defines methods for credential records
type UserRepository interface {
	Create(ctx context.Context, user *domain.User, profile *domain.UserProfile) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, userID string) error
}

// ProfileRepository is the profile store query surface: read by id, two shapes
type ProfileRepository interface {
	GetFull(ctx context.Context, id string) (*domain.UserProfile, error)
	GetNarrow(ctx context.Context, id string) (*domain.ProfileSummary, error)
}

// SubscriptionRepository covers entitlement reads and plan lifecycle writes
type SubscriptionRepository interface {
	HasActivePaid(ctx context.Context, userID string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Subscription, error)
	ActivatePendingPlan(ctx context.Context, userID, email string) (*domain.Subscription, error)
	ExpirePlanIfNeeded(ctx context.Context, userID string) (int64, error)
	ExpireDue(ctx context.Context) (int64, error)
}

// PlanRepository is the read-only plan catalog
type PlanRepository interface {
	List(ctx context.Context) ([]domain.Plan, error)
}

// TokenRepository defines methods for refresh token operations
type TokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	DeleteByUserID(ctx context.Context, userID string) error
}

// OAuthLinkRepository defines methods for external account links
type OAuthLinkRepository interface {
	Create(ctx context.Context, link *domain.OAuthLink) error
	GetByProvider(ctx context.Context, provider, providerUserID string) (*domain.OAuthLink, error)
}
