package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/prperemyshlev/access-service/internal/domain"
	"github.com/prperemyshlev/access-service/pkg/database"
)

// oauthLinkRepository implements OAuthLinkRepository interface
type oauthLinkRepository struct {
	db *database.Postgres
}

// NewOAuthLinkRepository creates a new OAuth link repository
func NewOAuthLinkRepository(db *database.Postgres) OAuthLinkRepository {
	return &oauthLinkRepository{db: db}
}

// Create links an external account to a user
func (r *oauthLinkRepository) Create(ctx context.Context, link *domain.OAuthLink) error {
	query := `
		INSERT INTO oauth_links (id, user_id, provider, provider_user_id, email, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if link.ID == "" {
		link.ID = uuid.New().String()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		link.ID,
		link.UserID,
		link.Provider,
		link.ProviderUserID,
		link.Email,
		link.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%s account %s: %w", link.Provider, link.ProviderUserID, ErrDuplicateOAuthLink)
		}
		return fmt.Errorf("failed to create oauth link: %w", err)
	}

	return nil
}

// GetByProvider finds the link for an external account
func (r *oauthLinkRepository) GetByProvider(ctx context.Context, provider, providerUserID string) (*domain.OAuthLink, error) {
	query := `
		SELECT id, user_id, provider, provider_user_id, email, created_at
		FROM oauth_links
		WHERE provider = $1 AND provider_user_id = $2
	`

	link := &domain.OAuthLink{}
	var email sql.NullString

	err := r.db.DB.QueryRowContext(ctx, query, provider, providerUserID).Scan(
		&link.ID,
		&link.UserID,
		&link.Provider,
		&link.ProviderUserID,
		&email,
		&link.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("oauth link not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get oauth link: %w", err)
	}

	if email.Valid {
		link.Email = &email.String
	}

	return link, nil
}
