package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/prperemyshlev/access-service/internal/domain"
	"github.com/prperemyshlev/access-service/pkg/database"
)

// profileRepository implements ProfileRepository interface
type profileRepository struct {
	db *database.Postgres
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *database.Postgres) ProfileRepository {
	return &profileRepository{db: db}
}

// GetFull reads every profile column the session needs
func (r *profileRepository) GetFull(ctx context.Context, id string) (*domain.UserProfile, error) {
	query := `
		SELECT id, email, nome, active_plan_id, has_lifetime_access, is_admin, avatar_url
		FROM profiles
		WHERE id = $1
	`

	profile := &domain.UserProfile{}
	var nome, avatarURL sql.NullString

	err := r.db.DB.QueryRowContext(ctx, query, id).Scan(
		&profile.ID,
		&profile.Email,
		&nome,
		&profile.ActivePlanID,
		&profile.HasLifetimeAccess,
		&profile.IsAdmin,
		&avatarURL,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile with id %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	profile.Nome = nome.String
	if avatarURL.Valid {
		profile.AvatarURL = &avatarURL.String
	}

	return profile, nil
}

// GetNarrow reads the few columns that stay cheap when the store is struggling
func (r *profileRepository) GetNarrow(ctx context.Context, id string) (*domain.ProfileSummary, error) {
	query := `SELECT id, email, nome, is_admin FROM profiles WHERE id = $1`

	summary := &domain.ProfileSummary{}
	var nome sql.NullString

	err := r.db.DB.QueryRowContext(ctx, query, id).Scan(
		&summary.ID,
		&summary.Email,
		&nome,
		&summary.IsAdmin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile with id %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile summary: %w", err)
	}

	summary.Nome = nome.String

	return summary, nil
}
