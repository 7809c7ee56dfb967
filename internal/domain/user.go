package domain

import "time"

// User represents a credential record owned by the identity provider
type User struct {
	ID           string         `json:"id" db:"id"`
	Email        string         `json:"email" db:"email"`
	PasswordHash string         `json:"-" db:"password_hash"`
	Metadata     map[string]any `json:"metadata" db:"metadata"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
	LastLoginAt  *time.Time     `json:"last_login_at" db:"last_login_at"`
	IsActive     bool           `json:"is_active" db:"is_active"`
}

// Identity projects the user onto the identity handed to session listeners
func (u User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email, Metadata: u.Metadata}
}

// RefreshToken represents a stored refresh token
type RefreshToken struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	TokenHash string    `json:"-" db:"token_hash"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UserAgent *string   `json:"user_agent" db:"user_agent"`
}

// OAuthLink connects a user to an external OAuth account
type OAuthLink struct {
	ID             string    `json:"id" db:"id"`
	UserID         string    `json:"user_id" db:"user_id"`
	Provider       string    `json:"provider" db:"provider"` // google
	ProviderUserID string    `json:"provider_user_id" db:"provider_user_id"`
	Email          *string   `json:"email" db:"email"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
