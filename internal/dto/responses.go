package dto

import (
	"github.com/prperemyshlev/access-service/internal/domain"
)

// AuthResponse represents an authentication response
type AuthResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int      `json:"expires_in"`
	User        UserInfo `json:"user"`
}

// UserInfo represents user information in response
type UserInfo struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SessionResponse is the session snapshot
type SessionResponse struct {
	Loading  bool                `json:"loading"`
	Identity *domain.Identity    `json:"identity"`
	Profile  *domain.UserProfile `json:"profile"`
}

// AccessResponse is one entitlement decision
type AccessResponse struct {
	Feature string `json:"feature"`
	Granted bool   `json:"granted"`
}

// PlansResponse lists catalog entries
type PlansResponse struct {
	Plans []domain.Plan `json:"plans"`
}

// SubscriptionsResponse lists a user's subscription history
type SubscriptionsResponse struct {
	Subscriptions []*domain.Subscription `json:"subscriptions"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}
