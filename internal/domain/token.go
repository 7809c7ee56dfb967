package domain

import "time"

// TokenClaims represents access token claims
type TokenClaims struct {
	UserID   string         `json:"user_id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"metadata"`
	TokenID  string         `json:"jti"`
	Exp      int64          `json:"exp"`
	Iat      int64          `json:"iat"`
}

// IsExpired checks if the token is expired
func (tc TokenClaims) IsExpired() bool {
	return time.Now().Unix() > tc.Exp
}

// Identity converts the claims into the identity they prove
func (tc TokenClaims) Identity() Identity {
	return Identity{ID: tc.UserID, Email: tc.Email, Metadata: tc.Metadata}
}
