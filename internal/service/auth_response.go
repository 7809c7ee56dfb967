package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/prperemyshlev/access-service/internal/domain"
	"github.com/prperemyshlev/access-service/internal/dto"
)

const tokenTypeBearer = "Bearer"

// AuthResult is a fresh session: the response body plus the refresh token,
// which travels in a cookie rather than the body
type AuthResult struct {
	Session      *domain.Session
	AuthResponse *dto.AuthResponse
	RefreshToken string
	ExpiresIn    int // refresh token lifetime in seconds
}

// issueSession signs a token pair for user and stores the refresh token hash
func (s *authService) issueSession(ctx context.Context, user *domain.User, userAgent string) (*AuthResult, error) {
	identity := user.Identity()

	accessToken, err := s.jwtManager.GenerateAccessToken(identity)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	stored := &domain.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(refreshToken),
		ExpiresAt: time.Now().Add(s.refreshTokenExpiry),
	}
	if userAgent != "" {
		stored.UserAgent = &userAgent
	}

	if err := s.tokenRepo.Create(ctx, stored); err != nil {
		return nil, fmt.Errorf("failed to save refresh token: %w", err)
	}

	return &AuthResult{
		Session: &domain.Session{
			Identity:     identity,
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresIn:    s.jwtManager.GetAccessTokenExpiry(),
		},
		AuthResponse: &dto.AuthResponse{
			AccessToken: accessToken,
			TokenType:   tokenTypeBearer,
			ExpiresIn:   s.jwtManager.GetAccessTokenExpiry(),
			User: dto.UserInfo{
				ID:       user.ID,
				Email:    user.Email,
				Metadata: user.Metadata,
			},
		},
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.refreshTokenExpiry.Seconds()),
	}, nil
}

// hashToken hashes a token using SHA256
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
