package service

import (
	"context"

	"github.com/prperemyshlev/access-service/internal/domain"
	"github.com/prperemyshlev/access-service/internal/dto"
)

// AuthService is the identity provider. Every method that changes who is
// signed in also publishes an AuthEvent to subscribers.
type AuthService interface {
	SignUp(ctx context.Context, req *dto.SignUpRequest, userAgent string) (*AuthResult, error)
	SignIn(ctx context.Context, req *dto.SignInRequest, userAgent string) (*AuthResult, error)
	SignInWithOAuth(ctx context.Context, code, userAgent string) (*AuthResult, error)
	OAuthURL(state string) (string, error)
	Refresh(ctx context.Context, refreshToken, userAgent string) (*AuthResult, error)
	SignOut(ctx context.Context, claims *domain.TokenClaims, refreshToken string) error
	ValidateToken(ctx context.Context, token string) (*domain.TokenClaims, error)
	Subscribe(fn func(domain.AuthEvent)) (unsubscribe func())
}
