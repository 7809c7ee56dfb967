package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prperemyshlev/access-service/internal/domain"
	"github.com/prperemyshlev/access-service/internal/dto"
	"github.com/prperemyshlev/access-service/internal/repository"
	"github.com/prperemyshlev/access-service/internal/utils"
	"go.uber.org/zap"
)

// TokenRevoker tracks revoked token ids
type TokenRevoker interface {
	Revoke(ctx context.Context, id string, ttl time.Duration) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

// authService implements AuthService interface
type authService struct {
	userRepo           repository.UserRepository
	tokenRepo          repository.TokenRepository
	oauthLinkRepo      repository.OAuthLinkRepository
	subscriptionRepo   repository.SubscriptionRepository
	jwtManager         *utils.JWTManager
	revoker            TokenRevoker
	events             *Broadcaster
	oauth              OAuthProvider
	bcryptCost         int
	refreshTokenExpiry time.Duration
	logger             *zap.Logger
}

// NewAuthService creates a new auth service. oauth may be nil when no
// provider is configured.
func NewAuthService(
	repos *repository.Repositories,
	jwtManager *utils.JWTManager,
	revoker TokenRevoker,
	events *Broadcaster,
	oauth OAuthProvider,
	bcryptCost int,
	refreshTokenExpiry time.Duration,
	logger *zap.Logger,
) AuthService {
	return &authService{
		userRepo:           repos.User,
		tokenRepo:          repos.Token,
		oauthLinkRepo:      repos.OAuthLink,
		subscriptionRepo:   repos.Subscription,
		jwtManager:         jwtManager,
		revoker:            revoker,
		events:             events,
		oauth:              oauth,
		bcryptCost:         bcryptCost,
		refreshTokenExpiry: refreshTokenExpiry,
		logger:             logger.Named("auth"),
	}
}

// SignUp creates the account and its profile, then signs the user in
func (s *authService) SignUp(ctx context.Context, req *dto.SignUpRequest, userAgent string) (*AuthResult, error) {
	email := utils.SanitizeEmail(req.Email)

	if err := utils.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := utils.ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	passwordHash, err := utils.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: passwordHash,
		Metadata:     map[string]any{},
		IsActive:     true,
	}
	if req.Nome != "" {
		user.Metadata["nome"] = req.Nome
	}

	profile := &domain.UserProfile{Nome: req.Nome, ActivePlanID: domain.NoPlanID}
	if profile.Nome == "" {
		profile.Nome = user.Identity().EmailLocalPart()
	}

	if err := s.userRepo.Create(ctx, user, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.settlePlans(ctx, user)

	return s.signIn(ctx, user, userAgent, domain.EventSignedIn)
}

// SignIn authenticates with email and password
func (s *authService) SignIn(ctx context.Context, req *dto.SignInRequest, userAgent string) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, utils.SanitizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !utils.CheckPasswordHash(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	return s.signIn(ctx, user, userAgent, domain.EventSignedIn)
}

// OAuthURL returns where to send the browser to start OAuth sign-in
func (s *authService) OAuthURL(state string) (string, error) {
	if s.oauth == nil {
		return "", ErrOAuthDisabled
	}
	return s.oauth.AuthCodeURL(state), nil
}

// SignInWithOAuth completes the OAuth callback. Unknown accounts are linked
// to an existing user with the same verified email, or get a new user.
func (s *authService) SignInWithOAuth(ctx context.Context, code, userAgent string) (*AuthResult, error) {
	if s.oauth == nil {
		return nil, ErrOAuthDisabled
	}

	external, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	user, err := s.userForOAuth(ctx, external)
	if err != nil {
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	return s.signIn(ctx, user, userAgent, domain.EventSignedIn)
}

func (s *authService) userForOAuth(ctx context.Context, external *OAuthUser) (*domain.User, error) {
	provider := s.oauth.Name()

	link, err := s.oauthLinkRepo.GetByProvider(ctx, provider, external.ProviderUserID)
	if err == nil {
		user, err := s.userRepo.GetByID(ctx, link.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to get linked user: %w", err)
		}
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get oauth link: %w", err)
	}

	if !external.EmailVerified {
		return nil, ErrUnverifiedEmail
	}
	email := utils.SanitizeEmail(external.Email)

	user, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		user, err = s.createOAuthUser(ctx, email, external)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	err = s.oauthLinkRepo.Create(ctx, &domain.OAuthLink{
		UserID:         user.ID,
		Provider:       provider,
		ProviderUserID: external.ProviderUserID,
		Email:          &email,
	})
	if err != nil && !errors.Is(err, repository.ErrDuplicateOAuthLink) {
		return nil, fmt.Errorf("failed to link %s account: %w", provider, err)
	}

	return user, nil
}

func (s *authService) createOAuthUser(ctx context.Context, email string, external *OAuthUser) (*domain.User, error) {
	user := &domain.User{
		Email:    email,
		Metadata: map[string]any{},
		IsActive: true,
	}
	profile := &domain.UserProfile{Nome: external.Name, ActivePlanID: domain.NoPlanID}

	if external.Name != "" {
		user.Metadata["full_name"] = external.Name
	} else {
		profile.Nome = user.Identity().EmailLocalPart()
	}
	if external.Picture != "" {
		user.Metadata["avatar_url"] = external.Picture
		profile.AvatarURL = &external.Picture
	}

	if err := s.userRepo.Create(ctx, user, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.settlePlans(ctx, user)

	return user, nil
}

// settlePlans claims purchases made before sign-up and expires stale ones.
// Failures are logged and never block sign-up.
func (s *authService) settlePlans(ctx context.Context, user *domain.User) {
	sub, err := s.subscriptionRepo.ActivatePendingPlan(ctx, user.ID, user.Email)
	switch {
	case err == nil:
		s.logger.Info("activated pending plan",
			zap.String("user_id", user.ID),
			zap.Int("plan_id", sub.PlanID),
		)
	case errors.Is(err, repository.ErrNotFound):
	default:
		s.logger.Warn("failed to activate pending plan", zap.String("user_id", user.ID), zap.Error(err))
	}

	if _, err := s.subscriptionRepo.ExpirePlanIfNeeded(ctx, user.ID); err != nil {
		s.logger.Warn("failed to expire plan", zap.String("user_id", user.ID), zap.Error(err))
	}
}

// Refresh rotates the refresh token and issues a new access token
func (s *authService) Refresh(ctx context.Context, refreshToken, userAgent string) (*AuthResult, error) {
	userID, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRefreshToken, err)
	}

	tokenHash := hashToken(refreshToken)

	revoked, err := s.revoker.IsRevoked(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	stored, err := s.tokenRepo.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	if stored.UserID != userID || time.Now().After(stored.ExpiresAt) {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !user.IsActive {
		if err := s.tokenRepo.DeleteByUserID(ctx, userID); err != nil {
			s.logger.Warn("failed to drop refresh tokens of inactive user", zap.String("user_id", userID), zap.Error(err))
		}
		return nil, ErrInactiveUser
	}

	if err := s.revoker.Revoke(ctx, tokenHash, time.Until(stored.ExpiresAt)); err != nil {
		s.logger.Warn("failed to revoke rotated refresh token", zap.String("user_id", userID), zap.Error(err))
	}
	if err := s.tokenRepo.DeleteByTokenHash(ctx, tokenHash); err != nil {
		s.logger.Warn("failed to delete rotated refresh token", zap.String("user_id", userID), zap.Error(err))
	}

	return s.signIn(ctx, user, userAgent, domain.EventTokenRefreshed)
}

// SignOut revokes the access token and, when given, the refresh token
func (s *authService) SignOut(ctx context.Context, claims *domain.TokenClaims, refreshToken string) error {
	ttl := time.Until(time.Unix(claims.Exp, 0))
	if err := s.revoker.Revoke(ctx, claims.TokenID, ttl); err != nil {
		return err
	}

	if refreshToken != "" {
		tokenHash := hashToken(refreshToken)

		stored, err := s.tokenRepo.GetByTokenHash(ctx, tokenHash)
		if err == nil && stored.UserID == claims.UserID {
			if err := s.revoker.Revoke(ctx, tokenHash, time.Until(stored.ExpiresAt)); err != nil {
				s.logger.Warn("failed to revoke refresh token", zap.String("user_id", claims.UserID), zap.Error(err))
			}
			if err := s.tokenRepo.DeleteByTokenHash(ctx, tokenHash); err != nil {
				s.logger.Warn("failed to delete refresh token", zap.String("user_id", claims.UserID), zap.Error(err))
			}
		}
	}

	s.events.Publish(domain.AuthEvent{
		Type:       domain.EventSignedOut,
		UserID:     claims.UserID,
		OccurredAt: time.Now(),
	})

	return nil
}

// ValidateToken validates an access token and checks it was not revoked
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.TokenClaims, error) {
	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

// Subscribe registers fn for every identity event
func (s *authService) Subscribe(fn func(domain.AuthEvent)) func() {
	return s.events.Subscribe(fn)
}

func (s *authService) signIn(ctx context.Context, user *domain.User, userAgent string, eventType domain.EventType) (*AuthResult, error) {
	result, err := s.issueSession(ctx, user, userAgent)
	if err != nil {
		return nil, err
	}

	s.events.Publish(domain.AuthEvent{
		Type:       eventType,
		Session:    result.Session,
		UserID:     user.ID,
		OccurredAt: time.Now(),
	})

	return result, nil
}
