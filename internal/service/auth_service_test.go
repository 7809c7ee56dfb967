package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prperemyshlev/access-service/internal/domain"
	"github.com/prperemyshlev/access-service/internal/dto"
	"github.com/prperemyshlev/access-service/internal/repository"
	"github.com/prperemyshlev/access-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-key-that-is-long-enough-123"

type authFixture struct {
	svc     AuthService
	users   *fakeUserRepo
	tokens  *fakeTokenRepo
	links   *fakeLinkRepo
	subs    *fakeSubscriptionRepo
	revoker *fakeRevoker
	jwt     *utils.JWTManager

	mu     sync.Mutex
	events []domain.AuthEvent
}

func newAuthFixture(t *testing.T, oauth OAuthProvider) *authFixture {
	t.Helper()

	f := &authFixture{
		users:   newFakeUserRepo(),
		tokens:  newFakeTokenRepo(),
		links:   &fakeLinkRepo{},
		subs:    &fakeSubscriptionRepo{pending: map[string]int{}},
		revoker: newFakeRevoker(),
		jwt:     utils.NewJWTManager(testSecret, time.Hour, 24*time.Hour),
	}

	repos := &repository.Repositories{
		User:         f.users,
		Token:        f.tokens,
		OAuthLink:    f.links,
		Subscription: f.subs,
	}

	f.svc = NewAuthService(repos, f.jwt, f.revoker, NewBroadcaster(), oauth, bcrypt.MinCost, 24*time.Hour, zap.NewNop())
	f.svc.Subscribe(func(e domain.AuthEvent) {
		f.mu.Lock()
		f.events = append(f.events, e)
		f.mu.Unlock()
	})

	return f
}

func (f *authFixture) eventTypes() []domain.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]domain.EventType, 0, len(f.events))
	for _, e := range f.events {
		types = append(types, e.Type)
	}
	return types
}

func (f *authFixture) signUp(t *testing.T, email string) *AuthResult {
	t.Helper()
	result, err := f.svc.SignUp(context.Background(), &dto.SignUpRequest{
		Email:    email,
		Password: "Password123",
	}, "test-agent")
	require.NoError(t, err)
	return result
}

func TestSignUp(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.subs.pending["ana@example.com"] = 2

	result := f.signUp(t, " Ana@Example.com ")

	assert.Equal(t, "ana@example.com", result.AuthResponse.User.Email)
	assert.Equal(t, tokenTypeBearer, result.AuthResponse.TokenType)
	assert.Equal(t, 3600, result.AuthResponse.ExpiresIn)
	assert.Equal(t, 86400, result.ExpiresIn)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, 1, f.tokens.count())

	profile := f.users.profiles[result.AuthResponse.User.ID]
	require.NotNil(t, profile)
	assert.Equal(t, "ana", profile.Nome)

	assert.Equal(t, []string{result.AuthResponse.User.ID}, f.subs.activated)
	assert.Equal(t, []string{result.AuthResponse.User.ID}, f.subs.expired)

	require.Len(t, f.events, 1)
	assert.Equal(t, domain.EventSignedIn, f.events[0].Type)
	assert.Equal(t, "ana@example.com", f.events[0].Identity().Email)
}

func TestSignUp_Errors(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.signUp(t, "ana@example.com")

	tests := []struct {
		name    string
		req     dto.SignUpRequest
		wantErr error
	}{
		{
			name:    "duplicate email",
			req:     dto.SignUpRequest{Email: "ANA@example.com", Password: "Password123"},
			wantErr: ErrUserExists,
		},
		{
			name:    "invalid email",
			req:     dto.SignUpRequest{Email: "not-an-email", Password: "Password123"},
			wantErr: utils.ErrInvalidEmail,
		},
		{
			name:    "weak password",
			req:     dto.SignUpRequest{Email: "bob@example.com", Password: "password"},
			wantErr: utils.ErrWeakPassword,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SignUp(context.Background(), &tt.req, "")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSignIn(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.signUp(t, "ana@example.com")

	result, err := f.svc.SignIn(context.Background(), &dto.SignInRequest{
		Email:    "ana@example.com",
		Password: "Password123",
	}, "")
	require.NoError(t, err)

	assert.NotEmpty(t, result.AuthResponse.AccessToken)
	assert.Equal(t, 1, f.users.logins)
	assert.Equal(t, []domain.EventType{domain.EventSignedIn, domain.EventSignedIn}, f.eventTypes())
}

func TestSignIn_Errors(t *testing.T) {
	f := newAuthFixture(t, nil)
	result := f.signUp(t, "ana@example.com")

	_, err := f.svc.SignIn(context.Background(), &dto.SignInRequest{Email: "ana@example.com", Password: "Wrong1234"}, "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.SignIn(context.Background(), &dto.SignInRequest{Email: "nobody@example.com", Password: "Password123"}, "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	f.users.users[result.AuthResponse.User.ID].IsActive = false
	_, err = f.svc.SignIn(context.Background(), &dto.SignInRequest{Email: "ana@example.com", Password: "Password123"}, "")
	assert.ErrorIs(t, err, ErrInactiveUser)
}

func TestValidateToken(t *testing.T) {
	f := newAuthFixture(t, nil)
	result := f.signUp(t, "ana@example.com")

	claims, err := f.svc.ValidateToken(context.Background(), result.AuthResponse.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.AuthResponse.User.ID, claims.UserID)

	_, err = f.svc.ValidateToken(context.Background(), result.RefreshToken)
	assert.ErrorIs(t, err, utils.ErrInvalidToken)
}

func TestRefresh_RotatesToken(t *testing.T) {
	f := newAuthFixture(t, nil)
	first := f.signUp(t, "ana@example.com")

	second, err := f.svc.Refresh(context.Background(), first.RefreshToken, "")
	require.NoError(t, err)

	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, 1, f.tokens.count())
	assert.Equal(t, []domain.EventType{domain.EventSignedIn, domain.EventTokenRefreshed}, f.eventTypes())

	_, err = f.svc.Refresh(context.Background(), first.RefreshToken, "")
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRefresh_Errors(t *testing.T) {
	f := newAuthFixture(t, nil)
	result := f.signUp(t, "ana@example.com")

	_, err := f.svc.Refresh(context.Background(), "garbage", "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = f.svc.Refresh(context.Background(), result.AuthResponse.AccessToken, "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	orphan, err := f.jwt.GenerateRefreshToken(result.AuthResponse.User.ID)
	require.NoError(t, err)
	_, err = f.svc.Refresh(context.Background(), orphan, "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefresh_InactiveUserDropsAllTokens(t *testing.T) {
	f := newAuthFixture(t, nil)
	first := f.signUp(t, "ana@example.com")
	_, err := f.svc.SignIn(context.Background(), &dto.SignInRequest{Email: "ana@example.com", Password: "Password123"}, "")
	require.NoError(t, err)
	f.signUp(t, "bia@example.com")
	require.Equal(t, 3, f.tokens.count())

	f.users.users[first.AuthResponse.User.ID].IsActive = false

	_, err = f.svc.Refresh(context.Background(), first.RefreshToken, "")
	assert.ErrorIs(t, err, ErrInactiveUser)
	assert.Equal(t, 1, f.tokens.count(), "only the other user's token is left")
}

func TestSignOut(t *testing.T) {
	f := newAuthFixture(t, nil)
	result := f.signUp(t, "ana@example.com")

	claims, err := f.svc.ValidateToken(context.Background(), result.AuthResponse.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.svc.SignOut(context.Background(), claims, result.RefreshToken))

	_, err = f.svc.ValidateToken(context.Background(), result.AuthResponse.AccessToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	assert.Equal(t, 0, f.tokens.count())

	_, err = f.svc.Refresh(context.Background(), result.RefreshToken, "")
	assert.ErrorIs(t, err, ErrTokenRevoked)

	types := f.eventTypes()
	require.Len(t, types, 2)
	assert.Equal(t, domain.EventSignedOut, types[1])
	assert.Nil(t, f.events[1].Session)
	assert.Equal(t, claims.UserID, f.events[1].UserID)
}

func TestSignOut_RevocationFailure(t *testing.T) {
	f := newAuthFixture(t, nil)
	result := f.signUp(t, "ana@example.com")

	claims, err := f.svc.ValidateToken(context.Background(), result.AuthResponse.AccessToken)
	require.NoError(t, err)

	f.revoker.err = errors.New("redis down")
	assert.Error(t, f.svc.SignOut(context.Background(), claims, ""))
	assert.Equal(t, []domain.EventType{domain.EventSignedIn}, f.eventTypes())
}

func TestOAuth_Disabled(t *testing.T) {
	f := newAuthFixture(t, nil)

	_, err := f.svc.OAuthURL("state")
	assert.ErrorIs(t, err, ErrOAuthDisabled)

	_, err = f.svc.SignInWithOAuth(context.Background(), "code", "")
	assert.ErrorIs(t, err, ErrOAuthDisabled)
}

func TestSignInWithOAuth_CreatesUser(t *testing.T) {
	provider := &fakeOAuth{user: &OAuthUser{
		ProviderUserID: "g-1",
		Email:          "Ana@Example.com",
		EmailVerified:  true,
		Name:           "Ana Souza",
		Picture:        "https://img/ana.png",
	}}
	f := newAuthFixture(t, provider)

	url, err := f.svc.OAuthURL("s1")
	require.NoError(t, err)
	assert.Contains(t, url, "state=s1")

	result, err := f.svc.SignInWithOAuth(context.Background(), "code", "")
	require.NoError(t, err)

	id := result.AuthResponse.User.ID
	user := f.users.users[id]
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Empty(t, user.PasswordHash)
	assert.Equal(t, "https://img/ana.png", user.Metadata["avatar_url"])

	profile := f.users.profiles[id]
	assert.Equal(t, "Ana Souza", profile.Nome)
	require.NotNil(t, profile.AvatarURL)
	assert.Equal(t, "https://img/ana.png", *profile.AvatarURL)

	require.Len(t, f.links.links, 1)
	assert.Equal(t, id, f.links.links[0].UserID)

	again, err := f.svc.SignInWithOAuth(context.Background(), "code", "")
	require.NoError(t, err)
	assert.Equal(t, id, again.AuthResponse.User.ID)
	assert.Len(t, f.users.users, 1)
}

func TestSignInWithOAuth_LinksExistingUser(t *testing.T) {
	provider := &fakeOAuth{user: &OAuthUser{ProviderUserID: "g-1", Email: "ana@example.com", EmailVerified: true}}
	f := newAuthFixture(t, provider)
	existing := f.signUp(t, "ana@example.com")

	result, err := f.svc.SignInWithOAuth(context.Background(), "code", "")
	require.NoError(t, err)

	assert.Equal(t, existing.AuthResponse.User.ID, result.AuthResponse.User.ID)
	require.Len(t, f.links.links, 1)
}

func TestSignInWithOAuth_UnverifiedEmail(t *testing.T) {
	provider := &fakeOAuth{user: &OAuthUser{ProviderUserID: "g-1", Email: "ana@example.com"}}
	f := newAuthFixture(t, provider)

	_, err := f.svc.SignInWithOAuth(context.Background(), "code", "")
	assert.ErrorIs(t, err, ErrUnverifiedEmail)
	assert.Empty(t, f.users.users)
}
