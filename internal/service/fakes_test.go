package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/access-service/internal/domain"
	"github.com/prperemyshlev/access-service/internal/repository"
)

type fakeUserRepo struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	profiles map[string]*domain.UserProfile
	logins   int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:    make(map[string]*domain.User),
		profiles: make(map[string]*domain.UserProfile),
	}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User, profile *domain.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	r.users[user.ID] = user
	profile.ID = user.ID
	profile.Email = user.Email
	r.profiles[user.ID] = profile
	return nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) UpdateLastLogin(_ context.Context, _ string) error {
	r.mu.Lock()
	r.logins++
	r.mu.Unlock()
	return nil
}

type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.RefreshToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[string]*domain.RefreshToken)}
}

func (r *fakeTokenRepo) Create(_ context.Context, token *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[token.TokenHash]; ok {
		return repository.ErrDuplicateToken
	}
	r.tokens[token.TokenHash] = token
	return nil
}

func (r *fakeTokenRepo) GetByTokenHash(_ context.Context, tokenHash string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[tokenHash]; ok {
		return t, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeTokenRepo) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[tokenHash]; !ok {
		return repository.ErrNotFound
	}
	delete(r.tokens, tokenHash)
	return nil
}

func (r *fakeTokenRepo) DeleteByUserID(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for hash, t := range r.tokens {
		if t.UserID == userID {
			delete(r.tokens, hash)
		}
	}
	return nil
}

func (r *fakeTokenRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

type fakeLinkRepo struct {
	mu    sync.Mutex
	links []*domain.OAuthLink
}

func (r *fakeLinkRepo) Create(_ context.Context, link *domain.OAuthLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.Provider == link.Provider && l.ProviderUserID == link.ProviderUserID {
			return repository.ErrDuplicateOAuthLink
		}
	}
	r.links = append(r.links, link)
	return nil
}

func (r *fakeLinkRepo) GetByProvider(_ context.Context, provider, providerUserID string) (*domain.OAuthLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.Provider == provider && l.ProviderUserID == providerUserID {
			return l, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeSubscriptionRepo struct {
	mu        sync.Mutex
	activated []string
	expired   []string
	pending   map[string]int
}

func (r *fakeSubscriptionRepo) HasActivePaid(context.Context, string) (bool, error) {
	return false, nil
}

func (r *fakeSubscriptionRepo) ListByUser(context.Context, string) ([]*domain.Subscription, error) {
	return nil, nil
}

func (r *fakeSubscriptionRepo) ActivatePendingPlan(_ context.Context, userID, email string) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	planID, ok := r.pending[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(r.pending, email)
	r.activated = append(r.activated, userID)
	return &domain.Subscription{UserID: userID, PlanID: planID, Status: domain.SubscriptionActive}, nil
}

func (r *fakeSubscriptionRepo) ExpirePlanIfNeeded(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired = append(r.expired, userID)
	return 0, nil
}

func (r *fakeSubscriptionRepo) ExpireDue(context.Context) (int64, error) {
	return 0, nil
}

type fakeRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
	err     error
}

func newFakeRevoker() *fakeRevoker {
	return &fakeRevoker{revoked: make(map[string]time.Duration)}
}

func (r *fakeRevoker) Revoke(_ context.Context, id string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if ttl > 0 {
		r.revoked[id] = ttl
	}
	return nil
}

func (r *fakeRevoker) IsRevoked(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.revoked[id]
	return ok, nil
}

type fakeOAuth struct {
	user *OAuthUser
	err  error
}

func (p *fakeOAuth) Name() string { return "google" }

func (p *fakeOAuth) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (p *fakeOAuth) Exchange(context.Context, string) (*OAuthUser, error) {
	return p.user, p.err
}
