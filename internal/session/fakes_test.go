package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/prperemyshlev/access-service/internal/admin"
	"github.com/prperemyshlev/access-service/internal/domain"
)

var errStoreDown = errors.New("store unavailable")

// blockUntilDone returns only once ctx is cancelled
func blockUntilDone[T any](ctx context.Context) (T, error) {
	<-ctx.Done()
	var zero T
	return zero, ctx.Err()
}

type fakeProfiles struct {
	full   func(ctx context.Context, id string) (*domain.UserProfile, error)
	narrow func(ctx context.Context, id string) (*domain.ProfileSummary, error)

	fullCalls   atomic.Int32
	narrowCalls atomic.Int32
}

func (f *fakeProfiles) GetFull(ctx context.Context, id string) (*domain.UserProfile, error) {
	f.fullCalls.Add(1)
	if f.full == nil {
		return nil, errStoreDown
	}
	return f.full(ctx, id)
}

func (f *fakeProfiles) GetNarrow(ctx context.Context, id string) (*domain.ProfileSummary, error) {
	f.narrowCalls.Add(1)
	if f.narrow == nil {
		return nil, errStoreDown
	}
	return f.narrow(ctx, id)
}

type fakeAdminCache struct {
	mu      sync.Mutex
	entries map[string]admin.Status
	readErr error
}

func newFakeAdminCache() *fakeAdminCache {
	return &fakeAdminCache{entries: make(map[string]admin.Status)}
}

func (c *fakeAdminCache) AdminStatus(_ context.Context, userID string) (admin.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return admin.StatusUnknown, c.readErr
	}
	return c.entries[userID], nil
}

func (c *fakeAdminCache) RecordAdminTrue(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = admin.StatusAdmin
	return nil
}

func (c *fakeAdminCache) ClearAdminStatus(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = admin.StatusNotAdmin
	return nil
}

func (c *fakeAdminCache) status(userID string) admin.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[userID]
}

// fakeResolver counts calls and lets a test hold resolutions open
type fakeResolver struct {
	calls   atomic.Int32
	release chan struct{}
	resolve func(identity domain.Identity) *domain.UserProfile
}

func (r *fakeResolver) Resolve(ctx context.Context, identity domain.Identity, _ bool) (*domain.UserProfile, bool) {
	r.calls.Add(1)
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
		}
	}
	if r.resolve != nil {
		return r.resolve(identity), true
	}
	return &domain.UserProfile{ID: identity.ID, Email: identity.Email}, true
}

type fakeSource struct {
	mu       sync.Mutex
	handlers map[int]func(domain.AuthEvent)
	nextID   int
}

func newFakeSource() *fakeSource {
	return &fakeSource{handlers: make(map[int]func(domain.AuthEvent))}
}

func (s *fakeSource) Subscribe(fn func(domain.AuthEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers, id)
	}
}

func (s *fakeSource) subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

func (s *fakeSource) emit(event domain.AuthEvent) {
	s.mu.Lock()
	handlers := make([]func(domain.AuthEvent), 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}

func signedIn(id, email string) domain.AuthEvent {
	return domain.AuthEvent{
		Type:    domain.EventSignedIn,
		Session: &domain.Session{Identity: domain.Identity{ID: id, Email: email}},
		UserID:  id,
	}
}

func signedOut(id string) domain.AuthEvent {
	return domain.AuthEvent{Type: domain.EventSignedOut, UserID: id}
}
