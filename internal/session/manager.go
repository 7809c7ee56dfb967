package session

import (
	"context"
	"sync"
	"time"

	"github.com/prperemyshlev/access-service/internal/domain"
	"go.uber.org/zap"
)

// Manager keeps one Bootstrapper per signed-in user and feeds each of them
// the identity events addressed to that user.
type Manager struct {
	source   EventSource
	resolver ProfileResolver
	ceiling  time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu          sync.Mutex
	sessions    map[string]*userSession
	unsubscribe func()
}

type userSession struct {
	boot     *Bootstrapper
	feed     *userFeed
	release  func()
	lastUsed time.Time
}

func NewManager(source EventSource, resolver ProfileResolver, ceiling time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		source:   source,
		resolver: resolver,
		ceiling:  ceiling,
		logger:   logger.Named("sessions"),
		now:      time.Now,
		sessions: make(map[string]*userSession),
	}
}

// Start begins routing events from the source
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unsubscribe == nil {
		m.unsubscribe = m.source.Subscribe(m.route)
	}
}

// Stop detaches from the source and tears every session down
func (m *Manager) Stop() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	sessions := m.sessions
	m.sessions = make(map[string]*userSession)
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	for _, s := range sessions {
		s.release()
	}
}

// Acquire returns the bootstrapper for identity, seeding it with an
// INITIAL_SESSION event when it has not seen the identity yet
func (m *Manager) Acquire(identity domain.Identity) *Bootstrapper {
	m.mu.Lock()
	s := m.sessionLocked(identity.ID)
	s.lastUsed = m.now()
	m.mu.Unlock()

	if s.boot.Snapshot().Identity == nil {
		s.feed.emit(domain.AuthEvent{
			Type:       domain.EventInitialSession,
			Session:    &domain.Session{Identity: identity},
			UserID:     identity.ID,
			OccurredAt: time.Now(),
		})
	}

	return s.boot
}

// Refresh re-resolves the profile of a live session. It never creates one;
// ok is false when the user has no session.
func (m *Manager) Refresh(ctx context.Context, userID string) (*domain.UserProfile, bool) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	m.mu.Unlock()

	if !ok {
		return nil, false
	}
	return s.boot.Refresh(ctx)
}

// EvictIdle releases sessions not used for longer than maxIdle and returns
// how many were released
func (m *Manager) EvictIdle(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	var idle []*userSession
	for userID, s := range m.sessions {
		if s.lastUsed.Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, userID)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.release()
	}
	return len(idle)
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) route(event domain.AuthEvent) {
	if event.UserID == "" {
		return
	}

	m.mu.Lock()
	s, ok := m.sessions[event.UserID]
	if !ok && event.Session != nil {
		s, ok = m.sessionLocked(event.UserID), true
	}
	if ok {
		s.lastUsed = m.now()
	}
	if ok && event.Type == domain.EventSignedOut {
		delete(m.sessions, event.UserID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	s.feed.emit(event)

	if event.Type == domain.EventSignedOut {
		m.logger.Debug("releasing session", zap.String("user_id", event.UserID))
		s.release()
	}
}

// sessionLocked returns or creates the session for userID; m.mu must be held
func (m *Manager) sessionLocked(userID string) *userSession {
	if s, ok := m.sessions[userID]; ok {
		return s
	}

	feed := &userFeed{}
	boot := NewBootstrapper(feed, m.resolver, m.ceiling, m.logger)
	s := &userSession{
		boot:    boot,
		feed:    feed,
		release: boot.Subscribe(func(State) {}),
	}
	m.sessions[userID] = s

	return s
}

// userFeed is the per-user EventSource handed to a Bootstrapper
type userFeed struct {
	mu      sync.Mutex
	handler func(domain.AuthEvent)
}

func (f *userFeed) Subscribe(fn func(domain.AuthEvent)) func() {
	f.mu.Lock()
	f.handler = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		f.handler = nil
		f.mu.Unlock()
	}
}

func (f *userFeed) emit(event domain.AuthEvent) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()

	if handler != nil {
		handler(event)
	}
}
