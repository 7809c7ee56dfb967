package session

import (
	"context"
	"sync"
	"time"

	"github.com/prperemyshlev/access-service/internal/domain"
	"go.uber.org/zap"
)

// State is the observable session. Profile is replaced, never mutated.
type State struct {
	Loading  bool                `json:"loading"`
	Identity *domain.Identity    `json:"identity"`
	Profile  *domain.UserProfile `json:"profile"`
}

// EventSource delivers identity provider events
type EventSource interface {
	Subscribe(fn func(domain.AuthEvent)) (unsubscribe func())
}

// ProfileResolver is the part of Resolver the bootstrapper drives
type ProfileResolver interface {
	Resolve(ctx context.Context, identity domain.Identity, force bool) (*domain.UserProfile, bool)
}

// Bootstrapper drives profile resolution from identity events and
// guarantees the session leaves the loading state within the ceiling.
//
// The event source is subscribed when the first listener arrives and
// released with the last one.
type Bootstrapper struct {
	source   EventSource
	resolver ProfileResolver
	ceiling  time.Duration
	logger   *zap.Logger
	metrics  *metrics

	lifecycle         sync.Mutex
	unsubscribeSource func()

	mu           sync.Mutex
	state        State
	transitioned bool
	processing   string
	lastUserID   string
	generation   uint64
	subscribers  map[int]func(State)
	nextID       int
	watchdog     *time.Timer
	ctx          context.Context
	cancel       context.CancelFunc
	ready        chan struct{}
}

func NewBootstrapper(source EventSource, resolver ProfileResolver, ceiling time.Duration, logger *zap.Logger) *Bootstrapper {
	ctx, cancel := context.WithCancel(context.Background())

	return &Bootstrapper{
		source:      source,
		resolver:    resolver,
		ceiling:     ceiling,
		logger:      logger.Named("bootstrapper"),
		metrics:     newMetrics(),
		state:       State{Loading: true},
		subscribers: make(map[int]func(State)),
		ctx:         ctx,
		cancel:      cancel,
		ready:       make(chan struct{}),
	}
}

// Subscribe registers fn for every state change. The first subscriber
// starts listening to the event source and arms the loading watchdog.
func (b *Bootstrapper) Subscribe(fn func(State)) (unsubscribe func()) {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = fn
	first := len(b.subscribers) == 1
	b.mu.Unlock()

	if first {
		b.init()
	}

	return sync.OnceFunc(func() {
		b.lifecycle.Lock()
		defer b.lifecycle.Unlock()

		b.mu.Lock()
		delete(b.subscribers, id)
		last := len(b.subscribers) == 0
		b.mu.Unlock()

		if last {
			b.teardown()
		}
	})
}

func (b *Bootstrapper) init() {
	b.mu.Lock()
	if b.ctx.Err() != nil {
		b.ctx, b.cancel = context.WithCancel(context.Background())
	}
	if !b.transitioned {
		b.watchdog = time.AfterFunc(b.ceiling, b.forceReady)
	}
	b.mu.Unlock()

	b.unsubscribeSource = b.source.Subscribe(b.HandleEvent)
}

// teardown stops listening and cancels in-flight resolution
func (b *Bootstrapper) teardown() {
	if b.unsubscribeSource != nil {
		b.unsubscribeSource()
		b.unsubscribeSource = nil
	}

	b.mu.Lock()
	if b.watchdog != nil {
		b.watchdog.Stop()
		b.watchdog = nil
	}
	b.cancel()
	b.mu.Unlock()
}

// Snapshot returns the current state
func (b *Bootstrapper) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// WaitReady blocks until the session has left the loading state
func (b *Bootstrapper) WaitReady(ctx context.Context) error {
	select {
	case <-b.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleEvent applies one identity provider event. Duplicate and redundant
// events are rejected here, before any resolution starts.
func (b *Bootstrapper) HandleEvent(event domain.AuthEvent) {
	identity := event.Identity()

	b.mu.Lock()

	if identity != nil && identity.ID == b.processing {
		b.mu.Unlock()
		b.logger.Debug("dropping duplicate event",
			zap.String("event", string(event.Type)),
			zap.String("user_id", identity.ID),
		)
		return
	}

	if identity == nil && b.lastUserID == "" && b.transitioned {
		b.mu.Unlock()
		b.logger.Debug("dropping sign-out for cleared session", zap.String("event", string(event.Type)))
		return
	}

	b.generation++
	gen := b.generation
	b.state.Identity = identity

	if identity == nil {
		b.lastUserID = ""
		b.processing = ""
		b.state.Profile = nil
		b.transitionLocked()
		state := b.state
		b.mu.Unlock()

		b.notify(state)
		return
	}

	if b.state.Profile != nil && b.state.Profile.ID != identity.ID {
		b.state.Profile = nil
	}
	b.lastUserID = identity.ID
	b.processing = identity.ID
	ctx := b.ctx
	state := b.state
	b.mu.Unlock()

	b.notify(state)

	go b.resolve(ctx, gen, *identity, false)
}

// Refresh re-resolves the current identity, bypassing the in-flight guard
func (b *Bootstrapper) Refresh(ctx context.Context) (*domain.UserProfile, bool) {
	b.mu.Lock()
	if b.state.Identity == nil {
		b.mu.Unlock()
		return nil, false
	}
	identity := *b.state.Identity
	b.generation++
	gen := b.generation
	b.processing = identity.ID
	b.mu.Unlock()

	b.resolve(ctx, gen, identity, true)

	state := b.Snapshot()
	return state.Profile, state.Profile != nil
}

func (b *Bootstrapper) resolve(ctx context.Context, gen uint64, identity domain.Identity, force bool) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("profile resolution panicked",
				zap.String("user_id", identity.ID),
				zap.Any("panic", r),
			)
			b.finish(gen, identity.ID, nil, true)
		}
	}()

	profile, ok := b.resolver.Resolve(ctx, identity, force)
	b.finish(gen, identity.ID, profile, ok)
}

// finish publishes a resolution unless a later event superseded it.
// apply is false when the resolver declined to run; the profile is kept.
func (b *Bootstrapper) finish(gen uint64, userID string, profile *domain.UserProfile, apply bool) {
	b.mu.Lock()

	if gen != b.generation {
		b.mu.Unlock()
		b.logger.Debug("discarding stale resolution", zap.String("user_id", userID))
		return
	}

	b.processing = ""
	if apply {
		b.state.Profile = profile
	}
	b.transitionLocked()
	state := b.state
	b.mu.Unlock()

	b.notify(state)
}

func (b *Bootstrapper) forceReady() {
	b.mu.Lock()
	if b.transitioned {
		b.mu.Unlock()
		return
	}

	b.logger.Warn("session still loading at ceiling, forcing ready", zap.Duration("ceiling", b.ceiling))
	b.transitionLocked()
	state := b.state
	b.mu.Unlock()

	b.metrics.recordWatchdog(context.Background())
	b.notify(state)
}

// transitionLocked flips Loading off once; b.mu must be held
func (b *Bootstrapper) transitionLocked() {
	if b.transitioned {
		return
	}

	b.transitioned = true
	b.state.Loading = false
	close(b.ready)

	if b.watchdog != nil {
		b.watchdog.Stop()
		b.watchdog = nil
	}
}

func (b *Bootstrapper) notify(state State) {
	b.mu.Lock()
	subscribers := make([]func(State), 0, len(b.subscribers))
	for _, fn := range b.subscribers {
		subscribers = append(subscribers, fn)
	}
	b.mu.Unlock()

	for _, fn := range subscribers {
		fn(state)
	}
}
