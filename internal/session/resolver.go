// Package session turns identity provider events into a durable user profile
// that survives slow or failing profile stores.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/prperemyshlev/access-service/internal/admin"
	"github.com/prperemyshlev/access-service/internal/domain"
	"go.uber.org/zap"
)

// Source names the resolution step that produced a profile
type Source string

const (
	SourceFull   Source = "full"
	SourceNarrow Source = "narrow"
	SourceLocal  Source = "local"
)

// ProfileStore is the read side of the profile table
type ProfileStore interface {
	GetFull(ctx context.Context, id string) (*domain.UserProfile, error)
	GetNarrow(ctx context.Context, id string) (*domain.ProfileSummary, error)
}

// AdminCache persists admin determinations outside the process
type AdminCache interface {
	AdminStatus(ctx context.Context, userID string) (admin.Status, error)
	RecordAdminTrue(ctx context.Context, userID string) error
	ClearAdminStatus(ctx context.Context, userID string) error
}

// Timeouts bound each remote call made during one resolution
type Timeouts struct {
	FullQuery   time.Duration
	NarrowQuery time.Duration
	CacheAccess time.Duration
}

type resolution struct {
	profile *domain.UserProfile
	source  Source
}

// Resolver builds a UserProfile from an identity, degrading through a full
// query, a narrow query and local synthesis. It never fails.
type Resolver struct {
	profiles  ProfileStore
	cache     AdminCache
	evaluator *admin.Evaluator
	lastKnown *admin.LastKnown
	timeouts  Timeouts
	logger    *zap.Logger
	metrics   *metrics

	mu       sync.Mutex
	inFlight map[string]int
}

func NewResolver(
	profiles ProfileStore,
	cache AdminCache,
	evaluator *admin.Evaluator,
	lastKnown *admin.LastKnown,
	timeouts Timeouts,
	logger *zap.Logger,
) *Resolver {
	return &Resolver{
		profiles:  profiles,
		cache:     cache,
		evaluator: evaluator,
		lastKnown: lastKnown,
		timeouts:  timeouts,
		logger:    logger.Named("resolver"),
		metrics:   newMetrics(),
		inFlight:  make(map[string]int),
	}
}

// Resolve returns the profile for identity. When another resolution for the
// same user is in flight and force is false it returns (nil, false) and
// changes nothing. Admin write-through finishes before Resolve returns.
func (r *Resolver) Resolve(ctx context.Context, identity domain.Identity, force bool) (*domain.UserProfile, bool) {
	if !r.begin(identity.ID, force) {
		r.logger.Debug("resolution already in flight", zap.String("user_id", identity.ID))
		return nil, false
	}
	defer r.end(identity.ID)

	res, _ := WithTimeout(ctx, r.timeouts.FullQuery, r.fullQuery(identity),
		func(ctx context.Context, cause error) (resolution, error) {
			r.logger.Warn("full profile query failed",
				zap.String("user_id", identity.ID),
				zap.Error(cause),
			)

			return WithTimeout(ctx, r.timeouts.NarrowQuery, r.narrowQuery(identity),
				func(ctx context.Context, cause error) (resolution, error) {
					r.logger.Warn("narrow profile query failed, synthesizing profile",
						zap.String("user_id", identity.ID),
						zap.Error(cause),
					)
					return r.localProfile(ctx, identity), nil
				},
			)
		},
	)

	r.writeThrough(ctx, identity.ID, res)
	r.metrics.recordResolution(ctx, res.source)

	return res.profile, true
}

func (r *Resolver) begin(userID string, force bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inFlight[userID] > 0 && !force {
		return false
	}
	r.inFlight[userID]++
	return true
}

func (r *Resolver) end(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inFlight[userID] <= 1 {
		delete(r.inFlight, userID)
		return
	}
	r.inFlight[userID]--
}

func (r *Resolver) fullQuery(identity domain.Identity) func(context.Context) (resolution, error) {
	return func(ctx context.Context) (resolution, error) {
		row, err := r.profiles.GetFull(ctx, identity.ID)
		if err != nil {
			return resolution{}, err
		}

		profile := *row
		if profile.AvatarURL == nil {
			profile.AvatarURL = identity.AvatarURL()
		}

		return resolution{profile: &profile, source: SourceFull}, nil
	}
}

// narrowQuery trusts the row's admin flag but never its plan fields
func (r *Resolver) narrowQuery(identity domain.Identity) func(context.Context) (resolution, error) {
	return func(ctx context.Context) (resolution, error) {
		row, err := r.profiles.GetNarrow(ctx, identity.ID)
		if err != nil {
			return resolution{}, err
		}

		isAdmin := row.IsAdmin
		if !isAdmin {
			isAdmin = r.evaluate(ctx, identity)
		}

		return resolution{
			profile: &domain.UserProfile{
				ID:                identity.ID,
				Email:             row.Email,
				Nome:              row.Nome,
				ActivePlanID:      domain.NoPlanID,
				HasLifetimeAccess: false,
				IsAdmin:           isAdmin,
				AvatarURL:         identity.AvatarURL(),
			},
			source: SourceNarrow,
		}, nil
	}
}

func (r *Resolver) localProfile(ctx context.Context, identity domain.Identity) resolution {
	return resolution{
		profile: &domain.UserProfile{
			ID:                identity.ID,
			Email:             identity.Email,
			Nome:              identity.EmailLocalPart(),
			ActivePlanID:      domain.NoPlanID,
			HasLifetimeAccess: false,
			IsAdmin:           r.evaluate(ctx, identity),
			AvatarURL:         identity.AvatarURL(),
		},
		source: SourceLocal,
	}
}

func (r *Resolver) evaluate(ctx context.Context, identity domain.Identity) bool {
	cacheCtx, cancel := r.cacheContext(ctx)
	defer cancel()

	cached, err := r.cache.AdminStatus(cacheCtx, identity.ID)
	if err != nil {
		r.logger.Warn("failed to read cached admin status",
			zap.String("user_id", identity.ID),
			zap.Error(err),
		)
		cached = admin.StatusUnknown
	}

	return r.evaluator.Evaluate(identity, cached, r.lastKnown.Status(identity.ID))
}

// writeThrough persists positive results from any step; only the full query
// is allowed to clear a previously recorded admin.
func (r *Resolver) writeThrough(ctx context.Context, userID string, res resolution) {
	cacheCtx, cancel := r.cacheContext(ctx)
	defer cancel()

	if res.profile.IsAdmin {
		r.lastKnown.MarkAdmin(userID)
		if err := r.cache.RecordAdminTrue(cacheCtx, userID); err != nil {
			r.logger.Warn("failed to record admin status",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
		return
	}

	if res.source != SourceFull {
		return
	}

	r.lastKnown.Forget(userID)
	if err := r.cache.ClearAdminStatus(cacheCtx, userID); err != nil {
		r.logger.Warn("failed to clear admin status",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

// cacheContext ignores the caller's cancellation; only CacheAccess bounds it
func (r *Resolver) cacheContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.timeouts.CacheAccess)
}
