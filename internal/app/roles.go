// Package app implements the application services: the use-case layer
// between the HTTP handlers and the domain model.
package app

import (
	"context"

	"github.com/bioarchive/api/internal/metrics"
	"github.com/bioarchive/api/pkg/domain/security"
	"github.com/bioarchive/api/pkg/domain/shared"
	"github.com/bioarchive/api/pkg/domain/user"
	"github.com/bioarchive/api/pkg/logger"
)

// EffectiveRoleCache caches resolved role sets per user.
type EffectiveRoleCache interface {
	Get(ctx context.Context, userID shared.ID) (security.RoleSet, bool, error)
	Set(ctx context.Context, userID shared.ID, roles security.RoleSet) error
	Invalidate(ctx context.Context, userIDs ...shared.ID) error
}

// TaskEnqueuer submits background tasks.
type TaskEnqueuer interface {
	EnqueueCollectionRefresh(ctx context.Context, collectionID shared.ID) error
	EnqueueDatasetStateChanged(ctx context.Context, datasetID shared.ID, state string) error
}

// RoleResolver resolves a user's effective roles through the cache.
// Resolution hits the role directory only on a miss; membership writes
// must call Invalidate for the affected users.
type RoleResolver struct {
	agent   *security.Agent
	cache   EffectiveRoleCache
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewRoleResolver creates a RoleResolver. The cache may be nil, in which
// case every resolution goes to the role directory.
func NewRoleResolver(agent *security.Agent, cache EffectiveRoleCache, m *metrics.Metrics, log *logger.Logger) *RoleResolver {
	return &RoleResolver{agent: agent, cache: cache, metrics: m, log: log}
}

// EffectiveRoles returns the user's effective role set, cached.
func (r *RoleResolver) EffectiveRoles(ctx context.Context, u *user.User) (security.RoleSet, error) {
	if r.cache != nil {
		set, ok, err := r.cache.Get(ctx, u.ID())
		if err != nil {
			// A broken cache degrades to direct resolution.
			r.log.Warn("role cache read failed", "user_id", u.ID().String(), "error", err)
		} else if ok {
			r.metrics.RoleCacheHits.Inc()
			return set, nil
		} else {
			r.metrics.RoleCacheMisses.Inc()
		}
	}

	set, err := r.agent.EffectiveRoles(ctx, u)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, u.ID(), set); err != nil {
			r.log.Warn("role cache write failed", "user_id", u.ID().String(), "error", err)
		}
	}
	return set, nil
}

// Invalidate drops the cached role sets of the given users. Failures are
// logged, not returned: the TTL bounds staleness.
func (r *RoleResolver) Invalidate(ctx context.Context, userIDs ...shared.ID) {
	if r.cache == nil || len(userIDs) == 0 {
		return
	}
	if err := r.cache.Invalidate(ctx, userIDs...); err != nil {
		r.log.Warn("role cache invalidation failed", "users", len(userIDs), "error", err)
	}
}
