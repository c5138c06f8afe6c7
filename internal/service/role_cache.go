package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// RoleCache keeps the active role set of a teacher per semester. Failures are
// logged and treated as misses; the database stays authoritative.
type RoleCache struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewRoleCache constructs a RoleCache. A nil repo disables caching.
func NewRoleCache(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *RoleCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleCache{repo: repo, metrics: metrics, ttl: ttl, logger: logger}
}

func roleCacheKey(semesterCode, teacherID string) string {
	return fmt.Sprintf("roles:%s:%s", semesterCode, teacherID)
}

func (c *RoleCache) enabled() bool {
	return c != nil && c.repo != nil
}

// Lookup returns the cached roles and whether the entry was present.
func (c *RoleCache) Lookup(ctx context.Context, semesterCode, teacherID string) ([]authz.Role, bool) {
	if !c.enabled() {
		return nil, false
	}
	var roles []authz.Role
	start := time.Now()
	err := c.repo.Get(ctx, roleCacheKey(semesterCode, teacherID), &roles)
	c.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			c.logger.Warn("role cache read failed", zap.String("teacher_id", teacherID), zap.Error(err))
		}
		return nil, false
	}
	return roles, true
}

// Store remembers the role set for the configured TTL.
func (c *RoleCache) Store(ctx context.Context, semesterCode, teacherID string, roles []authz.Role) {
	if !c.enabled() {
		return
	}
	start := time.Now()
	err := c.repo.Set(ctx, roleCacheKey(semesterCode, teacherID), roles, c.ttl)
	c.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		c.logger.Warn("role cache write failed", zap.String("teacher_id", teacherID), zap.Error(err))
	}
}

// Forget drops the entry so the next request reloads roles from the database.
func (c *RoleCache) Forget(ctx context.Context, semesterCode, teacherID string) {
	if !c.enabled() {
		return
	}
	if err := c.repo.Delete(ctx, roleCacheKey(semesterCode, teacherID)); err != nil {
		c.logger.Warn("role cache invalidation failed", zap.String("teacher_id", teacherID), zap.Error(err))
	}
}
