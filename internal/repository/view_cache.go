package repository

import (
	"context"
	"time"

	"Shootdown/internal/domain/models"
	domrepo "Shootdown/internal/domain/repository"
	"Shootdown/pkg/cache"
)

const (
	viewKeyPrefix = "residual_view"
	lockKeyPrefix = "residual_view_lock"
)

// ViewCache stores computed views in a cache.Service keyed by date.
type ViewCache struct {
	c cache.Service
	m domrepo.Metrics
}

func NewViewCache(c cache.Service, m domrepo.Metrics) *ViewCache {
	return &ViewCache{c: c, m: m}
}

// ViewKey is the cache key for date's view.
func ViewKey(date string) string {
	return cache.GenerateKey(viewKeyPrefix, date)
}

// Get returns (nil, false, nil) on a miss.
func (vc *ViewCache) Get(ctx context.Context, date string) (*models.View, bool, error) {
	var v models.View
	err := vc.c.Get(ctx, ViewKey(date), &v)
	switch {
	case err == nil:
		vc.record("hit")
		return &v, true, nil
	case cache.IsMiss(err):
		vc.record("miss")
		return nil, false, nil
	default:
		vc.record("error")
		return nil, false, err
	}
}

func (vc *ViewCache) Set(ctx context.Context, date string, v *models.View, ttl time.Duration) error {
	return vc.c.Set(ctx, ViewKey(date), v, ttl)
}

func (vc *ViewCache) Invalidate(ctx context.Context, date string) error {
	return vc.c.Delete(ctx, ViewKey(date))
}

// InvalidateAll drops every cached view, leaving recompute locks alone.
func (vc *ViewCache) InvalidateAll(ctx context.Context) error {
	return vc.c.DeleteByPattern(ctx, cache.BuildPattern(viewKeyPrefix+":"))
}

// Lock takes a short exclusive lock for recomputing date.
func (vc *ViewCache) Lock(ctx context.Context, date string, ttl time.Duration) (bool, error) {
	return vc.c.TryLock(ctx, cache.GenerateKey(lockKeyPrefix, date), ttl)
}

func (vc *ViewCache) Unlock(ctx context.Context, date string) error {
	return vc.c.Unlock(ctx, cache.GenerateKey(lockKeyPrefix, date))
}

func (vc *ViewCache) record(result string) {
	if vc.m != nil {
		vc.m.RecordCache(result)
	}
}
