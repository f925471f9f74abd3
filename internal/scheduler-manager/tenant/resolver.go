// Package tenant resolves studio slugs to the tenant context every scheduler
// operation runs under.
package tenant

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"studio-scheduler-service/internal/apperr"
	"studio-scheduler-service/internal/scheduler-manager/db"
	"studio-scheduler-service/pkg/logger"
)

// Tenant is the resolved studio. It is built once per request and passed
// explicitly to every service call.
type Tenant struct {
	StudioID        string `json:"studio_id"`
	Slug            string `json:"slug"`
	CalendarEnabled bool   `json:"calendar_enabled"`
	// ActorUserID is the authenticated user, empty when unknown.
	ActorUserID string `json:"-"`
}

// WithActor returns a copy of t acting as userID.
func (t Tenant) WithActor(userID string) Tenant {
	t.ActorUserID = userID
	return t
}

// Cache stores resolved tenants by slug.
type Cache interface {
	Get(ctx context.Context, slug string) (Tenant, bool, error)
	Set(ctx context.Context, t Tenant, ttl time.Duration) error
}

type Resolver struct {
	DB    *gorm.DB
	Cache Cache
	TTL   time.Duration
	Log   logger.Logger
}

func NewResolver(gormDB *gorm.DB, cache Cache, ttl time.Duration, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewNop()
	}
	return &Resolver{DB: gormDB, Cache: cache, TTL: ttl, Log: log}
}

// Resolve maps slug to a Tenant or an apperr.ErrNotFound error.
func (r *Resolver) Resolve(ctx context.Context, slug string) (Tenant, error) {
	if slug == "" {
		return Tenant{}, apperr.NotFound("studio slug is empty")
	}
	if r.Cache != nil {
		t, ok, err := r.Cache.Get(ctx, slug)
		if err != nil {
			r.Log.Warn("tenant cache read failed", logger.String("slug", slug), logger.Error(err))
		} else if ok {
			return t, nil
		}
	}

	var studio db.Studio
	if err := r.DB.WithContext(ctx).Where("slug = ?", slug).First(&studio).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Tenant{}, apperr.NotFound("studio %q", slug)
		}
		return Tenant{}, err
	}

	t := Tenant{StudioID: studio.ID, Slug: studio.Slug, CalendarEnabled: studio.CalendarIntegrationEnabled}
	if r.Cache != nil {
		if err := r.Cache.Set(ctx, t, r.TTL); err != nil {
			r.Log.Warn("tenant cache write failed", logger.String("slug", slug), logger.Error(err))
		}
	}
	return t, nil
}
