package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Resolver maps an inbound request to a tenant identity. It is the leaf
// dependency for every webhook: dialed number for telephony, slug for the
// lead intake form, host for landing pages.
//
// Number lookups sit on the hot webhook path, so they go through a
// read-through redis cache. Cache failures fall back to the repository;
// an unmapped number is a not-found outcome, never an error surfaced to
// the provider.
type Resolver struct {
	repo Repository
	rdb  *redis.Client

	cacheTTL time.Duration
	clock    func() time.Time
}

func NewResolver(repo Repository, rdb *redis.Client) *Resolver {
	return &Resolver{
		repo:     repo,
		rdb:      rdb,
		cacheTTL: 5 * time.Minute,
		clock:    time.Now,
	}
}

func (r *Resolver) ByNumber(ctx context.Context, number string) (Tenant, error) {
	if r.repo == nil {
		return Tenant{}, errors.New("tenant: resolver repository not configured")
	}
	if number == "" {
		return Tenant{}, ErrNotFound
	}

	if t, ok := r.cacheGet(ctx, cacheKeyNumber(number)); ok {
		return t, nil
	}

	t, err := r.repo.ByNumber(ctx, number)
	if err != nil {
		return Tenant{}, err
	}
	r.cacheSet(ctx, cacheKeyNumber(number), t)
	return t, nil
}

func (r *Resolver) BySlug(ctx context.Context, slug string) (Tenant, error) {
	if r.repo == nil {
		return Tenant{}, errors.New("tenant: resolver repository not configured")
	}
	return r.repo.BySlug(ctx, slug)
}

func (r *Resolver) ByHost(ctx context.Context, host string) (Tenant, error) {
	if r.repo == nil {
		return Tenant{}, errors.New("tenant: resolver repository not configured")
	}
	return r.repo.ByHost(ctx, host)
}

func cacheKeyNumber(number string) string {
	return "tenant:number:" + number
}

func (r *Resolver) cacheGet(ctx context.Context, key string) (Tenant, bool) {
	if r.rdb == nil {
		return Tenant{}, false
	}
	raw, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		// redis.Nil and transport errors are both cache misses here.
		return Tenant{}, false
	}
	var t Tenant
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return Tenant{}, false
	}
	return t, true
}

func (r *Resolver) cacheSet(ctx context.Context, key string, t Tenant) {
	if r.rdb == nil {
		return
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return
	}
	// Best-effort; a failed SET just means the next lookup hits Postgres.
	_ = r.rdb.Set(ctx, key, raw, r.cacheTTL).Err()
}
