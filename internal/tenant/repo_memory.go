package tenant

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu      sync.Mutex
	tenants []Tenant
}

func NewMemoryRepo(tenants ...Tenant) *MemoryRepo {
	return &MemoryRepo{tenants: tenants}
}

func (r *MemoryRepo) Add(t Tenant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants = append(r.tenants, t)
}

func (r *MemoryRepo) ByNumber(ctx context.Context, number string) (Tenant, error) {
	return r.find(func(t Tenant) bool { return t.TwilioNumber == number })
}

func (r *MemoryRepo) BySlug(ctx context.Context, slug string) (Tenant, error) {
	return r.find(func(t Tenant) bool { return t.Slug == slug })
}

func (r *MemoryRepo) ByHost(ctx context.Context, host string) (Tenant, error) {
	return r.find(func(t Tenant) bool { return t.Domain == normalizeHost(host) })
}

func (r *MemoryRepo) ByID(ctx context.Context, id string) (Tenant, error) {
	return r.find(func(t Tenant) bool { return t.ID == id })
}

func (r *MemoryRepo) find(match func(Tenant) bool) (Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tenants {
		if match(t) {
			return t, nil
		}
	}
	return Tenant{}, ErrNotFound
}
