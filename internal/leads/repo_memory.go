package leads

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu   sync.Mutex
	rows []Lead
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Insert(ctx context.Context, l Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	r.rows = append(r.rows, l)
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, tenantID, id string) (Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.rows {
		if l.TenantID == tenantID && l.ID == id {
			return l, nil
		}
	}
	return Lead{}, ErrNotFound
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, tenantID, id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.rows {
		if l.TenantID == tenantID && l.ID == id {
			r.rows[i].Status = status
			r.rows[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepo) List(ctx context.Context, tenantID string, status Status, limit int) ([]Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Lead
	for _, l := range r.rows {
		if l.TenantID != tenantID {
			continue
		}
		if status != "" && l.Status != status {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *MemoryRepo) CountByStatus(ctx context.Context, tenantID string) (map[Status]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Status]int)
	for _, l := range r.rows {
		if l.TenantID == tenantID {
			out[l.Status]++
		}
	}
	return out, nil
}

// All returns a copy of every row; used by tests.
func (r *MemoryRepo) All() []Lead {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Lead, len(r.rows))
	copy(out, r.rows)
	return out
}
