package calls

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests. It mirrors the upsert
// semantics of the Postgres repo: one row per provider call sid,
// last-write-wins on status, set-once answered_at.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]CallLog // keyed by provider call sid
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]CallLog)}
}

func (r *MemoryRepo) Upsert(ctx context.Context, tenantID string, c CallLog) (CallLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	cur, ok := r.rows[c.ProviderCallID]
	if !ok {
		c.TenantID = tenantID
		c.CreatedAt = now
		c.UpdatedAt = now
		r.rows[c.ProviderCallID] = c
		return c, nil
	}

	if c.Status != "" {
		cur.Status = c.Status
	}
	if c.DialStatus != "" {
		cur.DialStatus = c.DialStatus
	}
	if c.ForwardedTo != "" {
		cur.ForwardedTo = c.ForwardedTo
	}
	if c.DurationSeconds > cur.DurationSeconds {
		cur.DurationSeconds = c.DurationSeconds
	}
	if c.RecordingURL != "" {
		cur.RecordingURL = c.RecordingURL
	}
	cur.ConnectedToOwner = cur.ConnectedToOwner || c.ConnectedToOwner
	if cur.LeadID == "" {
		cur.LeadID = c.LeadID
	}
	if cur.AnsweredAt == nil {
		cur.AnsweredAt = c.AnsweredAt
	}
	cur.UpdatedAt = now
	r.rows[c.ProviderCallID] = cur
	return cur, nil
}

func (r *MemoryRepo) GetByProviderID(ctx context.Context, tenantID, providerCallID string) (CallLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[providerCallID]
	if !ok || c.TenantID != tenantID {
		return CallLog{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) AttachRecording(ctx context.Context, tenantID, providerCallID, url string, durationSeconds int) (CallLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[providerCallID]
	if !ok || c.TenantID != tenantID {
		return CallLog{}, ErrNotFound
	}
	c.RecordingURL = url
	if durationSeconds > c.DurationSeconds {
		c.DurationSeconds = durationSeconds
	}
	r.rows[providerCallID] = c
	return c, nil
}

func (r *MemoryRepo) MarkVoicemailNotified(ctx context.Context, tenantID, providerCallID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[providerCallID]
	if !ok || c.TenantID != tenantID {
		return false, ErrNotFound
	}
	if c.VoicemailNotified {
		return false, nil
	}
	c.VoicemailNotified = true
	r.rows[providerCallID] = c
	return true, nil
}

func (r *MemoryRepo) MarkAutoSMSSent(ctx context.Context, tenantID, providerCallID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[providerCallID]
	if !ok || c.TenantID != tenantID {
		return false, ErrNotFound
	}
	if c.AutoSMSSent {
		return false, nil
	}
	c.AutoSMSSent = true
	r.rows[providerCallID] = c
	return true, nil
}

func (r *MemoryRepo) List(ctx context.Context, tenantID string, limit int) ([]CallLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []CallLog
	for _, c := range r.rows {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *MemoryRepo) CountMissed(ctx context.Context, tenantID string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.rows {
		if c.TenantID == tenantID && !c.ConnectedToOwner && c.DialStatus != "" && !c.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// Len reports the number of rows; used by idempotency tests.
func (r *MemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}
