package sms

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"leadline/internal/tenantctx"
)

var ErrNotFound = errors.New("sms: not found")

// Repository persists SMS logs, upsert-by-sid like call logs.
type Repository interface {
	Upsert(ctx context.Context, tenantID string, m SmsLog) (SmsLog, error)
	GetByProviderID(ctx context.Context, tenantID, providerMessageID string) (SmsLog, error)
	List(ctx context.Context, tenantID string, limit int) ([]SmsLog, error)
	CountInbound(ctx context.Context, tenantID string, since time.Time) (int, error)
}

// PostgresRepo runs every statement through the tenant context guard.
//
// NOTE: assumes an sms_logs table with UNIQUE (provider_message_id) and
// tenant RLS.
type PostgresRepo struct {
	guard *tenantctx.Guard
	clock func() time.Time
}

func NewPostgresRepo(guard *tenantctx.Guard) *PostgresRepo {
	return &PostgresRepo{guard: guard, clock: time.Now}
}

const smsColumns = `
id, tenant_id, provider_message_id, from_number, to_number, body, status,
direction, is_auto_response, triggered_by_sid, lead_id, created_at, updated_at
`

func (r *PostgresRepo) Upsert(ctx context.Context, tenantID string, m SmsLog) (SmsLog, error) {
	now := r.clock().UTC()
	var out SmsLog
	err := r.guard.Run(ctx, tenantID, func(ctx context.Context, s tenantctx.Session) error {
		const q = `
INSERT INTO sms_logs (
  id, tenant_id, provider_message_id, from_number, to_number, body, status,
  direction, is_auto_response, triggered_by_sid, lead_id, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12
)
ON CONFLICT (provider_message_id)
DO UPDATE SET
  status     = CASE WHEN EXCLUDED.status <> '' THEN EXCLUDED.status ELSE sms_logs.status END,
  lead_id    = CASE WHEN sms_logs.lead_id <> '' THEN sms_logs.lead_id ELSE EXCLUDED.lead_id END,
  updated_at = EXCLUDED.updated_at
RETURNING ` + smsColumns
		return s.QueryRowContext(ctx, q,
			m.ID,
			tenantID,
			m.ProviderMessageID,
			m.FromNumber,
			m.ToNumber,
			m.Body,
			m.Status,
			m.Direction,
			m.IsAutoResponse,
			m.TriggeredBySID,
			m.LeadID,
			now,
		).Scan(smsDest(&out)...)
	})
	if err != nil {
		return SmsLog{}, err
	}
	return out, nil
}

func (r *PostgresRepo) GetByProviderID(ctx context.Context, tenantID, providerMessageID string) (SmsLog, error) {
	var out SmsLog
	err := r.guard.Run(ctx, tenantID, func(ctx context.Context, s tenantctx.Session) error {
		const q = `SELECT ` + smsColumns + ` FROM sms_logs WHERE tenant_id = $1 AND provider_message_id = $2`
		if err := s.QueryRowContext(ctx, q, tenantID, providerMessageID).Scan(smsDest(&out)...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return SmsLog{}, err
	}
	return out, nil
}

func (r *PostgresRepo) List(ctx context.Context, tenantID string, limit int) ([]SmsLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []SmsLog
	err := r.guard.Run(ctx, tenantID, func(ctx context.Context, s tenantctx.Session) error {
		const q = `SELECT ` + smsColumns + ` FROM sms_logs WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2`
		rows, err := s.QueryContext(ctx, q, tenantID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var m SmsLog
			if err := rows.Scan(smsDest(&m)...); err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepo) CountInbound(ctx context.Context, tenantID string, since time.Time) (int, error) {
	var n int
	err := r.guard.Run(ctx, tenantID, func(ctx context.Context, s tenantctx.Session) error {
		const q = `
SELECT COUNT(*) FROM sms_logs
WHERE tenant_id = $1 AND direction = 'inbound' AND created_at >= $2
`
		return s.QueryRowContext(ctx, q, tenantID, since).Scan(&n)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func smsDest(m *SmsLog) []any {
	return []any{
		&m.ID,
		&m.TenantID,
		&m.ProviderMessageID,
		&m.FromNumber,
		&m.ToNumber,
		&m.Body,
		&m.Status,
		&m.Direction,
		&m.IsAutoResponse,
		&m.TriggeredBySID,
		&m.LeadID,
		&m.CreatedAt,
		&m.UpdatedAt,
	}
}

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]SmsLog
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]SmsLog)}
}

func (r *MemoryRepo) Upsert(ctx context.Context, tenantID string, m SmsLog) (SmsLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	cur, ok := r.rows[m.ProviderMessageID]
	if !ok {
		m.TenantID = tenantID
		m.CreatedAt = now
		m.UpdatedAt = now
		r.rows[m.ProviderMessageID] = m
		return m, nil
	}
	if m.Status != "" {
		cur.Status = m.Status
	}
	if cur.LeadID == "" {
		cur.LeadID = m.LeadID
	}
	cur.UpdatedAt = now
	r.rows[m.ProviderMessageID] = cur
	return cur, nil
}

func (r *MemoryRepo) GetByProviderID(ctx context.Context, tenantID, providerMessageID string) (SmsLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[providerMessageID]
	if !ok || m.TenantID != tenantID {
		return SmsLog{}, ErrNotFound
	}
	return m, nil
}

func (r *MemoryRepo) List(ctx context.Context, tenantID string, limit int) ([]SmsLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []SmsLog
	for _, m := range r.rows {
		if m.TenantID == tenantID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *MemoryRepo) CountInbound(ctx context.Context, tenantID string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.rows {
		if m.TenantID == tenantID && m.Direction == "inbound" && !m.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// All returns a copy of every row; used by tests.
func (r *MemoryRepo) All() []SmsLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SmsLog, 0, len(r.rows))
	for _, m := range r.rows {
		out = append(out, m)
	}
	return out
}
