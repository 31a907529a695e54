package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"leadline/internal/tenantctx"
)

var ErrNotFound = errors.New("calls: not found")

// Repository persists call logs. The provider call sid is the sole
// serialization point for concurrent deliveries of the same call: every
// write is an upsert keyed on it, so duplicates and reordering collapse
// into a single row.
type Repository interface {
	// Upsert creates the row for a new sid or applies last-write-wins
	// updates to status fields. AnsweredAt is set-once.
	Upsert(ctx context.Context, tenantID string, c CallLog) (CallLog, error)

	GetByProviderID(ctx context.Context, tenantID, providerCallID string) (CallLog, error)

	// AttachRecording sets the recording reference on the row.
	AttachRecording(ctx context.Context, tenantID, providerCallID, url string, durationSeconds int) (CallLog, error)

	// MarkVoicemailNotified flips the guard flag; returns false if it was
	// already set, making the voicemail notification fire at most once.
	MarkVoicemailNotified(ctx context.Context, tenantID, providerCallID string) (bool, error)

	// MarkAutoSMSSent claims the missed-call auto-response for the call;
	// returns false if another delivery already claimed it.
	MarkAutoSMSSent(ctx context.Context, tenantID, providerCallID string) (bool, error)

	List(ctx context.Context, tenantID string, limit int) ([]CallLog, error)
	CountMissed(ctx context.Context, tenantID string, since time.Time) (int, error)
}

// PostgresRepo runs every statement through the tenant context guard so
// row-level security is active for each one.
//
// NOTE: assumes a call_logs table with UNIQUE (provider_call_id) and an
// RLS policy on tenant_id = current_setting('app.tenant_id').
type PostgresRepo struct {
	guard *tenantctx.Guard
	clock func() time.Time
}

func NewPostgresRepo(guard *tenantctx.Guard) *PostgresRepo {
	return &PostgresRepo{guard: guard, clock: time.Now}
}

const callColumns = `
id, tenant_id, provider_call_id, from_number, to_number, forwarded_to,
direction, status, dial_status, duration_seconds, recording_url,
connected_to_owner, auto_sms_sent, voicemail_notified, lead_id,
answered_at, created_at, updated_at
`

func (r *PostgresRepo) Upsert(ctx context.Context, tenantID string, c CallLog) (CallLog, error) {
	now := r.clock().UTC()
	var out CallLog
	err := r.guard.Run(ctx, tenantID, func(ctx context.Context, s tenantctx.Session) error {
		const q = `
INSERT INTO call_logs (
  id, tenant_id, provider_call_id, from_number, to_number, forwarded_to,
  direction, status, dial_status, duration_seconds, recording_url,
  connected_to_owner, auto_sms_sent, voicemail_notified, lead_id,
  answered_at, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$17
)
ON CONFLICT (provider_call_id)
DO UPDATE SET
  status             = CASE WHEN EXCLUDED.status <> '' THEN EXCLUDED.status ELSE call_logs.status END,
  dial_status        = CASE WHEN EXCLUDED.dial_status <> '' THEN EXCLUDED.dial_status ELSE call_logs.dial_status END,
  forwarded_to       = CASE WHEN EXCLUDED.forwarded_to <> '' THEN EXCLUDED.forwarded_to ELSE call_logs.forwarded_to END,
  duration_seconds   = GREATEST(call_logs.duration_seconds, EXCLUDED.duration_seconds),
  recording_url      = CASE WHEN EXCLUDED.recording_url <> '' THEN EXCLUDED.recording_url ELSE call_logs.recording_url END,
  connected_to_owner = call_logs.connected_to_owner OR EXCLUDED.connected_to_owner,
  lead_id            = CASE WHEN call_logs.lead_id <> '' THEN call_logs.lead_id ELSE EXCLUDED.lead_id END,
  answered_at        = COALESCE(call_logs.answered_at, EXCLUDED.answered_at),
  updated_at         = EXCLUDED.updated_at
RETURNING ` + callColumns
		return s.QueryRowContext(ctx, q,
			c.ID,
			tenantID,
			c.ProviderCallID,
			c.FromNumber,
			c.ToNumber,
			c.ForwardedTo,
			c.Direction,
			c.Status,
			c.DialStatus,
			c.DurationSeconds,
			c.RecordingURL,
			c.ConnectedToOwner,
			c.AutoSMSSent,
			c.VoicemailNotified,
			c.LeadID,
			c.AnsweredAt,
			now,
		).Scan(scanDest(&out)...)
	})
	if err != nil {
		return CallLog{}, err
	}
	return out, nil
}

func (r *PostgresRepo) GetByProviderID(ctx context.Context, tenantID, providerCallID string) (CallLog, error) {
	var out CallLog
	err := r.guard.Run(ctx, tenantID, func(ctx context.Context, s tenantctx.Session) error {
		const q = `SELECT ` + callColumns + ` FROM call_logs WHERE tenant_id = $1 AND provider_call_id = $2`
		if err := s.QueryRowContext(ctx, q, tenantID, providerCallID).Scan(scanDest(&out)...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return CallLog{}, err
	}
	return out, nil
}

func (r *PostgresRepo) AttachRecording(ctx context.Context, tenantID, providerCallID, url string, durationSeconds int) (CallLog, error) {
	now := r.clock().UTC()
	var out CallLog
	err := r.guard.Run(ctx, tenantID, func(ctx context.Context, s tenantctx.Session) error {
		const q = `
UPDATE call_logs
SET recording_url = $3,
    duration_seconds = GREATEST(duration_seconds, $4),
    updated_at = $5
WHERE tenant_id = $1 AND provider_call_id = $2
RETURNING ` + callColumns
		if err := s.QueryRowContext(ctx, q, tenantID, providerCallID, url, durationSeconds, now).Scan(scanDest(&out)...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return CallLog{}, err
	}
	return out, nil
}

func (r *PostgresRepo) MarkVoicemailNotified(ctx context.Context, tenantID, providerCallID string) (bool, error) {
	now := r.clock().UTC()
	var won bool
	err := r.guard.Run(ctx, tenantID, func(ctx context.Context, s tenantctx.Session) error {
		// The WHERE clause makes this a compare-and-set: only the first
		// delivery to reach it claims the notification.
		const q = `
UPDATE call_logs
SET voicemail_notified = TRUE, updated_at = $3
WHERE tenant_id = $1 AND provider_call_id = $2 AND voicemail_notified = FALSE
`
		res, err := s.ExecContext(ctx, q, tenantID, providerCallID, now)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		won = n > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

func (r *PostgresRepo) MarkAutoSMSSent(ctx context.Context, tenantID, providerCallID string) (bool, error) {
	now := r.clock().UTC()
	var won bool
	err := r.guard.Run(ctx, tenantID, func(ctx context.Context, s tenantctx.Session) error {
		// Same compare-and-set shape as the voicemail flag: the first
		// delivery to flip it owns the send.
		const q = `
UPDATE call_logs
SET auto_sms_sent = TRUE, updated_at = $3
WHERE tenant_id = $1 AND provider_call_id = $2 AND auto_sms_sent = FALSE
`
		res, err := s.ExecContext(ctx, q, tenantID, providerCallID, now)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		won = n > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

func (r *PostgresRepo) List(ctx context.Context, tenantID string, limit int) ([]CallLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []CallLog
	err := r.guard.Run(ctx, tenantID, func(ctx context.Context, s tenantctx.Session) error {
		const q = `SELECT ` + callColumns + ` FROM call_logs WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2`
		rows, err := s.QueryContext(ctx, q, tenantID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c CallLog
			if err := rows.Scan(scanDest(&c)...); err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepo) CountMissed(ctx context.Context, tenantID string, since time.Time) (int, error) {
	var n int
	err := r.guard.Run(ctx, tenantID, func(ctx context.Context, s tenantctx.Session) error {
		const q = `
SELECT COUNT(*)
FROM call_logs
WHERE tenant_id = $1 AND created_at >= $2
  AND connected_to_owner = FALSE AND dial_status <> ''
`
		return s.QueryRowContext(ctx, q, tenantID, since).Scan(&n)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func scanDest(c *CallLog) []any {
	return []any{
		&c.ID,
		&c.TenantID,
		&c.ProviderCallID,
		&c.FromNumber,
		&c.ToNumber,
		&c.ForwardedTo,
		&c.Direction,
		&c.Status,
		&c.DialStatus,
		&c.DurationSeconds,
		&c.RecordingURL,
		&c.ConnectedToOwner,
		&c.AutoSMSSent,
		&c.VoicemailNotified,
		&c.LeadID,
		&c.AnsweredAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	}
}
