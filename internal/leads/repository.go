package leads

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"leadline/internal/tenantctx"
)

var ErrNotFound = errors.New("leads: not found")

// Repository persists leads. Insert-only by design for creation; the
// single mutation is the admin-facing status update.
type Repository interface {
	Insert(ctx context.Context, l Lead) error
	GetByID(ctx context.Context, tenantID, id string) (Lead, error)
	UpdateStatus(ctx context.Context, tenantID, id string, status Status) error
	List(ctx context.Context, tenantID string, status Status, limit int) ([]Lead, error)
	CountByStatus(ctx context.Context, tenantID string) (map[Status]int, error)
}

// PostgresRepo runs every statement through the tenant context guard.
//
// NOTE: assumes a leads table with tenant RLS and no unique constraint
// on (tenant_id, phone) — see the dedup decision in DESIGN.md.
type PostgresRepo struct {
	guard *tenantctx.Guard
	clock func() time.Time
}

func NewPostgresRepo(guard *tenantctx.Guard) *PostgresRepo {
	return &PostgresRepo{guard: guard, clock: time.Now}
}

const leadColumns = `
id, tenant_id, full_name, phone, email, message, service_type, source,
status, created_at, updated_at
`

func (r *PostgresRepo) Insert(ctx context.Context, l Lead) error {
	return r.guard.Run(ctx, l.TenantID, func(ctx context.Context, s tenantctx.Session) error {
		const q = `
INSERT INTO leads (
  id, tenant_id, full_name, phone, email, message, service_type, source,
  status, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10
)
`
		_, err := s.ExecContext(ctx, q,
			l.ID,
			l.TenantID,
			l.FullName,
			l.Phone,
			l.Email,
			l.Message,
			l.ServiceType,
			l.Source,
			l.Status,
			r.clock().UTC(),
		)
		return err
	})
}

func (r *PostgresRepo) GetByID(ctx context.Context, tenantID, id string) (Lead, error) {
	var out Lead
	err := r.guard.Run(ctx, tenantID, func(ctx context.Context, s tenantctx.Session) error {
		const q = `SELECT ` + leadColumns + ` FROM leads WHERE tenant_id = $1 AND id = $2`
		if err := s.QueryRowContext(ctx, q, tenantID, id).Scan(leadDest(&out)...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return Lead{}, err
	}
	return out, nil
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, tenantID, id string, status Status) error {
	return r.guard.Run(ctx, tenantID, func(ctx context.Context, s tenantctx.Session) error {
		const q = `
UPDATE leads SET status = $3, updated_at = $4
WHERE tenant_id = $1 AND id = $2
`
		res, err := s.ExecContext(ctx, q, tenantID, id, status, r.clock().UTC())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *PostgresRepo) List(ctx context.Context, tenantID string, status Status, limit int) ([]Lead, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []Lead
	err := r.guard.Run(ctx, tenantID, func(ctx context.Context, s tenantctx.Session) error {
		q := `SELECT ` + leadColumns + ` FROM leads WHERE tenant_id = $1`
		args := []any{tenantID}
		if status != "" {
			q += ` AND status = $2`
			args = append(args, status)
		}
		q += ` ORDER BY created_at DESC LIMIT ` + limitClause(len(args)+1)
		args = append(args, limit)

		rows, err := s.QueryContext(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var l Lead
			if err := rows.Scan(leadDest(&l)...); err != nil {
				return err
			}
			out = append(out, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepo) CountByStatus(ctx context.Context, tenantID string) (map[Status]int, error) {
	out := make(map[Status]int)
	err := r.guard.Run(ctx, tenantID, func(ctx context.Context, s tenantctx.Session) error {
		const q = `SELECT status, COUNT(*) FROM leads WHERE tenant_id = $1 GROUP BY status`
		rows, err := s.QueryContext(ctx, q, tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var st Status
			var n int
			if err := rows.Scan(&st, &n); err != nil {
				return err
			}
			out[st] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func leadDest(l *Lead) []any {
	return []any{
		&l.ID,
		&l.TenantID,
		&l.FullName,
		&l.Phone,
		&l.Email,
		&l.Message,
		&l.ServiceType,
		&l.Source,
		&l.Status,
		&l.CreatedAt,
		&l.UpdatedAt,
	}
}

func limitClause(n int) string {
	// Positional placeholder for the limit argument.
	switch n {
	case 2:
		return "$2"
	default:
		return "$3"
	}
}
