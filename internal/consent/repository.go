package consent

import (
	"context"

	"leadline/internal/tenantctx"
)

// PostgresRepo appends consent events through the tenant context guard.
type PostgresRepo struct {
	guard *tenantctx.Guard
}

func NewPostgresRepo(guard *tenantctx.Guard) *PostgresRepo {
	return &PostgresRepo{guard: guard}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	return r.guard.Run(ctx, e.TenantID, func(ctx context.Context, s tenantctx.Session) error {
		const q = `
INSERT INTO consent_events (
  id, tenant_id, phone_number, action, keyword, copy_version, source_ip, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
`
		_, err := s.ExecContext(ctx, q,
			e.ID,
			e.TenantID,
			e.PhoneNumber,
			e.Action,
			e.Keyword,
			e.CopyVersion,
			e.SourceIP,
			e.CreatedAt,
		)
		return err
	})
}
