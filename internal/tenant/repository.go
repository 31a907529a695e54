package tenant

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

var ErrNotFound = errors.New("tenant: not found")

// Repository is the lookup contract used by the Resolver.
//
// The tenants table is deliberately outside row-level security: resolution
// is what establishes the tenant identity in the first place, so these
// lookups run on the plain pool, not through the tenant context guard.
type Repository interface {
	ByNumber(ctx context.Context, number string) (Tenant, error)
	BySlug(ctx context.Context, slug string) (Tenant, error)
	ByHost(ctx context.Context, host string) (Tenant, error)
	ByID(ctx context.Context, id string) (Tenant, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const tenantColumns = `
id, slug, business_name, domain, twilio_number, forwarding_number,
notify_email, notify_phone, callback_window, urgent_phone, status,
created_at, updated_at
`

func (r *PostgresRepo) ByNumber(ctx context.Context, number string) (Tenant, error) {
	const q = `SELECT ` + tenantColumns + ` FROM tenants WHERE twilio_number = $1`
	return r.one(ctx, q, strings.TrimSpace(number))
}

func (r *PostgresRepo) BySlug(ctx context.Context, slug string) (Tenant, error) {
	const q = `SELECT ` + tenantColumns + ` FROM tenants WHERE slug = $1`
	return r.one(ctx, q, strings.ToLower(strings.TrimSpace(slug)))
}

func (r *PostgresRepo) ByHost(ctx context.Context, host string) (Tenant, error) {
	const q = `SELECT ` + tenantColumns + ` FROM tenants WHERE domain = $1`
	return r.one(ctx, q, normalizeHost(host))
}

func (r *PostgresRepo) ByID(ctx context.Context, id string) (Tenant, error) {
	const q = `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return r.one(ctx, q, id)
}

func (r *PostgresRepo) one(ctx context.Context, q string, arg string) (Tenant, error) {
	if arg == "" {
		return Tenant{}, ErrNotFound
	}
	var t Tenant
	err := r.db.QueryRowContext(ctx, q, arg).Scan(
		&t.ID,
		&t.Slug,
		&t.BusinessName,
		&t.Domain,
		&t.TwilioNumber,
		&t.ForwardingNumber,
		&t.NotifyEmail,
		&t.NotifyPhone,
		&t.CallbackWindow,
		&t.UrgentPhone,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, err
	}
	return t, nil
}

func normalizeHost(host string) string {
	h := strings.ToLower(strings.TrimSpace(host))
	// Strip a port if present; landing-page hosts are stored bare.
	if i := strings.IndexByte(h, ':'); i >= 0 {
		h = h[:i]
	}
	return strings.TrimPrefix(h, "www.")
}
