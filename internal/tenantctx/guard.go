package tenantctx

import (
	"context"
	"database/sql"
	"errors"
)

// Session is the handle a tenant-scoped unit of work runs on. It is a
// single checked-out connection with the active tenant already set, so
// every statement issued through it is subject to row-level security.
type Session interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// session extends Session with release; *sql.Conn satisfies it.
type session interface {
	Session
	Close() error
}

var ErrTenantRequired = errors.New("tenantctx: tenant id is required")

// Guard brackets every tenant-scoped data operation:
//
//	set app.tenant_id -> run fn -> reset app.tenant_id -> release connection
//
// The reset runs on every exit path, including panics. A connection must
// never go back to the pool carrying another request's tenant id; that is
// a cross-tenant leak, not a style issue. For the same reason fn must not
// stash the Session anywhere that outlives the call.
//
// Row-level security policies are assumed on all tenant-scoped tables,
// keyed on current_setting('app.tenant_id').
type Guard struct {
	db *sql.DB

	// acquire is injectable for tests; production uses the pool.
	acquire func(ctx context.Context) (session, error)
}

func NewGuard(db *sql.DB) *Guard {
	g := &Guard{db: db}
	g.acquire = func(ctx context.Context) (session, error) {
		return db.Conn(ctx)
	}
	return g
}

func newGuardWithAcquire(acquire func(ctx context.Context) (session, error)) *Guard {
	return &Guard{acquire: acquire}
}

// Run executes fn with tenantID active on a dedicated connection.
func (g *Guard) Run(ctx context.Context, tenantID string, fn func(ctx context.Context, s Session) error) (err error) {
	if tenantID == "" {
		return ErrTenantRequired
	}
	if g.acquire == nil {
		return errors.New("tenantctx: guard not configured")
	}

	conn, err := g.acquire(ctx)
	if err != nil {
		return err
	}

	defer func() {
		// Reset and release unconditionally. context.Background() because
		// the request context may already be canceled by this point and
		// the reset must still happen.
		_, clearErr := conn.ExecContext(context.Background(),
			`SELECT set_config('app.tenant_id', '', false)`)
		closeErr := conn.Close()

		if p := recover(); p != nil {
			panic(p)
		}
		if err == nil && clearErr != nil {
			err = clearErr
		}
		if err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	if _, err = conn.ExecContext(ctx,
		`SELECT set_config('app.tenant_id', $1, false)`, tenantID); err != nil {
		return err
	}

	err = fn(ctx, conn)
	return err
}
