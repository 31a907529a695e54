package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrUserNotFound = errors.New("admin: user not found")

// Users looks up dashboard logins. Like tenant resolution, this runs
// before any tenant context exists, so it is not scoped by the guard.
type Users interface {
	ByEmail(ctx context.Context, email string) (User, error)
}

const userColumns = `id, tenant_id, email, full_name, password_hash, active, created_at, updated_at`

type PostgresUsers struct {
	db *sql.DB
}

func NewPostgresUsers(db *sql.DB) *PostgresUsers {
	return &PostgresUsers{db: db}
}

func (r *PostgresUsers) ByEmail(ctx context.Context, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	q := fmt.Sprintf(`SELECT %s FROM admin_users WHERE lower(email) = $1`, userColumns)
	var u User
	err := r.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.TenantID, &u.Email, &u.FullName,
		&u.PasswordHash, &u.Active, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// MemoryUsers is the in-memory Users used by tests.
type MemoryUsers struct {
	mu    sync.Mutex
	users []User
}

func NewMemoryUsers(users ...User) *MemoryUsers {
	return &MemoryUsers{users: users}
}

func (r *MemoryUsers) Add(u User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, u)
}

func (r *MemoryUsers) ByEmail(ctx context.Context, email string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.users {
		if strings.ToLower(u.Email) == email {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}
