package admin

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrInvalidCredentials covers unknown email, wrong password and
// deactivated users alike; login failures are indistinguishable to the
// caller.
var ErrInvalidCredentials = errors.New("admin: invalid credentials")

type Service struct {
	users    Users
	sessions *SessionManager

	clock func() time.Time
}

func NewService(users Users, sessions *SessionManager) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		clock:    time.Now,
	}
}

// Login verifies the credentials and issues a tenant-scoped session
// token.
func (s *Service) Login(ctx context.Context, email, password string) (string, User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return "", User{}, ErrInvalidCredentials
	}

	u, err := s.users.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", User{}, ErrInvalidCredentials
		}
		return "", User{}, err
	}
	if !u.Active {
		return "", User{}, ErrInvalidCredentials
	}

	ok, err := CheckPassword(password, u.PasswordHash)
	if err != nil || !ok {
		return "", User{}, ErrInvalidCredentials
	}

	token, err := s.sessions.Issue(s.clock(), u.ID, u.TenantID, u.Email)
	if err != nil {
		return "", User{}, err
	}
	return token, u, nil
}
