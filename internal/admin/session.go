package admin

import (
	"errors"
	"time"

	"leadline/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionTokenType = "admin_session"

// SessionClaims is the only supported JWT claims shape for the admin
// API. TenantID must always be present: every admin query is scoped to
// exactly one tenant and there is no cross-tenant token.
type SessionClaims struct {
	jwt.RegisteredClaims

	UserID    string `json:"user_id"`
	TenantID  string `json:"tenant_id"`
	Email     string `json:"email"`
	TokenType string `json:"token_type"`
}

type SessionManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewSessionManager(cfg config.AdminConfig) (*SessionManager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("ADMIN_JWT_SECRET is required")
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionManager{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.JWTIssuer,
		ttl:    ttl,
	}, nil
}

func (m *SessionManager) Issue(now time.Time, userID, tenantID, email string) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.NewString(),
		},
		UserID:    userID,
		TenantID:  tenantID,
		Email:     email,
		TokenType: sessionTokenType,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secret)
}

func (m *SessionManager) Verify(tokenString string, now time.Time) (SessionClaims, error) {
	var claims SessionClaims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)

	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return SessionClaims{}, err
	}

	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30 * time.Second), // clock skew tolerance
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	validator := jwt.NewValidator(opts...)
	if err := validator.Validate(claims.RegisteredClaims); err != nil {
		return SessionClaims{}, err
	}

	if claims.TokenType != sessionTokenType {
		return SessionClaims{}, errors.New("token_type mismatch")
	}
	if claims.UserID == "" {
		return SessionClaims{}, errors.New("user_id missing")
	}
	if claims.TenantID == "" {
		return SessionClaims{}, errors.New("tenant_id missing")
	}

	return claims, nil
}
