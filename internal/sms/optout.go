package sms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"leadline/internal/tenantctx"

	"github.com/redis/go-redis/v9"
)

// OptOutStore keeps per-caller messaging consent, scoped to
// tenant+phone. Default state is subscribed; only an explicit STOP-class
// keyword flips a pair to opted-out. HELP is transient and never stored.
type OptOutStore interface {
	IsOptedOut(ctx context.Context, tenantID, phone string) (bool, error)
	SetOptedOut(ctx context.Context, tenantID, phone string, optedOut bool) error
}

// PostgresOptOutStore persists consent in sms_opt_outs with a redis
// fast path for the webhook-hot IsOptedOut check. Redis failures fall
// back to Postgres; Postgres is the source of truth.
type PostgresOptOutStore struct {
	guard *tenantctx.Guard
	rdb   *redis.Client

	cacheTTL time.Duration
	clock    func() time.Time
}

func NewPostgresOptOutStore(guard *tenantctx.Guard, rdb *redis.Client) *PostgresOptOutStore {
	return &PostgresOptOutStore{
		guard:    guard,
		rdb:      rdb,
		cacheTTL: 10 * time.Minute,
		clock:    time.Now,
	}
}

func optOutKey(tenantID, phone string) string {
	return fmt.Sprintf("optout:%s:%s", tenantID, phone)
}

func (s *PostgresOptOutStore) IsOptedOut(ctx context.Context, tenantID, phone string) (bool, error) {
	if s.rdb != nil {
		if v, err := s.rdb.Get(ctx, optOutKey(tenantID, phone)).Result(); err == nil {
			return v == "1", nil
		}
	}

	var optedOut bool
	err := s.guard.Run(ctx, tenantID, func(ctx context.Context, sess tenantctx.Session) error {
		const q = `SELECT opted_out FROM sms_opt_outs WHERE tenant_id = $1 AND phone_number = $2`
		if err := sess.QueryRowContext(ctx, q, tenantID, phone).Scan(&optedOut); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				optedOut = false
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	s.cacheSet(ctx, tenantID, phone, optedOut)
	return optedOut, nil
}

func (s *PostgresOptOutStore) SetOptedOut(ctx context.Context, tenantID, phone string, optedOut bool) error {
	now := s.clock().UTC()
	err := s.guard.Run(ctx, tenantID, func(ctx context.Context, sess tenantctx.Session) error {
		const q = `
INSERT INTO sms_opt_outs (tenant_id, phone_number, opted_out, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (tenant_id, phone_number)
DO UPDATE SET opted_out = EXCLUDED.opted_out, updated_at = EXCLUDED.updated_at
`
		_, err := sess.ExecContext(ctx, q, tenantID, phone, optedOut, now)
		return err
	})
	if err != nil {
		return err
	}

	s.cacheSet(ctx, tenantID, phone, optedOut)
	return nil
}

func (s *PostgresOptOutStore) cacheSet(ctx context.Context, tenantID, phone string, optedOut bool) {
	if s.rdb == nil {
		return
	}
	v := "0"
	if optedOut {
		v = "1"
	}
	// Best-effort; a stale miss just costs one Postgres read.
	_ = s.rdb.Set(ctx, optOutKey(tenantID, phone), v, s.cacheTTL).Err()
}

// MemoryOptOutStore is an in-memory OptOutStore for tests.
type MemoryOptOutStore struct {
	mu   sync.Mutex
	outs map[string]bool
}

func NewMemoryOptOutStore() *MemoryOptOutStore {
	return &MemoryOptOutStore{outs: make(map[string]bool)}
}

func (s *MemoryOptOutStore) IsOptedOut(ctx context.Context, tenantID, phone string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outs[optOutKey(tenantID, phone)], nil
}

func (s *MemoryOptOutStore) SetOptedOut(ctx context.Context, tenantID, phone string, optedOut bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outs[optOutKey(tenantID, phone)] = optedOut
	return nil
}
