package consent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for consent events.
//
// It MUST be append-only. No Update/Delete methods are provided.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

var ErrInvalidEvent = errors.New("consent: invalid event")

// Service records consent transitions. Callers treat it as best-effort:
// a failed audit write is logged by the caller but never blocks the
// compliance reply itself.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("consent: repository not configured")
	}
	if e.TenantID == "" || e.PhoneNumber == "" {
		return ErrInvalidEvent
	}
	if e.Action != ActionOptOut && e.Action != ActionOptIn {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// RecordOptOut logs a STOP-class transition.
func (s *Service) RecordOptOut(ctx context.Context, tenantID, phone, keyword, copyVersion, sourceIP string) error {
	return s.Append(ctx, Event{
		TenantID:    tenantID,
		PhoneNumber: phone,
		Action:      ActionOptOut,
		Keyword:     keyword,
		CopyVersion: copyVersion,
		SourceIP:    sourceIP,
	})
}

// RecordOptIn logs a START-class transition (or an explicit form opt-in).
func (s *Service) RecordOptIn(ctx context.Context, tenantID, phone, keyword, copyVersion, sourceIP string) error {
	return s.Append(ctx, Event{
		TenantID:    tenantID,
		PhoneNumber: phone,
		Action:      ActionOptIn,
		Keyword:     keyword,
		CopyVersion: copyVersion,
		SourceIP:    sourceIP,
	})
}
