package leads

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidArgument = errors.New("leads: invalid argument")

// Service creates leads from any entry channel. Each call inserts a new
// row: leads are cheap and deduplication is an admin task. The one
// exception is an explicit existing-lead update via UpdateStatus.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// RecordRequest is the channel-agnostic lead creation input.
type RecordRequest struct {
	FullName    string
	Phone       string
	Email       string
	Message     string
	ServiceType string
	Source      Source
}

// RecordLead creates a new lead row for the tenant and returns its id.
func (s *Service) RecordLead(ctx context.Context, tenantID string, req RecordRequest) (string, error) {
	if s.repo == nil {
		return "", errors.New("leads: repository not configured")
	}
	if tenantID == "" {
		return "", ErrInvalidArgument
	}
	if !ValidSource(req.Source) {
		return "", ErrInvalidArgument
	}
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return "", ErrInvalidArgument
	}

	name := strings.TrimSpace(req.FullName)
	if name == "" {
		// Phone and SMS leads often arrive without a name.
		name = "Unknown Caller"
	}

	l := Lead{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		FullName:    name,
		Phone:       phone,
		Email:       strings.TrimSpace(req.Email),
		Message:     strings.TrimSpace(req.Message),
		ServiceType: strings.TrimSpace(req.ServiceType),
		Source:      req.Source,
		Status:      StatusNew,
		CreatedAt:   s.clock().UTC(),
	}
	if err := s.repo.Insert(ctx, l); err != nil {
		return "", err
	}
	return l.ID, nil
}

// UpdateStatus moves a lead through the pipeline; admin-facing only.
func (s *Service) UpdateStatus(ctx context.Context, tenantID, leadID string, status Status) error {
	if tenantID == "" || leadID == "" {
		return ErrInvalidArgument
	}
	if !ValidStatus(status) {
		return ErrInvalidArgument
	}
	return s.repo.UpdateStatus(ctx, tenantID, leadID, status)
}
