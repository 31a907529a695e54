package sms

import (
	"context"
	"errors"
	"strings"
	"time"

	"leadline/internal/consent"
	"leadline/internal/leads"
	"leadline/internal/notify"
	"leadline/internal/tenant"
	"leadline/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrInvalidArgument = errors.New("sms: invalid argument")
	ErrTenantNotFound  = errors.New("sms: tenant not found")
)

// Resolver is the tenant lookup by dialed number.
type Resolver interface {
	ByNumber(ctx context.Context, number string) (tenant.Tenant, error)
}

// LeadRecorder creates a lead from an inbound message.
type LeadRecorder interface {
	RecordLead(ctx context.Context, tenantID string, req leads.RecordRequest) (string, error)
}

// Notifier fans out the new-lead notification; never errors.
type Notifier interface {
	Notify(ctx context.Context, kind notify.Kind, t tenant.Tenant, p notify.Payload) notify.Results
}

// Service is the SMS compliance and auto-response state machine.
//
// Per tenant+caller the consent state is subscribed (default) or
// opted-out, with HELP as a transient branch that persists nothing.
// STOP/START/HELP replies are fixed compliance copy (see copy.go);
// only the default branch renders tenant-templated text.
type Service struct {
	repo     Repository
	resolver Resolver
	optOuts  OptOutStore
	consents *consent.Service
	leads    LeadRecorder
	notifier Notifier

	// sender delivers REST-initiated messages (missed-call replies).
	// Webhook replies ride back on the TwiML response instead.
	sender notify.SMSSender

	clock func() time.Time
}

func NewService(repo Repository, resolver Resolver, optOuts OptOutStore, consents *consent.Service, leadRec LeadRecorder, notifier Notifier, sender notify.SMSSender) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
		optOuts:  optOuts,
		consents: consents,
		leads:    leadRec,
		notifier: notifier,
		sender:   sender,
		clock:    time.Now,
	}
}

// IncomingSms is one inbound message webhook delivery.
type IncomingSms struct {
	DialedNumber string
	From         string
	Body         string
	MessageSID   string
	SourceIP     string
}

// OnIncomingSms applies the keyword state machine and returns the reply
// body to render back to Twilio (empty string means reply with nothing).
//
// A missing message sid is the only hard validation failure. An unknown
// tenant returns ErrTenantNotFound, which the webhook layer maps to a
// 200 empty response so Twilio does not retry a request that will never
// resolve.
func (s *Service) OnIncomingSms(ctx context.Context, in IncomingSms) (string, error) {
	if strings.TrimSpace(in.MessageSID) == "" {
		return "", ErrInvalidArgument
	}

	t, err := s.resolveUsable(ctx, in.DialedNumber)
	if err != nil {
		return "", err
	}

	log := logger.From(ctx)
	class, keyword := Classify(in.Body)

	switch class {
	case ClassStop:
		// Opt-out must stick; a failed write here is the one case worth a
		// 5xx so Twilio redelivers.
		if err := s.optOuts.SetOptedOut(ctx, t.ID, in.From, true); err != nil {
			return "", err
		}
		s.recordConsent(ctx, t.ID, in.From, keyword, consent.ActionOptOut, in.SourceIP)
		s.logInbound(ctx, t, in, "")
		s.logReply(ctx, t, in, StopReply)
		return StopReply, nil

	case ClassStart:
		if err := s.optOuts.SetOptedOut(ctx, t.ID, in.From, false); err != nil {
			return "", err
		}
		s.recordConsent(ctx, t.ID, in.From, keyword, consent.ActionOptIn, in.SourceIP)
		s.logInbound(ctx, t, in, "")
		s.logReply(ctx, t, in, StartReply)
		return StartReply, nil

	case ClassHelp:
		// Transient: reply only, no state change, no consent row.
		s.logInbound(ctx, t, in, "")
		s.logReply(ctx, t, in, HelpReply)
		return HelpReply, nil
	}

	optedOut, err := s.optOuts.IsOptedOut(ctx, t.ID, in.From)
	if err != nil {
		// When consent state is unreadable, stay on the safe side: log
		// the message but send nothing marketing-shaped.
		log.Error("opt-out lookup failed", "tenant_id", t.ID, "err", err)
		optedOut = true
	}

	if optedOut {
		s.logInbound(ctx, t, in, "")
		return "", nil
	}

	leadID := ""
	if s.leads != nil {
		leadID, err = s.leads.RecordLead(ctx, t.ID, leads.RecordRequest{
			Phone:   in.From,
			Message: in.Body,
			Source:  leads.SourceSMS,
		})
		if err != nil {
			log.Error("sms lead create failed", "tenant_id", t.ID, "err", err)
			leadID = ""
		}
	}

	s.logInbound(ctx, t, in, leadID)

	if s.notifier != nil {
		s.notifier.Notify(ctx, notify.KindNewLead, t, notify.Payload{
			CallerNumber: in.From,
			Message:      in.Body,
		})
	}

	reply := RenderAutoReply(t)
	s.logReply(ctx, t, in, reply)
	return reply, nil
}

// OnMessageStatus applies a delivery-status callback for an outbound
// message. Unknown statuses map into the closed set and never reject.
func (s *Service) OnMessageStatus(ctx context.Context, dialedNumber, messageSID, rawStatus string) error {
	if strings.TrimSpace(messageSID) == "" {
		return ErrInvalidArgument
	}
	t, err := s.resolveUsable(ctx, dialedNumber)
	if err != nil {
		return err
	}
	_, err = s.repo.Upsert(ctx, t.ID, SmsLog{
		ID:                uuid.NewString(),
		TenantID:          t.ID,
		ProviderMessageID: messageSID,
		Status:            NormalizeStatus(rawStatus),
		Direction:         "outbound",
	})
	return err
}

// MissedCallReply sends the compliance-checked missed-call SMS to the
// caller. It implements calls.AutoResponder: sent=false with nil error
// means the caller is opted out and nothing was sent.
func (s *Service) MissedCallReply(ctx context.Context, t tenant.Tenant, callerNumber, providerCallID string) (bool, error) {
	if s.sender == nil {
		return false, errors.New("sms: sender not configured")
	}
	if callerNumber == "" {
		return false, ErrInvalidArgument
	}

	optedOut, err := s.optOuts.IsOptedOut(ctx, t.ID, callerNumber)
	if err != nil {
		return false, err
	}
	if optedOut {
		return false, nil
	}

	body := RenderMissedCallReply(t)
	if err := s.sender.Send(ctx, t.TwilioNumber, callerNumber, body); err != nil {
		return false, err
	}

	if _, err := s.repo.Upsert(ctx, t.ID, SmsLog{
		ID:                uuid.NewString(),
		TenantID:          t.ID,
		ProviderMessageID: "out-" + uuid.NewString(),
		FromNumber:        t.TwilioNumber,
		ToNumber:          callerNumber,
		Body:              body,
		Status:            StatusSent,
		Direction:         "outbound",
		IsAutoResponse:    true,
		TriggeredBySID:    providerCallID,
	}); err != nil {
		logger.From(ctx).Error("auto sms log failed", "tenant_id", t.ID, "err", err)
	}
	return true, nil
}

func (s *Service) logInbound(ctx context.Context, t tenant.Tenant, in IncomingSms, leadID string) {
	if _, err := s.repo.Upsert(ctx, t.ID, SmsLog{
		ID:                uuid.NewString(),
		TenantID:          t.ID,
		ProviderMessageID: in.MessageSID,
		FromNumber:        in.From,
		ToNumber:          in.DialedNumber,
		Body:              in.Body,
		Status:            StatusReceived,
		Direction:         "inbound",
		LeadID:            leadID,
	}); err != nil {
		// Logging failures never block the compliance reply.
		logger.From(ctx).Error("inbound sms log failed", "tenant_id", t.ID, "sid", in.MessageSID, "err", err)
	}
}

func (s *Service) logReply(ctx context.Context, t tenant.Tenant, in IncomingSms, body string) {
	if _, err := s.repo.Upsert(ctx, t.ID, SmsLog{
		ID:                uuid.NewString(),
		TenantID:          t.ID,
		ProviderMessageID: "out-" + uuid.NewString(),
		FromNumber:        t.TwilioNumber,
		ToNumber:          in.From,
		Body:              body,
		Status:            StatusSent,
		Direction:         "outbound",
		IsAutoResponse:    true,
		TriggeredBySID:    in.MessageSID,
	}); err != nil {
		logger.From(ctx).Error("auto response log failed", "tenant_id", t.ID, "sid", in.MessageSID, "err", err)
	}
}

func (s *Service) recordConsent(ctx context.Context, tenantID, phone, keyword string, action consent.Action, sourceIP string) {
	if s.consents == nil {
		return
	}
	var err error
	switch action {
	case consent.ActionOptOut:
		err = s.consents.RecordOptOut(ctx, tenantID, phone, keyword, CopyVersion, sourceIP)
	case consent.ActionOptIn:
		err = s.consents.RecordOptIn(ctx, tenantID, phone, keyword, CopyVersion, sourceIP)
	}
	if err != nil {
		logger.From(ctx).Error("consent audit failed", "tenant_id", tenantID, "err", err)
	}
}

func (s *Service) resolveUsable(ctx context.Context, dialedNumber string) (tenant.Tenant, error) {
	if s.resolver == nil {
		return tenant.Tenant{}, errors.New("sms: resolver not configured")
	}
	t, err := s.resolver.ByNumber(ctx, dialedNumber)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			return tenant.Tenant{}, ErrTenantNotFound
		}
		return tenant.Tenant{}, err
	}
	if !t.Usable() {
		return tenant.Tenant{}, ErrTenantNotFound
	}
	return t, nil
}
