package calls

import (
	"context"
	"errors"
	"strings"
	"time"

	"leadline/internal/leads"
	"leadline/internal/notify"
	"leadline/internal/tenant"
	"leadline/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrInvalidArgument = errors.New("calls: invalid argument")
	ErrTenantNotFound  = errors.New("calls: tenant not found")
)

// Resolver is the tenant lookup used on every webhook delivery.
type Resolver interface {
	ByNumber(ctx context.Context, number string) (tenant.Tenant, error)
}

// LeadRecorder creates a lead from a missed call.
type LeadRecorder interface {
	RecordLead(ctx context.Context, tenantID string, req leads.RecordRequest) (string, error)
}

// Notifier fans out a lead-worthy event; it must never return an error
// to this service (see notify.Dispatcher).
type Notifier interface {
	Notify(ctx context.Context, kind notify.Kind, t tenant.Tenant, p notify.Payload) notify.Results
}

// AutoResponder sends the compliance-checked missed-call SMS to the
// caller. sent=false without error means the caller is opted out.
type AutoResponder interface {
	MissedCallReply(ctx context.Context, t tenant.Tenant, callerNumber, providerCallID string) (sent bool, err error)
}

// Service drives the call lifecycle from webhook deliveries:
//
//	ringing -> in_progress -> {completed|busy|no_answer|failed|canceled}
//
// with the forward-to-owner dial leg tracked as its own nested outcome.
// Every method is idempotent on the provider call sid; the row upsert is
// the only serialization point, matching how Twilio retries deliveries.
type Service struct {
	repo     Repository
	resolver Resolver
	leads    LeadRecorder
	notifier Notifier
	auto     AutoResponder

	clock func() time.Time
}

func NewService(repo Repository, resolver Resolver, leadRec LeadRecorder, notifier Notifier, auto AutoResponder) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
		leads:    leadRec,
		notifier: notifier,
		auto:     auto,
		clock:    time.Now,
	}
}

// Forwarding tells the webhook layer how to answer the inbound call.
type Forwarding struct {
	Tenant tenant.Tenant
	Call   CallLog

	ForwardTo        string
	Record           bool
	MachineDetection bool
}

// OnIncomingCall resolves the tenant by the dialed number, records the
// call in ringing state and returns forwarding instructions. Logging
// failures must not block forwarding; only an unusable tenant or a
// missing call sid stops the flow.
func (s *Service) OnIncomingCall(ctx context.Context, dialedNumber, callerNumber, providerCallID string) (Forwarding, error) {
	if strings.TrimSpace(providerCallID) == "" {
		return Forwarding{}, ErrInvalidArgument
	}

	t, err := s.resolveUsable(ctx, dialedNumber)
	if err != nil {
		return Forwarding{}, err
	}

	c, err := s.repo.Upsert(ctx, t.ID, CallLog{
		ID:             uuid.NewString(),
		TenantID:       t.ID,
		ProviderCallID: providerCallID,
		FromNumber:     callerNumber,
		ToNumber:       dialedNumber,
		ForwardedTo:    t.ForwardingNumber,
		Direction:      "inbound",
		Status:         StatusRinging,
	})
	if err != nil {
		// The caller still gets forwarded; the row will be recreated by
		// the next status delivery for this sid.
		logger.From(ctx).Error("call log upsert failed",
			"tenant_id", t.ID, "call_sid", providerCallID, "err", err)
		c = CallLog{TenantID: t.ID, ProviderCallID: providerCallID, Status: StatusRinging}
	}

	return Forwarding{
		Tenant:           t,
		Call:             c,
		ForwardTo:        t.ForwardingNumber,
		Record:           true,
		MachineDetection: true,
	}, nil
}

// StatusMeta is the optional context a status callback carries.
type StatusMeta struct {
	DialedNumber    string
	CallerNumber    string
	DurationSeconds int
	RecordingURL    string
}

// OnCallStatus applies a status callback. Unknown status strings map to
// ringing and are never rejected; a missing sid is the only hard failure.
// On a terminal status with a recording present, the voicemail
// notification fires exactly once per call.
func (s *Service) OnCallStatus(ctx context.Context, providerCallID, rawStatus string, meta StatusMeta) error {
	if strings.TrimSpace(providerCallID) == "" {
		return ErrInvalidArgument
	}

	t, err := s.resolveUsable(ctx, meta.DialedNumber)
	if err != nil {
		return err
	}

	st := NormalizeStatus(rawStatus)

	c, err := s.repo.Upsert(ctx, t.ID, CallLog{
		ID:              uuid.NewString(),
		TenantID:        t.ID,
		ProviderCallID:  providerCallID,
		FromNumber:      meta.CallerNumber,
		ToNumber:        meta.DialedNumber,
		Direction:       "inbound",
		Status:          st,
		DurationSeconds: meta.DurationSeconds,
		RecordingURL:    meta.RecordingURL,
	})
	if err != nil {
		return err
	}

	if st.Terminal() && c.RecordingURL != "" {
		s.notifyVoicemailOnce(ctx, t, c)
	}
	return nil
}

// OnDialStatus applies the outcome of the forward-to-owner leg. Anything
// but completed classifies the call as missed: a phone-source lead is
// recorded and linked to the call, the auto-SMS goes to the caller and
// the missed-call notification to the tenant, each best-effort and
// independent of the others.
func (s *Service) OnDialStatus(ctx context.Context, providerCallID, rawDialStatus string, meta StatusMeta, answeredAt *time.Time) error {
	if strings.TrimSpace(providerCallID) == "" {
		return ErrInvalidArgument
	}

	t, err := s.resolveUsable(ctx, meta.DialedNumber)
	if err != nil {
		return err
	}

	ds := NormalizeDialStatus(rawDialStatus)
	connected := ds == DialCompleted

	c, err := s.repo.Upsert(ctx, t.ID, CallLog{
		ID:               uuid.NewString(),
		TenantID:         t.ID,
		ProviderCallID:   providerCallID,
		FromNumber:       meta.CallerNumber,
		ToNumber:         meta.DialedNumber,
		Direction:        "inbound",
		DialStatus:       ds,
		ConnectedToOwner: connected,
		DurationSeconds:  meta.DurationSeconds,
		AnsweredAt:       answeredAt,
	})
	if err != nil {
		return err
	}

	if connected {
		return nil
	}

	log := logger.From(ctx)

	// The lead_id column keeps the first value written, so retries of
	// the same dial callback see it populated and record nothing new.
	if s.leads != nil && c.LeadID == "" && c.FromNumber != "" {
		leadID, err := s.leads.RecordLead(ctx, t.ID, leads.RecordRequest{
			Phone:  c.FromNumber,
			Source: leads.SourcePhone,
		})
		if err != nil {
			log.Error("missed-call lead create failed",
				"tenant_id", t.ID, "call_sid", providerCallID, "err", err)
		} else {
			c.LeadID = leadID
			if _, err := s.repo.Upsert(ctx, t.ID, CallLog{
				ID:             uuid.NewString(),
				TenantID:       t.ID,
				ProviderCallID: providerCallID,
				LeadID:         leadID,
			}); err != nil {
				log.Error("lead link update failed",
					"tenant_id", t.ID, "call_sid", providerCallID, "err", err)
			}
		}
	}

	if s.auto != nil && c.FromNumber != "" && !c.AutoSMSSent {
		// Claim the auto-response before sending: concurrent retries of
		// the same callback race on the flag, not on the send.
		won, err := s.repo.MarkAutoSMSSent(ctx, t.ID, providerCallID)
		if err != nil {
			log.Error("auto sms claim failed",
				"tenant_id", t.ID, "call_sid", providerCallID, "err", err)
		} else if won {
			if _, err := s.auto.MissedCallReply(ctx, t, c.FromNumber, providerCallID); err != nil {
				log.Error("missed-call auto sms failed",
					"tenant_id", t.ID, "call_sid", providerCallID, "err", err)
			}
		}
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, notify.KindMissedCall, t, notify.Payload{
			CallerNumber: c.FromNumber,
		})
	}
	return nil
}

// OnRecording attaches a recording delivered by the separate recording
// callback and triggers the voicemail notification if the call has
// already reached a terminal state.
func (s *Service) OnRecording(ctx context.Context, providerCallID, dialedNumber, url string, durationSeconds int) error {
	if strings.TrimSpace(providerCallID) == "" {
		return ErrInvalidArgument
	}
	if strings.TrimSpace(url) == "" {
		return ErrInvalidArgument
	}

	t, err := s.resolveUsable(ctx, dialedNumber)
	if err != nil {
		return err
	}

	c, err := s.repo.AttachRecording(ctx, t.ID, providerCallID, url, durationSeconds)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Recording raced ahead of the status callbacks; the upsert
			// path will pick the URL up when the status arrives.
			logger.From(ctx).Warn("recording for unknown call",
				"tenant_id", t.ID, "call_sid", providerCallID)
			return nil
		}
		return err
	}

	if c.Status.Terminal() {
		s.notifyVoicemailOnce(ctx, t, c)
	}
	return nil
}

func (s *Service) notifyVoicemailOnce(ctx context.Context, t tenant.Tenant, c CallLog) {
	log := logger.From(ctx)

	won, err := s.repo.MarkVoicemailNotified(ctx, t.ID, c.ProviderCallID)
	if err != nil {
		log.Error("voicemail flag update failed",
			"tenant_id", t.ID, "call_sid", c.ProviderCallID, "err", err)
		return
	}
	if !won {
		return
	}
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, notify.KindVoicemail, t, notify.Payload{
		CallerNumber:    c.FromNumber,
		RecordingURL:    c.RecordingURL,
		DurationSeconds: c.DurationSeconds,
	})
}

func (s *Service) resolveUsable(ctx context.Context, dialedNumber string) (tenant.Tenant, error) {
	if s.resolver == nil {
		return tenant.Tenant{}, errors.New("calls: resolver not configured")
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
