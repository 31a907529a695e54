package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"leadline/internal/tenant"
)

// Kind is the class of lead-worthy event being announced to the tenant.
type Kind string

const (
	KindNewLead    Kind = "new_lead"
	KindVoicemail  Kind = "voicemail"
	KindMissedCall Kind = "missed_call"
)

// Payload carries the event details rendered into each channel's message.
type Payload struct {
	CallerNumber    string
	LeadName        string
	Message         string
	RecordingURL    string
	DurationSeconds int
}

// EmailSender is the outbound email transport contract.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMSSender is the outbound SMS transport contract.
// from is the tenant's tracked number.
type SMSSender interface {
	Send(ctx context.Context, from, to, body string) error
}

// ChannelResult records one channel attempt. Exactly one of Sent, Skipped
// or Err describes the outcome; a failure here never propagates to the
// webhook that triggered it.
type ChannelResult struct {
	Channel string
	Sent    bool
	Skipped bool
	Err     error
}

type Results struct {
	Email ChannelResult
	SMS   ChannelResult
}

// Dispatcher fans a notification out to the tenant's email and SMS
// channels. Channels are attempted concurrently and independently: one
// slow or failing channel never blocks the other, and neither blocks the
// webhook response longer than the per-channel timeout.
//
// There is no retry or backoff; a failed attempt is terminal and surfaced
// only via logs and the returned Results.
type Dispatcher struct {
	email EmailSender
	sms   SMSSender

	// enabled=false turns the whole dispatcher into a no-op; this is a
	// normal configuration outcome, not an error.
	enabled bool

	channelTimeout time.Duration
	log            *slog.Logger
}

func NewDispatcher(email EmailSender, sms SMSSender, enabled bool, channelTimeout time.Duration, log *slog.Logger) *Dispatcher {
	if channelTimeout <= 0 {
		channelTimeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		email:          email,
		sms:            sms,
		enabled:        enabled,
		channelTimeout: channelTimeout,
		log:            log,
	}
}

// Notify never returns an error: webhook callers depend on it being
// fire-and-forget. Inspect Results when the caller needs per-channel
// outcomes (tests, auto-sms bookkeeping).
func (d *Dispatcher) Notify(ctx context.Context, kind Kind, t tenant.Tenant, p Payload) Results {
	res := Results{
		Email: ChannelResult{Channel: "email", Skipped: true},
		SMS:   ChannelResult{Channel: "sms", Skipped: true},
	}
	if !d.enabled {
		return res
	}

	subject, body := renderEmail(kind, t, p)
	smsBody := renderSMS(kind, t, p)

	var wg sync.WaitGroup

	if d.email != nil && t.NotifyEmail != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, d.channelTimeout)
			defer cancel()
			if err := d.email.Send(cctx, t.NotifyEmail, subject, body); err != nil {
				d.log.Error("notification email failed",
					"tenant_id", t.ID, "kind", string(kind), "err", err)
				res.Email = ChannelResult{Channel: "email", Err: err}
				return
			}
			res.Email = ChannelResult{Channel: "email", Sent: true}
		}()
	}

	if d.sms != nil && t.NotifyPhone != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, d.channelTimeout)
			defer cancel()
			if err := d.sms.Send(cctx, t.TwilioNumber, t.NotifyPhone, smsBody); err != nil {
				d.log.Error("notification sms failed",
					"tenant_id", t.ID, "kind", string(kind), "err", err)
				res.SMS = ChannelResult{Channel: "sms", Err: err}
				return
			}
			res.SMS = ChannelResult{Channel: "sms", Sent: true}
		}()
	}

	wg.Wait()
	return res
}

func renderEmail(kind Kind, t tenant.Tenant, p Payload) (subject, body string) {
	name := t.BusinessName
	if name == "" {
		name = t.Slug
	}

	var b strings.Builder
	switch kind {
	case KindNewLead:
		subject = fmt.Sprintf("New lead for %s", name)
		b.WriteString("You have a new lead.\n\n")
		if p.LeadName != "" {
			fmt.Fprintf(&b, "Name: %s\n", p.LeadName)
		}
		if p.CallerNumber != "" {
			fmt.Fprintf(&b, "Phone: %s\n", p.CallerNumber)
		}
		if p.Message != "" {
			fmt.Fprintf(&b, "Message: %s\n", p.Message)
		}
	case KindVoicemail:
		subject = fmt.Sprintf("New voicemail for %s", name)
		fmt.Fprintf(&b, "A caller left a voicemail from %s.\n", orUnknown(p.CallerNumber))
		if p.DurationSeconds > 0 {
			fmt.Fprintf(&b, "Duration: %ds\n", p.DurationSeconds)
		}
		if p.RecordingURL != "" {
			fmt.Fprintf(&b, "Recording: %s\n", p.RecordingURL)
		}
	case KindMissedCall:
		subject = fmt.Sprintf("Missed call for %s", name)
		fmt.Fprintf(&b, "You missed a call from %s.\n", orUnknown(p.CallerNumber))
		b.WriteString("An automatic text was sent to the caller if they are subscribed.\n")
	default:
		subject = fmt.Sprintf("Notification for %s", name)
	}
	return subject, b.String()
}

func renderSMS(kind Kind, t tenant.Tenant, p Payload) string {
	switch kind {
	case KindNewLead:
		if p.LeadName != "" {
			return fmt.Sprintf("New lead: %s %s", p.LeadName, p.CallerNumber)
		}
		return fmt.Sprintf("New lead: %s", orUnknown(p.CallerNumber))
	case KindVoicemail:
		return fmt.Sprintf("New voicemail from %s", orUnknown(p.CallerNumber))
	case KindMissedCall:
		return fmt.Sprintf("Missed call from %s", orUnknown(p.CallerNumber))
	default:
		return "New activity on your account"
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "an unknown number"
	}
	return s
}
