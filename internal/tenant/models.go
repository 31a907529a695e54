package tenant

import "time"

// Tenant is a business account ("client"). Every core entity hangs off a
// tenant id, and row-level security in Postgres enforces that at the data
// layer (see tenantctx).
//
// Created at onboarding; the telephony core only reads it and never
// deletes it.
type Tenant struct {
	ID   string `json:"id" db:"id"`
	Slug string `json:"slug" db:"slug"`

	BusinessName string `json:"business_name" db:"business_name"`

	// Domain is the landing-page host mapped to this tenant, if any.
	Domain string `json:"domain,omitempty" db:"domain"`

	// TwilioNumber is the tracked number Twilio routes inbound traffic to.
	// ForwardingNumber is the owner's real phone the call leg is dialed to.
	TwilioNumber     string `json:"twilio_number" db:"twilio_number"`
	ForwardingNumber string `json:"forwarding_number" db:"forwarding_number"`

	// Notification targets. Empty means the channel is disabled for this
	// tenant, which is a normal outcome rather than an error.
	NotifyEmail string `json:"notify_email,omitempty" db:"notify_email"`
	NotifyPhone string `json:"notify_phone,omitempty" db:"notify_phone"`

	// Auto-reply template inputs. Missing values degrade to generic
	// placeholders; they never fail a webhook.
	CallbackWindow string `json:"callback_window,omitempty" db:"callback_window"`
	UrgentPhone    string `json:"urgent_phone,omitempty" db:"urgent_phone"`

	Status Status `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
	StatusTrial     Status = "trial"
)

// Usable reports whether the tenant may receive calls/SMS at all.
// Suspended and inactive tenants resolve, but the pipeline treats them
// like a not-found so nothing is forwarded or auto-sent on their behalf.
func (t Tenant) Usable() bool {
	return t.Status == StatusActive || t.Status == StatusTrial
}
