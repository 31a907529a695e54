package consent

import "time"

// Event is an immutable record of a messaging-consent transition. A2P
// 10DLC audits ask for proof of when a subscriber opted out or back in,
// so these rows are append-only and never updated or deleted.
//
// Storage recommendation (Postgres): consent_events table with an
// INSERT-only policy and the usual tenant RLS.
type Event struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	// PhoneNumber is the subscriber the transition applies to.
	PhoneNumber string `json:"phone_number" db:"phone_number"`

	Action Action `json:"action" db:"action"`

	// Keyword is the inbound text that caused the transition (already
	// normalized, e.g. "STOP").
	Keyword string `json:"keyword,omitempty" db:"keyword"`

	// CopyVersion pins which revision of the compliance reply text was
	// sent back, so the exact wording can be reproduced later.
	CopyVersion string `json:"copy_version,omitempty" db:"copy_version"`

	// SourceIP is best-effort; webhook deliveries carry Twilio's IP, form
	// intake carries the visitor's.
	SourceIP string `json:"source_ip,omitempty" db:"source_ip"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Action string

const (
	ActionOptOut Action = "opt_out"
	ActionOptIn  Action = "opt_in"
)
