package calls

import "time"

// CallLog is one row per distinct call leg, keyed by the provider's call
// sid. A call's life is reconstructed from independent stateless webhook
// deliveries, so all state lives on this row, never in process memory:
// updates are upsert-by-sid and must tolerate out-of-order and duplicate
// deliveries.
//
// Tenancy invariant: TenantID is required on every row and enforced by
// row-level security via tenantctx.
type CallLog struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	// ProviderCallID is the Twilio CallSid. Unique.
	ProviderCallID string `json:"provider_call_id" db:"provider_call_id"`

	FromNumber  string `json:"from_number" db:"from_number"`
	ToNumber    string `json:"to_number" db:"to_number"`
	ForwardedTo string `json:"forwarded_to" db:"forwarded_to"`

	Direction string `json:"direction" db:"direction"`

	Status     Status     `json:"status" db:"status"`
	DialStatus DialStatus `json:"dial_status,omitempty" db:"dial_status"`

	DurationSeconds int    `json:"duration_seconds" db:"duration_seconds"`
	RecordingURL    string `json:"recording_url,omitempty" db:"recording_url"`

	ConnectedToOwner bool `json:"connected_to_owner" db:"connected_to_owner"`
	AutoSMSSent      bool `json:"auto_sms_sent" db:"auto_sms_sent"`

	// VoicemailNotified guards the voicemail notification so provider
	// retries of a terminal callback fire it at most once.
	VoicemailNotified bool `json:"voicemail_notified" db:"voicemail_notified"`

	LeadID string `json:"lead_id,omitempty" db:"lead_id"`

	// AnsweredAt is set-once (monotonic); later deliveries never move it.
	AnsweredAt *time.Time `json:"answered_at,omitempty" db:"answered_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Status is the inbound call lifecycle:
// ringing -> in_progress -> {completed|busy|no_answer|failed|canceled}.
type Status string

const (
	StatusRinging    Status = "ringing"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusBusy       Status = "busy"
	StatusNoAnswer   Status = "no_answer"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Terminal reports whether no further status transitions are expected.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusBusy, StatusNoAnswer, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// DialStatus is the outcome of the nested forward-to-owner leg.
type DialStatus string

const (
	DialCompleted DialStatus = "completed"
	DialNoAnswer  DialStatus = "no_answer"
	DialBusy      DialStatus = "busy"
	DialFailed    DialStatus = "failed"
	DialCanceled  DialStatus = "canceled"
)

// NormalizeStatus maps a raw provider status string into the closed status
// set. Unknown or empty input maps to ringing: a malformed status must
// never reject a webhook, only a missing call sid does.
func NormalizeStatus(raw string) Status {
	switch normalize(raw) {
	case "queued", "initiated", "ringing", "":
		return StatusRinging
	case "in-progress", "in_progress", "answered":
		return StatusInProgress
	case "completed":
		return StatusCompleted
	case "busy":
		return StatusBusy
	case "no-answer", "no_answer":
		return StatusNoAnswer
	case "failed":
		return StatusFailed
	case "canceled", "cancelled":
		return StatusCanceled
	default:
		return StatusRinging
	}
}

// NormalizeDialStatus maps a raw dial outcome into the closed set.
// Unknown or empty input maps to no_answer, the conservative default:
// a dropped outcome is treated as a missed call so no lead is lost.
func NormalizeDialStatus(raw string) DialStatus {
	switch normalize(raw) {
	case "completed", "answered":
		return DialCompleted
	case "busy":
		return DialBusy
	case "failed":
		return DialFailed
	case "canceled", "cancelled":
		return DialCanceled
	case "no-answer", "no_answer":
		return DialNoAnswer
	default:
		return DialNoAnswer
	}
}

func normalize(raw string) string {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			continue
		}
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
