package sms

import "time"

// SmsLog is one row per distinct message, keyed by the provider message
// sid. Like call logs, rows are created on first delivery for a sid and
// updated by later deliveries; the core never deletes them.
//
// Invariant: an auto-response row always carries TriggeredBySID pointing
// at the inbound message (or call) that caused it.
type SmsLog struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	// ProviderMessageID is the Twilio MessageSid. Unique.
	ProviderMessageID string `json:"provider_message_id" db:"provider_message_id"`

	FromNumber string `json:"from_number" db:"from_number"`
	ToNumber   string `json:"to_number" db:"to_number"`
	Body       string `json:"body" db:"body"`

	Status    Status `json:"status" db:"status"`
	Direction string `json:"direction" db:"direction"`

	IsAutoResponse bool   `json:"is_auto_response" db:"is_auto_response"`
	TriggeredBySID string `json:"triggered_by_sid,omitempty" db:"triggered_by_sid"`

	LeadID string `json:"lead_id,omitempty" db:"lead_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusQueued      Status = "queued"
	StatusSending     Status = "sending"
	StatusSent        Status = "sent"
	StatusDelivered   Status = "delivered"
	StatusUndelivered Status = "undelivered"
	StatusFailed      Status = "failed"
	StatusReceived    Status = "received"
)

// NormalizeStatus maps a raw provider message status into the closed
// set. Unknown or empty input maps to queued, the earliest state, so a
// later delivery can still advance it.
func NormalizeStatus(raw string) Status {
	switch Status(normalizeToken(raw)) {
	case StatusQueued, StatusSending, StatusSent, StatusDelivered, StatusUndelivered, StatusFailed, StatusReceived:
		return Status(normalizeToken(raw))
	default:
		return StatusQueued
	}
}

func normalizeToken(raw string) string {
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
