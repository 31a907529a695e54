package sms

import (
	"fmt"
	"strings"

	"leadline/internal/tenant"
)

// Compliance reply copy. These strings are carrier-facing legal
// contracts under A2P 10DLC: they are versioned constants, sent
// byte-for-byte, and changed only through compliance review — never
// paraphrased or templated.
const (
	// CopyVersion tags consent audit rows with the copy revision in
	// effect when the reply was sent.
	CopyVersion = "v1"

	StopReply = "You have successfully been unsubscribed. You will not receive any more messages from this number. Reply START to resubscribe."

	StartReply = "You have successfully been re-subscribed to messages from this number. Reply HELP for help. Reply STOP to unsubscribe. Msg&Data Rates May Apply."

	HelpReply = "Reply STOP to unsubscribe. Msg&Data Rates May Apply."
)

// RenderAutoReply fills the generic lead auto-reply with tenant data.
// Missing tenant fields degrade to generic placeholders; a half-onboarded
// tenant must never fail the webhook.
func RenderAutoReply(t tenant.Tenant) string {
	business := strings.TrimSpace(t.BusinessName)
	if business == "" {
		business = "our team"
	}
	window := strings.TrimSpace(t.CallbackWindow)
	if window == "" {
		window = "as soon as possible"
	}

	reply := fmt.Sprintf(
		"Thanks for reaching out to %s! We received your message and will get back to you %s.",
		business, window,
	)
	if urgent := strings.TrimSpace(t.UrgentPhone); urgent != "" {
		reply += fmt.Sprintf(" For urgent matters, call us at %s.", urgent)
	}
	return reply
}

// RenderMissedCallReply is the text sent to a caller the owner could not
// pick up for. Same degradation rules as RenderAutoReply.
func RenderMissedCallReply(t tenant.Tenant) string {
	business := strings.TrimSpace(t.BusinessName)
	if business == "" {
		business = "us"
	}
	window := strings.TrimSpace(t.CallbackWindow)
	if window == "" {
		window = "as soon as possible"
	}
	return fmt.Sprintf(
		"Sorry we missed your call to %s! Reply with what you need and we'll get back to you %s.",
		business, window,
	)
}
