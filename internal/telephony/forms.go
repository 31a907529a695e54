package telephony

import (
	"net/http"
	"strconv"
	"strings"
)

// Form parsing for the Twilio webhook payloads. Twilio posts
// application/x-www-form-urlencoded; only the fields the pipeline
// consumes are captured. Business decisions are not made here.

// VoiceInboundForm is the initial voice webhook for a ringing call.
type VoiceInboundForm struct {
	CallSid    string
	AccountSid string
	From       string
	To         string
	CallStatus string
	Direction  string
}

func ParseVoiceInbound(r *http.Request) (VoiceInboundForm, error) {
	if err := r.ParseForm(); err != nil {
		return VoiceInboundForm{}, err
	}
	return VoiceInboundForm{
		CallSid:    r.PostFormValue("CallSid"),
		AccountSid: r.PostFormValue("AccountSid"),
		From:       normalizePhone(r.PostFormValue("From")),
		To:         normalizePhone(r.PostFormValue("To")),
		CallStatus: r.PostFormValue("CallStatus"),
		Direction:  r.PostFormValue("Direction"),
	}, nil
}

// CallStatusForm is the call lifecycle status callback.
type CallStatusForm struct {
	CallSid         string
	From            string
	To              string
	CallStatus      string
	DurationSeconds int
	RecordingURL    string
}

func ParseCallStatus(r *http.Request) (CallStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return CallStatusForm{}, err
	}
	return CallStatusForm{
		CallSid:         r.PostFormValue("CallSid"),
		From:            normalizePhone(r.PostFormValue("From")),
		To:              normalizePhone(r.PostFormValue("To")),
		CallStatus:      r.PostFormValue("CallStatus"),
		DurationSeconds: formInt(r, "CallDuration"),
		RecordingURL:    r.PostFormValue("RecordingUrl"),
	}, nil
}

// DialStatusForm is the outcome of the forward-to-owner dial leg,
// delivered to the Dial verb's action URL.
type DialStatusForm struct {
	CallSid         string
	From            string
	To              string
	DialCallStatus  string
	DurationSeconds int
}

func ParseDialStatus(r *http.Request) (DialStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return DialStatusForm{}, err
	}
	return DialStatusForm{
		CallSid:         r.PostFormValue("CallSid"),
		From:            normalizePhone(r.PostFormValue("From")),
		To:              normalizePhone(r.PostFormValue("To")),
		DialCallStatus:  r.PostFormValue("DialCallStatus"),
		DurationSeconds: formInt(r, "DialCallDuration"),
	}, nil
}

// RecordingForm is the recording status callback. Twilio does not echo
// the dialed number here, so the callback URL we hand out carries it as
// a query parameter (see DialCallbacks).
type RecordingForm struct {
	CallSid         string
	To              string
	RecordingURL    string
	RecordingStatus string
	DurationSeconds int
}

func ParseRecording(r *http.Request) (RecordingForm, error) {
	if err := r.ParseForm(); err != nil {
		return RecordingForm{}, err
	}
	to := r.URL.Query().Get("to")
	if to == "" {
		to = r.PostFormValue("To")
	}
	return RecordingForm{
		CallSid:         r.PostFormValue("CallSid"),
		To:              normalizePhone(to),
		RecordingURL:    r.PostFormValue("RecordingUrl"),
		RecordingStatus: r.PostFormValue("RecordingStatus"),
		DurationSeconds: formInt(r, "RecordingDuration"),
	}, nil
}

// SmsInboundForm is the inbound message webhook.
type SmsInboundForm struct {
	MessageSid string
	AccountSid string
	From       string
	To         string
	Body       string
	SmsStatus  string
}

func ParseSmsInbound(r *http.Request) (SmsInboundForm, error) {
	if err := r.ParseForm(); err != nil {
		return SmsInboundForm{}, err
	}
	return SmsInboundForm{
		MessageSid: r.PostFormValue("MessageSid"),
		AccountSid: r.PostFormValue("AccountSid"),
		From:       normalizePhone(r.PostFormValue("From")),
		To:         normalizePhone(r.PostFormValue("To")),
		Body:       r.PostFormValue("Body"),
		SmsStatus:  r.PostFormValue("SmsStatus"),
	}, nil
}

func normalizePhone(s string) string {
	// Twilio sometimes sends "anonymous" or empty; keep as-is.
	return strings.TrimSpace(s)
}

func formInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue(key)))
	if err != nil {
		return 0
	}
	return n
}
