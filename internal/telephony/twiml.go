package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"net/url"
	"strings"

	"leadline/internal/calls"
)

// Minimal TwiML builder. It intentionally avoids any provider SDK
// dependency; only the verbs this pipeline emits are modeled.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlDial struct {
	XMLName xml.Name `xml:"Dial"`

	Action                        string `xml:"action,attr,omitempty"`
	Method                        string `xml:"method,attr,omitempty"`
	Timeout                       string `xml:"timeout,attr,omitempty"`
	Record                        string `xml:"record,attr,omitempty"`
	AnswerOnBridge                string `xml:"answerOnBridge,attr,omitempty"`
	RecordingStatusCallback       string `xml:"recordingStatusCallback,attr,omitempty"`
	RecordingStatusCallbackMethod string `xml:"recordingStatusCallbackMethod,attr,omitempty"`

	Number string `xml:"Number,omitempty"`
}

type twimlMessage struct {
	XMLName xml.Name `xml:"Message"`
	Body    string   `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// DialCallbacks are the URLs handed to Twilio for the forwarded leg.
type DialCallbacks struct {
	// ActionURL receives the dial outcome (DialCallStatus).
	ActionURL string
	// RecordingURL receives recording status callbacks. The dialed
	// number rides along as a query parameter so the recording handler
	// can resolve the tenant.
	RecordingURL string
}

// ForwardCallbacks builds the callback URLs for a forwarded call.
func ForwardCallbacks(baseURL, dialedNumber string) DialCallbacks {
	base := strings.TrimRight(baseURL, "/")
	return DialCallbacks{
		ActionURL: base + "/webhooks/twilio/voice/dial",
		RecordingURL: base + "/webhooks/twilio/voice/recording?to=" +
			url.QueryEscape(dialedNumber),
	}
}

// RenderForward maps forwarding instructions to a Dial verb.
func RenderForward(f calls.Forwarding, cb DialCallbacks) (string, error) {
	if strings.TrimSpace(f.ForwardTo) == "" {
		return "", errors.New("telephony: forwarding number required")
	}

	d := twimlDial{
		Action:  cb.ActionURL,
		Method:  "POST",
		Timeout: "20",
		Number:  f.ForwardTo,
	}
	if f.Record {
		d.Record = "record-from-answer-dual"
		d.RecordingStatusCallback = cb.RecordingURL
		d.RecordingStatusCallbackMethod = "POST"
	}
	if f.MachineDetection {
		// Answer-on-bridge keeps the caller hearing ringback until the
		// owner actually picks up, so voicemail systems don't swallow
		// the bridge prematurely.
		d.AnswerOnBridge = "true"
	}

	return renderResponse(d)
}

// RenderMessage wraps a reply body in a Message verb. An empty body
// renders an empty Response, which tells Twilio to send nothing.
func RenderMessage(body string) (string, error) {
	if body == "" {
		return RenderEmpty()
	}
	return renderResponse(twimlMessage{Body: body})
}

// RenderHangup ends the call after the dial action completes.
func RenderHangup() (string, error) {
	return renderResponse(twimlHangup{})
}

// RenderEmpty is the no-op TwiML document.
func RenderEmpty() (string, error) {
	return renderResponse()
}

func renderResponse(verbs ...any) (string, error) {
	var r twimlResponse
	r.Verbs = append(r.Verbs, verbs...)

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
