package telephony

import (
	"strings"
	"testing"

	"leadline/internal/calls"
)

func TestRenderForward(t *testing.T) {
	fwd := calls.Forwarding{
		ForwardTo:        "+15552223333",
		Record:           true,
		MachineDetection: true,
	}
	cb := ForwardCallbacks("https://hooks.example.com/", "+15550001111")

	xml, err := RenderForward(fwd, cb)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{
		"<Dial",
		`action="https://hooks.example.com/webhooks/twilio/voice/dial"`,
		`record="record-from-answer-dual"`,
		"%2B15550001111",
		"<Number>+15552223333</Number>",
	} {
		if !strings.Contains(xml, want) {
			t.Fatalf("expected %q in twiml:\n%s", want, xml)
		}
	}
}

func TestRenderForwardRequiresTarget(t *testing.T) {
	_, err := RenderForward(calls.Forwarding{}, DialCallbacks{})
	if err == nil {
		t.Fatalf("expected error for missing forwarding number")
	}
}

func TestRenderMessage(t *testing.T) {
	xml, err := RenderMessage("Reply STOP to unsubscribe. Msg&Data Rates May Apply.")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(xml, "<Message>") {
		t.Fatalf("expected Message verb:\n%s", xml)
	}
	// The encoder must escape the ampersand in the body.
	if !strings.Contains(xml, "Msg&amp;Data") {
		t.Fatalf("expected escaped body:\n%s", xml)
	}
}

func TestRenderMessageEmptyBodyIsEmptyResponse(t *testing.T) {
	xml, err := RenderMessage("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if strings.Contains(xml, "<Message") {
		t.Fatalf("expected no Message verb:\n%s", xml)
	}
	if !strings.Contains(xml, "<Response") {
		t.Fatalf("expected Response element:\n%s", xml)
	}
}

func TestRenderHangup(t *testing.T) {
	xml, err := RenderHangup()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(xml, "<Hangup") {
		t.Fatalf("expected Hangup verb:\n%s", xml)
	}
}
