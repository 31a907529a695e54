package sms

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"leadline/internal/consent"
	"leadline/internal/leads"
	"leadline/internal/notify"
	"leadline/internal/tenant"
)

type fakeNotifier struct {
	mu    sync.Mutex
	kinds []notify.Kind
}

func (f *fakeNotifier) Notify(ctx context.Context, kind notify.Kind, t tenant.Tenant, p notify.Payload) notify.Results {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
	return notify.Results{}
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	err   error
}

func (f *fakeSender) Send(ctx context.Context, from, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, body)
	return nil
}

func smsTenant() tenant.Tenant {
	return tenant.Tenant{
		ID:               "t1",
		Slug:             "acme-roofing",
		BusinessName:     "Acme Roofing",
		TwilioNumber:     "+15550001111",
		ForwardingNumber: "+15552223333",
		CallbackWindow:   "within 2 business hours",
		UrgentPhone:      "+15550009999",
		Status:           tenant.StatusActive,
	}
}

type fixture struct {
	svc      *Service
	repo     *MemoryRepo
	optOuts  *MemoryOptOutStore
	consents *consent.MemoryRepo
	leadRepo *leads.MemoryRepo
	notifier *fakeNotifier
	sender   *fakeSender
}

func newFixture() *fixture {
	f := &fixture{
		repo:     NewMemoryRepo(),
		optOuts:  NewMemoryOptOutStore(),
		consents: consent.NewMemoryRepo(),
		leadRepo: leads.NewMemoryRepo(),
		notifier: &fakeNotifier{},
		sender:   &fakeSender{},
	}
	resolver := tenant.NewResolver(tenant.NewMemoryRepo(smsTenant()), nil)
	f.svc = NewService(
		f.repo,
		resolver,
		f.optOuts,
		consent.NewService(f.consents),
		leads.NewService(f.leadRepo),
		f.notifier,
		f.sender,
	)
	return f
}

func incoming(body, sid string) IncomingSms {
	return IncomingSms{
		DialedNumber: "+15550001111",
		From:         "+15559998888",
		Body:         body,
		MessageSID:   sid,
		SourceIP:     "3.3.3.3",
	}
}

func TestOnIncomingSms_StopOptsOutWithExactCopy(t *testing.T) {
	f := newFixture()

	reply, err := f.svc.OnIncomingSms(context.Background(), incoming("  stop ", "SM1"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	// Byte-for-byte: compliance copy is a fixed contract.
	if reply != StopReply {
		t.Fatalf("opt-out reply mismatch:\n got: %q\nwant: %q", reply, StopReply)
	}

	out, _ := f.optOuts.IsOptedOut(context.Background(), "t1", "+15559998888")
	if !out {
		t.Fatalf("expected caller opted out")
	}

	events := f.consents.Events()
	if len(events) != 1 || events[0].Action != consent.ActionOptOut || events[0].Keyword != "STOP" {
		t.Fatalf("expected one opt-out consent event, got %+v", events)
	}
	if events[0].CopyVersion != CopyVersion {
		t.Fatalf("expected copy version pinned on consent event")
	}
}

func TestOnIncomingSms_OptedOutGenericMessageGetsNoReply(t *testing.T) {
	f := newFixture()

	if _, err := f.svc.OnIncomingSms(context.Background(), incoming("STOP", "SM1")); err != nil {
		t.Fatalf("stop: %v", err)
	}

	reply, err := f.svc.OnIncomingSms(context.Background(), incoming("need a quote", "SM2"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if reply != "" {
		t.Fatalf("opted-out caller must not get a marketing reply, got %q", reply)
	}

	// The inbound message is still logged.
	if _, err := f.repo.GetByProviderID(context.Background(), "t1", "SM2"); err != nil {
		t.Fatalf("expected inbound message logged, got %v", err)
	}
	// And no lead is created from it.
	if got := len(f.leadRepo.All()); got != 0 {
		t.Fatalf("expected no lead for opted-out caller, got %d", got)
	}
}

func TestOnIncomingSms_StartAfterStopResubscribes(t *testing.T) {
	f := newFixture()

	if _, err := f.svc.OnIncomingSms(context.Background(), incoming("STOP", "SM1")); err != nil {
		t.Fatalf("stop: %v", err)
	}
	reply, err := f.svc.OnIncomingSms(context.Background(), incoming("start", "SM2"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if reply != StartReply {
		t.Fatalf("re-opt-in reply mismatch:\n got: %q\nwant: %q", reply, StartReply)
	}

	out, _ := f.optOuts.IsOptedOut(context.Background(), "t1", "+15559998888")
	if out {
		t.Fatalf("expected caller re-subscribed")
	}

	events := f.consents.Events()
	if len(events) != 2 || events[1].Action != consent.ActionOptIn {
		t.Fatalf("expected opt-out then opt-in events, got %+v", events)
	}
}

func TestOnIncomingSms_HelpIsTransient(t *testing.T) {
	f := newFixture()

	reply, err := f.svc.OnIncomingSms(context.Background(), incoming("HELP", "SM1"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if reply != HelpReply {
		t.Fatalf("help reply mismatch:\n got: %q\nwant: %q", reply, HelpReply)
	}

	// No consent transition, no state change.
	if len(f.consents.Events()) != 0 {
		t.Fatalf("help must not produce consent events")
	}
	out, _ := f.optOuts.IsOptedOut(context.Background(), "t1", "+15559998888")
	if out {
		t.Fatalf("help must not change subscription state")
	}
}

func TestOnIncomingSms_DefaultCreatesLeadAndAutoReplies(t *testing.T) {
	f := newFixture()

	reply, err := f.svc.OnIncomingSms(context.Background(), incoming("Do you do metal roofs?", "SM1"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(reply, "Acme Roofing") {
		t.Fatalf("expected business name in auto-reply, got %q", reply)
	}
	if !strings.Contains(reply, "within 2 business hours") {
		t.Fatalf("expected callback window in auto-reply, got %q", reply)
	}
	if !strings.Contains(reply, "+15550009999") {
		t.Fatalf("expected urgent phone in auto-reply, got %q", reply)
	}

	all := f.leadRepo.All()
	if len(all) != 1 {
		t.Fatalf("expected one lead, got %d", len(all))
	}
	if all[0].Source != leads.SourceSMS {
		t.Fatalf("expected sms source, got %q", all[0].Source)
	}

	// Inbound row carries the lead link; the reply row references the
	// inbound sid.
	in, err := f.repo.GetByProviderID(context.Background(), "t1", "SM1")
	if err != nil {
		t.Fatalf("expected inbound row, got %v", err)
	}
	if in.LeadID != all[0].ID {
		t.Fatalf("expected inbound row linked to lead")
	}
	var autoRows int
	for _, m := range f.repo.All() {
		if m.IsAutoResponse {
			autoRows++
			if m.TriggeredBySID != "SM1" {
				t.Fatalf("auto-response must reference the triggering message, got %q", m.TriggeredBySID)
			}
		}
	}
	if autoRows != 1 {
		t.Fatalf("expected one auto-response row, got %d", autoRows)
	}

	if len(f.notifier.kinds) != 1 || f.notifier.kinds[0] != notify.KindNewLead {
		t.Fatalf("expected one new-lead notification, got %v", f.notifier.kinds)
	}
}

func TestOnIncomingSms_TemplateDegradesWithEmptyTenantFields(t *testing.T) {
	bare := smsTenant()
	bare.BusinessName = ""
	bare.CallbackWindow = ""
	bare.UrgentPhone = ""

	f := newFixture()
	f.svc.resolver = tenant.NewResolver(tenant.NewMemoryRepo(bare), nil)

	reply, err := f.svc.OnIncomingSms(context.Background(), incoming("hello", "SM1"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(reply, "our team") || !strings.Contains(reply, "as soon as possible") {
		t.Fatalf("expected generic placeholders, got %q", reply)
	}
}

func TestOnIncomingSms_MissingSIDRejected(t *testing.T) {
	f := newFixture()
	_, err := f.svc.OnIncomingSms(context.Background(), incoming("hi", "  "))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestOnIncomingSms_UnknownNumber(t *testing.T) {
	f := newFixture()
	in := incoming("hi", "SM1")
	in.DialedNumber = "+15550007777"
	_, err := f.svc.OnIncomingSms(context.Background(), in)
	if !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
}

func TestMissedCallReply_RespectsOptOut(t *testing.T) {
	f := newFixture()

	_ = f.optOuts.SetOptedOut(context.Background(), "t1", "+15559998888", true)
	sent, err := f.svc.MissedCallReply(context.Background(), smsTenant(), "+15559998888", "CA1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sent {
		t.Fatalf("opted-out caller must not receive the missed-call sms")
	}
	if len(f.sender.sent) != 0 {
		t.Fatalf("expected nothing sent")
	}
}

func TestMissedCallReply_SendsAndLogs(t *testing.T) {
	f := newFixture()

	sent, err := f.svc.MissedCallReply(context.Background(), smsTenant(), "+15559998888", "CA1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !sent {
		t.Fatalf("expected sms sent")
	}
	if len(f.sender.sent) != 1 || !strings.Contains(f.sender.sent[0], "Sorry we missed your call") {
		t.Fatalf("unexpected sends: %v", f.sender.sent)
	}

	var autoRows int
	for _, m := range f.repo.All() {
		if m.IsAutoResponse && m.TriggeredBySID == "CA1" {
			autoRows++
		}
	}
	if autoRows != 1 {
		t.Fatalf("expected one auto-sms log row, got %d", autoRows)
	}
}

func TestMissedCallReply_SenderFailureSurfaces(t *testing.T) {
	f := newFixture()
	f.sender.err = errors.New("twilio 500")

	sent, err := f.svc.MissedCallReply(context.Background(), smsTenant(), "+15559998888", "CA1")
	if err == nil || sent {
		t.Fatalf("expected send failure, got sent=%v err=%v", sent, err)
	}
}

func TestNormalizeStatus(t *testing.T) {
	if got := NormalizeStatus("Delivered"); got != StatusDelivered {
		t.Fatalf("expected delivered, got %q", got)
	}
	if got := NormalizeStatus("whatever"); got != StatusQueued {
		t.Fatalf("unknown status must default to queued, got %q", got)
	}
}
