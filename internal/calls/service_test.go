package calls

import (
	"context"
	"errors"
	"sync"
	"testing"

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

func (f *fakeNotifier) count(kind notify.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range f.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

type fakeAutoResponder struct {
	calls int
	sent  bool
	err   error
}

func (f *fakeAutoResponder) MissedCallReply(ctx context.Context, t tenant.Tenant, callerNumber, providerCallID string) (bool, error) {
	f.calls++
	return f.sent, f.err
}

func testTenant() tenant.Tenant {
	return tenant.Tenant{
		ID:               "t1",
		Slug:             "acme-roofing",
		BusinessName:     "Acme Roofing",
		TwilioNumber:     "+15550001111",
		ForwardingNumber: "+15552223333",
		NotifyEmail:      "owner@acme.test",
		NotifyPhone:      "+15554445555",
		Status:           tenant.StatusActive,
	}
}

func newTestService(nt *fakeNotifier, auto *fakeAutoResponder) (*Service, *MemoryRepo, *leads.MemoryRepo) {
	repo := NewMemoryRepo()
	leadRepo := leads.NewMemoryRepo()
	resolver := tenant.NewResolver(tenant.NewMemoryRepo(testTenant()), nil)
	return NewService(repo, resolver, leads.NewService(leadRepo), nt, auto), repo, leadRepo
}

func TestOnIncomingCall_CreatesRingingRow(t *testing.T) {
	svc, repo, _ := newTestService(&fakeNotifier{}, nil)

	fwd, err := svc.OnIncomingCall(context.Background(), "+15550001111", "+15559998888", "CA123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fwd.ForwardTo != "+15552223333" {
		t.Fatalf("expected forwarding to owner number, got %q", fwd.ForwardTo)
	}
	if !fwd.Record {
		t.Fatalf("expected recording requested")
	}

	c, err := repo.GetByProviderID(context.Background(), "t1", "CA123")
	if err != nil {
		t.Fatalf("expected call row, got %v", err)
	}
	if c.Status != StatusRinging {
		t.Fatalf("expected ringing, got %q", c.Status)
	}
}

func TestOnIncomingCall_RejectsMissingCallID(t *testing.T) {
	svc, _, _ := newTestService(&fakeNotifier{}, nil)

	_, err := svc.OnIncomingCall(context.Background(), "+15550001111", "+15559998888", "  ")
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestOnIncomingCall_UnknownNumber(t *testing.T) {
	svc, _, _ := newTestService(&fakeNotifier{}, nil)

	_, err := svc.OnIncomingCall(context.Background(), "+15550009999", "+15559998888", "CA123")
	if !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
}

func TestOnCallStatus_RetriesCollapseToOneRow(t *testing.T) {
	nt := &fakeNotifier{}
	svc, repo, _ := newTestService(nt, nil)

	meta := StatusMeta{DialedNumber: "+15550001111", CallerNumber: "+15559998888"}

	// Provider retries the same delivery three times, then sends the
	// terminal status twice.
	for i := 0; i < 3; i++ {
		if err := svc.OnCallStatus(context.Background(), "CA123", "ringing", meta); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	meta.RecordingURL = "https://api.twilio.com/rec/RE1"
	meta.DurationSeconds = 42
	for i := 0; i < 2; i++ {
		if err := svc.OnCallStatus(context.Background(), "CA123", "completed", meta); err != nil {
			t.Fatalf("terminal delivery %d: %v", i, err)
		}
	}

	if repo.Len() != 1 {
		t.Fatalf("expected exactly one row, got %d", repo.Len())
	}
	c, err := repo.GetByProviderID(context.Background(), "t1", "CA123")
	if err != nil {
		t.Fatalf("expected row, got %v", err)
	}
	if c.Status != StatusCompleted {
		t.Fatalf("expected last valid status applied, got %q", c.Status)
	}
	if c.RecordingURL == "" || c.DurationSeconds != 42 {
		t.Fatalf("expected recording metadata on row")
	}

	// Voicemail fires once despite the duplicate terminal delivery.
	if got := nt.count(notify.KindVoicemail); got != 1 {
		t.Fatalf("expected exactly one voicemail notification, got %d", got)
	}
}

func TestOnCallStatus_UnknownStatusNeverRejected(t *testing.T) {
	svc, repo, _ := newTestService(&fakeNotifier{}, nil)

	meta := StatusMeta{DialedNumber: "+15550001111"}
	if err := svc.OnCallStatus(context.Background(), "CA200", "some-future-status", meta); err != nil {
		t.Fatalf("unknown status must not reject: %v", err)
	}
	c, _ := repo.GetByProviderID(context.Background(), "t1", "CA200")
	if c.Status != StatusRinging {
		t.Fatalf("expected defensive default ringing, got %q", c.Status)
	}
}

func TestOnDialStatus_MissedTriggersBothPaths(t *testing.T) {
	nt := &fakeNotifier{}
	auto := &fakeAutoResponder{sent: true}
	svc, repo, leadRepo := newTestService(nt, auto)

	meta := StatusMeta{DialedNumber: "+15550001111", CallerNumber: "+15559998888"}
	if err := svc.OnDialStatus(context.Background(), "CA300", "no-answer", meta, nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if auto.calls != 1 {
		t.Fatalf("expected exactly one auto-sms attempt, got %d", auto.calls)
	}
	if got := nt.count(notify.KindMissedCall); got != 1 {
		t.Fatalf("expected exactly one missed-call notification, got %d", got)
	}

	c, _ := repo.GetByProviderID(context.Background(), "t1", "CA300")
	if c.ConnectedToOwner {
		t.Fatalf("expected connected_to_owner=false")
	}
	if !c.AutoSMSSent {
		t.Fatalf("expected auto_sms_sent flag")
	}

	all := leadRepo.All()
	if len(all) != 1 {
		t.Fatalf("expected one lead from the missed call, got %d", len(all))
	}
	if all[0].Source != leads.SourcePhone {
		t.Fatalf("expected phone source, got %q", all[0].Source)
	}
	if all[0].Phone != "+15559998888" {
		t.Fatalf("expected caller number on lead, got %q", all[0].Phone)
	}
	if c.LeadID != all[0].ID {
		t.Fatalf("expected call linked to lead %q, got %q", all[0].ID, c.LeadID)
	}
}

func TestOnDialStatus_RetriesCreateOneLeadAndOneAutoSMS(t *testing.T) {
	nt := &fakeNotifier{}
	auto := &fakeAutoResponder{sent: true}
	svc, _, leadRepo := newTestService(nt, auto)

	meta := StatusMeta{DialedNumber: "+15550001111", CallerNumber: "+15559998888"}
	for i := 0; i < 3; i++ {
		if err := svc.OnDialStatus(context.Background(), "CA303", "no-answer", meta, nil); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}

	if auto.calls != 1 {
		t.Fatalf("expected exactly one auto-sms across retries, got %d", auto.calls)
	}
	if got := len(leadRepo.All()); got != 1 {
		t.Fatalf("expected exactly one lead across retries, got %d", got)
	}
}

func TestMarkAutoSMSSent_SecondClaimLoses(t *testing.T) {
	repo := NewMemoryRepo()
	if _, err := repo.Upsert(context.Background(), "t1", CallLog{ID: "c1", TenantID: "t1", ProviderCallID: "CA1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	won, err := repo.MarkAutoSMSSent(context.Background(), "t1", "CA1")
	if err != nil || !won {
		t.Fatalf("expected first claim to win, got won=%v err=%v", won, err)
	}
	won, err = repo.MarkAutoSMSSent(context.Background(), "t1", "CA1")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if won {
		t.Fatalf("second claim must lose")
	}
}

func TestOnDialStatus_AutoSMSFailureDoesNotBlockNotification(t *testing.T) {
	nt := &fakeNotifier{}
	auto := &fakeAutoResponder{err: errors.New("twilio down")}
	svc, _, _ := newTestService(nt, auto)

	meta := StatusMeta{DialedNumber: "+15550001111", CallerNumber: "+15559998888"}
	if err := svc.OnDialStatus(context.Background(), "CA301", "busy", meta, nil); err != nil {
		t.Fatalf("auto-sms failure must not fail the webhook: %v", err)
	}
	if got := nt.count(notify.KindMissedCall); got != 1 {
		t.Fatalf("expected missed-call notification despite sms failure, got %d", got)
	}
}

func TestOnDialStatus_CompletedConnectsOwner(t *testing.T) {
	nt := &fakeNotifier{}
	auto := &fakeAutoResponder{sent: true}
	svc, repo, leadRepo := newTestService(nt, auto)

	meta := StatusMeta{DialedNumber: "+15550001111", CallerNumber: "+15559998888"}
	if err := svc.OnDialStatus(context.Background(), "CA302", "completed", meta, nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	c, _ := repo.GetByProviderID(context.Background(), "t1", "CA302")
	if !c.ConnectedToOwner {
		t.Fatalf("expected connected_to_owner=true")
	}
	if auto.calls != 0 {
		t.Fatalf("answered call must not trigger auto-sms")
	}
	if got := nt.count(notify.KindMissedCall); got != 0 {
		t.Fatalf("answered call must not notify missed-call")
	}
	if got := len(leadRepo.All()); got != 0 {
		t.Fatalf("answered call must not create a lead, got %d", got)
	}
}

func TestOnRecording_TerminalCallNotifiesOnce(t *testing.T) {
	nt := &fakeNotifier{}
	svc, _, _ := newTestService(nt, nil)

	meta := StatusMeta{DialedNumber: "+15550001111", CallerNumber: "+15559998888"}
	if err := svc.OnCallStatus(context.Background(), "CA400", "completed", meta); err != nil {
		t.Fatalf("status: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := svc.OnRecording(context.Background(), "CA400", "+15550001111", "https://api.twilio.com/rec/RE2", 30); err != nil {
			t.Fatalf("recording delivery %d: %v", i, err)
		}
	}
	if got := nt.count(notify.KindVoicemail); got != 1 {
		t.Fatalf("expected exactly one voicemail notification, got %d", got)
	}
}
