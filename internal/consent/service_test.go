package consent

import (
	"context"
	"errors"
	"testing"
)

func TestService_Append_ValidatesEvent(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	err := svc.Append(context.Background(), Event{TenantID: "", PhoneNumber: "+15551234567", Action: ActionOptOut})
	if !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for missing tenant, got %v", err)
	}

	err = svc.Append(context.Background(), Event{TenantID: "t1", PhoneNumber: "", Action: ActionOptOut})
	if !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for missing phone, got %v", err)
	}

	err = svc.Append(context.Background(), Event{TenantID: "t1", PhoneNumber: "+15551234567", Action: "bogus"})
	if !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for unknown action, got %v", err)
	}
}

func TestService_RecordOptOut_FillsDefaults(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.RecordOptOut(context.Background(), "t1", "+15551234567", "STOP", "v1", "1.2.3.4"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	events := repo.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at filled")
	}
	if e.Action != ActionOptOut || e.Keyword != "STOP" || e.CopyVersion != "v1" {
		t.Fatalf("unexpected event: %+v", e)
	}
}
