package leads

import (
	"context"
	"errors"
	"testing"
)

func TestRecordLead_CreatesNewRowEachCall(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	req := RecordRequest{FullName: "Jane Doe", Phone: "+15551234567", Source: SourceWebsite}

	id1, err := svc.RecordLead(context.Background(), "t1", req)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	id2, err := svc.RecordLead(context.Background(), "t1", req)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Always-insert: same phone twice is two rows, not a merge.
	if id1 == id2 {
		t.Fatalf("expected distinct lead ids")
	}
	if got := len(repo.All()); got != 2 {
		t.Fatalf("expected 2 rows, got %d", got)
	}
}

func TestRecordLead_Validation(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	_, err := svc.RecordLead(context.Background(), "", RecordRequest{Phone: "+15551234567", Source: SourcePhone})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for missing tenant, got %v", err)
	}

	_, err = svc.RecordLead(context.Background(), "t1", RecordRequest{Phone: "", Source: SourcePhone})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for missing phone, got %v", err)
	}

	_, err = svc.RecordLead(context.Background(), "t1", RecordRequest{Phone: "+15551234567", Source: "carrier-pigeon"})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for unknown source, got %v", err)
	}
}

func TestRecordLead_DefaultsNameAndStatus(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	id, err := svc.RecordLead(context.Background(), "t1", RecordRequest{Phone: "+15551234567", Source: SourceSMS})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	l, err := repo.GetByID(context.Background(), "t1", id)
	if err != nil {
		t.Fatalf("expected lead, got %v", err)
	}
	if l.FullName != "Unknown Caller" {
		t.Fatalf("expected default name, got %q", l.FullName)
	}
	if l.Status != StatusNew {
		t.Fatalf("expected new status, got %q", l.Status)
	}
}

func TestValidPhone(t *testing.T) {
	valid := []string{"5551234567", "15551234567", "+15551234567", "+5551234567890"}
	for _, p := range valid {
		if !ValidPhone(p) {
			t.Fatalf("expected %q valid", p)
		}
	}
	invalid := []string{"", "555-123-4567", "555123", "not-a-number", "+1555123456789012345"}
	for _, p := range invalid {
		if ValidPhone(p) {
			t.Fatalf("expected %q invalid", p)
		}
	}
}

func TestUpdateStatus_Validation(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.UpdateStatus(context.Background(), "t1", "nope", StatusContacted); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := svc.UpdateStatus(context.Background(), "t1", "x", "weird"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for unknown status, got %v", err)
	}
}
