package records

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC) }
}

func TestUpsertCall_ReplayMergesData(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Clock = fixedClock()
	ctx := context.Background()

	first, err := repo.UpsertCall(ctx, Call{
		CallID:      "call-1",
		PhoneNumber: "0501234567",
		CallType:    "ivr",
		CallData:    map[string]string{"entry": "1"},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if first.ID == 0 || first.StartedAt.IsZero() {
		t.Fatalf("expected populated call, got %+v", first)
	}

	custID := int64(7)
	second, err := repo.UpsertCall(ctx, Call{
		CallID:      "call-1",
		PhoneNumber: "0501234567",
		CustomerID:  &custID,
		CallData:    map[string]string{"mainMenu": "2"},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay created a new row: %d vs %d", second.ID, first.ID)
	}
	if second.CallType != "ivr" {
		t.Fatalf("empty field overwrote stored value: %+v", second)
	}
	if second.CallData["entry"] != "1" || second.CallData["mainMenu"] != "2" {
		t.Fatalf("call data did not merge: %v", second.CallData)
	}
	if second.CustomerID == nil || *second.CustomerID != 7 {
		t.Fatalf("customer id not attached: %+v", second)
	}
}

func TestMergeCallData(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	if err := repo.MergeCallData(ctx, "missing", map[string]string{"a": "1"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_, _ = repo.UpsertCall(ctx, Call{CallID: "c1", PhoneNumber: "0501234567"})
	if err := repo.MergeCallData(ctx, "c1", map[string]string{"receiptAmount": "100"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := repo.MergeCallData(ctx, "c1", map[string]string{"receiptAmount": "250"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	c, _ := repo.Call("c1")
	if c.CallData["receiptAmount"] != "250" {
		t.Fatalf("expected overwrite, got %v", c.CallData)
	}
}

func TestReceiptLifecycle_ForwardOnly(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	rec, err := repo.CreateReceipt(ctx, Receipt{CustomerID: 1, CallID: "c1", Amount: 100, Description: "donation"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if rec.Status != ReceiptPending {
		t.Fatalf("new receipt must be pending, got %q", rec.Status)
	}

	if err := repo.UpdateReceiptOutcome(ctx, rec.ID, ReceiptCompleted, "991", "R-1", `{"status":true}`); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	// Completed may not fall back to failed.
	if err := repo.UpdateReceiptOutcome(ctx, rec.ID, ReceiptFailed, "", "", "late failure"); !errors.Is(err, ErrStaleTransition) {
		t.Fatalf("expected ErrStaleTransition, got %v", err)
	}
	got, _ := repo.Receipt(rec.ID)
	if got.Status != ReceiptCompleted || got.BillingDocID != "991" || got.BillingResponse == "late failure" {
		t.Fatalf("stale transition mutated row: %+v", got)
	}

	// Cancellation is the one step past completed.
	if err := repo.UpdateReceiptOutcome(ctx, rec.ID, ReceiptCancelled, "", "", ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	got, _ = repo.Receipt(rec.ID)
	if got.Status != ReceiptCancelled || got.BillingDocNum != "R-1" {
		t.Fatalf("unexpected row after cancel: %+v", got)
	}
}

func TestUpdateReceiptOutcome_RejectsPendingAndUnknown(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	rec, _ := repo.CreateReceipt(ctx, Receipt{CustomerID: 1, CallID: "c1", Amount: 10})
	if err := repo.UpdateReceiptOutcome(ctx, rec.ID, ReceiptPending, "", "", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if err := repo.UpdateReceiptOutcome(ctx, 404, ReceiptCompleted, "", "", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveMessage(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	m, err := repo.SaveMessage(ctx, Message{CustomerID: 3, CallID: "c1", RecordingReference: "rec/abc.wav", DurationSeconds: 22})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if m.ID == 0 || m.CreatedAt.IsZero() {
		t.Fatalf("expected populated message, got %+v", m)
	}
	if _, err := repo.SaveMessage(ctx, Message{CustomerID: 0, CallID: "c1"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if got := repo.Messages(); len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
}

func TestRequestAnnualReport_IdempotentPerYear(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	first, err := repo.RequestAnnualReport(ctx, 5, 2025)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if first.Status != ReportRequested {
		t.Fatalf("expected requested status, got %q", first.Status)
	}

	again, err := repo.RequestAnnualReport(ctx, 5, 2025)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("repeat request created new row: %d vs %d", again.ID, first.ID)
	}

	other, _ := repo.RequestAnnualReport(ctx, 5, 2024)
	if other.ID == first.ID {
		t.Fatalf("different year reused the same row")
	}
	if len(repo.Reports()) != 2 {
		t.Fatalf("expected 2 report rows, got %d", len(repo.Reports()))
	}
}

func TestRequestAnnualReport_RepeatRequeuesAfterFailure(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	first, err := repo.RequestAnnualReport(ctx, 5, 2025)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	// The report batch job owns the later states; a failed run must not
	// block the customer from asking again.
	repo.mu.Lock()
	repo.reports[reportKey{customerID: 5, year: 2025}].Status = ReportFailed
	repo.mu.Unlock()

	again, err := repo.RequestAnnualReport(ctx, 5, 2025)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("repeat request created a new row: %d vs %d", again.ID, first.ID)
	}
	if again.Status != ReportRequested {
		t.Fatalf("repeat request must reset status to requested, got %q", again.Status)
	}
}
