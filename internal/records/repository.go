package records

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("records: not found")
	ErrInvalidArgument = errors.New("records: invalid argument")

	// ErrStaleTransition is returned when a receipt update would move its
	// status backward, e.g. completing an already cancelled receipt.
	ErrStaleTransition = errors.New("records: stale status transition")
)

// Repository persists the call audit trail and the documents spawned from it.
type Repository interface {
	// UpsertCall creates or refreshes the call row for c.CallID and merges
	// c.CallData into whatever was already recorded for the call.
	UpsertCall(ctx context.Context, c Call) (Call, error)

	// MergeCallData folds fields into the call's data map without touching
	// the rest of the row. The call row must already exist.
	MergeCallData(ctx context.Context, callID string, fields map[string]string) error

	// CreateReceipt inserts a pending receipt and returns it with its id.
	CreateReceipt(ctx context.Context, r Receipt) (Receipt, error)

	// UpdateReceiptOutcome records the billing outcome. status must be a
	// forward transition from the stored status or ErrStaleTransition is
	// returned and the row is left untouched.
	UpdateReceiptOutcome(ctx context.Context, receiptID int64, status, docID, docNum, response string) error

	// SaveMessage stores a recorded caller message. Messages are write-once.
	SaveMessage(ctx context.Context, m Message) (Message, error)

	// RequestAnnualReport records that the customer asked for the given
	// year's report. A repeat for the same customer and year resets the
	// existing row to requested instead of creating a second one.
	RequestAnnualReport(ctx context.Context, customerID int64, year int) (AnnualReportRequest, error)
}
