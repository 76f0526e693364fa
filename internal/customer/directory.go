package customer

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("customer: not found")
	ErrInvalidArgument = errors.New("customer: invalid argument")
)

// Directory is the lookup/create/update surface consumed by the call flow.
//
// Rules:
// - Find returns (zero, false, nil) when no customer matches; errors are
//   reserved for storage faults.
// - Create grants a fresh subscription window starting today and lazily
//   creates the empty details row.
// - UpsertDetails overwrites all collected fields, never merges across
//   journeys.
type Directory interface {
	FindByPhone(ctx context.Context, phone string) (Customer, bool, error)
	Create(ctx context.Context, phone, name, email string) (Customer, error)

	// RenewSubscription extends the subscription by the given number of
	// months, counted from today or from the current end date, whichever is
	// later. A lapsed subscription therefore restarts today.
	RenewSubscription(ctx context.Context, customerID int64, months int) (Customer, error)

	GetDetails(ctx context.Context, customerID int64) (Details, bool, error)
	UpsertDetails(ctx context.Context, d Details) error
}
