package customer

import (
	"context"
	"sync"
	"time"
)

// MemoryDirectory is a simple in-memory Directory for tests and early
// development. It mirrors the semantics of PostgresDirectory.

type MemoryDirectory struct {
	mu sync.Mutex

	byPhone map[string]Customer
	details map[int64]Details
	nextID  int64

	Clock              func() time.Time
	SubscriptionMonths int
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		byPhone:            map[string]Customer{},
		details:            map[int64]Details{},
		nextID:             1,
		Clock:              time.Now,
		SubscriptionMonths: 12,
	}
}

// Seed inserts a customer directly, assigning an id if missing.
func (d *MemoryDirectory) Seed(c Customer) Customer {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c.ID == 0 {
		c.ID = d.nextID
		d.nextID++
	} else if c.ID >= d.nextID {
		d.nextID = c.ID + 1
	}
	d.byPhone[c.PhoneNumber] = c
	return c
}

func (d *MemoryDirectory) FindByPhone(ctx context.Context, phone string) (Customer, bool, error) {
	if phone == "" {
		return Customer{}, false, ErrInvalidArgument
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.byPhone[phone]
	return c, ok, nil
}

func (d *MemoryDirectory) Create(ctx context.Context, phone, name, email string) (Customer, error) {
	if phone == "" {
		return Customer{}, ErrInvalidArgument
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.Clock().UTC()
	start := now.Truncate(24 * time.Hour)
	c := Customer{
		ID:                d.nextID,
		PhoneNumber:       phone,
		Name:              name,
		Email:             email,
		SubscriptionStart: start,
		SubscriptionEnd:   start.AddDate(0, d.SubscriptionMonths, 0),
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	d.nextID++
	d.byPhone[phone] = c
	d.details[c.ID] = Details{CustomerID: c.ID, UpdatedAt: now}
	return c, nil
}

func (d *MemoryDirectory) RenewSubscription(ctx context.Context, customerID int64, months int) (Customer, error) {
	if customerID <= 0 || months <= 0 {
		return Customer{}, ErrInvalidArgument
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	for phone, c := range d.byPhone {
		if c.ID != customerID {
			continue
		}
		now := d.Clock().UTC()
		base := now.Truncate(24 * time.Hour)
		if c.SubscriptionEnd.After(base) {
			base = c.SubscriptionEnd
		}
		c.SubscriptionEnd = base.AddDate(0, months, 0)
		c.Active = true
		c.UpdatedAt = now
		d.byPhone[phone] = c
		return c, nil
	}
	return Customer{}, ErrNotFound
}

func (d *MemoryDirectory) GetDetails(ctx context.Context, customerID int64) (Details, bool, error) {
	if customerID <= 0 {
		return Details{}, false, ErrInvalidArgument
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	det, ok := d.details[customerID]
	if !ok {
		return Details{}, false, nil
	}
	out := det
	out.ChildrenBirthYears = append([]int(nil), det.ChildrenBirthYears...)
	return out, true, nil
}

func (d *MemoryDirectory) UpsertDetails(ctx context.Context, det Details) error {
	if det.CustomerID <= 0 {
		return ErrInvalidArgument
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	det.ChildrenBirthYears = append([]int(nil), det.ChildrenBirthYears...)
	det.UpdatedAt = d.Clock().UTC()
	d.details[det.CustomerID] = det
	return nil
}
