package customer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"ivr-platform/pkg/utils"
)

// PostgresDirectory implements Directory over database/sql.
//
// NOTE: This repository assumes the following tables exist:
// - customers (phone_number UNIQUE)
// - customer_details (customer_id UNIQUE, children_birth_years JSONB)

type PostgresDirectory struct {
	db *sql.DB

	// clock is injectable for deterministic tests.
	clock func() time.Time

	// subscriptionMonths is the window granted on Create.
	subscriptionMonths int
}

func NewPostgresDirectory(db *sql.DB, subscriptionMonths int) *PostgresDirectory {
	if subscriptionMonths <= 0 {
		subscriptionMonths = 12
	}
	return &PostgresDirectory{db: db, clock: time.Now, subscriptionMonths: subscriptionMonths}
}

func (d *PostgresDirectory) FindByPhone(ctx context.Context, phone string) (Customer, bool, error) {
	if phone == "" {
		return Customer{}, false, ErrInvalidArgument
	}
	const q = `
SELECT id, phone_number, COALESCE(name, ''), COALESCE(email, ''),
       subscription_start, subscription_end, active, created_at, updated_at
FROM customers
WHERE phone_number = $1
`
	var c Customer
	if err := d.db.QueryRowContext(ctx, q, phone).Scan(
		&c.ID,
		&c.PhoneNumber,
		&c.Name,
		&c.Email,
		&c.SubscriptionStart,
		&c.SubscriptionEnd,
		&c.Active,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Customer{}, false, nil
		}
		return Customer{}, false, err
	}
	return c, true, nil
}

func (d *PostgresDirectory) Create(ctx context.Context, phone, name, email string) (Customer, error) {
	if phone == "" {
		return Customer{}, ErrInvalidArgument
	}

	now := d.clock().UTC()
	start := now.Truncate(24 * time.Hour)
	end := start.AddDate(0, d.subscriptionMonths, 0)

	var out Customer
	err := utils.WithTx(ctx, d.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const q = `
INSERT INTO customers (phone_number, name, email, subscription_start, subscription_end, active, created_at, updated_at)
VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, TRUE, $6, $6)
RETURNING id
`
		if err := tx.QueryRowContext(ctx, q, phone, name, email, start, end, now).Scan(&out.ID); err != nil {
			return err
		}

		// Empty details row so later journeys are plain upserts.
		const dq = `
INSERT INTO customer_details (customer_id, num_children, children_birth_years, spouse1_workplaces, spouse2_workplaces, updated_at)
VALUES ($1, 0, '[]'::jsonb, 0, 0, $2)
ON CONFLICT (customer_id) DO NOTHING
`
		_, err := tx.ExecContext(ctx, dq, out.ID, now)
		return err
	})
	if err != nil {
		return Customer{}, err
	}

	out.PhoneNumber = phone
	out.Name = name
	out.Email = email
	out.SubscriptionStart = start
	out.SubscriptionEnd = end
	out.Active = true
	out.CreatedAt = now
	out.UpdatedAt = now
	return out, nil
}

func (d *PostgresDirectory) RenewSubscription(ctx context.Context, customerID int64, months int) (Customer, error) {
	if customerID <= 0 || months <= 0 {
		return Customer{}, ErrInvalidArgument
	}

	now := d.clock().UTC()
	today := now.Truncate(24 * time.Hour)

	var out Customer
	err := utils.WithTx(ctx, d.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const q = `
SELECT id, phone_number, COALESCE(name, ''), COALESCE(email, ''),
       subscription_start, subscription_end, active, created_at, updated_at
FROM customers
WHERE id = $1
FOR UPDATE
`
		if err := tx.QueryRowContext(ctx, q, customerID).Scan(
			&out.ID,
			&out.PhoneNumber,
			&out.Name,
			&out.Email,
			&out.SubscriptionStart,
			&out.SubscriptionEnd,
			&out.Active,
			&out.CreatedAt,
			&out.UpdatedAt,
		); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		base := today
		if out.SubscriptionEnd.After(base) {
			base = out.SubscriptionEnd
		}
		out.SubscriptionEnd = base.AddDate(0, months, 0)
		out.UpdatedAt = now

		const uq = `
UPDATE customers SET subscription_end = $2, active = TRUE, updated_at = $3 WHERE id = $1
`
		_, err := tx.ExecContext(ctx, uq, customerID, out.SubscriptionEnd, now)
		return err
	})
	if err != nil {
		return Customer{}, err
	}
	return out, nil
}

func (d *PostgresDirectory) GetDetails(ctx context.Context, customerID int64) (Details, bool, error) {
	if customerID <= 0 {
		return Details{}, false, ErrInvalidArgument
	}
	const q = `
SELECT customer_id, num_children, children_birth_years, spouse1_workplaces, spouse2_workplaces, updated_at
FROM customer_details
WHERE customer_id = $1
`
	var out Details
	var years []byte
	if err := d.db.QueryRowContext(ctx, q, customerID).Scan(
		&out.CustomerID,
		&out.NumChildren,
		&years,
		&out.Spouse1Workplaces,
		&out.Spouse2Workplaces,
		&out.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Details{}, false, nil
		}
		return Details{}, false, err
	}
	out.ChildrenBirthYears = decodeBirthYears(years)
	return out, true, nil
}

func (d *PostgresDirectory) UpsertDetails(ctx context.Context, det Details) error {
	if det.CustomerID <= 0 {
		return ErrInvalidArgument
	}
	years, err := json.Marshal(det.ChildrenBirthYears)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO customer_details (customer_id, num_children, children_birth_years, spouse1_workplaces, spouse2_workplaces, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (customer_id)
DO UPDATE SET num_children = EXCLUDED.num_children,
              children_birth_years = EXCLUDED.children_birth_years,
              spouse1_workplaces = EXCLUDED.spouse1_workplaces,
              spouse2_workplaces = EXCLUDED.spouse2_workplaces,
              updated_at = EXCLUDED.updated_at
`
	_, err = d.db.ExecContext(ctx, q, det.CustomerID, det.NumChildren, years, det.Spouse1Workplaces, det.Spouse2Workplaces, d.clock().UTC())
	return err
}

// decodeBirthYears tolerates legacy rows where years were written as strings.
// Entries that do not parse as integers are skipped, not errors.
func decodeBirthYears(raw []byte) []int {
	if len(raw) == 0 {
		return nil
	}
	var mixed []any
	if err := json.Unmarshal(raw, &mixed); err != nil {
		return nil
	}
	out := make([]int, 0, len(mixed))
	for _, v := range mixed {
		switch t := v.(type) {
		case float64:
			out = append(out, int(t))
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
				out = append(out, n)
			}
		}
	}
	return out
}
