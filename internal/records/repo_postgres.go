package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"ivr-platform/pkg/utils"
)

// PostgresRepo implements Repository over database/sql.
//
// NOTE: This repository assumes the following tables exist:
// - calls (call_id UNIQUE, call_data JSONB)
// - receipts
// - messages
// - annual_report_requests (UNIQUE (customer_id, year))

type PostgresRepo struct {
	db *sql.DB

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

func (r *PostgresRepo) UpsertCall(ctx context.Context, c Call) (Call, error) {
	if c.CallID == "" || c.PhoneNumber == "" {
		return Call{}, ErrInvalidArgument
	}

	now := r.clock().UTC()
	if c.StartedAt.IsZero() {
		c.StartedAt = now
	}
	data, err := encodeCallData(c.CallData)
	if err != nil {
		return Call{}, err
	}

	// call_data merges; replayed webhooks with identical payloads converge.
	const q = `
INSERT INTO calls (call_id, phone_number, customer_id, num, did, call_type, call_status, extension_id, extension_path, call_data, started_at, updated_at)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), $10, $11, $12)
ON CONFLICT (call_id)
DO UPDATE SET phone_number = EXCLUDED.phone_number,
              customer_id = COALESCE(EXCLUDED.customer_id, calls.customer_id),
              num = COALESCE(EXCLUDED.num, calls.num),
              did = COALESCE(EXCLUDED.did, calls.did),
              call_type = COALESCE(EXCLUDED.call_type, calls.call_type),
              call_status = COALESCE(EXCLUDED.call_status, calls.call_status),
              extension_id = COALESCE(EXCLUDED.extension_id, calls.extension_id),
              extension_path = COALESCE(EXCLUDED.extension_path, calls.extension_path),
              call_data = calls.call_data || EXCLUDED.call_data,
              updated_at = EXCLUDED.updated_at
RETURNING id, started_at
`
	out := c
	out.UpdatedAt = now
	if err := r.db.QueryRowContext(ctx, q,
		c.CallID, c.PhoneNumber, c.CustomerID,
		c.Num, c.DID, c.CallType, c.CallStatus, c.ExtensionID, c.ExtensionPath,
		data, c.StartedAt, now,
	).Scan(&out.ID, &out.StartedAt); err != nil {
		return Call{}, err
	}
	return out, nil
}

func (r *PostgresRepo) MergeCallData(ctx context.Context, callID string, fields map[string]string) error {
	if callID == "" {
		return ErrInvalidArgument
	}
	if len(fields) == 0 {
		return nil
	}
	data, err := encodeCallData(fields)
	if err != nil {
		return err
	}
	const q = `
UPDATE calls SET call_data = call_data || $2, updated_at = $3 WHERE call_id = $1
`
	res, err := r.db.ExecContext(ctx, q, callID, data, r.clock().UTC())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) CreateReceipt(ctx context.Context, rec Receipt) (Receipt, error) {
	if rec.CustomerID <= 0 || rec.CallID == "" || rec.Amount <= 0 {
		return Receipt{}, ErrInvalidArgument
	}

	now := r.clock().UTC()
	const q = `
INSERT INTO receipts (customer_id, call_id, amount, description, request_data, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
RETURNING id
`
	out := rec
	out.Status = ReceiptPending
	out.CreatedAt = now
	out.UpdatedAt = now
	if err := r.db.QueryRowContext(ctx, q,
		rec.CustomerID, rec.CallID, rec.Amount, rec.Description, rec.RequestData, ReceiptPending, now,
	).Scan(&out.ID); err != nil {
		return Receipt{}, err
	}
	return out, nil
}

func (r *PostgresRepo) UpdateReceiptOutcome(ctx context.Context, receiptID int64, status, docID, docNum, response string) error {
	if receiptID <= 0 || receiptRank(status) <= 0 {
		return ErrInvalidArgument
	}

	now := r.clock().UTC()
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const q = `
SELECT status FROM receipts WHERE id = $1 FOR UPDATE
`
		var current string
		if err := tx.QueryRowContext(ctx, q, receiptID).Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if receiptRank(status) <= receiptRank(current) {
			return ErrStaleTransition
		}

		const uq = `
UPDATE receipts
SET status = $2,
    billing_doc_id = NULLIF($3, ''),
    billing_doc_num = NULLIF($4, ''),
    billing_response = NULLIF($5, ''),
    updated_at = $6
WHERE id = $1
`
		_, err := tx.ExecContext(ctx, uq, receiptID, status, docID, docNum, response, now)
		return err
	})
}

func (r *PostgresRepo) SaveMessage(ctx context.Context, m Message) (Message, error) {
	if m.CustomerID <= 0 || m.CallID == "" {
		return Message{}, ErrInvalidArgument
	}

	now := r.clock().UTC()
	const q = `
INSERT INTO messages (customer_id, call_id, recording_reference, duration_seconds, created_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5)
RETURNING id
`
	out := m
	out.CreatedAt = now
	if err := r.db.QueryRowContext(ctx, q,
		m.CustomerID, m.CallID, m.RecordingReference, m.DurationSeconds, now,
	).Scan(&out.ID); err != nil {
		return Message{}, err
	}
	return out, nil
}

func (r *PostgresRepo) RequestAnnualReport(ctx context.Context, customerID int64, year int) (AnnualReportRequest, error) {
	if customerID <= 0 || year <= 0 {
		return AnnualReportRequest{}, ErrInvalidArgument
	}

	now := r.clock().UTC()
	// A repeat request re-queues the existing row: the report batch job may
	// have moved it to generated or failed in the meantime.
	const q = `
INSERT INTO annual_report_requests (customer_id, year, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (customer_id, year)
DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
RETURNING id, status, created_at, updated_at
`
	out := AnnualReportRequest{CustomerID: customerID, Year: year}
	if err := r.db.QueryRowContext(ctx, q, customerID, year, ReportRequested, now).Scan(
		&out.ID, &out.Status, &out.CreatedAt, &out.UpdatedAt,
	); err != nil {
		return AnnualReportRequest{}, err
	}
	return out, nil
}

func encodeCallData(fields map[string]string) ([]byte, error) {
	if len(fields) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(fields)
}
