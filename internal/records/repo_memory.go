package records

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu sync.Mutex

	calls    map[string]*Call
	receipts map[int64]*Receipt
	messages []Message
	reports  map[reportKey]*AnnualReportRequest

	nextCallID    int64
	nextReceiptID int64
	nextMessageID int64
	nextReportID  int64

	// Clock is injectable for deterministic tests.
	Clock func() time.Time
}

type reportKey struct {
	customerID int64
	year       int
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		calls:    map[string]*Call{},
		receipts: map[int64]*Receipt{},
		reports:  map[reportKey]*AnnualReportRequest{},
		Clock:    time.Now,
	}
}

func (r *MemoryRepo) UpsertCall(ctx context.Context, c Call) (Call, error) {
	if c.CallID == "" || c.PhoneNumber == "" {
		return Call{}, ErrInvalidArgument
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.Clock().UTC()
	cur, ok := r.calls[c.CallID]
	if !ok {
		r.nextCallID++
		stored := c
		stored.ID = r.nextCallID
		if stored.StartedAt.IsZero() {
			stored.StartedAt = now
		}
		stored.UpdatedAt = now
		stored.CallData = copyData(c.CallData)
		r.calls[c.CallID] = &stored
		return *stored.cloned(), nil
	}

	cur.PhoneNumber = c.PhoneNumber
	if c.CustomerID != nil {
		cur.CustomerID = c.CustomerID
	}
	setIfNonEmpty(&cur.Num, c.Num)
	setIfNonEmpty(&cur.DID, c.DID)
	setIfNonEmpty(&cur.CallType, c.CallType)
	setIfNonEmpty(&cur.CallStatus, c.CallStatus)
	setIfNonEmpty(&cur.ExtensionID, c.ExtensionID)
	setIfNonEmpty(&cur.ExtensionPath, c.ExtensionPath)
	for k, v := range c.CallData {
		if cur.CallData == nil {
			cur.CallData = map[string]string{}
		}
		cur.CallData[k] = v
	}
	cur.UpdatedAt = now
	return *cur.cloned(), nil
}

func (r *MemoryRepo) MergeCallData(ctx context.Context, callID string, fields map[string]string) error {
	if callID == "" {
		return ErrInvalidArgument
	}
	if len(fields) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.calls[callID]
	if !ok {
		return ErrNotFound
	}
	if cur.CallData == nil {
		cur.CallData = map[string]string{}
	}
	for k, v := range fields {
		cur.CallData[k] = v
	}
	cur.UpdatedAt = r.Clock().UTC()
	return nil
}

func (r *MemoryRepo) CreateReceipt(ctx context.Context, rec Receipt) (Receipt, error) {
	if rec.CustomerID <= 0 || rec.CallID == "" || rec.Amount <= 0 {
		return Receipt{}, ErrInvalidArgument
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.Clock().UTC()
	r.nextReceiptID++
	stored := rec
	stored.ID = r.nextReceiptID
	stored.Status = ReceiptPending
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.receipts[stored.ID] = &stored
	return stored, nil
}

func (r *MemoryRepo) UpdateReceiptOutcome(ctx context.Context, receiptID int64, status, docID, docNum, response string) error {
	if receiptID <= 0 || receiptRank(status) <= 0 {
		return ErrInvalidArgument
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.receipts[receiptID]
	if !ok {
		return ErrNotFound
	}
	if receiptRank(status) <= receiptRank(cur.Status) {
		return ErrStaleTransition
	}
	cur.Status = status
	if docID != "" {
		cur.BillingDocID = docID
	}
	if docNum != "" {
		cur.BillingDocNum = docNum
	}
	if response != "" {
		cur.BillingResponse = response
	}
	cur.UpdatedAt = r.Clock().UTC()
	return nil
}

func (r *MemoryRepo) SaveMessage(ctx context.Context, m Message) (Message, error) {
	if m.CustomerID <= 0 || m.CallID == "" {
		return Message{}, ErrInvalidArgument
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextMessageID++
	m.ID = r.nextMessageID
	m.CreatedAt = r.Clock().UTC()
	r.messages = append(r.messages, m)
	return m, nil
}

func (r *MemoryRepo) RequestAnnualReport(ctx context.Context, customerID int64, year int) (AnnualReportRequest, error) {
	if customerID <= 0 || year <= 0 {
		return AnnualReportRequest{}, ErrInvalidArgument
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.Clock().UTC()
	key := reportKey{customerID: customerID, year: year}
	if cur, ok := r.reports[key]; ok {
		cur.Status = ReportRequested
		cur.UpdatedAt = now
		return *cur, nil
	}

	r.nextReportID++
	req := AnnualReportRequest{
		ID:         r.nextReportID,
		CustomerID: customerID,
		Year:       year,
		Status:     ReportRequested,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.reports[key] = &req
	return req, nil
}

// Call returns a copy of the stored call row; test helper.
func (r *MemoryRepo) Call(callID string) (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.calls[callID]
	if !ok {
		return Call{}, false
	}
	return *cur.cloned(), true
}

// Receipt returns a copy of the stored receipt; test helper.
func (r *MemoryRepo) Receipt(id int64) (Receipt, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.receipts[id]
	if !ok {
		return Receipt{}, false
	}
	return *cur, true
}

// Messages returns a copy of all stored messages; test helper.
func (r *MemoryRepo) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Reports returns a copy of all report requests; test helper.
func (r *MemoryRepo) Reports() []AnnualReportRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AnnualReportRequest, 0, len(r.reports))
	for _, req := range r.reports {
		out = append(out, *req)
	}
	return out
}

func (c *Call) cloned() *Call {
	out := *c
	out.CallData = copyData(c.CallData)
	if c.CustomerID != nil {
		id := *c.CustomerID
		out.CustomerID = &id
	}
	return &out
}

func copyData(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func setIfNonEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
