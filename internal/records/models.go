package records

import "time"

// Call is the durable trace of one PBX call. The row is keyed by the PBX call
// id and upserted on every webhook, so replays converge on the same state.
type Call struct {
	ID            int64
	CallID        string
	PhoneNumber   string
	CustomerID    *int64
	Num           string
	DID           string
	CallType      string
	CallStatus    string
	ExtensionID   string
	ExtensionPath string
	CallData      map[string]string
	StartedAt     time.Time
	UpdatedAt     time.Time
}

// Receipt statuses. Transitions only move forward: a receipt created as
// pending becomes completed or failed exactly once, and only a completed
// receipt can later become cancelled.
const (
	ReceiptPending   = "pending"
	ReceiptCompleted = "completed"
	ReceiptFailed    = "failed"
	ReceiptCancelled = "cancelled"
)

type Receipt struct {
	ID              int64
	CustomerID      int64
	CallID          string
	Amount          int
	Description     string
	RequestData     string
	BillingDocID    string
	BillingDocNum   string
	BillingResponse string
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Message is a write-once record of a recorded caller message.
type Message struct {
	ID                 int64
	CustomerID         int64
	CallID             string
	RecordingReference string
	DurationSeconds    int
	CreatedAt          time.Time
}

// Annual report statuses. requested is the only state this service writes;
// the report batch job owns the rest.
const (
	ReportRequested = "requested"
	ReportGenerated = "generated"
	ReportSent      = "sent"
	ReportFailed    = "failed"
)

// AnnualReportRequest is unique per customer and year. Asking again for the
// same year re-queues the existing row rather than creating a second one.
type AnnualReportRequest struct {
	ID         int64
	CustomerID int64
	Year       int
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// receiptRank orders statuses so updates can refuse to move backward.
func receiptRank(status string) int {
	switch status {
	case ReceiptPending:
		return 0
	case ReceiptCompleted, ReceiptFailed:
		return 1
	case ReceiptCancelled:
		return 2
	default:
		return -1
	}
}
