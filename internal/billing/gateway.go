package billing

import "context"

// Gateway is the narrow surface the call flow needs from the external
// receipt service. Implementations must normalize every outcome, including
// transport errors and timeouts, into a Result; the error return is reserved
// for programming mistakes (nil client, empty payload).
type Gateway interface {
	Authenticate(ctx context.Context) error
	CreateReceipt(ctx context.Context, p ReceiptPayload) (Result, error)
	CancelReceipt(ctx context.Context, docID string) (Result, error)
	GetReceipt(ctx context.Context, docID string) (Result, error)
}

// ReceiptPayload carries the customer snapshot sent with a receipt.
type ReceiptPayload struct {
	Amount      int    `json:"amount"`
	Description string `json:"description"`
	ClientName  string `json:"client_name"`
	ClientPhone string `json:"client_phone"`
	ClientEmail string `json:"client_email"`
}

// Result is the normalized gateway outcome.
// Raw preserves the gateway's response body for audit storage.
type Result struct {
	OK      bool   `json:"ok"`
	DocID   string `json:"doc_id,omitempty"`
	DocNum  string `json:"doc_num,omitempty"`
	Message string `json:"message,omitempty"`
	Raw     string `json:"raw,omitempty"`
}
