package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// PaymentKind names a ledger entry type.
type PaymentKind string

const (
	PaymentAdvance PaymentKind = "advance"
	PaymentFinal   PaymentKind = "final"
	PaymentRefund  PaymentKind = "refund"
)

// ParsePaymentKind accepts advance or final, the kinds a client can pay.
func ParsePaymentKind(raw string) (PaymentKind, error) {
	switch kind := PaymentKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case PaymentAdvance, PaymentFinal:
		return kind, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPaymentKind, raw)
}

// PaymentState is the sub-state of one installment.
type PaymentState string

const (
	PaymentPending   PaymentState = "pending"
	PaymentCompleted PaymentState = "completed"
)

var (
	ErrUnknownPaymentKind     = errors.New("unknown payment kind")
	ErrPaymentDeclined        = errors.New("payment declined")
	ErrAmountMismatch         = errors.New("payment amount does not match the amount due")
	ErrPaymentAlreadyRecorded = errors.New("payment already recorded")
	ErrInvalidProof           = errors.New("proof of payment is incomplete")
)

// PaymentError is the typed failure of a ledger operation.
type PaymentError struct {
	Kind   error
	Detail string
}

func (e *PaymentError) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Detail
}

// Unwrap exposes the sentinel kind.
func (e *PaymentError) Unwrap() error {
	return e.Kind
}

// NewPaymentError wraps a sentinel with detail.
func NewPaymentError(kind error, format string, args ...any) *PaymentError {
	return &PaymentError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// ProofOfPayment is what the client presents after paying through the gateway.
type ProofOfPayment struct {
	OrderID   string
	PaymentID string
	Signature string
	Amount    Money
}

// Validate checks the proof is structurally complete.
func (p ProofOfPayment) Validate() error {
	if strings.TrimSpace(p.OrderID) == "" || strings.TrimSpace(p.PaymentID) == "" {
		return fmt.Errorf("%w: order and payment ids are required", ErrInvalidProof)
	}
	if p.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidProof)
	}
	return nil
}

// LedgerEntry records money that has actually arrived or left.
type LedgerEntry struct {
	ID            string
	ApplicationID string
	Kind          PaymentKind
	Amount        Money
	OrderID       string
	PaymentID     string
	TransactionID string
	InvoiceNumber string
	RecordedBy    string
	RecordedAt    time.Time
}

// PaymentRecord is the per-installment view kept on the application.
type PaymentRecord struct {
	Status        PaymentState
	Amount        Money
	PaidAt        *time.Time
	PaymentID     string
	TransactionID string
	InvoiceNumber string
	LedgerEntryID string
}

// Completed reports whether the installment has been paid.
func (r PaymentRecord) Completed() bool {
	return r.Status == PaymentCompleted
}

// SettledWithoutPayment reports an installment closed because nothing was owed.
func (r PaymentRecord) SettledWithoutPayment() bool {
	return r.Completed() && r.LedgerEntryID == ""
}

// FromEntry builds the completed record for a ledger entry.
func FromEntry(entry *LedgerEntry) PaymentRecord {
	paidAt := entry.RecordedAt
	return PaymentRecord{
		Status:        PaymentCompleted,
		Amount:        entry.Amount,
		PaidAt:        &paidAt,
		PaymentID:     entry.PaymentID,
		TransactionID: entry.TransactionID,
		InvoiceNumber: entry.InvoiceNumber,
		LedgerEntryID: entry.ID,
	}
}

// PaymentStatus groups the two installments plus an optional refund of the advance.
type PaymentStatus struct {
	Advance PaymentRecord
	Final   PaymentRecord
	Refund  *PaymentRecord
}

// InvoiceNumber formats INV-<applicationNumber>-<KIND>-<unixMillis>.
func InvoiceNumber(applicationNumber string, kind PaymentKind, now time.Time) string {
	return fmt.Sprintf("INV-%s-%s-%d", applicationNumber, strings.ToUpper(string(kind)), now.UnixMilli())
}
