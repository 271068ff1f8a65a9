package ports

import (
	"context"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
)

// PaymentOrder is what the client needs to pay through the gateway.
type PaymentOrder struct {
	OrderID  string
	Amount   domain.Money
	Currency string
	Receipt  string
}

// PaymentConfirmation is the gateway's verdict on a proof of payment.
type PaymentConfirmation struct {
	TransactionID string
	Amount        domain.Money
}

// RefundResult describes an accepted refund.
type RefundResult struct {
	RefundID string
	Amount   domain.Money
}

// PaymentGateway is the outbound contract to the payment processor. Every call is idempotent
// for the same identifiers.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, applicationID string, kind domain.PaymentKind, amount domain.Money, receipt string) (*PaymentOrder, error)
	// Confirm verifies proof and returns domain.ErrPaymentDeclined when the processor refuses it.
	Confirm(ctx context.Context, proof domain.ProofOfPayment) (*PaymentConfirmation, error)
	Refund(ctx context.Context, paymentID string, amount domain.Money, idempotencyKey string) (*RefundResult, error)
}
