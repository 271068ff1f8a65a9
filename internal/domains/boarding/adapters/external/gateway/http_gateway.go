package gateway

import (
	"context"
	"errors"
	"fmt"

	paymentsclient "github.com/Apurer/temporary-care-api/internal/clients/http/payments"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
)

var _ ports.PaymentGateway = (*HTTPGateway)(nil)

// DefaultCurrency is used for every order.
const DefaultCurrency = "INR"

// HTTPGateway implements the payment gateway port on top of the processor's REST API.
type HTTPGateway struct {
	client *paymentsclient.Client
	signer *Signer
}

// NewHTTPGateway wires the REST client and the checkout signer.
func NewHTTPGateway(client *paymentsclient.Client, signer *Signer) *HTTPGateway {
	return &HTTPGateway{client: client, signer: signer}
}

// CreateOrder opens an order for amount.
func (g *HTTPGateway) CreateOrder(ctx context.Context, applicationID string, kind domain.PaymentKind, amount domain.Money, receipt string) (*ports.PaymentOrder, error) {
	if g == nil || g.client == nil {
		return nil, errors.New("payment gateway not configured")
	}
	order, err := g.client.CreateOrder(ctx, paymentsclient.CreateOrderRequest{
		Amount:   int64(amount),
		Currency: DefaultCurrency,
		Receipt:  receipt,
		Notes:    map[string]string{"applicationId": applicationID, "kind": string(kind)},
	}, paymentsclient.WithIdempotencyKey(receipt))
	if err != nil {
		return nil, translate(err)
	}
	return &ports.PaymentOrder{
		OrderID:  order.ID,
		Amount:   domain.Money(order.Amount),
		Currency: order.Currency,
		Receipt:  order.Receipt,
	}, nil
}

// Confirm checks the checkout signature, then asks the processor whether the payment was captured.
func (g *HTTPGateway) Confirm(ctx context.Context, proof domain.ProofOfPayment) (*ports.PaymentConfirmation, error) {
	if g == nil || g.client == nil || g.signer == nil {
		return nil, errors.New("payment gateway not configured")
	}
	if err := g.signer.Verify(proof.OrderID, proof.PaymentID, proof.Signature); err != nil {
		return nil, domain.NewPaymentError(domain.ErrPaymentDeclined, "%v", err)
	}
	payment, err := g.client.GetPayment(ctx, proof.PaymentID)
	if err != nil {
		return nil, translate(err)
	}
	if payment.OrderID != proof.OrderID {
		return nil, domain.NewPaymentError(domain.ErrPaymentDeclined, "payment %s belongs to another order", payment.ID)
	}
	if payment.Status != paymentsclient.PaymentStatusCaptured {
		return nil, domain.NewPaymentError(domain.ErrPaymentDeclined, "payment status %s", payment.Status)
	}
	return &ports.PaymentConfirmation{TransactionID: payment.ID, Amount: domain.Money(payment.Amount)}, nil
}

// Refund returns amount of a captured payment; idempotencyKey makes retries safe.
func (g *HTTPGateway) Refund(ctx context.Context, paymentID string, amount domain.Money, idempotencyKey string) (*ports.RefundResult, error) {
	if g == nil || g.client == nil {
		return nil, errors.New("payment gateway not configured")
	}
	refund, err := g.client.RefundPayment(ctx, paymentID, paymentsclient.RefundRequest{Amount: int64(amount)},
		paymentsclient.WithIdempotencyKey(idempotencyKey))
	if err != nil {
		return nil, translate(err)
	}
	return &ports.RefundResult{RefundID: refund.ID, Amount: domain.Money(refund.Amount)}, nil
}

func translate(err error) error {
	var apiErr *paymentsclient.APIError
	if errors.As(err, &apiErr) && apiErr.Declined() {
		return domain.NewPaymentError(domain.ErrPaymentDeclined, "%s", apiErr.Message)
	}
	return fmt.Errorf("payment gateway: %w", err)
}
