package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
)

var _ ports.PaymentGateway = (*Sandbox)(nil)

// Sandbox is an in-process processor for development and tests. It accepts every proof
// carrying a valid signature unless the payment id was marked as declined.
type Sandbox struct {
	mu       sync.Mutex
	signer   *Signer
	orders   map[string]ports.PaymentOrder
	refunds  map[string]ports.RefundResult
	declined map[string]struct{}
	confirms int
}

// NewSandbox builds a sandbox signing with secret.
func NewSandbox(secret string) *Sandbox {
	return &Sandbox{
		signer:   NewSigner(secret),
		orders:   map[string]ports.PaymentOrder{},
		refunds:  map[string]ports.RefundResult{},
		declined: map[string]struct{}{},
	}
}

// Signer exposes the checkout signer so callers can forge valid proofs.
func (s *Sandbox) Signer() *Signer {
	return s.signer
}

// Decline makes every future confirmation of paymentID fail.
func (s *Sandbox) Decline(paymentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declined[paymentID] = struct{}{}
}

// Confirmations reports how many proofs were accepted.
func (s *Sandbox) Confirmations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirms
}

// CreateOrder returns the same order for the same receipt.
func (s *Sandbox) CreateOrder(_ context.Context, _ string, _ domain.PaymentKind, amount domain.Money, receipt string) (*ports.PaymentOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order, ok := s.orders[receipt]; ok && order.Amount == amount {
		return &order, nil
	}
	order := ports.PaymentOrder{
		OrderID:  "order_" + uuid.NewString(),
		Amount:   amount,
		Currency: DefaultCurrency,
		Receipt:  receipt,
	}
	s.orders[receipt] = order
	return &order, nil
}

// Confirm verifies the signature and the decline list.
func (s *Sandbox) Confirm(_ context.Context, proof domain.ProofOfPayment) (*ports.PaymentConfirmation, error) {
	if err := s.signer.Verify(proof.OrderID, proof.PaymentID, proof.Signature); err != nil {
		return nil, domain.NewPaymentError(domain.ErrPaymentDeclined, "%v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.declined[proof.PaymentID]; ok {
		return nil, domain.NewPaymentError(domain.ErrPaymentDeclined, "payment %s declined", proof.PaymentID)
	}
	s.confirms++
	return &ports.PaymentConfirmation{TransactionID: "txn_" + proof.PaymentID, Amount: proof.Amount}, nil
}

// Refund is idempotent per key.
func (s *Sandbox) Refund(_ context.Context, paymentID string, amount domain.Money, idempotencyKey string) (*ports.RefundResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if refund, ok := s.refunds[idempotencyKey]; ok {
		return &refund, nil
	}
	refund := ports.RefundResult{RefundID: fmt.Sprintf("rfnd_%s_%s", paymentID, uuid.NewString()[:8]), Amount: amount}
	s.refunds[idempotencyKey] = refund
	return &refund, nil
}
