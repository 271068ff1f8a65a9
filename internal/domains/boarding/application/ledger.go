package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application/types"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
	"github.com/Apurer/temporary-care-api/internal/shared/identity"
)

var errGatewayMissing = errors.New("payment gateway not configured")

// RecordAdvancePayment confirms the advance and moves the application to advance_paid.
func (s *Service) RecordAdvancePayment(ctx context.Context, input types.RecordPaymentInput) (*types.ApplicationProjection, error) {
	return s.recordPayment(ctx, domain.PaymentAdvance, input)
}

// RecordFinalPayment confirms the final installment. The status stays active_care until pick-up.
func (s *Service) RecordFinalPayment(ctx context.Context, input types.RecordPaymentInput) (*types.ApplicationProjection, error) {
	return s.recordPayment(ctx, domain.PaymentFinal, input)
}

// recordPayment never touches the ledger before every check on the proof passed.
// Replays with the same payment id return the confirmed application.
func (s *Service) recordPayment(ctx context.Context, kind domain.PaymentKind, input types.RecordPaymentInput) (*types.ApplicationProjection, error) {
	actor, err := identity.MustFromContext(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	proof := domain.ProofOfPayment{
		OrderID:   strings.TrimSpace(input.OrderID),
		PaymentID: strings.TrimSpace(input.PaymentID),
		Signature: input.Signature,
		Amount:    input.Amount,
	}
	if err := proof.Validate(); err != nil {
		return nil, mapError(err)
	}

	current, err := s.load(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	app := current.Entity
	if !canView(actor, app) {
		return nil, ErrForbidden
	}
	if replay, err := paymentReplay(app, kind, proof.PaymentID); replay || err != nil {
		if err != nil {
			return nil, err
		}
		return current, nil
	}
	due, err := app.AmountDue(kind)
	if err != nil {
		return nil, mapError(err)
	}
	if proof.Amount != due {
		return nil, domain.NewPaymentError(domain.ErrAmountMismatch, "expected %d, got %d", due, proof.Amount)
	}

	if s.gateway == nil {
		return nil, errGatewayMissing
	}
	confirmation, err := s.gateway.Confirm(ctx, proof)
	if err != nil {
		return nil, mapError(err)
	}
	if confirmation.Amount != 0 && confirmation.Amount != due {
		return nil, domain.NewPaymentError(domain.ErrAmountMismatch, "gateway captured %d, expected %d", confirmation.Amount, due)
	}

	now := s.now()
	entry := &domain.LedgerEntry{
		ID:            uuid.NewString(),
		ApplicationID: app.ID,
		Kind:          kind,
		Amount:        due,
		OrderID:       proof.OrderID,
		PaymentID:     proof.PaymentID,
		TransactionID: confirmation.TransactionID,
		InvoiceNumber: domain.InvoiceNumber(app.Number, kind, now),
		RecordedBy:    actor.ID,
		RecordedAt:    now,
	}

	// The application may have moved while the gateway was confirming: the amount
	// due is checked again on every reload, and the entry is appended only once
	// that check passed.
	var stored *domain.LedgerEntry
	saved, err := s.mutate(ctx, app.ID, func(app *domain.Application, now time.Time) error {
		if replay, err := paymentReplay(app, kind, entry.PaymentID); replay || err != nil {
			if err != nil {
				return err
			}
			return errUnchanged
		}
		due, err := app.AmountDue(kind)
		if err != nil {
			return err
		}
		if due != entry.Amount {
			return domain.NewPaymentError(domain.ErrAmountMismatch, "expected %d, got %d", due, entry.Amount)
		}
		if stored == nil {
			if stored, err = s.appendEntry(ctx, entry); err != nil {
				return err
			}
		}
		if kind == domain.PaymentAdvance {
			return app.ConfirmAdvancePayment(stored, now)
		}
		return app.ConfirmFinalPayment(stored, now)
	})
	if err != nil && stored != nil {
		s.discardEntry(ctx, stored, err)
	}
	return saved, err
}

// discardEntry removes an entry whose application update was refused, so a later
// correct payment of the same kind is not blocked by it. Infrastructure failures
// keep the entry: the update may have committed and a replay reuses it.
func (s *Service) discardEntry(ctx context.Context, entry *domain.LedgerEntry, cause error) {
	if ErrorCode(cause) == "" {
		return
	}
	_ = s.ledger.Discard(ctx, entry.ID)
}

// appendEntry writes entry once. A duplicate for the same payment is the entry of an
// earlier attempt that crashed before updating the application; it is reused.
func (s *Service) appendEntry(ctx context.Context, entry *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	stored, err := s.ledger.Append(ctx, entry)
	if errors.Is(err, ports.ErrDuplicateEntry) {
		if stored != nil && stored.PaymentID == entry.PaymentID {
			return stored, nil
		}
		return nil, domain.NewPaymentError(domain.ErrPaymentAlreadyRecorded, "%s payment already recorded", entry.Kind)
	}
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func paymentReplay(app *domain.Application, kind domain.PaymentKind, paymentID string) (bool, error) {
	record := app.Payments.Advance
	if kind == domain.PaymentFinal {
		record = app.Payments.Final
	}
	if !record.Completed() {
		return false, nil
	}
	if record.PaymentID == paymentID {
		return true, nil
	}
	return false, domain.NewPaymentError(domain.ErrPaymentAlreadyRecorded, "%s payment %s", kind, record.PaymentID)
}

// CreatePaymentOrder asks the gateway for an order over the amount currently due.
func (s *Service) CreatePaymentOrder(ctx context.Context, input types.CreateOrderInput) (*types.PaymentOrderResult, error) {
	actor, err := identity.MustFromContext(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	kind, err := domain.ParsePaymentKind(input.Kind)
	if err != nil {
		return nil, mapError(err)
	}
	current, err := s.load(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	app := current.Entity
	if !app.OwnedBy(actor.ID) {
		return nil, ErrForbidden
	}
	due, err := app.AmountDue(kind)
	if err != nil {
		return nil, mapError(err)
	}
	if s.gateway == nil {
		return nil, errGatewayMissing
	}
	receipt := fmt.Sprintf("RCPT-%s-%s", app.Number, strings.ToUpper(string(kind)))
	order, err := s.gateway.CreateOrder(ctx, app.ID, kind, due, receipt)
	if err != nil {
		return nil, mapError(err)
	}
	return &types.PaymentOrderResult{
		ApplicationID: app.ID,
		Kind:          kind,
		OrderID:       order.OrderID,
		Amount:        order.Amount,
		Currency:      order.Currency,
		Receipt:       order.Receipt,
	}, nil
}

// RefundAdvance returns the advance of a cancelled application once.
func (s *Service) RefundAdvance(ctx context.Context, input types.DecisionInput) (*types.ApplicationProjection, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	current, err := s.load(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	app := current.Entity
	if app.Payments.Refund != nil {
		return current, nil
	}
	if app.Status != domain.StatusCancelled {
		return nil, &domain.InvalidTransitionError{From: app.Status, Trigger: domain.TriggerRefund, Reason: "only cancelled applications are refunded"}
	}
	advance, err := s.ledger.Find(ctx, app.ID, domain.PaymentAdvance)
	if errors.Is(err, ports.ErrEntryNotFound) {
		return nil, domain.NewPaymentError(domain.ErrAmountMismatch, "no advance was paid")
	}
	if err != nil {
		return nil, err
	}
	if s.gateway == nil {
		return nil, errGatewayMissing
	}
	refund, err := s.gateway.Refund(ctx, advance.PaymentID, advance.Amount, "refund-"+app.ID)
	if err != nil {
		return nil, mapError(err)
	}

	now := s.now()
	entry, err := s.appendEntry(ctx, &domain.LedgerEntry{
		ID:            uuid.NewString(),
		ApplicationID: app.ID,
		Kind:          domain.PaymentRefund,
		Amount:        refund.Amount,
		OrderID:       advance.OrderID,
		PaymentID:     refund.RefundID,
		TransactionID: refund.RefundID,
		InvoiceNumber: domain.InvoiceNumber(app.Number, domain.PaymentRefund, now),
		RecordedBy:    actor.ID,
		RecordedAt:    now,
	})
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, app.ID, func(app *domain.Application, now time.Time) error {
		if app.Payments.Refund != nil {
			return errUnchanged
		}
		return app.RecordRefund(entry, now)
	})
}

// ListPayments returns the ledger entries of an application.
func (s *Service) ListPayments(ctx context.Context, input types.ApplicationIdentifier) ([]*domain.LedgerEntry, error) {
	if _, err := s.GetApplication(ctx, input); err != nil {
		return nil, err
	}
	entries, err := s.ledger.ListByApplication(ctx, input.ID)
	if err != nil {
		return nil, mapError(err)
	}
	return entries, nil
}

// RecordPayment routes a proof to the advance or final installment named by input.Kind.
func RecordPayment(ctx context.Context, service ports.Service, input types.RecordPaymentInput) (*types.ApplicationProjection, error) {
	kind, err := domain.ParsePaymentKind(input.Kind)
	if err != nil {
		return nil, mapError(err)
	}
	if kind == domain.PaymentFinal {
		return service.RecordFinalPayment(ctx, input)
	}
	return service.RecordAdvancePayment(ctx, input)
}
