package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application/types"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/shared/identity"
)

const pricingRejectedReason = "pricing rejected"

// Cancel is the owner cancellation. Outstanding handover codes die with the booking.
func (s *Service) Cancel(ctx context.Context, input types.CancelInput) (*types.ApplicationProjection, error) {
	actor, err := identity.MustFromContext(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	saved, err := s.mutate(ctx, input.ApplicationID, func(app *domain.Application, now time.Time) error {
		if !app.OwnedBy(actor.ID) {
			return ErrForbidden
		}
		return app.Cancel(actor.ID, string(actor.Role), input.Reason, now)
	})
	if err != nil {
		return nil, err
	}
	return s.invalidateOTPs(ctx, saved)
}

// RejectPricing lets the owner decline the quote, cancelling the application.
func (s *Service) RejectPricing(ctx context.Context, input types.ApplicationIdentifier) (*types.ApplicationProjection, error) {
	actor, err := identity.MustFromContext(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	saved, err := s.mutate(ctx, input.ID, func(app *domain.Application, now time.Time) error {
		if !app.OwnedBy(actor.ID) {
			return ErrForbidden
		}
		if app.Status != domain.StatusPriceDetermined {
			return &domain.InvalidTransitionError{From: app.Status, To: domain.StatusCancelled, Trigger: domain.TriggerOwnerCancel, Reason: "no quote to reject"}
		}
		return app.Cancel(actor.ID, string(actor.Role), pricingRejectedReason, now)
	})
	if err != nil {
		return nil, err
	}
	return s.invalidateOTPs(ctx, saved)
}

// OverrideCancel is the audited administrative cancellation, allowed after handover.
func (s *Service) OverrideCancel(ctx context.Context, input types.DecisionInput) (*types.ApplicationProjection, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	saved, err := s.mutate(ctx, input.ApplicationID, func(app *domain.Application, now time.Time) error {
		return app.OverrideCancel(actor.ID, strings.TrimSpace(input.Reason), now)
	})
	if err != nil {
		return nil, err
	}
	return s.invalidateOTPs(ctx, saved)
}

func (s *Service) invalidateOTPs(ctx context.Context, saved *types.ApplicationProjection) (*types.ApplicationProjection, error) {
	if _, err := s.otps.InvalidateAll(ctx, saved.Entity.ID); err != nil {
		return nil, fmt.Errorf("invalidate handover codes: %w", err)
	}
	return saved, nil
}
