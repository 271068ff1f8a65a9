package application

import (
	"context"
	"time"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application/types"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/shared/identity"
)

// RequestHandoverOTP issues a drop-off or pick-up code to the owner. No code is created
// unless the application is eligible for that handover.
func (s *Service) RequestHandoverOTP(ctx context.Context, input types.HandoverOTPInput) (*types.IssuedOTP, error) {
	actor, err := identity.MustFromContext(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	purpose, err := domain.ParsePurpose(input.Purpose)
	if err != nil {
		return nil, mapError(err)
	}
	current, err := s.load(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	if !current.Entity.OwnedBy(actor.ID) {
		return nil, ErrForbidden
	}
	if err := current.Entity.CheckHandoverEligible(purpose); err != nil {
		return nil, mapError(err)
	}

	otp, code, err := s.otps.Prepare(current.Entity.ID, purpose)
	if err != nil {
		return nil, err
	}
	// Storing supersedes every earlier code before the application points at the
	// new one. A failed store leaves the previous code usable; a refused update
	// leaves no usable code and the owner requests another.
	if err := s.otps.Store(ctx, otp); err != nil {
		return nil, err
	}
	if _, err := s.mutate(ctx, current.Entity.ID, func(app *domain.Application, now time.Time) error {
		return app.StartHandover(otp, now)
	}); err != nil {
		return nil, err
	}
	return &types.IssuedOTP{
		ApplicationID: otp.ApplicationID,
		Purpose:       purpose,
		Code:          code,
		ExpiresAt:     otp.ExpiresAt,
	}, nil
}

// ConfirmHandover validates the code staff received and moves custody.
// The transition is written with a version check after the code is consumed; if a
// cancellation committed in between, the reloaded guard fails the confirmation.
func (s *Service) ConfirmHandover(ctx context.Context, input types.ConfirmHandoverInput) (*types.ApplicationProjection, error) {
	actor, err := requireStaff(ctx)
	if err != nil {
		return nil, err
	}
	purpose, err := domain.ParsePurpose(input.Purpose)
	if err != nil {
		return nil, mapError(err)
	}
	current, err := s.load(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	app := current.Entity
	if err := app.CheckHandoverEligible(purpose); err != nil {
		return nil, mapError(err)
	}
	if handover := app.HandoverFor(purpose); handover == nil {
		return nil, domain.ErrOTPNotIssued
	}

	otp, err := s.otps.Validate(ctx, app.ID, purpose, input.Code)
	if err != nil {
		return nil, mapError(err)
	}
	return s.mutate(ctx, app.ID, func(app *domain.Application, now time.Time) error {
		return app.CompleteHandover(purpose, otp.ID, actor.ID, now)
	})
}
