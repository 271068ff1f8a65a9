package boarding

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application/types"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
	"github.com/Apurer/temporary-care-api/internal/shared/identity"
)

// RecordPaymentActivityName confirms a proof of payment and records it.
const RecordPaymentActivityName = "boarding.activities.RecordPayment"

// PaymentCommand is the activity payload. The actor travels explicitly because
// activity contexts do not inherit request values.
type PaymentCommand struct {
	Actor   identity.Actor
	Payment types.RecordPaymentInput
}

// Activities groups activities that operate on the boarding bounded context.
type Activities struct {
	service ports.Service
}

// NewActivities wires the boarding service into the Temporal activities bundle.
func NewActivities(service ports.Service) *Activities {
	return &Activities{service: service}
}

// RecordPayment runs the payment use case as the original caller.
// Business failures are not retried; infrastructure failures are.
func (a *Activities) RecordPayment(ctx context.Context, command PaymentCommand) (*types.ApplicationProjection, error) {
	logger := activity.GetLogger(ctx)
	applicationID := command.Payment.ApplicationID
	if a == nil || a.service == nil {
		logger.Error("payment activity not initialized", "applicationId", applicationID)
		return nil, errors.New("payment activity not initialized")
	}
	logger.Info("RecordPayment activity started", "applicationId", applicationID, "kind", command.Payment.Kind)
	ctx = identity.WithActor(ctx, command.Actor)
	projection, err := application.RecordPayment(ctx, a.service, command.Payment)
	if err != nil {
		logger.Error("RecordPayment activity failed", "applicationId", applicationID, "error", err)
		return nil, asActivityError(err)
	}
	logger.Info("RecordPayment activity completed", "applicationId", applicationID)
	return projection, nil
}

// asActivityError marks coded errors as non-retryable and keeps their message in
// the details so callers can rebuild them with application.ErrorFromCode.
func asActivityError(err error) error {
	code := application.ErrorCode(err)
	if code == "" || code == application.CodeConcurrentUpdate {
		return err
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), code, err, err.Error())
}
