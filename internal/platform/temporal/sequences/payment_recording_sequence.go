package sequences

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application/types"
	boardingactivities "github.com/Apurer/temporary-care-api/internal/platform/temporal/activities/boarding"
)

// RunPaymentRecordingSequence executes the activity that confirms and records a payment.
func RunPaymentRecordingSequence(ctx workflow.Context, command boardingactivities.PaymentCommand) (*types.ApplicationProjection, error) {
	logger := workflow.GetLogger(ctx)
	applicationID := command.Payment.ApplicationID
	logger.Info("payment recording sequence started", "applicationId", applicationID, "kind", command.Payment.Kind)
	options := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    5,
		},
	}

	var projection types.ApplicationProjection
	err := workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, options), boardingactivities.RecordPaymentActivityName, command).Get(ctx, &projection)
	if err != nil {
		logger.Error("payment recording sequence failed", "applicationId", applicationID, "error", err)
		return nil, err
	}
	logger.Info("payment recording sequence completed", "applicationId", applicationID)
	return &projection, nil
}
