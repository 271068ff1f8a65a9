package boarding

import (
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application/types"
	boardingactivities "github.com/Apurer/temporary-care-api/internal/platform/temporal/activities/boarding"
	"github.com/Apurer/temporary-care-api/internal/platform/temporal/sequences"
)

const (
	// PaymentRecordingWorkflowName is the public identifier for registering the workflow.
	PaymentRecordingWorkflowName = "boarding.workflows.PaymentRecording"
	// PaymentTaskQueue is the queue consumed by the worker processing payment workflows.
	PaymentTaskQueue = "BOARDING_PAYMENTS"
)

// PaymentRecordingWorkflowInput captures the proof of payment and who presented it.
type PaymentRecordingWorkflowInput struct {
	Command boardingactivities.PaymentCommand
	TraceID string
}

// PaymentRecordingWorkflow records one installment durably.
func PaymentRecordingWorkflow(ctx workflow.Context, input PaymentRecordingWorkflowInput) (*types.ApplicationProjection, error) {
	logger := workflow.GetLogger(ctx)
	applicationID := input.Command.Payment.ApplicationID
	logger.Info("PaymentRecordingWorkflow started", withTraceID(input.TraceID, "applicationId", applicationID)...)
	projection, err := sequences.RunPaymentRecordingSequence(ctx, input.Command)
	if err != nil {
		logger.Error("PaymentRecordingWorkflow failed", withTraceID(input.TraceID, "applicationId", applicationID, "error", err)...)
		return nil, err
	}
	logger.Info("PaymentRecordingWorkflow completed", withTraceID(input.TraceID, "applicationId", applicationID)...)
	return projection, nil
}

func withTraceID(traceID string, keyvals ...interface{}) []interface{} {
	if traceID == "" {
		return keyvals
	}
	return append(keyvals, "traceId", traceID)
}
