package workflows

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application/types"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
	boardingactivities "github.com/Apurer/temporary-care-api/internal/platform/temporal/activities/boarding"
	boardingworkflows "github.com/Apurer/temporary-care-api/internal/platform/temporal/workflows/boarding"
	"github.com/Apurer/temporary-care-api/internal/shared/identity"
)

var (
	_ ports.PaymentWorkflowOrchestrator = (*TemporalPaymentWorkflows)(nil)
	_ ports.PaymentWorkflowOrchestrator = (*InlinePaymentWorkflows)(nil)
)

// TemporalPaymentWorkflows records payments through workflows on a Temporal cluster.
type TemporalPaymentWorkflows struct {
	client    client.Client
	taskQueue string
}

// NewTemporalPaymentWorkflows wires a Temporal client into the orchestrator.
func NewTemporalPaymentWorkflows(c client.Client) *TemporalPaymentWorkflows {
	return &TemporalPaymentWorkflows{client: c, taskQueue: boardingworkflows.PaymentTaskQueue}
}

// RecordPayment starts (or joins) the workflow for this proof and waits for its result.
func (o *TemporalPaymentWorkflows) RecordPayment(ctx context.Context, input types.RecordPaymentInput) (*types.ApplicationProjection, error) {
	if o == nil || o.client == nil {
		return nil, errors.New("temporal payment workflows not configured")
	}
	actor, err := identity.MustFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", application.ErrUnauthenticated, err)
	}
	kind, err := domain.ParsePaymentKind(input.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", application.ErrInvalidInput, err)
	}
	input.Kind = string(kind)

	workflowID := PaymentWorkflowID(input.ApplicationID, kind, input.PaymentID)
	options := client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: o.taskQueue,
	}
	workflowInput := boardingworkflows.PaymentRecordingWorkflowInput{
		Command: boardingactivities.PaymentCommand{Actor: actor, Payment: input},
		TraceID: workflowTraceID(ctx),
	}
	run, err := o.client.ExecuteWorkflow(ctx, options, boardingworkflows.PaymentRecordingWorkflow, workflowInput)
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if !errors.As(err, &alreadyStarted) {
			return nil, err
		}
		run = o.client.GetWorkflow(ctx, workflowID, alreadyStarted.RunId)
	}
	var projection types.ApplicationProjection
	if err := run.Get(ctx, &projection); err != nil {
		return nil, decodeWorkflowError(err)
	}
	return &projection, nil
}

// InlinePaymentWorkflows executes the service directly without Temporal, useful for tests or dev fallbacks.
type InlinePaymentWorkflows struct {
	service ports.Service
}

// NewInlinePaymentWorkflows wraps the boarding service for synchronous execution.
func NewInlinePaymentWorkflows(service ports.Service) *InlinePaymentWorkflows {
	return &InlinePaymentWorkflows{service: service}
}

// RecordPayment delegates to the application service without durable orchestration.
func (o *InlinePaymentWorkflows) RecordPayment(ctx context.Context, input types.RecordPaymentInput) (*types.ApplicationProjection, error) {
	if o == nil || o.service == nil {
		return nil, errors.New("inline payment workflows not configured")
	}
	return application.RecordPayment(ctx, o.service, input)
}

// PaymentWorkflowID is stable for one proof so client retries join the same execution.
func PaymentWorkflowID(applicationID string, kind domain.PaymentKind, paymentID string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(paymentID)))
	return fmt.Sprintf("boarding-payment-%s-%s-%s", applicationID, kind, hex.EncodeToString(sum[:8]))
}

// decodeWorkflowError turns a coded activity failure back into a matchable error.
func decodeWorkflowError(err error) error {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) || appErr.Type() == "" {
		return err
	}
	message := appErr.Error()
	if appErr.HasDetails() {
		var detail string
		if appErr.Details(&detail) == nil && detail != "" {
			message = detail
		}
	}
	return application.ErrorFromCode(appErr.Type(), message)
}

func workflowTraceID(ctx context.Context) string {
	spanCtx := oteltrace.SpanFromContext(ctx).SpanContext()
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
}
