package ports

import (
	"context"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application/types"
)

// PaymentWorkflowOrchestrator records payments through a durable workflow when one is available.
type PaymentWorkflowOrchestrator interface {
	RecordPayment(ctx context.Context, input types.RecordPaymentInput) (*types.ApplicationProjection, error)
}
