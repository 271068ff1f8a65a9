package ports

import (
	"context"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application/types"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
)

// Service defines the boarding use cases exposed to adapters (inbound/driving port).
// The acting user is read from the context (see internal/shared/identity).
type Service interface {
	SubmitApplication(ctx context.Context, input types.SubmitApplicationInput) (*types.ApplicationProjection, error)
	GetApplication(ctx context.Context, input types.ApplicationIdentifier) (*types.ApplicationProjection, error)
	ListMine(ctx context.Context, input types.ListApplicationsInput) ([]*types.ApplicationProjection, error)
	ListApplications(ctx context.Context, input types.ListApplicationsInput) ([]*types.ApplicationProjection, error)

	SetPricing(ctx context.Context, input types.SetPricingInput) (*types.ApplicationProjection, error)
	Approve(ctx context.Context, input types.ApplicationIdentifier) (*types.ApplicationProjection, error)
	Reject(ctx context.Context, input types.DecisionInput) (*types.ApplicationProjection, error)
	GenerateFinalBill(ctx context.Context, input types.FinalBillInput) (*types.ApplicationProjection, error)
	SubmitFeedback(ctx context.Context, input types.FeedbackInput) (*types.ApplicationProjection, error)

	Cancel(ctx context.Context, input types.CancelInput) (*types.ApplicationProjection, error)
	RejectPricing(ctx context.Context, input types.ApplicationIdentifier) (*types.ApplicationProjection, error)
	OverrideCancel(ctx context.Context, input types.DecisionInput) (*types.ApplicationProjection, error)

	RecordAdvancePayment(ctx context.Context, input types.RecordPaymentInput) (*types.ApplicationProjection, error)
	RecordFinalPayment(ctx context.Context, input types.RecordPaymentInput) (*types.ApplicationProjection, error)
	CreatePaymentOrder(ctx context.Context, input types.CreateOrderInput) (*types.PaymentOrderResult, error)
	RefundAdvance(ctx context.Context, input types.DecisionInput) (*types.ApplicationProjection, error)
	ListPayments(ctx context.Context, input types.ApplicationIdentifier) ([]*domain.LedgerEntry, error)

	RequestHandoverOTP(ctx context.Context, input types.HandoverOTPInput) (*types.IssuedOTP, error)
	ConfirmHandover(ctx context.Context, input types.ConfirmHandoverInput) (*types.ApplicationProjection, error)
}
