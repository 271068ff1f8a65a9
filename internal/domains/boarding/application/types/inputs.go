package types

import (
	"time"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
)

// SubmitApplicationInput is what an owner files. The owner comes from the request identity.
type SubmitApplicationInput struct {
	IdempotencyKey string
	CenterID       string
	Pets           []domain.PetCare
	StartDate      time.Time
	EndDate        time.Time
}

// ApplicationIdentifier addresses a single application.
type ApplicationIdentifier struct {
	ID string
}

// ListApplicationsInput filters list queries; empty Statuses means every status.
type ListApplicationsInput struct {
	Statuses []string
}

// SetPricingInput is the staff quote for an application.
type SetPricingInput struct {
	ApplicationID     string
	Rates             []domain.PetRate
	AdditionalCharges []domain.Charge
	Discount          domain.Money
	TaxPercent        *float64
	AdvancePercent    *float64
}

// DecisionInput carries a reason for reject, override and refund.
type DecisionInput struct {
	ApplicationID string
	Reason        string
}

// FinalBillInput is the staff settlement of an active stay.
type FinalBillInput struct {
	ApplicationID      string
	ExtraDays          int
	ExtraDayRate       *domain.Money
	AdditionalServices []domain.Charge
	Adjustments        []domain.Charge
}

// FeedbackInput is the owner's rating of a completed stay.
type FeedbackInput struct {
	ApplicationID  string
	Rating         int
	Comment        string
	ServiceRating  *int
	StaffRating    *int
	FacilityRating *int
}

// CancelInput is an owner cancellation.
type CancelInput struct {
	ApplicationID string
	Reason        string
}

// RecordPaymentInput is the proof of payment presented for an installment.
type RecordPaymentInput struct {
	ApplicationID string
	Kind          string
	OrderID       string
	PaymentID     string
	Signature     string
	Amount        domain.Money
}

// CreateOrderInput requests a gateway order for the amount due.
type CreateOrderInput struct {
	ApplicationID string
	Kind          string
}

// HandoverOTPInput requests a code for a custody transfer.
type HandoverOTPInput struct {
	ApplicationID string
	Purpose       string
}

// ConfirmHandoverInput is the code staff received from the owner.
type ConfirmHandoverInput struct {
	ApplicationID string
	Purpose       string
	Code          string
}
