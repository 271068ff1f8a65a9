package application

import (
	"errors"
	"fmt"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
	"github.com/Apurer/temporary-care-api/internal/shared/identity"
)

var (
	// ErrInvalidInput signals the request violated a domain invariant.
	ErrInvalidInput = errors.New("invalid boarding input")
	// ErrForbidden means the actor may not act on the application.
	ErrForbidden = errors.New("operation not permitted for this actor")
	// ErrUnauthenticated means the context carries no actor.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrConcurrentModification is returned once write retries are exhausted.
	ErrConcurrentModification = errors.New("application changed concurrently, retry")
)

var invalidInputErrors = []error{
	domain.ErrOwnerRequired,
	domain.ErrNoPets,
	domain.ErrPetRefRequired,
	domain.ErrDuplicatePet,
	domain.ErrInvalidDateRange,
	domain.ErrStartInPast,
	domain.ErrReasonRequired,
	domain.ErrInvalidRating,
	domain.ErrInvalidPricing,
	domain.ErrMissingPetRate,
	domain.ErrUnknownPetRate,
	domain.ErrNegativeAmount,
	domain.ErrDiscountTooLarge,
	domain.ErrInvalidPercentages,
	domain.ErrZeroAdvance,
	domain.ErrUnknownPurpose,
	domain.ErrUnknownPaymentKind,
	domain.ErrUnknownStatus,
	domain.ErrInvalidProof,
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range invalidInputErrors {
		if errors.Is(err, target) {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}
	if errors.Is(err, ports.ErrVersionConflict) {
		return fmt.Errorf("%w: %w", ErrConcurrentModification, err)
	}
	if errors.Is(err, identity.ErrNoActor) {
		return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return err
}

// Error codes name the failures callers are expected to switch on. They survive
// serialization boundaries such as Temporal activity results.
const (
	CodeInvalidInput         = "invalid_input"
	CodeNotFound             = "not_found"
	CodeForbidden            = "forbidden"
	CodeUnauthenticated      = "unauthenticated"
	CodeConcurrentUpdate     = "concurrent_modification"
	CodeInvalidTransition    = "invalid_transition"
	CodeNotCancellable       = "not_cancellable"
	CodePaymentDeclined      = "payment_declined"
	CodeAmountMismatch       = "amount_mismatch"
	CodeAlreadyRecorded      = "already_recorded"
	CodePricingAlreadySet    = "pricing_already_set"
	CodePricingMissing       = "pricing_missing"
	CodeFinalBillMissing     = "final_bill_missing"
	CodeFeedbackSubmitted    = "feedback_already_submitted"
	CodeOTPExpired           = "otp_expired"
	CodeOTPAlreadyConsumed   = "otp_already_consumed"
	CodeOTPMismatch          = "otp_mismatch"
	CodeOTPLockedOut         = "otp_locked_out"
	CodeOTPNotIssued         = "otp_not_issued"
	CodeHandoverNotRequested = "handover_not_requested"
	CodeIdempotencyConflict  = "idempotency_conflict"
)

var codeTable = []struct {
	code string
	err  error
}{
	{CodeInvalidInput, ErrInvalidInput},
	{CodeNotFound, ports.ErrNotFound},
	{CodeForbidden, ErrForbidden},
	{CodeUnauthenticated, ErrUnauthenticated},
	{CodeConcurrentUpdate, ErrConcurrentModification},
	{CodeInvalidTransition, domain.ErrInvalidTransition},
	{CodeNotCancellable, domain.ErrNotCancellable},
	{CodePaymentDeclined, domain.ErrPaymentDeclined},
	{CodeAmountMismatch, domain.ErrAmountMismatch},
	{CodeAlreadyRecorded, domain.ErrPaymentAlreadyRecorded},
	{CodePricingAlreadySet, domain.ErrPricingAlreadySet},
	{CodePricingMissing, domain.ErrPricingMissing},
	{CodeFinalBillMissing, domain.ErrFinalBillMissing},
	{CodeFeedbackSubmitted, domain.ErrFeedbackSubmitted},
	{CodeOTPExpired, domain.ErrOTPExpired},
	{CodeOTPAlreadyConsumed, domain.ErrOTPAlreadyConsumed},
	{CodeOTPMismatch, domain.ErrOTPMismatch},
	{CodeOTPLockedOut, domain.ErrOTPLockedOut},
	{CodeOTPNotIssued, domain.ErrOTPNotIssued},
	{CodeHandoverNotRequested, domain.ErrHandoverNotStarted},
	{CodeIdempotencyConflict, ports.ErrIdempotencyConflict},
}

// ErrorCode returns the code of the first known error in err's chain, or "".
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range codeTable {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return ""
}

// ErrorFromCode rebuilds a matchable error from a code and its message.
// Unknown codes yield a plain error.
func ErrorFromCode(code, message string) error {
	for _, entry := range codeTable {
		if entry.code == code {
			return &codedError{sentinel: entry.err, message: message}
		}
	}
	return errors.New(message)
}

type codedError struct {
	sentinel error
	message  string
}

func (e *codedError) Error() string { return e.message }

func (e *codedError) Unwrap() error { return e.sentinel }
