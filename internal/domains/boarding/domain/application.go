package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrOwnerRequired      = errors.New("application owner is required")
	ErrNoPets             = errors.New("at least one pet is required")
	ErrPetRefRequired     = errors.New("pet reference is required")
	ErrDuplicatePet       = errors.New("a pet can only be listed once per application")
	ErrInvalidDateRange   = errors.New("end date must be after start date")
	ErrStartInPast        = errors.New("start date must not be in the past")
	ErrReasonRequired     = errors.New("a reason is required")
	ErrNotCancellable     = errors.New("application can no longer be cancelled by its owner")
	ErrFeedbackSubmitted  = errors.New("feedback has already been submitted")
	ErrInvalidRating      = errors.New("ratings must be between 1 and 5")
	ErrHandoverNotStarted = errors.New("handover otp has not been requested")
)

// CancelError is returned when a cancellation is refused.
type CancelError struct {
	Status Status
}

func (e *CancelError) Error() string {
	return fmt.Sprintf("%s (status %s)", ErrNotCancellable, e.Status)
}

// Is lets errors.Is match ErrNotCancellable.
func (e *CancelError) Is(target error) bool {
	return target == ErrNotCancellable
}

// SpecialInstructions are the owner's care notes for one pet.
type SpecialInstructions struct {
	Food       string
	Medicine   string
	Behavior   string
	Allergies  string
	OtherNotes string
}

// PetCare is one pet boarded by the application.
type PetCare struct {
	PetRef       string
	Instructions SpecialInstructions
}

// Handover tracks one custody transfer and its current OTP.
type Handover struct {
	OTPID       string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	ConsumedAt  *time.Time
	CompletedAt *time.Time
	CompletedBy string
}

// Decision records a staff approval or rejection.
type Decision struct {
	By     string
	At     time.Time
	Reason string
}

// Cancellation records who cancelled and whether it bypassed the owner rules.
type Cancellation struct {
	By             string
	Role           string
	Reason         string
	At             time.Time
	Override       bool
	PreviousStatus Status
}

// Feedback is the owner's rating of a completed stay.
type Feedback struct {
	Rating         int
	Comment        string
	ServiceRating  *int
	StaffRating    *int
	FacilityRating *int
	SubmittedAt    time.Time
}

// Validate checks every rating is within 1..5.
func (f Feedback) Validate() error {
	if !validRating(&f.Rating) || !validRating(f.ServiceRating) || !validRating(f.StaffRating) || !validRating(f.FacilityRating) {
		return ErrInvalidRating
	}
	return nil
}

func validRating(r *int) bool {
	return r == nil || (*r >= 1 && *r <= 5)
}

// StatusChange is the audit trail entry of one transition.
type StatusChange struct {
	From    Status
	To      Status
	Trigger Trigger
	By      string
	Reason  string
	At      time.Time
}

// Submission carries what an owner files.
type Submission struct {
	ID        string
	Number    string
	OwnerID   string
	CenterID  string
	Pets      []PetCare
	StartDate time.Time
	EndDate   time.Time
}

// Application is the aggregate managed by the boarding bounded context.
type Application struct {
	ID           string
	Number       string
	OwnerID      string
	CenterID     string
	Status       Status
	Pets         []PetCare
	StartDate    time.Time
	EndDate      time.Time
	NumberOfDays int
	Pricing      *Pricing
	Payments     PaymentStatus
	FinalBill    *FinalBill
	CheckIn      *Handover
	CheckOut     *Handover
	Feedback     *Feedback
	Approval     *Decision
	Rejection    *Decision
	Cancellation *Cancellation
	History      []StatusChange
	SubmittedAt  time.Time

	events []Event
}

// NewApplication validates a submission and creates the aggregate in submitted.
func NewApplication(s Submission, now time.Time) (*Application, error) {
	if strings.TrimSpace(s.OwnerID) == "" {
		return nil, ErrOwnerRequired
	}
	if len(s.Pets) == 0 {
		return nil, ErrNoPets
	}
	seen := make(map[string]struct{}, len(s.Pets))
	pets := make([]PetCare, 0, len(s.Pets))
	for _, pet := range s.Pets {
		pet.PetRef = strings.TrimSpace(pet.PetRef)
		if pet.PetRef == "" {
			return nil, ErrPetRefRequired
		}
		if _, dup := seen[pet.PetRef]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePet, pet.PetRef)
		}
		seen[pet.PetRef] = struct{}{}
		pets = append(pets, pet)
	}
	if !s.EndDate.After(s.StartDate) {
		return nil, ErrInvalidDateRange
	}
	if s.StartDate.Before(startOfDay(now)) {
		return nil, ErrStartInPast
	}

	app := &Application{
		ID:           s.ID,
		Number:       s.Number,
		OwnerID:      strings.TrimSpace(s.OwnerID),
		CenterID:     strings.TrimSpace(s.CenterID),
		Status:       StatusSubmitted,
		Pets:         pets,
		StartDate:    s.StartDate,
		EndDate:      s.EndDate,
		NumberOfDays: DaysBetween(s.StartDate, s.EndDate),
		Payments: PaymentStatus{
			Advance: PaymentRecord{Status: PaymentPending},
			Final:   PaymentRecord{Status: PaymentPending},
		},
		SubmittedAt: now,
	}
	app.record(ApplicationSubmitted{BaseEvent: app.base(now), Number: app.Number, OwnerID: app.OwnerID, Pets: len(pets)})
	return app, nil
}

// DaysBetween rounds the stay up to whole days.
func DaysBetween(start, end time.Time) int {
	return int(math.Ceil(end.Sub(start).Hours() / 24))
}

// OwnedBy reports whether the actor id owns the application.
func (a *Application) OwnedBy(actorID string) bool {
	return a.OwnerID != "" && a.OwnerID == actorID
}

// SetPricing stores the quote and moves the application to price_determined.
func (a *Application) SetPricing(pricing *Pricing, by string, now time.Time) error {
	if err := a.CheckPricingAllowed(); err != nil {
		return err
	}
	if err := pricing.Validate(); err != nil {
		return err
	}
	quoted := pricing.Clone()
	quoted.DeterminedAt = now
	quoted.DeterminedBy = by
	a.Pricing = quoted
	a.Payments.Advance.Amount = quoted.AdvanceAmount
	a.Payments.Final.Amount = quoted.RemainingAmount
	a.transition(StatusPriceDetermined, TriggerPricing, by, "", now)
	a.record(PricingDetermined{BaseEvent: a.base(now), TotalAmount: quoted.TotalAmount, AdvanceAmount: quoted.AdvanceAmount})
	return nil
}

// CheckPricingAllowed reports whether a quote may be stored now.
func (a *Application) CheckPricingAllowed() error {
	if a.Pricing != nil {
		return ErrPricingAlreadySet
	}
	return a.guard(StatusPriceDetermined, TriggerPricing)
}

// ConfirmAdvancePayment marks the advance completed and moves to advance_paid.
func (a *Application) ConfirmAdvancePayment(entry *LedgerEntry, now time.Time) error {
	if a.Payments.Advance.Completed() {
		return NewPaymentError(ErrPaymentAlreadyRecorded, "advance payment %s", a.Payments.Advance.PaymentID)
	}
	if err := a.guard(StatusAdvancePaid, TriggerAdvancePayment); err != nil {
		return err
	}
	if a.Pricing == nil {
		return ErrPricingMissing
	}
	if entry.Amount != a.Pricing.AdvanceAmount {
		return NewPaymentError(ErrAmountMismatch, "expected %d, got %d", a.Pricing.AdvanceAmount, entry.Amount)
	}
	a.Payments.Advance = FromEntry(entry)
	a.transition(StatusAdvancePaid, TriggerAdvancePayment, entry.RecordedBy, "", now)
	a.record(PaymentRecorded{BaseEvent: a.base(now), Kind: PaymentAdvance, Amount: entry.Amount, InvoiceNumber: entry.InvoiceNumber})
	return nil
}

// Approve confirms logistics and locks the pricing.
func (a *Application) Approve(by string, now time.Time) error {
	if err := a.guard(StatusApproved, TriggerApprove); err != nil {
		return err
	}
	a.Pricing.Locked = true
	a.Approval = &Decision{By: by, At: now}
	a.transition(StatusApproved, TriggerApprove, by, "", now)
	return nil
}

// Reject declines the application with a reason.
func (a *Application) Reject(by, reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	if err := a.guard(StatusRejected, TriggerReject); err != nil {
		return err
	}
	a.Rejection = &Decision{By: by, At: now, Reason: reason}
	a.transition(StatusRejected, TriggerReject, by, reason, now)
	return nil
}

// CheckHandoverEligible reports whether an OTP for purpose may be issued now.
func (a *Application) CheckHandoverEligible(purpose Purpose) error {
	switch purpose {
	case PurposeDropoff:
		if a.Status != StatusAdvancePaid && a.Status != StatusApproved {
			return invalidTransition(a.Status, StatusActiveCare, TriggerDropoff, "drop-off requires advance_paid or approved")
		}
		return nil
	case PurposePickup:
		if a.Status != StatusActiveCare {
			return invalidTransition(a.Status, StatusCompleted, TriggerPickup, "pick-up requires active_care")
		}
		if !a.Payments.Final.Completed() {
			return invalidTransition(a.Status, StatusCompleted, TriggerPickup, "final payment is still pending")
		}
		return nil
	}
	return ErrUnknownPurpose
}

// HandoverFor returns the drop-off or pick-up record, nil when no code was requested.
func (a *Application) HandoverFor(purpose Purpose) *Handover {
	if purpose == PurposePickup {
		return a.CheckOut
	}
	return a.CheckIn
}

// StartHandover attaches a freshly issued OTP to the drop-off or pick-up record.
func (a *Application) StartHandover(otp *OTP, now time.Time) error {
	if otp == nil || otp.ApplicationID != a.ID {
		return ErrOTPNotIssued
	}
	if err := a.CheckHandoverEligible(otp.Purpose); err != nil {
		return err
	}
	handover := &Handover{OTPID: otp.ID, IssuedAt: otp.IssuedAt, ExpiresAt: otp.ExpiresAt}
	if otp.Purpose == PurposeDropoff {
		a.CheckIn = handover
	} else {
		a.CheckOut = handover
	}
	a.record(HandoverOTPIssued{BaseEvent: a.base(now), Purpose: otp.Purpose, ExpiresAt: otp.ExpiresAt})
	return nil
}

// CompleteHandover records a verified custody transfer and moves the lifecycle on.
func (a *Application) CompleteHandover(purpose Purpose, otpID, by string, now time.Time) error {
	if err := a.CheckHandoverEligible(purpose); err != nil {
		return err
	}
	handover := a.HandoverFor(purpose)
	target, trigger := StatusActiveCare, TriggerDropoff
	if purpose == PurposePickup {
		target, trigger = StatusCompleted, TriggerPickup
	}
	if err := a.guard(target, trigger); err != nil {
		return err
	}
	if handover == nil || handover.OTPID != otpID {
		return ErrHandoverNotStarted
	}
	consumed := now
	completed := now
	handover.ConsumedAt = &consumed
	handover.CompletedAt = &completed
	handover.CompletedBy = by
	a.transition(target, trigger, by, "", now)
	a.record(HandoverCompleted{BaseEvent: a.base(now), Purpose: purpose, By: by})
	return nil
}

// GenerateFinalBill settles the stay while care is active and unpaid.
func (a *Application) GenerateFinalBill(input FinalBillInput, by string, now time.Time) error {
	if a.Status != StatusActiveCare {
		return invalidTransition(a.Status, "", TriggerFinalBill, "care has not started")
	}
	if a.Payments.Final.Completed() && !a.Payments.Final.SettledWithoutPayment() {
		return NewPaymentError(ErrPaymentAlreadyRecorded, "final payment %s", a.Payments.Final.PaymentID)
	}
	bill, err := NewFinalBill(a.Pricing, a.Payments.Advance.Amount, input, by, now)
	if err != nil {
		return err
	}
	a.FinalBill = bill
	a.Payments.Final = PaymentRecord{Status: PaymentPending, Amount: bill.FinalAmountDue}
	if bill.FinalAmountDue == 0 {
		// Nothing is owed: the installment is settled without a ledger entry so pick-up can proceed.
		settled := now
		a.Payments.Final.Status = PaymentCompleted
		a.Payments.Final.PaidAt = &settled
	}
	a.record(FinalBillGenerated{BaseEvent: a.base(now), FinalTotal: bill.FinalTotal, FinalAmountDue: bill.FinalAmountDue})
	return nil
}

// ConfirmFinalPayment marks the final installment paid. It never changes status.
func (a *Application) ConfirmFinalPayment(entry *LedgerEntry, now time.Time) error {
	if a.Payments.Final.Completed() {
		return NewPaymentError(ErrPaymentAlreadyRecorded, "final payment %s", a.Payments.Final.PaymentID)
	}
	if a.Status != StatusActiveCare {
		return invalidTransition(a.Status, "", TriggerFinalPayment, "final payment requires active_care")
	}
	if a.FinalBill == nil {
		return ErrFinalBillMissing
	}
	if entry.Amount != a.FinalBill.FinalAmountDue {
		return NewPaymentError(ErrAmountMismatch, "expected %d, got %d", a.FinalBill.FinalAmountDue, entry.Amount)
	}
	a.Payments.Final = FromEntry(entry)
	a.record(PaymentRecorded{BaseEvent: a.base(now), Kind: PaymentFinal, Amount: entry.Amount, InvoiceNumber: entry.InvoiceNumber})
	return nil
}

// AmountDue returns what the client has to pay for kind right now.
func (a *Application) AmountDue(kind PaymentKind) (Money, error) {
	switch kind {
	case PaymentAdvance:
		if a.Payments.Advance.Completed() {
			return 0, NewPaymentError(ErrPaymentAlreadyRecorded, "advance")
		}
		if a.Status != StatusPriceDetermined || a.Pricing == nil {
			return 0, invalidTransition(a.Status, StatusAdvancePaid, TriggerAdvancePayment, "pricing must be determined")
		}
		return a.Pricing.AdvanceAmount, nil
	case PaymentFinal:
		if a.Payments.Final.Completed() {
			return 0, NewPaymentError(ErrPaymentAlreadyRecorded, "final")
		}
		if a.Status != StatusActiveCare {
			return 0, invalidTransition(a.Status, "", TriggerFinalPayment, "final payment requires active_care")
		}
		if a.FinalBill == nil {
			return 0, ErrFinalBillMissing
		}
		return a.FinalBill.FinalAmountDue, nil
	}
	return 0, ErrUnknownPaymentKind
}

// Cancel is the owner cancellation. It is refused once the pet is handed over.
func (a *Application) Cancel(by, role, reason string, now time.Time) error {
	if !a.Status.OwnerCancellable() {
		return &CancelError{Status: a.Status}
	}
	if err := a.guard(StatusCancelled, TriggerOwnerCancel); err != nil {
		return err
	}
	previous := a.Status
	a.Cancellation = &Cancellation{By: by, Role: role, Reason: strings.TrimSpace(reason), At: now, PreviousStatus: previous}
	a.invalidateHandovers()
	a.transition(StatusCancelled, TriggerOwnerCancel, by, a.Cancellation.Reason, now)
	a.record(ApplicationCancelled{BaseEvent: a.base(now), PreviousStatus: previous, Reason: a.Cancellation.Reason})
	return nil
}

// OverrideCancel is the audited administrative cancellation.
func (a *Application) OverrideCancel(adminID, reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	if err := a.guard(StatusCancelled, TriggerAdminOverride); err != nil {
		return err
	}
	previous := a.Status
	a.Cancellation = &Cancellation{By: adminID, Role: "admin", Reason: reason, At: now, Override: true, PreviousStatus: previous}
	a.invalidateHandovers()
	a.transition(StatusCancelled, TriggerAdminOverride, adminID, reason, now)
	a.record(CancellationOverridden{BaseEvent: a.base(now), PreviousStatus: previous, AdminID: adminID, Reason: reason})
	return nil
}

// RecordRefund stores the refund of the advance on a cancelled application.
// The caller checks the ledger for the advance being refunded.
func (a *Application) RecordRefund(entry *LedgerEntry, now time.Time) error {
	if a.Status != StatusCancelled {
		return invalidTransition(a.Status, "", TriggerRefund, "only cancelled applications are refunded")
	}
	if entry.Kind != PaymentRefund || entry.Amount <= 0 {
		return NewPaymentError(ErrAmountMismatch, "refund entry must carry a positive amount")
	}
	if a.Payments.Refund != nil {
		return NewPaymentError(ErrPaymentAlreadyRecorded, "refund %s", a.Payments.Refund.PaymentID)
	}
	record := FromEntry(entry)
	a.Payments.Refund = &record
	a.record(PaymentRecorded{BaseEvent: a.base(now), Kind: PaymentRefund, Amount: entry.Amount, InvoiceNumber: entry.InvoiceNumber})
	return nil
}

// SubmitFeedback attaches the owner's rating to a completed stay.
func (a *Application) SubmitFeedback(feedback Feedback, now time.Time) error {
	if a.Status != StatusCompleted {
		return invalidTransition(a.Status, "", TriggerFeedback, "feedback requires a completed stay")
	}
	if a.Feedback != nil {
		return ErrFeedbackSubmitted
	}
	if err := feedback.Validate(); err != nil {
		return err
	}
	feedback.SubmittedAt = now
	a.Feedback = &feedback
	a.record(FeedbackSubmitted{BaseEvent: a.base(now), Rating: feedback.Rating})
	return nil
}

// Events returns the events raised since the last ClearEvents.
func (a *Application) Events() []Event {
	return append([]Event(nil), a.events...)
}

// ClearEvents drops pending events.
func (a *Application) ClearEvents() {
	a.events = nil
}

// Clone returns a deep copy without pending events.
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	clone := *a
	clone.events = nil
	clone.Pets = append([]PetCare(nil), a.Pets...)
	clone.Pricing = a.Pricing.Clone()
	clone.FinalBill = a.FinalBill.Clone()
	clone.CheckIn = cloneHandover(a.CheckIn)
	clone.CheckOut = cloneHandover(a.CheckOut)
	clone.Payments = clonePayments(a.Payments)
	clone.History = append([]StatusChange(nil), a.History...)
	if a.Feedback != nil {
		feedback := *a.Feedback
		clone.Feedback = &feedback
	}
	if a.Approval != nil {
		approval := *a.Approval
		clone.Approval = &approval
	}
	if a.Rejection != nil {
		rejection := *a.Rejection
		clone.Rejection = &rejection
	}
	if a.Cancellation != nil {
		cancellation := *a.Cancellation
		clone.Cancellation = &cancellation
	}
	return &clone
}

// guard fails without touching the aggregate when the edge does not exist.
func (a *Application) guard(to Status, trigger Trigger) error {
	if !CanTransition(a.Status, to, trigger) {
		return invalidTransition(a.Status, to, trigger, "")
	}
	return nil
}

// transition must only be called after guard succeeded.
func (a *Application) transition(to Status, trigger Trigger, by, reason string, now time.Time) {
	from := a.Status
	a.Status = to
	a.History = append(a.History, StatusChange{From: from, To: to, Trigger: trigger, By: by, Reason: reason, At: now})
	a.record(StatusChanged{BaseEvent: a.base(now), From: from, To: to, Trigger: trigger, By: by})
}

func (a *Application) invalidateHandovers() {
	if a.CheckIn != nil && a.CheckIn.CompletedAt == nil {
		a.CheckIn = nil
	}
	if a.CheckOut != nil && a.CheckOut.CompletedAt == nil {
		a.CheckOut = nil
	}
}

func (a *Application) record(event Event) {
	a.events = append(a.events, event)
}

func (a *Application) base(now time.Time) BaseEvent {
	return BaseEvent{ApplicationID: a.ID, Timestamp: now}
}

func cloneHandover(h *Handover) *Handover {
	if h == nil {
		return nil
	}
	clone := *h
	clone.ConsumedAt = cloneTime(h.ConsumedAt)
	clone.CompletedAt = cloneTime(h.CompletedAt)
	return &clone
}

func clonePayments(p PaymentStatus) PaymentStatus {
	clone := p
	clone.Advance.PaidAt = cloneTime(p.Advance.PaidAt)
	clone.Final.PaidAt = cloneTime(p.Final.PaidAt)
	if p.Refund != nil {
		refund := *p.Refund
		refund.PaidAt = cloneTime(p.Refund.PaidAt)
		clone.Refund = &refund
	}
	return clone
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
