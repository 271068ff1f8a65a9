package domain

import "time"

// Event is the base interface for all domain events.
type Event interface {
	EventName() string
	OccurredAt() time.Time
	AggregateID() string
}

// BaseEvent provides common event metadata.
type BaseEvent struct {
	ApplicationID string
	Timestamp     time.Time
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID returns the application the event belongs to.
func (e BaseEvent) AggregateID() string {
	return e.ApplicationID
}

// StatusChanged is raised on every lifecycle transition.
type StatusChanged struct {
	BaseEvent
	From    Status
	To      Status
	Trigger Trigger
	By      string
}

func (e StatusChanged) EventName() string { return "boarding.application.status_changed" }

// ApplicationSubmitted is raised when an owner files a new application.
type ApplicationSubmitted struct {
	BaseEvent
	Number  string
	OwnerID string
	Pets    int
}

func (e ApplicationSubmitted) EventName() string { return "boarding.application.submitted" }

// PricingDetermined is raised when staff quote the stay.
type PricingDetermined struct {
	BaseEvent
	TotalAmount   Money
	AdvanceAmount Money
}

func (e PricingDetermined) EventName() string { return "boarding.application.pricing_determined" }

// PaymentRecorded is raised when the ledger accepts money for an installment.
type PaymentRecorded struct {
	BaseEvent
	Kind          PaymentKind
	Amount        Money
	InvoiceNumber string
}

func (e PaymentRecorded) EventName() string { return "boarding.payment.recorded" }

// HandoverOTPIssued is raised when a handover code is issued. It never carries the code.
type HandoverOTPIssued struct {
	BaseEvent
	Purpose   Purpose
	ExpiresAt time.Time
}

func (e HandoverOTPIssued) EventName() string { return "boarding.handover.otp_issued" }

// HandoverCompleted is raised when custody changed hands.
type HandoverCompleted struct {
	BaseEvent
	Purpose Purpose
	By      string
}

func (e HandoverCompleted) EventName() string { return "boarding.handover.completed" }

// FinalBillGenerated is raised when staff settle the stay.
type FinalBillGenerated struct {
	BaseEvent
	FinalTotal     Money
	FinalAmountDue Money
}

func (e FinalBillGenerated) EventName() string { return "boarding.application.final_bill_generated" }

// ApplicationCancelled is raised for owner cancellations.
type ApplicationCancelled struct {
	BaseEvent
	PreviousStatus Status
	Reason         string
}

func (e ApplicationCancelled) EventName() string { return "boarding.application.cancelled" }

// CancellationOverridden is raised for administrative cancellations.
type CancellationOverridden struct {
	BaseEvent
	PreviousStatus Status
	AdminID        string
	Reason         string
}

func (e CancellationOverridden) EventName() string {
	return "boarding.application.cancellation_overridden"
}

// FeedbackSubmitted is raised once per completed application.
type FeedbackSubmitted struct {
	BaseEvent
	Rating int
}

func (e FeedbackSubmitted) EventName() string { return "boarding.application.feedback_submitted" }

// AggregateWithEvents is implemented by aggregates that track domain events.
type AggregateWithEvents interface {
	Events() []Event
	ClearEvents()
}
