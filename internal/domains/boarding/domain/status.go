package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the canonical lifecycle state of a boarding application.
type Status string

const (
	StatusSubmitted       Status = "submitted"
	StatusPriceDetermined Status = "price_determined"
	StatusAdvancePaid     Status = "advance_paid"
	StatusApproved        Status = "approved"
	StatusActiveCare      Status = "active_care"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
	StatusRejected        Status = "rejected"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusSubmitted,
	StatusPriceDetermined,
	StatusAdvancePaid,
	StatusApproved,
	StatusActiveCare,
	StatusCompleted,
	StatusCancelled,
	StatusRejected,
}

// ErrUnknownStatus is returned by ParseStatus for values outside the enum.
var ErrUnknownStatus = errors.New("unknown application status")

// ParseStatus converts raw input into a Status.
func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return status, nil
}

// Valid reports whether the status is a member of the enum.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusPriceDetermined, StatusAdvancePaid, StatusApproved,
		StatusActiveCare, StatusCompleted, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether the status is absorbing.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// OwnerCancellable reports whether the owner may still cancel without an override.
func (s Status) OwnerCancellable() bool {
	switch s {
	case StatusSubmitted, StatusPriceDetermined, StatusAdvancePaid:
		return true
	}
	return false
}

// Trigger names the cause of a transition. Two transitions between the same
// statuses with different triggers are different edges.
type Trigger string

const (
	TriggerPricing        Trigger = "pricing"
	TriggerOwnerCancel    Trigger = "owner_cancel"
	TriggerReject         Trigger = "reject"
	TriggerAdvancePayment Trigger = "advance_payment"
	TriggerApprove        Trigger = "approve"
	TriggerDropoff        Trigger = "dropoff"
	TriggerPickup         Trigger = "pickup"
	TriggerAdminOverride  Trigger = "admin_override"

	// Operations guarded by status that do not move the application.
	TriggerFinalBill    Trigger = "final_bill"
	TriggerFinalPayment Trigger = "final_payment"
	TriggerHandoverOTP  Trigger = "handover_otp"
	TriggerFeedback     Trigger = "feedback"
	TriggerRefund       Trigger = "refund"
)

// Transition is one edge of the lifecycle graph.
type Transition struct {
	From    Status
	To      Status
	Trigger Trigger
}

// Transitions is the complete set of legal edges.
var Transitions = []Transition{
	{StatusSubmitted, StatusPriceDetermined, TriggerPricing},
	{StatusSubmitted, StatusCancelled, TriggerOwnerCancel},
	{StatusSubmitted, StatusRejected, TriggerReject},
	{StatusPriceDetermined, StatusAdvancePaid, TriggerAdvancePayment},
	{StatusPriceDetermined, StatusCancelled, TriggerOwnerCancel},
	{StatusPriceDetermined, StatusRejected, TriggerReject},
	{StatusAdvancePaid, StatusApproved, TriggerApprove},
	{StatusAdvancePaid, StatusActiveCare, TriggerDropoff},
	{StatusAdvancePaid, StatusCancelled, TriggerOwnerCancel},
	{StatusAdvancePaid, StatusRejected, TriggerReject},
	{StatusApproved, StatusActiveCare, TriggerDropoff},
	{StatusActiveCare, StatusCompleted, TriggerPickup},
	{StatusPriceDetermined, StatusCancelled, TriggerAdminOverride},
	{StatusAdvancePaid, StatusCancelled, TriggerAdminOverride},
	{StatusApproved, StatusCancelled, TriggerAdminOverride},
	{StatusActiveCare, StatusCancelled, TriggerAdminOverride},
}

var transitionIndex = func() map[Transition]struct{} {
	index := make(map[Transition]struct{}, len(Transitions))
	for _, t := range Transitions {
		index[t] = struct{}{}
	}
	return index
}()

// CanTransition reports whether the edge exists.
func CanTransition(from, to Status, trigger Trigger) bool {
	_, ok := transitionIndex[Transition{From: from, To: to, Trigger: trigger}]
	return ok
}

// ErrInvalidTransition is matched by every InvalidTransitionError.
var ErrInvalidTransition = errors.New("invalid status transition")

// InvalidTransitionError describes a refused transition.
type InvalidTransitionError struct {
	From    Status
	To      Status
	Trigger Trigger
	Reason  string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("cannot move application from %s to %s via %s", e.From, e.To, e.Trigger)
	if e.To == "" {
		msg = fmt.Sprintf("cannot apply %s while application is %s", e.Trigger, e.From)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is lets errors.Is match ErrInvalidTransition.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func invalidTransition(from, to Status, trigger Trigger, reason string) error {
	return &InvalidTransitionError{From: from, To: to, Trigger: trigger, Reason: reason}
}
