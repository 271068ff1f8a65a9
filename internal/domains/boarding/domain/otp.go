package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Purpose binds an OTP to one of the two custody transfers.
type Purpose string

const (
	PurposeDropoff Purpose = "dropoff"
	PurposePickup  Purpose = "pickup"
)

// ParsePurpose validates a purpose value.
func ParsePurpose(raw string) (Purpose, error) {
	switch purpose := Purpose(strings.ToLower(strings.TrimSpace(raw))); purpose {
	case PurposeDropoff, PurposePickup:
		return purpose, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPurpose, raw)
}

const (
	OTPDigits = 6
	OTPTTL    = 15 * time.Minute
	// MaxConsecutiveMismatches wrong codes lock an application+purpose for LockoutWindow.
	MaxConsecutiveMismatches = 5
	LockoutWindow            = 15 * time.Minute
)

var (
	ErrUnknownPurpose     = errors.New("unknown handover purpose")
	ErrOTPExpired         = errors.New("otp expired")
	ErrOTPAlreadyConsumed = errors.New("otp already consumed")
	ErrOTPMismatch        = errors.New("otp does not match")
	ErrOTPLockedOut       = errors.New("too many wrong otp attempts")
	ErrOTPNotIssued       = errors.New("no otp has been issued")
)

// LockedOutError carries when validation attempts may resume.
type LockedOutError struct {
	Until time.Time
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrOTPLockedOut, e.Until.UTC().Format(time.RFC3339))
}

// Is lets errors.Is match ErrOTPLockedOut.
func (e *LockedOutError) Is(target error) bool {
	return target == ErrOTPLockedOut
}

// RetryAfter returns the remaining cooldown relative to now.
func (e *LockedOutError) RetryAfter(now time.Time) time.Duration {
	if d := e.Until.Sub(now); d > 0 {
		return d
	}
	return 0
}

// OTP is a single-use handover code. Only a hash of the code is kept.
type OTP struct {
	ID            string
	ApplicationID string
	Purpose       Purpose
	CodeHash      []byte
	IssuedAt      time.Time
	ExpiresAt     time.Time
	ConsumedAt    *time.Time
	InvalidatedAt *time.Time
}

// NewOTP builds an OTP valid for OTPTTL from now.
func NewOTP(id, applicationID string, purpose Purpose, codeHash []byte, now time.Time) *OTP {
	return &OTP{
		ID:            id,
		ApplicationID: applicationID,
		Purpose:       purpose,
		CodeHash:      append([]byte(nil), codeHash...),
		IssuedAt:      now,
		ExpiresAt:     now.Add(OTPTTL),
	}
}

// CheckUsable reports why the OTP cannot be validated any more, if so.
// Invalidated codes (superseded or cancelled) behave as expired.
func (o *OTP) CheckUsable(now time.Time) error {
	if o.ConsumedAt != nil {
		return ErrOTPAlreadyConsumed
	}
	if o.InvalidatedAt != nil {
		return ErrOTPExpired
	}
	if now.After(o.ExpiresAt) {
		return ErrOTPExpired
	}
	return nil
}

// Live reports whether the OTP could still be presented.
func (o *OTP) Live(now time.Time) bool {
	return o.CheckUsable(now) == nil
}

// Clone returns a deep copy.
func (o *OTP) Clone() *OTP {
	if o == nil {
		return nil
	}
	clone := *o
	clone.CodeHash = append([]byte(nil), o.CodeHash...)
	clone.ConsumedAt = cloneTime(o.ConsumedAt)
	clone.InvalidatedAt = cloneTime(o.InvalidatedAt)
	return &clone
}

// AttemptKey identifies the mismatch counter of an application+purpose.
func AttemptKey(applicationID string, purpose Purpose) string {
	return applicationID + ":" + string(purpose)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copy := *t
	return &copy
}
