package ports

import (
	"context"
	"errors"
	"time"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
)

var ErrOTPNotFound = errors.New("otp not found")

// OTPStore keeps hashed handover codes.
type OTPStore interface {
	// Replace invalidates every unconsumed OTP for the same application and purpose, then stores otp.
	Replace(ctx context.Context, otp *domain.OTP) error
	// Latest returns the most recently issued OTP, or ErrOTPNotFound.
	Latest(ctx context.Context, applicationID string, purpose domain.Purpose) (*domain.OTP, error)
	// Consume sets consumedAt only if the OTP is neither consumed nor invalidated.
	// It returns domain.ErrOTPAlreadyConsumed or domain.ErrOTPExpired when the swap is lost.
	Consume(ctx context.Context, id string, at time.Time) error
	// InvalidateAll invalidates every live OTP of the application and reports how many.
	InvalidateAll(ctx context.Context, applicationID string, at time.Time) (int, error)
	// PurgeBefore deletes OTPs that expired, were consumed or were invalidated before cutoff.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// AttemptLimiter counts consecutive OTP mismatches per application and purpose.
type AttemptLimiter interface {
	// Locked returns the time the lockout ends, or the zero time when not locked.
	Locked(ctx context.Context, key string) (time.Time, error)
	// RecordFailure increments the counter and returns the lockout end once the limit is reached.
	RecordFailure(ctx context.Context, key string) (time.Time, error)
	Reset(ctx context.Context, key string) error
}
