package application

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
)

var otpSpace = big.NewInt(1_000_000)

// OTPEngine issues and validates handover codes. Codes are only kept as bcrypt hashes.
type OTPEngine struct {
	store      ports.OTPStore
	limiter    ports.AttemptLimiter
	now        func() time.Time
	generate   func() (string, error)
	bcryptCost int
}

// OTPOption customises the engine.
type OTPOption func(*OTPEngine)

// WithOTPClock overrides the time source.
func WithOTPClock(now func() time.Time) OTPOption {
	return func(e *OTPEngine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithCodeGenerator overrides the random code source.
func WithCodeGenerator(generate func() (string, error)) OTPOption {
	return func(e *OTPEngine) {
		if generate != nil {
			e.generate = generate
		}
	}
}

// WithBcryptCost sets the hashing cost; values outside bcrypt's range keep the default.
func WithBcryptCost(cost int) OTPOption {
	return func(e *OTPEngine) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			e.bcryptCost = cost
		}
	}
}

// NewOTPEngine wires the engine with its store and mismatch limiter.
func NewOTPEngine(store ports.OTPStore, limiter ports.AttemptLimiter, opts ...OTPOption) *OTPEngine {
	engine := &OTPEngine{
		store:      store,
		limiter:    limiter,
		now:        time.Now,
		generate:   GenerateCode,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// GenerateCode returns a uniformly distributed 6-digit code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", domain.OTPDigits, n.Int64()), nil
}

// Prepare creates a new OTP and its cleartext code without storing it.
func (e *OTPEngine) Prepare(applicationID string, purpose domain.Purpose) (*domain.OTP, string, error) {
	code, err := e.generate()
	if err != nil {
		return nil, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), e.bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash otp: %w", err)
	}
	return domain.NewOTP(uuid.NewString(), applicationID, purpose, hash, e.now()), code, nil
}

// Store persists a prepared OTP, superseding every earlier one for the same purpose.
func (e *OTPEngine) Store(ctx context.Context, otp *domain.OTP) error {
	return e.store.Replace(ctx, otp)
}

// Issue prepares and stores a code in one step.
func (e *OTPEngine) Issue(ctx context.Context, applicationID string, purpose domain.Purpose) (*domain.OTP, string, error) {
	otp, code, err := e.Prepare(applicationID, purpose)
	if err != nil {
		return nil, "", err
	}
	if err := e.Store(ctx, otp); err != nil {
		return nil, "", err
	}
	return otp, code, nil
}

// Validate checks candidate against the latest OTP and consumes it on success.
// Lockout is checked first so the right code is refused while locked.
func (e *OTPEngine) Validate(ctx context.Context, applicationID string, purpose domain.Purpose, candidate string) (*domain.OTP, error) {
	key := domain.AttemptKey(applicationID, purpose)
	until, err := e.limiter.Locked(ctx, key)
	if err != nil {
		return nil, err
	}
	if !until.IsZero() {
		return nil, &domain.LockedOutError{Until: until}
	}

	otp, err := e.store.Latest(ctx, applicationID, purpose)
	if errors.Is(err, ports.ErrOTPNotFound) {
		return nil, domain.ErrOTPNotIssued
	}
	if err != nil {
		return nil, err
	}
	now := e.now()
	if err := otp.CheckUsable(now); err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword(otp.CodeHash, []byte(strings.TrimSpace(candidate))) != nil {
		if _, err := e.limiter.RecordFailure(ctx, key); err != nil {
			return nil, err
		}
		return nil, domain.ErrOTPMismatch
	}

	if err := e.store.Consume(ctx, otp.ID, now); err != nil {
		return nil, err
	}
	consumed := otp.Clone()
	consumed.ConsumedAt = &now
	// The code is consumed at this point; a failed reset must not fail the handover.
	_ = e.limiter.Reset(ctx, key)
	return consumed, nil
}

// InvalidateAll kills every live OTP of the application.
func (e *OTPEngine) InvalidateAll(ctx context.Context, applicationID string) (int, error) {
	return e.store.InvalidateAll(ctx, applicationID, e.now())
}
