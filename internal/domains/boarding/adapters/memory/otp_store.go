package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
)

var _ ports.OTPStore = (*OTPStore)(nil)

// OTPStore keeps hashed codes in memory, in issue order.
type OTPStore struct {
	mu   sync.Mutex
	otps []*domain.OTP
}

// NewOTPStore constructs an empty store.
func NewOTPStore() *OTPStore {
	return &OTPStore{}
}

// Replace invalidates live codes for the same application and purpose, then appends otp.
func (s *OTPStore) Replace(_ context.Context, otp *domain.OTP) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.otps {
		if existing.ApplicationID == otp.ApplicationID && existing.Purpose == otp.Purpose && unused(existing) {
			at := otp.IssuedAt
			existing.InvalidatedAt = &at
		}
	}
	s.otps = append(s.otps, otp.Clone())
	return nil
}

// Latest returns the most recently issued code.
func (s *OTPStore) Latest(_ context.Context, applicationID string, purpose domain.Purpose) (*domain.OTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.otps) - 1; i >= 0; i-- {
		otp := s.otps[i]
		if otp.ApplicationID == applicationID && otp.Purpose == purpose {
			return otp.Clone(), nil
		}
	}
	return nil, ports.ErrOTPNotFound
}

// Consume marks the code used if nobody else did first.
func (s *OTPStore) Consume(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, otp := range s.otps {
		if otp.ID != id {
			continue
		}
		if otp.ConsumedAt != nil {
			return domain.ErrOTPAlreadyConsumed
		}
		if otp.InvalidatedAt != nil {
			return domain.ErrOTPExpired
		}
		consumed := at
		otp.ConsumedAt = &consumed
		return nil
	}
	return ports.ErrOTPNotFound
}

// InvalidateAll invalidates every unused code of the application.
func (s *OTPStore) InvalidateAll(_ context.Context, applicationID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, otp := range s.otps {
		if otp.ApplicationID == applicationID && unused(otp) {
			invalidated := at
			otp.InvalidatedAt = &invalidated
			count++
		}
	}
	return count, nil
}

// PurgeBefore drops codes that stopped being usable before cutoff.
func (s *OTPStore) PurgeBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.otps[:0]
	purged := 0
	for _, otp := range s.otps {
		if deadBefore(otp, cutoff) {
			purged++
			continue
		}
		kept = append(kept, otp)
	}
	s.otps = kept
	return purged, nil
}

func unused(otp *domain.OTP) bool {
	return otp.ConsumedAt == nil && otp.InvalidatedAt == nil
}

func deadBefore(otp *domain.OTP, cutoff time.Time) bool {
	switch {
	case otp.ConsumedAt != nil:
		return otp.ConsumedAt.Before(cutoff)
	case otp.InvalidatedAt != nil:
		return otp.InvalidatedAt.Before(cutoff)
	default:
		return otp.ExpiresAt.Before(cutoff)
	}
}
