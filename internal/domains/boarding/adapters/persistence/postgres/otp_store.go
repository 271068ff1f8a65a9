package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
)

var _ ports.OTPStore = (*OTPStore)(nil)

// OTPStore persists hashed handover codes. Consumption is a conditional UPDATE so two
// staff members can never both redeem the same code.
type OTPStore struct {
	db *gorm.DB
}

// NewOTPStore wires a PostgreSQL-backed OTP store.
func NewOTPStore(db *gorm.DB) *OTPStore {
	return &OTPStore{db: db}
}

// Replace invalidates live codes for the same application and purpose, then inserts otp.
func (s *OTPStore) Replace(ctx context.Context, otp *domain.OTP) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	record := newOTPRecord(otp)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&otpRecord{}).
			Where("application_id = ? AND purpose = ? AND consumed_at IS NULL AND invalidated_at IS NULL", otp.ApplicationID, string(otp.Purpose)).
			Update("invalidated_at", otp.IssuedAt).Error; err != nil {
			return err
		}
		return tx.Create(&record).Error
	})
}

// Latest returns the most recently issued code.
func (s *OTPStore) Latest(ctx context.Context, applicationID string, purpose domain.Purpose) (*domain.OTP, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	var record otpRecord
	if err := s.db.WithContext(ctx).
		Where("application_id = ? AND purpose = ?", applicationID, string(purpose)).
		Order("issued_at DESC").
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrOTPNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

// Consume marks the code used if it is still live.
func (s *OTPStore) Consume(ctx context.Context, id string, at time.Time) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Model(&otpRecord{}).
		Where("id = ? AND consumed_at IS NULL AND invalidated_at IS NULL", id).
		Update("consumed_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}
	var record otpRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.ErrOTPNotFound
		}
		return err
	}
	if record.ConsumedAt != nil {
		return domain.ErrOTPAlreadyConsumed
	}
	return domain.ErrOTPExpired
}

// InvalidateAll invalidates every live code of the application.
func (s *OTPStore) InvalidateAll(ctx context.Context, applicationID string, at time.Time) (int, error) {
	if err := s.ensureDB(); err != nil {
		return 0, err
	}
	result := s.db.WithContext(ctx).Model(&otpRecord{}).
		Where("application_id = ? AND consumed_at IS NULL AND invalidated_at IS NULL", applicationID).
		Update("invalidated_at", at)
	return int(result.RowsAffected), result.Error
}

// PurgeBefore deletes codes that stopped being usable before cutoff.
func (s *OTPStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if err := s.ensureDB(); err != nil {
		return 0, err
	}
	result := s.db.WithContext(ctx).
		Where("COALESCE(consumed_at, invalidated_at, expires_at) < ?", cutoff).
		Delete(&otpRecord{})
	return int(result.RowsAffected), result.Error
}

func (s *OTPStore) ensureDB() error {
	if s == nil || s.db == nil {
		return errors.New("postgres otp store not configured")
	}
	return nil
}
