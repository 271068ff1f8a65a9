package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
)

var _ ports.Ledger = (*Ledger)(nil)

// Ledger is the payment ledger. The unique (application_id, kind) index
// is what makes a double capture impossible.
type Ledger struct {
	db *gorm.DB
}

// NewLedger wires a PostgreSQL-backed ledger.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Append inserts entry; a duplicate returns the stored entry with ErrDuplicateEntry.
func (l *Ledger) Append(ctx context.Context, entry *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	if err := l.ensureDB(); err != nil {
		return nil, err
	}
	record := newLedgerRecord(entry)
	if err := l.db.WithContext(ctx).Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, findErr := l.Find(ctx, entry.ApplicationID, entry.Kind)
			if findErr != nil {
				return nil, findErr
			}
			return existing, ports.ErrDuplicateEntry
		}
		return nil, err
	}
	return record.toDomain(), nil
}

// Find returns the entry of kind for the application.
func (l *Ledger) Find(ctx context.Context, applicationID string, kind domain.PaymentKind) (*domain.LedgerEntry, error) {
	if err := l.ensureDB(); err != nil {
		return nil, err
	}
	var record ledgerRecord
	if err := l.db.WithContext(ctx).
		First(&record, "application_id = ? AND kind = ?", applicationID, string(kind)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrEntryNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

// ListByApplication returns entries in recording order.
func (l *Ledger) ListByApplication(ctx context.Context, applicationID string) ([]*domain.LedgerEntry, error) {
	if err := l.ensureDB(); err != nil {
		return nil, err
	}
	var records []ledgerRecord
	if err := l.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("recorded_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	entries := make([]*domain.LedgerEntry, 0, len(records))
	for i := range records {
		entries = append(entries, records[i].toDomain())
	}
	return entries, nil
}

// Discard deletes the entry with entryID.
func (l *Ledger) Discard(ctx context.Context, entryID string) error {
	if err := l.ensureDB(); err != nil {
		return err
	}
	return l.db.WithContext(ctx).Where("id = ?", entryID).Delete(&ledgerRecord{}).Error
}

func (l *Ledger) ensureDB() error {
	if l == nil || l.db == nil {
		return errors.New("postgres ledger not configured")
	}
	return nil
}
