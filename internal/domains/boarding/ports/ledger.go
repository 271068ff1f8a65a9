package ports

import (
	"context"
	"errors"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
)

var (
	ErrEntryNotFound = errors.New("ledger entry not found")
	// ErrDuplicateEntry is returned by Ledger.Append when the application already has an entry of that kind.
	ErrDuplicateEntry = errors.New("ledger entry already exists")
)

// Ledger is the append-only record of money that actually moved.
type Ledger interface {
	// Append stores entry. On ErrDuplicateEntry the existing entry is returned alongside the error.
	Append(ctx context.Context, entry *domain.LedgerEntry) (*domain.LedgerEntry, error)
	// Find returns ErrEntryNotFound when the application has no entry of that kind.
	Find(ctx context.Context, applicationID string, kind domain.PaymentKind) (*domain.LedgerEntry, error)
	ListByApplication(ctx context.Context, applicationID string) ([]*domain.LedgerEntry, error)
	// Discard removes an entry whose application update was refused. Missing ids are ignored.
	Discard(ctx context.Context, entryID string) error
}
