package memory

import (
	"context"
	"sync"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
)

var _ ports.Ledger = (*Ledger)(nil)

// Ledger is an in-memory ledger, unique per application and kind.
type Ledger struct {
	mu      sync.RWMutex
	entries []*domain.LedgerEntry
}

// NewLedger constructs an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append stores entry unless one of the same kind exists for the application.
func (l *Ledger) Append(_ context.Context, entry *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.entries {
		if existing.ApplicationID == entry.ApplicationID && existing.Kind == entry.Kind {
			copy := *existing
			return &copy, ports.ErrDuplicateEntry
		}
	}
	stored := *entry
	l.entries = append(l.entries, &stored)
	copy := stored
	return &copy, nil
}

// Find returns the entry of kind for the application.
func (l *Ledger) Find(_ context.Context, applicationID string, kind domain.PaymentKind) (*domain.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, existing := range l.entries {
		if existing.ApplicationID == applicationID && existing.Kind == kind {
			copy := *existing
			return &copy, nil
		}
	}
	return nil, ports.ErrEntryNotFound
}

// ListByApplication returns entries in recording order.
func (l *Ledger) ListByApplication(_ context.Context, applicationID string) ([]*domain.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var list []*domain.LedgerEntry
	for _, existing := range l.entries {
		if existing.ApplicationID == applicationID {
			copy := *existing
			list = append(list, &copy)
		}
	}
	return list, nil
}

// Discard drops the entry with entryID.
func (l *Ledger) Discard(_ context.Context, entryID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, existing := range l.entries {
		if existing.ID == entryID {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return nil
		}
	}
	return nil
}
