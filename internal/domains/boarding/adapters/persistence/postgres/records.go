package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
	"github.com/Apurer/temporary-care-api/internal/shared/projection"
)

// applicationRecord keeps the queryable columns next to the full aggregate document.
type applicationRecord struct {
	ID        string         `gorm:"primaryKey;column:id;size:64"`
	Number    string         `gorm:"column:number;size:64;uniqueIndex"`
	OwnerID   string         `gorm:"column:owner_id;size:128;index"`
	CenterID  string         `gorm:"column:center_id;size:128"`
	Status    string         `gorm:"column:status;type:varchar(32);index"`
	PetRefs   pq.StringArray `gorm:"column:pet_refs;type:text[]"`
	StartDate time.Time      `gorm:"column:start_date"`
	EndDate   time.Time      `gorm:"column:end_date"`
	Document  datatypes.JSON `gorm:"column:document;type:jsonb"`
	Version   int64          `gorm:"column:version"`
	CreatedAt time.Time      `gorm:"column:created_at;index"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

func (applicationRecord) TableName() string { return "applications" }

func newApplicationRecord(app *domain.Application) (applicationRecord, error) {
	document, err := json.Marshal(app)
	if err != nil {
		return applicationRecord{}, fmt.Errorf("encode application: %w", err)
	}
	refs := make(pq.StringArray, 0, len(app.Pets))
	for _, pet := range app.Pets {
		refs = append(refs, pet.PetRef)
	}
	return applicationRecord{
		ID:        app.ID,
		Number:    app.Number,
		OwnerID:   app.OwnerID,
		CenterID:  app.CenterID,
		Status:    string(app.Status),
		PetRefs:   refs,
		StartDate: app.StartDate,
		EndDate:   app.EndDate,
		Document:  datatypes.JSON(document),
	}, nil
}

func toProjection(rec *applicationRecord) (*projection.Projection[*domain.Application], error) {
	var app domain.Application
	if err := json.Unmarshal(rec.Document, &app); err != nil {
		return nil, fmt.Errorf("decode application %s: %w", rec.ID, err)
	}
	return projection.New(&app, projection.Metadata{
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
		Version:   rec.Version,
	}), nil
}

func recordsToProjections(records []applicationRecord) ([]*projection.Projection[*domain.Application], error) {
	list := make([]*projection.Projection[*domain.Application], 0, len(records))
	for i := range records {
		proj, err := toProjection(&records[i])
		if err != nil {
			return nil, err
		}
		list = append(list, proj)
	}
	return list, nil
}

type otpRecord struct {
	ID            string     `gorm:"primaryKey;column:id;size:64"`
	ApplicationID string     `gorm:"column:application_id;size:64;index:idx_otps_app_purpose"`
	Purpose       string     `gorm:"column:purpose;type:varchar(16);index:idx_otps_app_purpose"`
	CodeHash      []byte     `gorm:"column:code_hash;type:bytea"`
	IssuedAt      time.Time  `gorm:"column:issued_at"`
	ExpiresAt     time.Time  `gorm:"column:expires_at;index"`
	ConsumedAt    *time.Time `gorm:"column:consumed_at"`
	InvalidatedAt *time.Time `gorm:"column:invalidated_at"`
}

func (otpRecord) TableName() string { return "handover_otps" }

func newOTPRecord(otp *domain.OTP) otpRecord {
	return otpRecord{
		ID:            otp.ID,
		ApplicationID: otp.ApplicationID,
		Purpose:       string(otp.Purpose),
		CodeHash:      append([]byte(nil), otp.CodeHash...),
		IssuedAt:      otp.IssuedAt,
		ExpiresAt:     otp.ExpiresAt,
		ConsumedAt:    otp.ConsumedAt,
		InvalidatedAt: otp.InvalidatedAt,
	}
}

func (r *otpRecord) toDomain() *domain.OTP {
	return &domain.OTP{
		ID:            r.ID,
		ApplicationID: r.ApplicationID,
		Purpose:       domain.Purpose(r.Purpose),
		CodeHash:      r.CodeHash,
		IssuedAt:      r.IssuedAt,
		ExpiresAt:     r.ExpiresAt,
		ConsumedAt:    r.ConsumedAt,
		InvalidatedAt: r.InvalidatedAt,
	}
}

type ledgerRecord struct {
	ID            string    `gorm:"primaryKey;column:id;size:64"`
	ApplicationID string    `gorm:"column:application_id;size:64;uniqueIndex:idx_ledger_app_kind"`
	Kind          string    `gorm:"column:kind;type:varchar(16);uniqueIndex:idx_ledger_app_kind"`
	Amount        int64     `gorm:"column:amount"`
	OrderID       string    `gorm:"column:order_id"`
	PaymentID     string    `gorm:"column:payment_id;index"`
	TransactionID string    `gorm:"column:transaction_id"`
	InvoiceNumber string    `gorm:"column:invoice_number"`
	RecordedBy    string    `gorm:"column:recorded_by"`
	RecordedAt    time.Time `gorm:"column:recorded_at"`
}

func (ledgerRecord) TableName() string { return "payment_ledger" }

func newLedgerRecord(entry *domain.LedgerEntry) ledgerRecord {
	return ledgerRecord{
		ID:            entry.ID,
		ApplicationID: entry.ApplicationID,
		Kind:          string(entry.Kind),
		Amount:        int64(entry.Amount),
		OrderID:       entry.OrderID,
		PaymentID:     entry.PaymentID,
		TransactionID: entry.TransactionID,
		InvoiceNumber: entry.InvoiceNumber,
		RecordedBy:    entry.RecordedBy,
		RecordedAt:    entry.RecordedAt,
	}
}

func (r *ledgerRecord) toDomain() *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:            r.ID,
		ApplicationID: r.ApplicationID,
		Kind:          domain.PaymentKind(r.Kind),
		Amount:        domain.Money(r.Amount),
		OrderID:       r.OrderID,
		PaymentID:     r.PaymentID,
		TransactionID: r.TransactionID,
		InvoiceNumber: r.InvoiceNumber,
		RecordedBy:    r.RecordedBy,
		RecordedAt:    r.RecordedAt,
	}
}

type idempotencyRecord struct {
	Key           string    `gorm:"primaryKey;column:key;size:255"`
	RequestHash   string    `gorm:"column:request_hash;size:128"`
	ApplicationID string    `gorm:"column:application_id;size:64"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (idempotencyRecord) TableName() string { return "application_idempotency_keys" }

func toPortRecord(rec *idempotencyRecord) *ports.IdempotencyRecord {
	if rec == nil {
		return nil
	}
	return &ports.IdempotencyRecord{
		Key:           rec.Key,
		RequestHash:   rec.RequestHash,
		ApplicationID: rec.ApplicationID,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

// Models lists the tables owned by the boarding adapters, in migration order.
func Models() []any {
	return []any{&applicationRecord{}, &otpRecord{}, &ledgerRecord{}, &idempotencyRecord{}}
}
