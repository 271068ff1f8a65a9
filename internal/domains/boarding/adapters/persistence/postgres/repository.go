package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
	"github.com/Apurer/temporary-care-api/internal/shared/projection"
)

var _ ports.Repository = (*Repository)(nil)

// Repository persists applications in PostgreSQL. Writes are guarded by the version column.
type Repository struct {
	db *gorm.DB
}

// NewRepository wires a PostgreSQL-backed repository. The caller owns the DB lifecycle
// and runs migrations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new application at version 1.
func (r *Repository) Create(ctx context.Context, app *domain.Application) (*projection.Projection[*domain.Application], error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if app == nil {
		return nil, errors.New("cannot save nil application")
	}
	record, err := newApplicationRecord(app)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	record.Version = 1
	record.CreatedAt = now
	record.UpdatedAt = now
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, r.duplicateReason(ctx, app.ID)
		}
		return nil, err
	}
	return toProjection(&record)
}

// GetByID fetches an application by identifier.
func (r *Repository) GetByID(ctx context.Context, id string) (*projection.Projection[*domain.Application], error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record applicationRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return toProjection(&record)
}

// Update writes app only when the stored version still equals expectedVersion.
func (r *Repository) Update(ctx context.Context, app *domain.Application, expectedVersion int64) (*projection.Projection[*domain.Application], error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if app == nil {
		return nil, errors.New("cannot save nil application")
	}
	record, err := newApplicationRecord(app)
	if err != nil {
		return nil, err
	}
	result := r.db.WithContext(ctx).
		Model(&applicationRecord{}).
		Where("id = ? AND version = ?", app.ID, expectedVersion).
		Updates(map[string]any{
			"status":     record.Status,
			"center_id":  record.CenterID,
			"pet_refs":   record.PetRefs,
			"start_date": record.StartDate,
			"end_date":   record.EndDate,
			"document":   record.Document,
			"version":    expectedVersion + 1,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&applicationRecord{}).Where("id = ?", app.ID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ports.ErrNotFound
		}
		return nil, ports.ErrVersionConflict
	}
	return r.GetByID(ctx, app.ID)
}

// ListByOwner returns the owner's applications, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string, statuses []domain.Status) ([]*projection.Projection[*domain.Application], error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	return r.find(r.db.WithContext(ctx).Where("owner_id = ?", ownerID), statuses)
}

// List returns every application, newest first.
func (r *Repository) List(ctx context.Context, statuses []domain.Status) ([]*projection.Projection[*domain.Application], error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	return r.find(r.db.WithContext(ctx), statuses)
}

func (r *Repository) find(query *gorm.DB, statuses []domain.Status) ([]*projection.Projection[*domain.Application], error) {
	if len(statuses) > 0 {
		args := make([]string, 0, len(statuses))
		for _, s := range statuses {
			args = append(args, string(s))
		}
		query = query.Where("status IN ?", args)
	}
	var records []applicationRecord
	if err := query.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return recordsToProjections(records)
}

func (r *Repository) duplicateReason(ctx context.Context, id string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&applicationRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ports.ErrVersionConflict
	}
	return ports.ErrDuplicateNumber
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres repository not configured")
	}
	return nil
}
