package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application/types"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
	"github.com/Apurer/temporary-care-api/internal/shared/identity"
)

const defaultMaxAttempts = 3

var _ ports.Service = (*Service)(nil)

// errUnchanged short-circuits a mutation that turned out to be a replay.
var errUnchanged = errors.New("application unchanged")

// Service orchestrates the boarding bounded context use cases.
type Service struct {
	repo        ports.Repository
	ledger      ports.Ledger
	otps        *OTPEngine
	gateway     ports.PaymentGateway
	publisher   ports.EventPublisher
	idempotency ports.IdempotencyStore
	now         func() time.Time
	maxAttempts int
}

// Option customises the service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithGateway sets the payment gateway used to confirm proofs, create orders and refund.
func WithGateway(gateway ports.PaymentGateway) Option {
	return func(s *Service) { s.gateway = gateway }
}

// WithEventPublisher forwards domain events after each committed write.
func WithEventPublisher(publisher ports.EventPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

// WithIdempotencyStore enables Idempotency-Key replay for submissions.
func WithIdempotencyStore(store ports.IdempotencyStore) Option {
	return func(s *Service) { s.idempotency = store }
}

// WithMaxAttempts bounds how often a conflicting write is retried.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// NewService wires the boarding service with its dependencies.
func NewService(repo ports.Repository, ledger ports.Ledger, otps *OTPEngine, opts ...Option) *Service {
	svc := &Service{
		repo:        repo,
		ledger:      ledger,
		otps:        otps,
		now:         time.Now,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// SubmitApplication files a new application for the calling owner.
func (s *Service) SubmitApplication(ctx context.Context, input types.SubmitApplicationInput) (*types.ApplicationProjection, error) {
	actor, err := identity.MustFromContext(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	if actor.Role != identity.RoleOwner {
		return nil, ErrForbidden
	}

	var fingerprint string
	if s.idempotency != nil && input.IdempotencyKey != "" {
		fingerprint, err = FingerprintSubmission(actor.ID, input)
		if err != nil {
			return nil, err
		}
		record, err := s.idempotency.Get(ctx, input.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if record != nil {
			if record.RequestHash != fingerprint {
				return nil, ports.ErrIdempotencyConflict
			}
			existing, err := s.repo.GetByID(ctx, record.ApplicationID)
			return existing, mapError(err)
		}
	}

	now := s.now()
	number, err := domain.NewApplicationNumber(now)
	if err != nil {
		return nil, err
	}
	app, err := domain.NewApplication(domain.Submission{
		ID:        uuid.NewString(),
		Number:    number,
		OwnerID:   actor.ID,
		CenterID:  input.CenterID,
		Pets:      input.Pets,
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
	}, now)
	if err != nil {
		return nil, mapError(err)
	}

	saved, err := s.repo.Create(ctx, app)
	if err != nil {
		return nil, mapError(err)
	}
	if fingerprint != "" {
		record, err := s.idempotency.Save(ctx, ports.IdempotencyRecord{
			Key:           input.IdempotencyKey,
			RequestHash:   fingerprint,
			ApplicationID: app.ID,
		})
		if errors.Is(err, ports.ErrIdempotencyConflict) && record != nil && record.RequestHash == fingerprint {
			// A concurrent retry won the key; answer with its application.
			existing, err := s.repo.GetByID(ctx, record.ApplicationID)
			return existing, mapError(err)
		}
		if err != nil {
			return nil, err
		}
	}
	s.publish(ctx, app)
	return saved, nil
}

// GetApplication returns one application to its owner or to facility staff.
func (s *Service) GetApplication(ctx context.Context, input types.ApplicationIdentifier) (*types.ApplicationProjection, error) {
	actor, err := identity.MustFromContext(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	current, err := s.repo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, mapError(err)
	}
	if !canView(actor, current.Entity) {
		return nil, ErrForbidden
	}
	return current, nil
}

// ListMine lists the calling owner's applications.
func (s *Service) ListMine(ctx context.Context, input types.ListApplicationsInput) ([]*types.ApplicationProjection, error) {
	actor, err := identity.MustFromContext(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	statuses, err := parseStatuses(input.Statuses)
	if err != nil {
		return nil, mapError(err)
	}
	result, err := s.repo.ListByOwner(ctx, actor.ID, statuses)
	if err != nil {
		return nil, mapError(err)
	}
	return result, nil
}

// ListApplications lists every application for facility staff.
func (s *Service) ListApplications(ctx context.Context, input types.ListApplicationsInput) ([]*types.ApplicationProjection, error) {
	if _, err := requireStaff(ctx); err != nil {
		return nil, err
	}
	statuses, err := parseStatuses(input.Statuses)
	if err != nil {
		return nil, mapError(err)
	}
	result, err := s.repo.List(ctx, statuses)
	if err != nil {
		return nil, mapError(err)
	}
	return result, nil
}

// SetPricing quotes a submitted application.
func (s *Service) SetPricing(ctx context.Context, input types.SetPricingInput) (*types.ApplicationProjection, error) {
	actor, err := requireStaff(ctx)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, input.ApplicationID, func(app *domain.Application, now time.Time) error {
		if err := app.CheckPricingAllowed(); err != nil {
			return err
		}
		pricing, err := domain.PriceQuote(app.Pets, app.NumberOfDays, domain.Quote{
			Rates:             input.Rates,
			AdditionalCharges: input.AdditionalCharges,
			Discount:          input.Discount,
			TaxPercent:        input.TaxPercent,
			AdvancePercent:    input.AdvancePercent,
		})
		if err != nil {
			return err
		}
		return app.SetPricing(pricing, actor.ID, now)
	})
}

// Approve confirms the logistics of a paid application.
func (s *Service) Approve(ctx context.Context, input types.ApplicationIdentifier) (*types.ApplicationProjection, error) {
	actor, err := requireStaff(ctx)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, input.ID, func(app *domain.Application, now time.Time) error {
		return app.Approve(actor.ID, now)
	})
}

// Reject declines an application that has not started.
func (s *Service) Reject(ctx context.Context, input types.DecisionInput) (*types.ApplicationProjection, error) {
	actor, err := requireStaff(ctx)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, input.ApplicationID, func(app *domain.Application, now time.Time) error {
		return app.Reject(actor.ID, input.Reason, now)
	})
}

// GenerateFinalBill settles an active stay.
func (s *Service) GenerateFinalBill(ctx context.Context, input types.FinalBillInput) (*types.ApplicationProjection, error) {
	actor, err := requireStaff(ctx)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, input.ApplicationID, func(app *domain.Application, now time.Time) error {
		return app.GenerateFinalBill(domain.FinalBillInput{
			ExtraDays:          input.ExtraDays,
			ExtraDayRate:       input.ExtraDayRate,
			AdditionalServices: input.AdditionalServices,
			Adjustments:        input.Adjustments,
		}, actor.ID, now)
	})
}

// SubmitFeedback rates a completed stay.
func (s *Service) SubmitFeedback(ctx context.Context, input types.FeedbackInput) (*types.ApplicationProjection, error) {
	actor, err := identity.MustFromContext(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return s.mutate(ctx, input.ApplicationID, func(app *domain.Application, now time.Time) error {
		if !app.OwnedBy(actor.ID) {
			return ErrForbidden
		}
		return app.SubmitFeedback(domain.Feedback{
			Rating:         input.Rating,
			Comment:        input.Comment,
			ServiceRating:  input.ServiceRating,
			StaffRating:    input.StaffRating,
			FacilityRating: input.FacilityRating,
		}, now)
	})
}

// mutate loads the application, applies change and writes it back with a version check.
// A conflicting write reloads and re-runs change, so guards are always evaluated against
// the state that is actually written over.
func (s *Service) mutate(ctx context.Context, id string, change func(app *domain.Application, now time.Time) error) (*types.ApplicationProjection, error) {
	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, mapError(err)
		}
		app := current.Entity
		if err := change(app, s.now()); err != nil {
			if errors.Is(err, errUnchanged) {
				return current, nil
			}
			return nil, mapError(err)
		}
		saved, err := s.repo.Update(ctx, app, current.Metadata.Version)
		if errors.Is(err, ports.ErrVersionConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, mapError(err)
		}
		s.publish(ctx, app)
		return saved, nil
	}
	return nil, mapError(lastErr)
}

// publish forwards pending events. The write has already committed, so publisher
// failures are reported by the publisher itself and never fail the use case.
func (s *Service) publish(ctx context.Context, app *domain.Application) {
	events := app.Events()
	app.ClearEvents()
	if s.publisher == nil || len(events) == 0 {
		return
	}
	_ = s.publisher.Publish(ctx, events...)
}

func (s *Service) load(ctx context.Context, id string) (*types.ApplicationProjection, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return current, nil
}

func requireStaff(ctx context.Context) (identity.Actor, error) {
	actor, err := identity.MustFromContext(ctx)
	if err != nil {
		return identity.Actor{}, mapError(err)
	}
	if !actor.IsStaff() {
		return identity.Actor{}, ErrForbidden
	}
	return actor, nil
}

func requireAdmin(ctx context.Context) (identity.Actor, error) {
	actor, err := identity.MustFromContext(ctx)
	if err != nil {
		return identity.Actor{}, mapError(err)
	}
	if !actor.IsAdmin() {
		return identity.Actor{}, ErrForbidden
	}
	return actor, nil
}

func canView(actor identity.Actor, app *domain.Application) bool {
	return actor.IsStaff() || app.OwnedBy(actor.ID)
}

func parseStatuses(raw []string) ([]domain.Status, error) {
	statuses := make([]domain.Status, 0, len(raw))
	for _, value := range raw {
		if value == "" {
			continue
		}
		status, err := domain.ParseStatus(value)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
