package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application/types"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
	"github.com/Apurer/temporary-care-api/internal/shared/identity"
)

const tracerName = "github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/observability/service"

// Service decorates the boarding port with tracing, logging, and metrics.
// OTP codes and payment signatures are never logged or attached to spans.
type Service struct {
	inner   ports.Service
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer injects a tracer implementation.
func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tr
	}
}

// WithMeter injects the meter used to create service metrics instruments.
func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.metrics = newServiceMetrics(m)
	}
}

// New wires a decorator around the core service.
func New(inner ports.Service, opts ...Option) ports.Service {
	s := &Service{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		logger:  defaultLogger(),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	if s.logger == nil {
		s.logger = defaultLogger()
	}
	return s
}

// SubmitApplication files a new application.
func (s *Service) SubmitApplication(ctx context.Context, input types.SubmitApplicationInput) (*types.ApplicationProjection, error) {
	ctx, span := s.startSpan(ctx, "Service.SubmitApplication", attribute.Int("application.pets", len(input.Pets)))
	defer span.End()

	s.logInfo(ctx, "submitting application", slog.Int("pets", len(input.Pets)), slog.Bool("idempotent", input.IdempotencyKey != ""))
	result, err := s.inner.SubmitApplication(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to submit application")
	}
	s.metrics.recordSubmitted(ctx)
	s.logApplication(ctx, span, "application submitted", result)
	return result, nil
}

// GetApplication loads one application.
func (s *Service) GetApplication(ctx context.Context, input types.ApplicationIdentifier) (*types.ApplicationProjection, error) {
	ctx, span := s.startSpan(ctx, "Service.GetApplication", attribute.String("application.id", input.ID))
	defer span.End()

	result, err := s.inner.GetApplication(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to load application", slog.String("application.id", input.ID))
	}
	return result, nil
}

// ListMine lists the caller's applications.
func (s *Service) ListMine(ctx context.Context, input types.ListApplicationsInput) ([]*types.ApplicationProjection, error) {
	ctx, span := s.startSpan(ctx, "Service.ListMine", attribute.StringSlice("application.statuses.requested", input.Statuses))
	defer span.End()

	result, err := s.inner.ListMine(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list own applications", slog.Any("statuses", input.Statuses))
	}
	span.SetAttributes(attribute.Int("application.result.count", len(result)))
	return result, nil
}

// ListApplications lists every application for staff.
func (s *Service) ListApplications(ctx context.Context, input types.ListApplicationsInput) ([]*types.ApplicationProjection, error) {
	ctx, span := s.startSpan(ctx, "Service.ListApplications", attribute.StringSlice("application.statuses.requested", input.Statuses))
	defer span.End()

	result, err := s.inner.ListApplications(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list applications", slog.Any("statuses", input.Statuses))
	}
	span.SetAttributes(attribute.Int("application.result.count", len(result)))
	s.logInfo(ctx, "listed applications", slog.Int("count", len(result)))
	return result, nil
}

// SetPricing quotes an application.
func (s *Service) SetPricing(ctx context.Context, input types.SetPricingInput) (*types.ApplicationProjection, error) {
	return s.transition(ctx, "Service.SetPricing", "pricing application", input.ApplicationID, func(ctx context.Context) (*types.ApplicationProjection, error) {
		return s.inner.SetPricing(ctx, input)
	})
}

// Approve confirms a paid application.
func (s *Service) Approve(ctx context.Context, input types.ApplicationIdentifier) (*types.ApplicationProjection, error) {
	return s.transition(ctx, "Service.Approve", "approving application", input.ID, func(ctx context.Context) (*types.ApplicationProjection, error) {
		return s.inner.Approve(ctx, input)
	})
}

// Reject declines an application.
func (s *Service) Reject(ctx context.Context, input types.DecisionInput) (*types.ApplicationProjection, error) {
	return s.transition(ctx, "Service.Reject", "rejecting application", input.ApplicationID, func(ctx context.Context) (*types.ApplicationProjection, error) {
		return s.inner.Reject(ctx, input)
	})
}

// GenerateFinalBill settles an active stay.
func (s *Service) GenerateFinalBill(ctx context.Context, input types.FinalBillInput) (*types.ApplicationProjection, error) {
	return s.transition(ctx, "Service.GenerateFinalBill", "generating final bill", input.ApplicationID, func(ctx context.Context) (*types.ApplicationProjection, error) {
		return s.inner.GenerateFinalBill(ctx, input)
	})
}

// SubmitFeedback rates a completed stay.
func (s *Service) SubmitFeedback(ctx context.Context, input types.FeedbackInput) (*types.ApplicationProjection, error) {
	return s.transition(ctx, "Service.SubmitFeedback", "submitting feedback", input.ApplicationID, func(ctx context.Context) (*types.ApplicationProjection, error) {
		return s.inner.SubmitFeedback(ctx, input)
	})
}

// Cancel is the owner cancellation.
func (s *Service) Cancel(ctx context.Context, input types.CancelInput) (*types.ApplicationProjection, error) {
	return s.transition(ctx, "Service.Cancel", "cancelling application", input.ApplicationID, func(ctx context.Context) (*types.ApplicationProjection, error) {
		return s.inner.Cancel(ctx, input)
	})
}

// RejectPricing cancels an application whose quote the owner declined.
func (s *Service) RejectPricing(ctx context.Context, input types.ApplicationIdentifier) (*types.ApplicationProjection, error) {
	return s.transition(ctx, "Service.RejectPricing", "rejecting quote", input.ID, func(ctx context.Context) (*types.ApplicationProjection, error) {
		return s.inner.RejectPricing(ctx, input)
	})
}

// OverrideCancel is the audited administrative cancellation; it is logged at warn level.
func (s *Service) OverrideCancel(ctx context.Context, input types.DecisionInput) (*types.ApplicationProjection, error) {
	ctx, span := s.startSpan(ctx, "Service.OverrideCancel", attribute.String("application.id", input.ApplicationID))
	defer span.End()

	result, err := s.inner.OverrideCancel(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to override cancellation", slog.String("application.id", input.ApplicationID))
	}
	s.metrics.recordOverride(ctx)
	s.logger.LogAttrs(ctx, slog.LevelWarn, "cancellation overridden",
		slog.String("application.id", input.ApplicationID),
		slog.String("actor.id", actorID(ctx)),
		slog.String("reason", input.Reason),
	)
	return result, nil
}

// RecordAdvancePayment confirms the advance.
func (s *Service) RecordAdvancePayment(ctx context.Context, input types.RecordPaymentInput) (*types.ApplicationProjection, error) {
	return s.payment(ctx, domain.PaymentAdvance, input, s.inner.RecordAdvancePayment)
}

// RecordFinalPayment confirms the final installment.
func (s *Service) RecordFinalPayment(ctx context.Context, input types.RecordPaymentInput) (*types.ApplicationProjection, error) {
	return s.payment(ctx, domain.PaymentFinal, input, s.inner.RecordFinalPayment)
}

// CreatePaymentOrder opens a gateway order.
func (s *Service) CreatePaymentOrder(ctx context.Context, input types.CreateOrderInput) (*types.PaymentOrderResult, error) {
	ctx, span := s.startSpan(ctx, "Service.CreatePaymentOrder",
		attribute.String("application.id", input.ApplicationID),
		attribute.String("payment.kind", input.Kind),
	)
	defer span.End()

	result, err := s.inner.CreatePaymentOrder(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to create payment order", slog.String("application.id", input.ApplicationID))
	}
	s.logInfo(ctx, "payment order created",
		slog.String("application.id", result.ApplicationID),
		slog.String("order.id", result.OrderID),
		slog.Int64("amount", int64(result.Amount)),
	)
	return result, nil
}

// RefundAdvance refunds a cancelled application's advance.
func (s *Service) RefundAdvance(ctx context.Context, input types.DecisionInput) (*types.ApplicationProjection, error) {
	return s.transition(ctx, "Service.RefundAdvance", "refunding advance", input.ApplicationID, func(ctx context.Context) (*types.ApplicationProjection, error) {
		return s.inner.RefundAdvance(ctx, input)
	})
}

// ListPayments returns the ledger of an application.
func (s *Service) ListPayments(ctx context.Context, input types.ApplicationIdentifier) ([]*domain.LedgerEntry, error) {
	ctx, span := s.startSpan(ctx, "Service.ListPayments", attribute.String("application.id", input.ID))
	defer span.End()

	result, err := s.inner.ListPayments(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list payments", slog.String("application.id", input.ID))
	}
	span.SetAttributes(attribute.Int("payment.result.count", len(result)))
	return result, nil
}

// RequestHandoverOTP issues a code. The code itself stays out of logs and spans.
func (s *Service) RequestHandoverOTP(ctx context.Context, input types.HandoverOTPInput) (*types.IssuedOTP, error) {
	ctx, span := s.startSpan(ctx, "Service.RequestHandoverOTP",
		attribute.String("application.id", input.ApplicationID),
		attribute.String("handover.purpose", input.Purpose),
	)
	defer span.End()

	result, err := s.inner.RequestHandoverOTP(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to issue handover otp",
			slog.String("application.id", input.ApplicationID), slog.String("purpose", input.Purpose))
	}
	s.metrics.recordOTPIssued(ctx, result.Purpose)
	s.logInfo(ctx, "handover otp issued",
		slog.String("application.id", result.ApplicationID),
		slog.String("purpose", string(result.Purpose)),
		slog.Time("expires_at", result.ExpiresAt),
	)
	return result, nil
}

// ConfirmHandover validates a code and moves custody.
func (s *Service) ConfirmHandover(ctx context.Context, input types.ConfirmHandoverInput) (*types.ApplicationProjection, error) {
	ctx, span := s.startSpan(ctx, "Service.ConfirmHandover",
		attribute.String("application.id", input.ApplicationID),
		attribute.String("handover.purpose", input.Purpose),
	)
	defer span.End()

	result, err := s.inner.ConfirmHandover(ctx, input)
	if err != nil {
		if reason := application.ErrorCode(err); isOTPFailure(err) {
			s.metrics.recordOTPFailure(ctx, reason)
		}
		return nil, s.handleError(ctx, span, err, "handover confirmation failed",
			slog.String("application.id", input.ApplicationID), slog.String("purpose", input.Purpose))
	}
	s.metrics.recordHandover(ctx, input.Purpose)
	s.logApplication(ctx, span, "handover confirmed", result)
	return result, nil
}

func (s *Service) transition(ctx context.Context, name, msg, applicationID string, call func(context.Context) (*types.ApplicationProjection, error)) (*types.ApplicationProjection, error) {
	ctx, span := s.startSpan(ctx, name, attribute.String("application.id", applicationID))
	defer span.End()

	s.logInfo(ctx, msg, slog.String("application.id", applicationID))
	result, err := call(ctx)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed: "+msg, slog.String("application.id", applicationID))
	}
	if result != nil && result.Entity != nil {
		s.metrics.recordStatus(ctx, result.Entity.Status)
	}
	s.logApplication(ctx, span, msg+" done", result)
	return result, nil
}

func (s *Service) payment(ctx context.Context, kind domain.PaymentKind, input types.RecordPaymentInput, call func(context.Context, types.RecordPaymentInput) (*types.ApplicationProjection, error)) (*types.ApplicationProjection, error) {
	ctx, span := s.startSpan(ctx, "Service.RecordPayment",
		attribute.String("application.id", input.ApplicationID),
		attribute.String("payment.kind", string(kind)),
		attribute.String("payment.id", input.PaymentID),
	)
	defer span.End()

	attrs := []slog.Attr{
		slog.String("application.id", input.ApplicationID),
		slog.String("kind", string(kind)),
		slog.String("order.id", input.OrderID),
		slog.String("payment.id", input.PaymentID),
		slog.Int64("amount", int64(input.Amount)),
	}
	s.logInfo(ctx, "recording payment", attrs...)
	result, err := call(ctx, input)
	if err != nil {
		s.metrics.recordPaymentFailure(ctx, kind, application.ErrorCode(err))
		return nil, s.handleError(ctx, span, err, "failed to record payment", attrs...)
	}
	s.metrics.recordPayment(ctx, kind, input.Amount)
	s.logApplication(ctx, span, "payment recorded", result)
	return result, nil
}

func (s *Service) logApplication(ctx context.Context, span trace.Span, msg string, result *types.ApplicationProjection) {
	if result == nil || result.Entity == nil {
		return
	}
	span.SetAttributes(
		attribute.String("application.status", string(result.Entity.Status)),
		attribute.Int64("application.version", result.Metadata.Version),
	)
	s.logInfo(ctx, msg,
		slog.String("application.id", result.Entity.ID),
		slog.String("application.number", result.Entity.Number),
		slog.String("status", string(result.Entity.Status)),
		slog.Int64("version", result.Metadata.Version),
	)
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := s.tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (s *Service) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

// handleError logs client errors at warn and everything else at error.
func (s *Service) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	code := application.ErrorCode(err)
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if code != "" {
			span.SetAttributes(attribute.String("error.code", code))
		}
	}
	if s.logger == nil {
		return err
	}
	attrs = append(attrs, slog.String("error", err.Error()))
	level := slog.LevelError
	if code != "" {
		attrs = append(attrs, slog.String("error.code", code))
		level = slog.LevelWarn
	}
	s.logger.LogAttrs(ctx, level, msg, attrs...)
	return err
}

func isOTPFailure(err error) bool {
	for _, target := range []error{domain.ErrOTPMismatch, domain.ErrOTPExpired, domain.ErrOTPAlreadyConsumed, domain.ErrOTPLockedOut} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func actorID(ctx context.Context) string {
	actor, _ := identity.FromContext(ctx)
	return actor.ID
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var _ ports.Service = (*Service)(nil)
