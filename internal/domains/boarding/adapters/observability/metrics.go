package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
)

type serviceMetrics struct {
	submitted       metric.Int64Counter
	transitions     metric.Int64Counter
	overrides       metric.Int64Counter
	payments        metric.Int64Counter
	paymentAmount   metric.Int64Counter
	paymentFailures metric.Int64Counter
	otpIssued       metric.Int64Counter
	otpFailures     metric.Int64Counter
	handovers       metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	submitted, _ := m.Int64Counter("boarding.applications.submitted", metric.WithDescription("Applications submitted"))
	transitions, _ := m.Int64Counter("boarding.applications.transitions", metric.WithDescription("Successful writes by resulting status"))
	overrides, _ := m.Int64Counter("boarding.cancellations.overridden", metric.WithDescription("Administrative cancellation overrides"))
	payments, _ := m.Int64Counter("boarding.payments.recorded", metric.WithDescription("Payments recorded"))
	paymentAmount, _ := m.Int64Counter("boarding.payments.amount", metric.WithDescription("Recorded amount in minor units"))
	paymentFailures, _ := m.Int64Counter("boarding.payments.failed", metric.WithDescription("Rejected payment proofs"))
	otpIssued, _ := m.Int64Counter("boarding.otp.issued", metric.WithDescription("Handover codes issued"))
	otpFailures, _ := m.Int64Counter("boarding.otp.failures", metric.WithDescription("Handover code validation failures"))
	handovers, _ := m.Int64Counter("boarding.handovers.completed", metric.WithDescription("Completed custody transfers"))
	return serviceMetrics{
		submitted:       submitted,
		transitions:     transitions,
		overrides:       overrides,
		payments:        payments,
		paymentAmount:   paymentAmount,
		paymentFailures: paymentFailures,
		otpIssued:       otpIssued,
		otpFailures:     otpFailures,
		handovers:       handovers,
	}
}

func (m serviceMetrics) recordSubmitted(ctx context.Context) {
	addCounter(ctx, m.submitted, 1)
}

func (m serviceMetrics) recordStatus(ctx context.Context, status domain.Status) {
	addCounter(ctx, m.transitions, 1, attribute.String("application.status", string(status)))
}

func (m serviceMetrics) recordOverride(ctx context.Context) {
	addCounter(ctx, m.overrides, 1)
}

func (m serviceMetrics) recordPayment(ctx context.Context, kind domain.PaymentKind, amount domain.Money) {
	addCounter(ctx, m.payments, 1, attribute.String("payment.kind", string(kind)))
	addCounter(ctx, m.paymentAmount, int64(amount), attribute.String("payment.kind", string(kind)))
}

func (m serviceMetrics) recordPaymentFailure(ctx context.Context, kind domain.PaymentKind, reason string) {
	addCounter(ctx, m.paymentFailures, 1, attribute.String("payment.kind", string(kind)), attribute.String("reason", reason))
}

func (m serviceMetrics) recordOTPIssued(ctx context.Context, purpose domain.Purpose) {
	addCounter(ctx, m.otpIssued, 1, attribute.String("handover.purpose", string(purpose)))
}

func (m serviceMetrics) recordOTPFailure(ctx context.Context, reason string) {
	addCounter(ctx, m.otpFailures, 1, attribute.String("reason", reason))
}

func (m serviceMetrics) recordHandover(ctx context.Context, purpose string) {
	addCounter(ctx, m.handovers, 1, attribute.String("handover.purpose", purpose))
}

func addCounter(ctx context.Context, counter metric.Int64Counter, value int64, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, value, metric.WithAttributes(attrs...))
}
