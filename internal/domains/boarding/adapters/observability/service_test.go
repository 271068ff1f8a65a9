package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/crypto/bcrypt"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/external/gateway"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/memory"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/observability"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application/types"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/shared/identity"
)

const fixedCode = "493817"

func TestDecoratorNeverLogsSecrets(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	sandbox := gateway.NewSandbox("secret")
	engine := application.NewOTPEngine(memory.NewOTPStore(), memory.NewAttemptLimiter(),
		application.WithOTPClock(clock),
		application.WithBcryptCost(bcrypt.MinCost),
		application.WithCodeGenerator(func() (string, error) { return fixedCode, nil }),
	)
	core := application.NewService(memory.NewRepository(), memory.NewLedger(), engine,
		application.WithClock(clock), application.WithGateway(sandbox))

	var logs bytes.Buffer
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	svc := observability.New(core,
		observability.WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))),
		observability.WithMeter(provider.Meter("test")),
	)

	ownerCtx := identity.WithActor(context.Background(), identity.Actor{ID: "owner-1", Role: identity.RoleOwner})
	staffCtx := identity.WithActor(context.Background(), identity.Actor{ID: "staff-1", Role: identity.RoleStaff})

	submitted, err := svc.SubmitApplication(ownerCtx, types.SubmitApplicationInput{
		Pets:      []domain.PetCare{{PetRef: "pet-1"}},
		StartDate: now.Add(24 * time.Hour),
		EndDate:   now.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	id := submitted.Entity.ID

	zero := 0.0
	_, err = svc.SetPricing(staffCtx, types.SetPricingInput{
		ApplicationID: id,
		Rates:         []domain.PetRate{{PetRef: "pet-1", BaseRatePerDay: 1000}},
		TaxPercent:    &zero,
	})
	require.NoError(t, err)

	signature := sandbox.Signer().Sign("order-1", "pay-1")
	_, err = svc.RecordAdvancePayment(ownerCtx, types.RecordPaymentInput{
		ApplicationID: id, OrderID: "order-1", PaymentID: "pay-1", Signature: signature, Amount: 500,
	})
	require.NoError(t, err)

	issued, err := svc.RequestHandoverOTP(ownerCtx, types.HandoverOTPInput{ApplicationID: id, Purpose: "dropoff"})
	require.NoError(t, err)
	require.Equal(t, fixedCode, issued.Code)

	_, err = svc.ConfirmHandover(staffCtx, types.ConfirmHandoverInput{ApplicationID: id, Purpose: "dropoff", Code: "000000"})
	require.ErrorIs(t, err, domain.ErrOTPMismatch)
	_, err = svc.ConfirmHandover(staffCtx, types.ConfirmHandoverInput{ApplicationID: id, Purpose: "dropoff", Code: fixedCode})
	require.NoError(t, err)

	output := logs.String()
	assert.Contains(t, output, "handover otp issued")
	assert.Contains(t, output, "handover confirmed")
	assert.NotContains(t, output, fixedCode)
	assert.NotContains(t, output, signature)

	var data metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &data))
	names := map[string]bool{}
	for _, scope := range data.ScopeMetrics {
		for _, m := range scope.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["boarding.otp.failures"])
	assert.True(t, names["boarding.handovers.completed"])
	assert.True(t, names["boarding.payments.recorded"])
}
