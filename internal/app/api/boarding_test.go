package api

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/external/gateway"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application/types"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	platformobservability "github.com/Apurer/temporary-care-api/internal/platform/observability"
	"github.com/Apurer/temporary-care-api/internal/shared/identity"
)

func testInstruments() *platformobservability.Instruments {
	return &platformobservability.Instruments{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestNewBoardingFallsBackToMemory(t *testing.T) {
	cfg := Config{OTPBcryptCost: 4, PaymentGatewaySecret: "sandbox"}
	boarding, err := NewBoarding(context.Background(), cfg, testInstruments())
	require.NoError(t, err)
	t.Cleanup(boarding.Close)

	assert.Nil(t, boarding.DB)
	require.NoError(t, boarding.Ready())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, boarding.StartNotifier(ctx, testInstruments().Logger))

	owner := identity.WithActor(context.Background(), identity.Actor{ID: "owner-1", Role: identity.RoleOwner})
	now := time.Now().UTC()
	saved, err := boarding.Service.SubmitApplication(owner, types.SubmitApplicationInput{
		Pets:      []domain.PetCare{{PetRef: "pet-1"}},
		StartDate: now.Add(48 * time.Hour),
		EndDate:   now.Add(96 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, saved.Entity.Status)

	found, err := boarding.Service.GetApplication(owner, types.ApplicationIdentifier{ID: saved.Entity.ID})
	require.NoError(t, err)
	assert.Equal(t, saved.Entity.Number, found.Entity.Number)
}

func TestBuildGatewayChoosesSandboxWithoutURL(t *testing.T) {
	logger := testInstruments().Logger

	sandbox, err := buildGateway(Config{PaymentGatewaySecret: "s"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &gateway.Sandbox{}, sandbox)

	remote, err := buildGateway(Config{PaymentGatewayURL: "http://payments.local", PaymentGatewaySecret: "s"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &gateway.HTTPGateway{}, remote)
}

func TestConnectTemporalClientHonoursDisabledFlag(t *testing.T) {
	_, err := ConnectTemporalClient(Config{TemporalDisabled: true}, testInstruments())
	require.Error(t, err)
}
