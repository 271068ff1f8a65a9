//go:build pact
// +build pact

package provider_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pact-foundation/pact-go/v2/models"
	pactprovider "github.com/pact-foundation/pact-go/v2/provider"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	careserver "github.com/Apurer/temporary-care-api/go"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/external/gateway"
	boardingmemory "github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/memory"
	boardingobs "github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/observability"
	boardingworkflows "github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/workflows"
	boardingapp "github.com/Apurer/temporary-care-api/internal/domains/boarding/application"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	pacttest "github.com/Apurer/temporary-care-api/test/pact"
)

func TestTemporaryCareProviderPact(t *testing.T) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	app := newContractProviderApp(t)
	pactFile := filepath.ToSlash(pacttest.PactFile(t))
	if _, err := os.Stat(pactFile); errors.Is(err, os.ErrNotExist) {
		t.Fatalf("pact file not found at %s - run the pact consumer tests first", pactFile)
	} else {
		require.NoError(t, err)
	}

	verifier := pactprovider.NewVerifier()
	stateHandlers := models.StateHandlers{
		pacttest.StateApplicationsBaseline: func(setup bool, _ models.ProviderState) (models.ProviderStateResponse, error) {
			app.reset()
			return nil, nil
		},
		pacttest.StateApplicationSubmitted: func(setup bool, _ models.ProviderState) (models.ProviderStateResponse, error) {
			app.reset()
			if setup {
				app.seedApplication(t)
			}
			return nil, nil
		},
		pacttest.StateApplicationMissing: func(setup bool, _ models.ProviderState) (models.ProviderStateResponse, error) {
			app.reset()
			return nil, nil
		},
	}

	err := verifier.VerifyProvider(t, pactprovider.VerifyRequest{
		ProviderBaseURL: app.server.URL,
		Provider:        pacttest.ProviderName,
		PactFiles:       []string{pactFile},
		StateHandlers:   stateHandlers,
		BeforeEach: func() error {
			app.reset()
			return nil
		},
	})
	require.NoError(t, err)
}

// contractProviderApp serves the real router over fresh in-memory adapters. reset swaps
// in a new stack so every interaction starts from an empty store.
type contractProviderApp struct {
	server  *httptest.Server
	repo    atomic.Pointer[boardingmemory.Repository]
	handler atomic.Pointer[gin.Engine]
}

func newContractProviderApp(t testing.TB) *contractProviderApp {
	t.Helper()
	app := &contractProviderApp{}
	app.reset()
	app.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.handler.Load().ServeHTTP(w, r)
	}))
	t.Cleanup(app.server.Close)
	return app
}

func (a *contractProviderApp) reset() {
	repo := boardingmemory.NewRepository()
	otps := boardingapp.NewOTPEngine(
		boardingmemory.NewOTPStore(),
		boardingmemory.NewAttemptLimiter(),
		boardingapp.WithBcryptCost(bcrypt.MinCost),
	)
	service := boardingobs.New(boardingapp.NewService(repo, boardingmemory.NewLedger(), otps,
		boardingapp.WithGateway(gateway.NewSandbox("pact-gateway")),
		boardingapp.WithIdempotencyStore(boardingmemory.NewIdempotencyStore()),
	))
	handlers := careserver.ApiHandleFunctions{
		ApplicationAPI: careserver.NewApplicationAPI(service),
		PaymentAPI:     careserver.NewPaymentAPI(service, boardingworkflows.NewInlinePaymentWorkflows(service)),
		HandoverAPI:    careserver.NewHandoverAPI(service),
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router = careserver.NewRouterWithGinEngine(router, handlers,
		careserver.WithAuthenticator(careserver.NewAuthenticator(pacttest.JWTSecret)),
		careserver.WithVerifyLimiter(careserver.NewKeyedLimiter(100, 100)),
	)
	a.repo.Store(repo)
	a.handler.Store(router)
}

func (a *contractProviderApp) seedApplication(t testing.TB) {
	t.Helper()
	application, err := domain.NewApplication(domain.Submission{
		ID:        pacttest.ExistingApplicationID,
		Number:    pacttest.ExistingApplicationNumber,
		OwnerID:   pacttest.OwnerID,
		Pets:      []domain.PetCare{{PetRef: pacttest.PetRef}},
		StartDate: pacttest.StayStart,
		EndDate:   pacttest.StayStart.Add(72 * time.Hour),
	}, time.Now())
	require.NoError(t, err)
	_, err = a.repo.Load().Create(context.Background(), application)
	require.NoError(t, err)
}
