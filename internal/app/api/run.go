package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"

	careserver "github.com/Apurer/temporary-care-api/go"
	boardingworkflows "github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/workflows"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
	platformobservability "github.com/Apurer/temporary-care-api/internal/platform/observability"
)

// ServiceName identifies the API process in traces and metrics.
const ServiceName = "temporary-care-api"

// Run boots the temporary-care HTTP API with observability, repositories, and workflows
// wired. It returns when ctx is cancelled or the server fails.
func Run(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	instruments, shutdown, err := platformobservability.Init(ctx, ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	boarding, err := NewBoarding(ctx, cfg, instruments)
	if err != nil {
		return err
	}
	defer boarding.Close()
	if err := boarding.StartNotifier(ctx, logger); err != nil {
		return fmt.Errorf("failed to start notifier: %w", err)
	}

	var paymentWorkflows ports.PaymentWorkflowOrchestrator = boardingworkflows.NewInlinePaymentWorkflows(boarding.Service)
	if temporalClient, err := ConnectTemporalClient(cfg, instruments); err != nil {
		logger.Warn("Temporal workflows unavailable, recording payments inline", slog.String("error", err.Error()))
	} else {
		defer temporalClient.Close()
		paymentWorkflows = boardingworkflows.NewTemporalPaymentWorkflows(temporalClient)
		logger.Info("Temporal workflows enabled", slog.String("namespace", cfg.TemporalNamespace))
	}

	handlers := careserver.ApiHandleFunctions{
		ApplicationAPI: careserver.NewApplicationAPI(boarding.Service),
		PaymentAPI:     careserver.NewPaymentAPI(boarding.Service, paymentWorkflows),
		HandoverAPI:    careserver.NewHandoverAPI(boarding.Service),
	}
	router := careserver.NewRouter(handlers,
		careserver.WithAuthenticator(careserver.NewAuthenticator(cfg.JWTSecret)),
		careserver.WithVerifyLimiter(careserver.NewKeyedLimiter(cfg.HandoverVerifyRPS, cfg.HandoverVerifyBurst)),
		careserver.WithMetricsHandler(instruments.MetricsHandler),
		careserver.WithReadiness(boarding.Ready),
	)
	router.Use(otelgin.Middleware(ServiceName))

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("temporary-care API listening", slog.String("addr", server.Addr))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error("temporary-care API server exited", slog.String("addr", server.Addr), slog.String("error", err.Error()))
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down temporary-care API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// ConnectTemporalClient dials Temporal with tracing unless TEMPORAL_DISABLED is set.
func ConnectTemporalClient(cfg Config, instruments *platformobservability.Instruments) (client.Client, error) {
	if cfg.TemporalDisabled {
		return nil, errors.New("temporal disabled via TEMPORAL_DISABLED env")
	}
	tracerOptions := temporalotel.TracerOptions{}
	if instruments != nil {
		tracerOptions.Tracer = instruments.Tracer("temporal-client")
	}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(tracerOptions)
	if err != nil {
		return nil, err
	}
	options := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    workerlog.NewStructuredLogger(effectiveLogger(instruments)),
	}
	options.Interceptors = append(options.Interceptors, tracingInterceptor)
	return client.Dial(options)
}

func effectiveLogger(instruments *platformobservability.Instruments) *slog.Logger {
	if instruments != nil && instruments.Logger != nil {
		return instruments.Logger
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
