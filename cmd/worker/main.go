package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/temporary-care-api/internal/app/api"
	platformobservability "github.com/Apurer/temporary-care-api/internal/platform/observability"
	boardingactivities "github.com/Apurer/temporary-care-api/internal/platform/temporal/activities/boarding"
	boardingworkflows "github.com/Apurer/temporary-care-api/internal/platform/temporal/workflows/boarding"
)

func main() {
	ctx := context.Background()
	const serviceName = "temporary-care-worker"
	cfg, err := api.LoadWorkerConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	boarding, err := api.NewBoarding(ctx, cfg, instruments)
	if err != nil {
		logger.Error("failed to wire boarding service", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer boarding.Close()
	if boarding.DB == nil {
		logger.Warn("worker runs on in-memory adapters; payments recorded here are not visible to the API")
	}
	paymentActivities := boardingactivities.NewActivities(boarding.Service)

	tracerOptions := temporalotel.TracerOptions{Tracer: instruments.Tracer("temporal-worker")}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(tracerOptions)
	if err != nil {
		logger.Error("failed to configure Temporal tracing interceptor", slog.String("error", err.Error()))
		os.Exit(1)
	}
	clientOptions := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    workerlog.NewStructuredLogger(logger),
	}
	clientOptions.Interceptors = append(clientOptions.Interceptors, tracingInterceptor)
	temporalClient, err := client.Dial(clientOptions)
	if err != nil {
		logger.Error("failed to create Temporal client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, boardingworkflows.PaymentTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(boardingworkflows.PaymentRecordingWorkflow, workflow.RegisterOptions{Name: boardingworkflows.PaymentRecordingWorkflowName})
	w.RegisterActivityWithOptions(paymentActivities.RecordPayment, activity.RegisterOptions{Name: boardingactivities.RecordPaymentActivityName})

	logger.Info("worker listening", slog.String("taskQueue", boardingworkflows.PaymentTaskQueue), slog.String("namespace", clientOptions.Namespace))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Temporal worker exited with error", slog.String("error", err.Error()))
		return
	}
	logger.Info("Temporal worker stopped")
}
