package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/Apurer/temporary-care-api/internal/app/api"
	boardingpostgres "github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/persistence/postgres"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
	platformpostgres "github.com/Apurer/temporary-care-api/internal/platform/postgres"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	cfg, err := api.LoadWorkerConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	db, cleanup := platformpostgres.ConnectOptional(ctx, cfg.PostgresDSN, logger)
	defer cleanup()
	if db == nil {
		log.Fatal("POSTGRES_DSN not set or connection failed; cannot purge OTPs")
	}

	purged, err := purge(ctx, boardingpostgres.NewOTPStore(db), cfg.OTPRetention, time.Now())
	if err != nil {
		log.Fatalf("failed to purge OTPs: %v", err)
	}
	logger.Info("OTP purge completed", slog.Int("purged", purged), slog.Duration("retention", cfg.OTPRetention))
}

// purge removes codes that have been dead for longer than retention.
func purge(ctx context.Context, store ports.OTPStore, retention time.Duration, now time.Time) (int, error) {
	return store.PurgeBefore(ctx, now.Add(-retention))
}
