package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"

	paymentsclient "github.com/Apurer/temporary-care-api/internal/clients/http/payments"
	boardingevents "github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/events"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/external/gateway"
	boardingmemory "github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/memory"
	boardingobs "github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/observability"
	boardingpostgres "github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/persistence/postgres"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/redisstore"
	boardingapp "github.com/Apurer/temporary-care-api/internal/domains/boarding/application"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
	platformevents "github.com/Apurer/temporary-care-api/internal/platform/events"
	platformobservability "github.com/Apurer/temporary-care-api/internal/platform/observability"
	platformpostgres "github.com/Apurer/temporary-care-api/internal/platform/postgres"
	platformredis "github.com/Apurer/temporary-care-api/internal/platform/redis"
)

// Boarding is the wired boarding bounded context shared by the API and the worker.
type Boarding struct {
	// Service is the instrumented application service.
	Service ports.Service
	DB      *gorm.DB
	Bus     *gochannel.GoChannel

	cleanups []func()
}

// Close releases every connection opened by NewBoarding in reverse order.
func (b *Boarding) Close() {
	for i := len(b.cleanups) - 1; i >= 0; i-- {
		b.cleanups[i]()
	}
}

// Ready reports whether the backing database still answers.
func (b *Boarding) Ready() error {
	if b.DB == nil {
		return nil
	}
	sqlDB, err := b.DB.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// NewBoarding wires repositories, the OTP engine, the payment gateway and the event bus.
// Postgres and Redis are optional; without them the in-memory adapters are used.
func NewBoarding(ctx context.Context, cfg Config, instruments *platformobservability.Instruments) (*Boarding, error) {
	logger := instruments.Logger
	b := &Boarding{}

	var (
		repo        ports.Repository
		ledger      ports.Ledger
		otpStore    ports.OTPStore
		idempotency ports.IdempotencyStore
	)
	db, cleanupDB := platformpostgres.ConnectOptional(ctx, cfg.PostgresDSN, logger)
	b.cleanups = append(b.cleanups, cleanupDB)
	if db != nil {
		b.DB = db
		repo = boardingpostgres.NewRepository(db)
		ledger = boardingpostgres.NewLedger(db)
		otpStore = boardingpostgres.NewOTPStore(db)
		idempotency = boardingpostgres.NewIdempotencyStore(db)
	} else {
		repo = boardingmemory.NewRepository()
		ledger = boardingmemory.NewLedger()
		otpStore = boardingmemory.NewOTPStore()
		idempotency = boardingmemory.NewIdempotencyStore()
	}

	limiter := buildAttemptLimiter(ctx, cfg, logger, b)
	otps := boardingapp.NewOTPEngine(otpStore, limiter, boardingapp.WithBcryptCost(cfg.OTPBcryptCost))

	paymentGateway, err := buildGateway(cfg, logger)
	if err != nil {
		b.Close()
		return nil, err
	}

	b.Bus = platformevents.NewBus(logger)
	b.cleanups = append(b.cleanups, func() {
		if err := b.Bus.Close(); err != nil {
			logger.Warn("failed to close event bus", slog.String("error", err.Error()))
		}
	})

	core := boardingapp.NewService(repo, ledger, otps,
		boardingapp.WithGateway(paymentGateway),
		boardingapp.WithEventPublisher(boardingevents.NewPublisher(b.Bus, logger)),
		boardingapp.WithIdempotencyStore(idempotency),
	)
	b.Service = boardingobs.New(
		core,
		boardingobs.WithLogger(logger),
		boardingobs.WithTracer(instruments.Tracer("internal.boarding.application")),
		boardingobs.WithMeter(instruments.Meter("internal.boarding.application")),
	)
	return b, nil
}

// StartNotifier consumes the event bus until ctx is cancelled.
func (b *Boarding) StartNotifier(ctx context.Context, logger *slog.Logger) error {
	notifier := boardingevents.NewNotifier(b.Bus, boardingevents.LogSender{Logger: logger}, logger)
	return notifier.Start(ctx)
}

func buildAttemptLimiter(ctx context.Context, cfg Config, logger *slog.Logger, b *Boarding) ports.AttemptLimiter {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, OTP lockouts are kept in memory")
		return boardingmemory.NewAttemptLimiter()
	}
	client, err := platformredis.Connect(ctx, platformredis.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Warn("failed to connect to redis, OTP lockouts are kept in memory", slog.String("error", err.Error()))
		return boardingmemory.NewAttemptLimiter()
	}
	b.cleanups = append(b.cleanups, func() { _ = client.Close() })
	logger.Info("OTP attempt limiter configured with redis", slog.String("addr", cfg.RedisAddr))
	return redisstore.NewAttemptLimiter(client)
}

func buildGateway(cfg Config, logger *slog.Logger) (ports.PaymentGateway, error) {
	if cfg.PaymentGatewayURL == "" {
		logger.Warn("PAYMENT_GATEWAY_URL not set, using the sandbox payment gateway")
		return gateway.NewSandbox(cfg.PaymentGatewaySecret), nil
	}
	client, err := paymentsclient.NewClient(
		cfg.PaymentGatewayURL,
		&http.Client{Timeout: 10 * time.Second},
		paymentsclient.WithCredentials(cfg.PaymentGatewayKeyID, cfg.PaymentGatewaySecret),
	)
	if err != nil {
		return nil, fmt.Errorf("configure payment gateway: %w", err)
	}
	return gateway.NewHTTPGateway(client, gateway.NewSigner(cfg.PaymentGatewaySecret)), nil
}
