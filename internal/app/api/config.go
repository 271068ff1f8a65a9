package api

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.temporal.io/sdk/client"
	"golang.org/x/crypto/bcrypt"
)

// Config carries environment-driven settings for the API process.
type Config struct {
	Port                 string
	PostgresDSN          string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	TemporalAddress      string
	TemporalNamespace    string
	TemporalDisabled     bool
	JWTSecret            string
	PaymentGatewayURL    string
	PaymentGatewayKeyID  string
	PaymentGatewaySecret string
	OTPBcryptCost        int
	HandoverVerifyRPS    float64
	HandoverVerifyBurst  int
	OTPRetention         time.Duration
}

// ErrMissingJWTSecret is returned when JWT_SECRET is not configured.
var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set")

// LoadConfig reads .env (when present) and the environment, applies defaults, and
// validates basic constraints.
func LoadConfig() (Config, error) {
	return load(true)
}

// LoadWorkerConfig is LoadConfig for processes that never verify bearer tokens.
func LoadWorkerConfig() (Config, error) {
	return load(false)
}

func load(requireJWT bool) (Config, error) {
	if err := loadEnvFile(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.SetDefault("PORT", "8080")
	v.SetDefault("TEMPORAL_ADDRESS", client.DefaultHostPort)
	v.SetDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace)
	v.SetDefault("TEMPORAL_DISABLED", false)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("PAYMENT_GATEWAY_SECRET", "sandbox-secret")
	v.SetDefault("OTP_BCRYPT_COST", bcrypt.DefaultCost)
	v.SetDefault("HANDOVER_VERIFY_RPS", 1.0)
	v.SetDefault("HANDOVER_VERIFY_BURST", 5)
	v.SetDefault("OTP_RETENTION_HOURS", 24)

	cfg := Config{
		Port:                 strings.TrimSpace(v.GetString("PORT")),
		PostgresDSN:          strings.TrimSpace(v.GetString("POSTGRES_DSN")),
		RedisAddr:            strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword:        v.GetString("REDIS_PASSWORD"),
		RedisDB:              v.GetInt("REDIS_DB"),
		TemporalAddress:      strings.TrimSpace(v.GetString("TEMPORAL_ADDRESS")),
		TemporalNamespace:    strings.TrimSpace(v.GetString("TEMPORAL_NAMESPACE")),
		TemporalDisabled:     v.GetBool("TEMPORAL_DISABLED"),
		JWTSecret:            v.GetString("JWT_SECRET"),
		PaymentGatewayURL:    strings.TrimSpace(v.GetString("PAYMENT_GATEWAY_URL")),
		PaymentGatewayKeyID:  strings.TrimSpace(v.GetString("PAYMENT_GATEWAY_KEY_ID")),
		PaymentGatewaySecret: v.GetString("PAYMENT_GATEWAY_SECRET"),
		OTPBcryptCost:        v.GetInt("OTP_BCRYPT_COST"),
		HandoverVerifyRPS:    v.GetFloat64("HANDOVER_VERIFY_RPS"),
		HandoverVerifyBurst:  v.GetInt("HANDOVER_VERIFY_BURST"),
		OTPRetention:         time.Duration(v.GetInt("OTP_RETENTION_HOURS")) * time.Hour,
	}
	if err := cfg.validate(requireJWT); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate(requireJWT bool) error {
	if requireJWT && strings.TrimSpace(c.JWTSecret) == "" {
		return ErrMissingJWTSecret
	}
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.OTPBcryptCost < bcrypt.MinCost || c.OTPBcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("OTP_BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.HandoverVerifyRPS <= 0 {
		return fmt.Errorf("HANDOVER_VERIFY_RPS must be positive")
	}
	if c.HandoverVerifyBurst <= 0 {
		return fmt.Errorf("HANDOVER_VERIFY_BURST must be a positive integer")
	}
	if c.OTPRetention <= 0 {
		return fmt.Errorf("OTP_RETENTION_HOURS must be a positive integer")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

// loadEnvFile loads path into the environment without overriding variables that are
// already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
