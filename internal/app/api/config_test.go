package api

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	"golang.org/x/crypto/bcrypt"
)

var configKeys = []string{
	"PORT", "POSTGRES_DSN", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"TEMPORAL_ADDRESS", "TEMPORAL_NAMESPACE", "TEMPORAL_DISABLED", "JWT_SECRET",
	"PAYMENT_GATEWAY_URL", "PAYMENT_GATEWAY_SECRET", "OTP_BCRYPT_COST",
	"HANDOVER_VERIFY_RPS", "HANDOVER_VERIFY_BURST", "OTP_RETENTION_HOURS",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	clearConfigEnv(t)

	_, err := LoadConfig()
	require.ErrorIs(t, err, ErrMissingJWTSecret)
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, client.DefaultHostPort, cfg.TemporalAddress)
	assert.Equal(t, client.DefaultNamespace, cfg.TemporalNamespace)
	assert.False(t, cfg.TemporalDisabled)
	assert.Empty(t, cfg.PostgresDSN)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, bcrypt.DefaultCost, cfg.OTPBcryptCost)
	assert.Equal(t, 1.0, cfg.HandoverVerifyRPS)
	assert.Equal(t, 5, cfg.HandoverVerifyBurst)
	assert.Equal(t, 24*time.Hour, cfg.OTPRetention)
}

func TestLoadConfigOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("TEMPORAL_DISABLED", "true")
	t.Setenv("OTP_BCRYPT_COST", "4")
	t.Setenv("HANDOVER_VERIFY_RPS", "0.5")
	t.Setenv("OTP_RETENTION_HOURS", "48")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.True(t, cfg.TemporalDisabled)
	assert.Equal(t, 4, cfg.OTPBcryptCost)
	assert.Equal(t, 0.5, cfg.HandoverVerifyRPS)
	assert.Equal(t, 48*time.Hour, cfg.OTPRetention)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"OTP_BCRYPT_COST":       "99",
		"HANDOVER_VERIFY_RPS":   "-1",
		"HANDOVER_VERIFY_BURST": "0",
		"OTP_RETENTION_HOURS":   "-3",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv("JWT_SECRET", "secret")
			t.Setenv(key, value)

			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("JWT_SECRET", "from-env")
	require.NoError(t, os.Unsetenv("PAYMENT_GATEWAY_URL"))
	t.Cleanup(func() { _ = os.Unsetenv("PAYMENT_GATEWAY_URL") })

	dir, err := os.Getwd()
	require.NoError(t, err)
	content := "PAYMENT_GATEWAY_URL=http://gateway.local\nJWT_SECRET=from-file\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://gateway.local", cfg.PaymentGatewayURL)
	assert.Equal(t, "from-env", cfg.JWTSecret, "variables already set win over .env")
}

func TestLoadWorkerConfigSkipsJWTSecret(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadWorkerConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.JWTSecret)
}
