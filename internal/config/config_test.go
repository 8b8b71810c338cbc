package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/tarot")
	t.Setenv("ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4001, cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.RateLimitWindow)
	assert.Zero(t, cfg.ExpirySweepInterval)
	assert.Equal(t, "mock", cfg.Payment.Provider)
	assert.Equal(t, int64(499), cfg.Pricing.Monthly)
	assert.Equal(t, "usd", cfg.Pricing.Currency)
	assert.False(t, cfg.Google.Enabled())
}

func TestLoadMissingSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	require.Error(t, err)

	setRequired(t)
	t.Setenv("ENCRYPTION_KEY", "short")
	_, err = Load()
	require.ErrorContains(t, err, "32 bytes")
}

func TestLoadPaymentProvider(t *testing.T) {
	setRequired(t)

	t.Run("stripe needs keys", func(t *testing.T) {
		t.Setenv("PAYMENT_PROVIDER", "stripe")
		_, err := Load()
		require.ErrorContains(t, err, "STRIPE_SECRET_KEY")
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Setenv("PAYMENT_PROVIDER", "paypal")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("midtrans", func(t *testing.T) {
		t.Setenv("PAYMENT_PROVIDER", "MIDTRANS")
		t.Setenv("MIDTRANS_SERVER_KEY", "SB-Mid-server-xxx")
		t.Setenv("CURRENCY", "IDR")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "midtrans", cfg.Payment.Provider)
		assert.Equal(t, "idr", cfg.Pricing.Currency)
	})

	t.Run("midtrans charges rupiah only", func(t *testing.T) {
		t.Setenv("PAYMENT_PROVIDER", "midtrans")
		t.Setenv("MIDTRANS_SERVER_KEY", "SB-Mid-server-xxx")
		t.Setenv("CURRENCY", "usd")
		_, err := Load()
		require.ErrorContains(t, err, "CURRENCY must be idr")
	})
}

func TestLoadRateLimitWindow(t *testing.T) {
	setRequired(t)

	t.Setenv("RATE_LIMIT_WINDOW", "90s")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.RateLimitWindow)

	t.Setenv("RATE_LIMIT_WINDOW", "soon")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("RATE_LIMIT_WINDOW", "0s")
	_, err = Load()
	require.Error(t, err)
}
