package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port          int
	JWTSecret     string
	DatabaseURL   string
	EncryptionKey string
	CORSOrigins   []string
	AdminEmail    string
	AdminPassword string
	FrontendURL   string
	RedisURL      string

	// RateLimitWindow is the single authoritative cooldown for free users.
	RateLimitWindow time.Duration
	// ExpirySweepInterval enables the background premium sweep when > 0.
	ExpirySweepInterval time.Duration

	Pricing   PricingConfig
	Payment   PaymentConfig
	Assistant AssistantConfig
	Google    GoogleConfig
}

// PricingConfig holds plan prices in minor units.
type PricingConfig struct {
	Monthly  int64
	Yearly   int64
	Currency string
}

// PaymentConfig selects and configures the payment gateway.
type PaymentConfig struct {
	Provider            string // mock, stripe, midtrans
	StripeSecretKey     string
	StripeWebhookSecret string
	MidtransServerKey   string
	MidtransProduction  bool
}

// AssistantConfig configures the chat completion API.
type AssistantConfig struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// GoogleConfig configures Google sign-in. Empty ClientID disables it.
type GoogleConfig struct {
	ClientID         string
	ClientSecret     string
	RedirectURL      string
	FrontendRedirect string
}

// Enabled reports whether Google sign-in is configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.RedirectURL != ""
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port, _ := strconv.Atoi(getEnv("PORT", "4001"))

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	encKey := getEnv("ENCRYPTION_KEY", "")
	if encKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required (must be exactly 32 bytes)")
	}
	if len(encKey) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes, got %d", len(encKey))
	}

	window, err := getDuration("RATE_LIMIT_WINDOW", "5m")
	if err != nil {
		return nil, err
	}
	if window <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}

	sweep, err := getDuration("EXPIRY_SWEEP_INTERVAL", "0")
	if err != nil {
		return nil, err
	}

	monthly, err := getInt64("PRICE_MONTHLY", "499")
	if err != nil {
		return nil, err
	}
	yearly, err := getInt64("PRICE_YEARLY", "3999")
	if err != nil {
		return nil, err
	}

	assistantTimeout, err := getDuration("ASSISTANT_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	payment := PaymentConfig{
		Provider:            strings.ToLower(getEnv("PAYMENT_PROVIDER", "mock")),
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		MidtransServerKey:   getEnv("MIDTRANS_SERVER_KEY", ""),
		MidtransProduction:  getEnv("MIDTRANS_IS_PRODUCTION", "false") == "true",
	}
	currency := strings.ToLower(getEnv("CURRENCY", "usd"))
	if err := payment.validate(currency); err != nil {
		return nil, err
	}

	origins := strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return &Config{
		Port:                port,
		JWTSecret:           jwtSecret,
		DatabaseURL:         dbURL,
		EncryptionKey:       encKey,
		CORSOrigins:         origins,
		AdminEmail:          getEnv("ADMIN_EMAIL", "admin@tarot.local"),
		AdminPassword:       getEnv("ADMIN_PASSWORD", "admin123"),
		FrontendURL:         strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		RedisURL:            getEnv("REDIS_URL", ""),
		RateLimitWindow:     window,
		ExpirySweepInterval: sweep,
		Pricing: PricingConfig{
			Monthly:  monthly,
			Yearly:   yearly,
			Currency: currency,
		},
		Payment: payment,
		Assistant: AssistantConfig{
			URL:     strings.TrimRight(getEnv("ASSISTANT_API_URL", "https://api.openai.com/v1"), "/"),
			APIKey:  getEnv("ASSISTANT_API_KEY", ""),
			Model:   getEnv("ASSISTANT_MODEL", "gpt-4o-mini"),
			Timeout: assistantTimeout,
		},
		Google: GoogleConfig{
			ClientID:         getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret:     getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:      getEnv("GOOGLE_REDIRECT_URL", ""),
			FrontendRedirect: getEnv("GOOGLE_FRONTEND_REDIRECT", ""),
		},
	}, nil
}

func (p PaymentConfig) validate(currency string) error {
	switch p.Provider {
	case "mock":
		return nil
	case "stripe":
		if p.StripeSecretKey == "" || p.StripeWebhookSecret == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET are required for the stripe provider")
		}
		return nil
	case "midtrans":
		if p.MidtransServerKey == "" {
			return fmt.Errorf("MIDTRANS_SERVER_KEY is required for the midtrans provider")
		}
		// Midtrans settles in rupiah only.
		if currency != "idr" {
			return fmt.Errorf("CURRENCY must be idr for the midtrans provider, got %q", currency)
		}
		return nil
	default:
		return fmt.Errorf("unknown PAYMENT_PROVIDER %q", p.Provider)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt64(key, fallback string) (int64, error) {
	n, err := strconv.ParseInt(getEnv(key, fallback), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
