package main

import (
	"fmt"

	"github.com/tarotdeck/backend/internal/config"
	"github.com/tarotdeck/backend/internal/domain"
	"github.com/tarotdeck/backend/pkg/payment"
)

// newGateway builds the payment gateway selected by PAYMENT_PROVIDER.
func newGateway(cfg *config.Config) (payment.Gateway, error) {
	switch cfg.Payment.Provider {
	case "mock":
		return payment.NewMockGateway(cfg.FrontendURL), nil
	case "stripe":
		return payment.NewStripeGateway(cfg.Payment.StripeSecretKey, cfg.Payment.StripeWebhookSecret), nil
	case "midtrans":
		return payment.NewMidtransGateway(cfg.Payment.MidtransServerKey, cfg.Payment.MidtransProduction), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Payment.Provider)
	}
}

func domainPricing(cfg *config.Config) domain.Pricing {
	return domain.Pricing{
		Monthly:  cfg.Pricing.Monthly,
		Yearly:   cfg.Pricing.Yearly,
		Currency: cfg.Pricing.Currency,
	}
}
