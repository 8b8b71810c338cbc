package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
	"github.com/stripe/stripe-go/v75/webhook"
)

// StripeGateway opens one-off Stripe Checkout sessions. The session id is the payment id.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway creates a gateway bound to secretKey.
func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api, webhookSecret: webhookSecret}
}

func (g *StripeGateway) Name() string { return "stripe" }

func (g *StripeGateway) CreatePayment(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL + "?payment_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.UserID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.Context = ctx
	params.AddMetadata("user_id", req.UserID)
	params.AddMetadata("plan", req.Plan)

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return &Checkout{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) GetPayment(ctx context.Context, id string) (*Transaction, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := g.api.CheckoutSessions.Get(id, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stripe: get checkout session: %w", err)
	}

	return &Transaction{
		ID:        s.ID,
		Status:    stripeSessionStatus(s),
		Amount:    s.AmountTotal,
		Currency:  string(s.Currency),
		Metadata:  s.Metadata,
		CreatedAt: time.Unix(s.Created, 0),
	}, nil
}

func (g *StripeGateway) ParseWebhook(payload []byte, header http.Header) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		header.Get("Stripe-Signature"),
		g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var status Status
	switch event.Type {
	case "checkout.session.completed":
		status = "" // decided from the session's payment_status below
	case "checkout.session.async_payment_succeeded":
		status = StatusSucceeded
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		status = StatusCanceled
	default:
		return nil, nil
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("stripe: parse checkout session: %w", err)
	}
	if status == "" {
		status = stripeSessionStatus(&s)
	}

	return &Event{ID: event.ID, PaymentID: s.ID, Status: status}, nil
}

func stripeSessionStatus(s *stripe.CheckoutSession) Status {
	switch {
	case s.Status == stripe.CheckoutSessionStatusExpired:
		return StatusCanceled
	case s.Status == stripe.CheckoutSessionStatusComplete &&
		(s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
			s.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired):
		return StatusSucceeded
	default:
		return StatusPending
	}
}
