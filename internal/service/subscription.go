package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/tarotdeck/backend/internal/domain"
	"github.com/tarotdeck/backend/pkg/payment"
)

// SubscriptionService sells premium and reconciles gateway payments into entitlements.
// Webhook, poll and admin activation all end in applySucceeded, which grants at most once per payment.
type SubscriptionService struct {
	payments    PaymentStore
	gateway     payment.Gateway
	events      EventLog
	pricing     domain.Pricing
	frontendURL string
	now         Clock
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(payments PaymentStore, gateway payment.Gateway, events EventLog, pricing domain.Pricing, frontendURL string) *SubscriptionService {
	return &SubscriptionService{
		payments:    payments,
		gateway:     gateway,
		events:      events,
		pricing:     pricing,
		frontendURL: frontendURL,
		now:         time.Now,
	}
}

// Plans returns the purchasable plans.
func (s *SubscriptionService) Plans() []domain.Plan {
	return s.pricing.AvailablePlans()
}

// CreateCheckout opens a gateway checkout and records the pending payment.
func (s *SubscriptionService) CreateCheckout(ctx context.Context, sess *domain.Session, req *domain.CheckoutRequest) (*domain.PaymentLinkResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}

	plan, ok := s.pricing.GetPlan(req.SubscriptionType)
	if !ok || plan.Amount <= 0 {
		return nil, domain.ErrBadRequest("invalid plan")
	}

	co, err := s.gateway.CreatePayment(ctx, payment.CheckoutRequest{
		UserID:      sess.UserID,
		Email:       sess.Email,
		Amount:      plan.Amount,
		Currency:    plan.Currency,
		Description: plan.Description(),
		Plan:        string(plan.ID),
		SuccessURL:  s.frontendURL + "/premium/return",
		CancelURL:   s.frontendURL + "/premium?canceled=1",
	})
	if err != nil {
		return nil, domain.ErrUpstream("payment gateway unavailable", err)
	}

	now := s.now()
	p := &domain.Payment{
		ID:               co.ID,
		UserID:           sess.UserID,
		Amount:           plan.Amount,
		Currency:         plan.Currency,
		Status:           domain.PaymentPending,
		SubscriptionType: plan.ID,
		Description:      plan.Description(),
		PaymentURL:       co.URL,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, domain.ErrInternal("failed to record payment", err)
	}

	log.Printf("[Payment] Checkout %s opened via %s for user %s (%s)", co.ID, s.gateway.Name(), sess.UserID, plan.ID)
	return &domain.PaymentLinkResponse{PaymentURL: co.URL, PaymentID: co.ID}, nil
}

// PollStatus returns one of the caller's payments. A pending payment is re-checked at the
// gateway first, and a success found there is applied before responding.
func (s *SubscriptionService) PollStatus(ctx context.Context, sess *domain.Session, id string) (*domain.PaymentStatusResponse, error) {
	p, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to find payment", err)
	}
	if p == nil || p.UserID != sess.UserID {
		return nil, domain.ErrNotFound("payment not found")
	}

	if p.Status == domain.PaymentPending {
		fresh, err := s.settle(ctx, p, "poll")
		if err != nil {
			appErr, ok := domain.AsAppError(err)
			if !ok || (appErr.Code != http.StatusBadGateway && appErr.Code != http.StatusConflict) {
				return nil, err
			}
			// Report the stored state; the webhook or a later poll will catch up.
			log.Printf("[Payment] Status check for %s failed: %v", p.ID, err)
			return domain.NewPaymentStatusResponse(p), nil
		}
		p = fresh
	}

	return domain.NewPaymentStatusResponse(p), nil
}

// HandleWebhook verifies and applies a gateway notification. Redelivered events are ignored.
func (s *SubscriptionService) HandleWebhook(ctx context.Context, payload []byte, header http.Header) error {
	ev, err := s.gateway.ParseWebhook(payload, header)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			return domain.ErrBadRequest("invalid signature")
		}
		return domain.ErrBadRequest(fmt.Sprintf("invalid webhook: %v", err))
	}
	if ev == nil {
		return nil
	}

	key := s.gateway.Name() + ":" + ev.ID
	fresh, err := s.events.MarkProcessed(ctx, key)
	if err != nil {
		return domain.ErrInternal("failed to record event", err)
	}
	if !fresh {
		log.Printf("[Webhook] Duplicate event %s ignored", key)
		return nil
	}

	if err := s.applyEvent(ctx, ev); err != nil {
		if ferr := s.events.Forget(ctx, key); ferr != nil {
			log.Printf("[Webhook] Failed to release event %s: %v", key, ferr)
		}
		return err
	}
	return nil
}

func (s *SubscriptionService) applyEvent(ctx context.Context, ev *payment.Event) error {
	p, err := s.payments.FindByID(ctx, ev.PaymentID)
	if err != nil {
		return domain.ErrInternal("failed to find payment", err)
	}
	if p == nil {
		// Not one of ours; acknowledging stops the gateway from retrying.
		log.Printf("[Webhook] Unknown payment %s ignored", ev.PaymentID)
		return nil
	}
	if ev.Status != payment.StatusSucceeded {
		_, err = s.reconcile(ctx, p, ev.Status, "webhook")
		return err
	}

	// A success is only granted after the gateway confirms it.
	_, err = s.settle(ctx, p, "webhook")
	if appErr, ok := domain.AsAppError(err); ok && appErr.Code == http.StatusConflict {
		log.Printf("[Webhook] Payment %s not granted: %s", p.ID, appErr.Message)
		return nil
	}
	return err
}

// AdminActivate re-checks a payment at the gateway and grants premium if it succeeded there.
// A payment that is already applied is reported with Applied == false.
func (s *SubscriptionService) AdminActivate(ctx context.Context, id string) (*domain.Activation, error) {
	p, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to find payment", err)
	}
	if p == nil {
		return nil, domain.ErrNotFound("payment not found")
	}

	switch p.Status {
	case domain.PaymentCanceled:
		return nil, domain.ErrConflict("payment was canceled")
	case domain.PaymentPending:
		if p, err = s.settle(ctx, p, "admin"); err != nil {
			return nil, err
		}
		if p.Status != domain.PaymentSucceeded {
			return nil, domain.ErrConflict(fmt.Sprintf("payment is %s at the gateway", p.Status))
		}
	}

	return s.applySucceeded(ctx, p.ID, "admin")
}

// History returns the caller's payments.
func (s *SubscriptionService) History(ctx context.Context, sess *domain.Session) ([]*domain.Payment, error) {
	payments, err := s.payments.ListByUser(ctx, sess.UserID)
	if err != nil {
		return nil, domain.ErrInternal("failed to list payments", err)
	}
	return payments, nil
}

// ListAll returns every payment (admin only).
func (s *SubscriptionService) ListAll(ctx context.Context) ([]*domain.Payment, error) {
	payments, err := s.payments.ListAll(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to list payments", err)
	}
	return payments, nil
}

// settle re-derives p's status from the gateway and reconciles toward it. A success whose
// charged amount or currency differs from the stored payment is refused with a conflict.
func (s *SubscriptionService) settle(ctx context.Context, p *domain.Payment, source string) (*domain.Payment, error) {
	tx, err := s.gateway.GetPayment(ctx, p.ID)
	if err != nil {
		return nil, domain.ErrUpstream("failed to check payment", err)
	}
	if tx.Status == payment.StatusSucceeded && !chargeMatches(p, tx) {
		log.Printf("⚠️  [Payment] %s charge mismatch: stored %d %s, gateway %d %s (%s)",
			p.ID, p.Amount, p.Currency, tx.Amount, tx.Currency, source)
		return nil, domain.ErrConflict("payment amount does not match")
	}
	return s.reconcile(ctx, p, tx.Status, source)
}

func chargeMatches(p *domain.Payment, tx *payment.Transaction) bool {
	return tx.Amount == p.Amount && strings.EqualFold(tx.Currency, p.Currency)
}

// reconcile moves p toward status and returns the stored result. Final states never change.
func (s *SubscriptionService) reconcile(ctx context.Context, p *domain.Payment, status payment.Status, source string) (*domain.Payment, error) {
	switch status {
	case payment.StatusSucceeded:
		if p.Status == domain.PaymentCanceled {
			log.Printf("[Payment] %s is canceled, ignoring success from %s", p.ID, source)
			return p, nil
		}
		if _, err := s.applySucceeded(ctx, p.ID, source); err != nil {
			return nil, err
		}
	case payment.StatusCanceled:
		if p.Status != domain.PaymentPending {
			return p, nil
		}
		if err := s.payments.UpdateStatus(ctx, p.ID, domain.PaymentCanceled); err != nil {
			return nil, domain.ErrInternal("failed to update payment", err)
		}
		log.Printf("[Payment] %s canceled (%s)", p.ID, source)
	default:
		return p, nil
	}

	fresh, err := s.payments.FindByID(ctx, p.ID)
	if err != nil {
		return nil, domain.ErrInternal("failed to reload payment", err)
	}
	if fresh == nil {
		return nil, domain.ErrNotFound("payment not found")
	}
	return fresh, nil
}

func (s *SubscriptionService) applySucceeded(ctx context.Context, id, source string) (*domain.Activation, error) {
	act, err := s.payments.ApplySucceeded(ctx, id, s.now())
	if err != nil {
		if appErr, ok := domain.AsAppError(err); ok {
			return nil, appErr
		}
		return nil, domain.ErrInternal("failed to activate premium", err)
	}
	if act.Applied {
		log.Printf("💎 Premium activated for %s until %s (payment %s, %s)",
			act.UserID, act.PremiumExpiry.Format(time.RFC3339), id, source)
	}
	return act, nil
}
