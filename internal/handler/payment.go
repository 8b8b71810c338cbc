package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tarotdeck/backend/internal/domain"
	"github.com/tarotdeck/backend/internal/service"
)

// maxWebhookBytes bounds gateway webhook payloads.
const maxWebhookBytes = 64 << 10

// PaymentHandler handles checkout, status polling, history and gateway webhooks.
type PaymentHandler struct {
	svc *service.SubscriptionService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc *service.SubscriptionService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// CreateCheckout handles POST /api/payment/checkout.
func (h *PaymentHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req domain.CheckoutRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, err)
		return
	}

	resp, err := h.svc.CreateCheckout(r.Context(), sess, &req)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, resp)
}

// Status handles GET /api/payment/{id}/status.
func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	resp, err := h.svc.PollStatus(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// History handles GET /api/payment/history.
func (h *PaymentHandler) History(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	payments, err := h.svc.History(r.Context(), sess)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, payments)
}

// Webhook handles POST /api/payment/webhook. The signature is checked by the gateway.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			JSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload too large"})
			return
		}
		Error(w, domain.ErrBadRequest("failed to read body"))
		return
	}

	if err := h.svc.HandleWebhook(r.Context(), payload, r.Header); err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]bool{"received": true})
}
