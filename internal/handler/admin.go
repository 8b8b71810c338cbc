package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tarotdeck/backend/internal/domain"
	"github.com/tarotdeck/backend/internal/service"
)

// AdminHandler serves the admin dashboard: stats, payments and the ticket inbox.
type AdminHandler struct {
	stats   *service.StatsService
	subs    *service.SubscriptionService
	tickets *service.TicketService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(stats *service.StatsService, subs *service.SubscriptionService, tickets *service.TicketService) *AdminHandler {
	return &AdminHandler{stats: stats, subs: subs, tickets: tickets}
}

// GetStats handles GET /api/admin/stats.
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Get(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, stats)
}

// ListPayments handles GET /api/admin/payments.
func (h *AdminHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.subs.ListAll(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, payments)
}

// ActivatePayment handles POST /api/admin/payments/{id}/activate.
func (h *AdminHandler) ActivatePayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	act, err := h.subs.AdminActivate(r.Context(), id)
	if err != nil {
		Error(w, err)
		return
	}

	log.Printf("[Admin] Payment %s activated manually (applied=%v)", id, act.Applied)
	JSON(w, http.StatusOK, act)
}

// ListTickets handles GET /api/admin/tickets.
func (h *AdminHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.tickets.ListAll(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, tickets)
}

// ReplyTicket handles POST /api/admin/tickets/{id}/reply.
func (h *AdminHandler) ReplyTicket(w http.ResponseWriter, r *http.Request) {
	var req domain.ReplyTicketRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, err)
		return
	}

	t, err := h.tickets.Reply(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, t)
}

// CloseTicket handles POST /api/admin/tickets/{id}/close.
func (h *AdminHandler) CloseTicket(w http.ResponseWriter, r *http.Request) {
	t, err := h.tickets.Close(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, t)
}
