package handler

import (
	"net/http"

	"github.com/tarotdeck/backend/internal/domain"
	"github.com/tarotdeck/backend/internal/service"
)

// TicketHandler handles the user side of support tickets.
type TicketHandler struct {
	tickets *service.TicketService
}

// NewTicketHandler creates a new TicketHandler.
func NewTicketHandler(tickets *service.TicketService) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

// Create handles POST /api/tickets.
func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req domain.CreateTicketRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, err)
		return
	}

	t, err := h.tickets.Create(r.Context(), sess, &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, t)
}

// List handles GET /api/tickets.
func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	tickets, err := h.tickets.ListMine(r.Context(), sess)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, tickets)
}
