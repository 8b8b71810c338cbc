package handler

import (
	"net/http"

	"github.com/tarotdeck/backend/internal/service"
)

// PlansHandler handles plan-related endpoints.
type PlansHandler struct {
	subs *service.SubscriptionService
}

// NewPlansHandler creates a new PlansHandler.
func NewPlansHandler(subs *service.SubscriptionService) *PlansHandler {
	return &PlansHandler{subs: subs}
}

// List handles GET /api/plans.
func (h *PlansHandler) List(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.subs.Plans())
}
