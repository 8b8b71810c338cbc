package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tarotdeck/backend/internal/domain"
	"github.com/tarotdeck/backend/internal/service"
)

// ReadingHandler handles readings, their chat and the cooldown limits.
type ReadingHandler struct {
	readings *service.ReadingService
}

// NewReadingHandler creates a new ReadingHandler.
func NewReadingHandler(readings *service.ReadingService) *ReadingHandler {
	return &ReadingHandler{readings: readings}
}

// Create handles POST /api/readings.
func (h *ReadingHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req domain.CreateReadingRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, err)
		return
	}

	rd, err := h.readings.Create(r.Context(), sess, &req)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusCreated, rd)
}

// List handles GET /api/readings.
func (h *ReadingHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	readings, err := h.readings.List(r.Context(), sess)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, readings)
}

// Get handles GET /api/readings/{id}.
func (h *ReadingHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	detail, err := h.readings.Get(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, detail)
}

// Delete handles DELETE /api/readings/{id}.
func (h *ReadingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	if err := h.readings.Delete(r.Context(), sess, chi.URLParam(r, "id")); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Messages handles GET /api/readings/{id}/messages.
func (h *ReadingHandler) Messages(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	detail, err := h.readings.Get(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, detail.Messages)
}

// SendMessage handles POST /api/readings/{id}/messages.
func (h *ReadingHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req domain.SendMessageRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, err)
		return
	}

	turn, err := h.readings.SendMessage(r.Context(), sess, chi.URLParam(r, "id"), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, turn)
}

// Limits handles GET /api/limits[?readingId=].
func (h *ReadingHandler) Limits(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	limits, err := h.readings.Limits(r.Context(), sess, r.URL.Query().Get("readingId"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, limits)
}
