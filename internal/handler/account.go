package handler

import (
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tarotdeck/backend/internal/domain"
	"github.com/tarotdeck/backend/internal/service"
)

// AccountHandler serves the admin console's account pages. Every route sits behind AdminOnly.
type AccountHandler struct {
	auth *service.AuthService
}

func NewAccountHandler(auth *service.AuthService) *AccountHandler {
	return &AccountHandler{auth: auth}
}

// List handles GET /api/admin/users. ?premium=true|false narrows the list to
// accounts whose entitlement is (or is not) live right now.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.auth.ListUsers(r.Context())
	if err != nil {
		Error(w, err)
		return
	}

	if raw := r.URL.Query().Get("premium"); raw != "" {
		want, err := strconv.ParseBool(raw)
		if err != nil {
			Error(w, domain.ErrBadRequest("premium must be true or false"))
			return
		}
		filtered := make([]*domain.UserResponse, 0, len(accounts))
		for _, a := range accounts {
			if a.IsPremium == want {
				filtered = append(filtered, a)
			}
		}
		accounts = filtered
	}

	JSON(w, http.StatusOK, accounts)
}

// Create handles POST /api/admin/users. Admins can open staff or customer
// accounts; premium is only ever granted through a payment.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req domain.CreateUserRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, err)
		return
	}

	account, err := h.auth.CreateUser(r.Context(), &req)
	if err != nil {
		Error(w, err)
		return
	}

	log.Printf("[Admin] %s opened %s account %s", sess.Email, account.Role, account.Email)
	JSON(w, http.StatusCreated, account)
}

// Delete handles DELETE /api/admin/users/{id}. The customer's readings,
// payments and tickets go with it; admin accounts cannot be removed here.
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if id == sess.UserID {
		Error(w, domain.ErrBadRequest("cannot delete your own account"))
		return
	}

	if err := h.auth.DeleteUser(r.Context(), id); err != nil {
		Error(w, err)
		return
	}

	log.Printf("[Admin] %s deleted account %s", sess.Email, id)
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}
