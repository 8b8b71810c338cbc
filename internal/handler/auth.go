package handler

import (
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/tarotdeck/backend/internal/domain"
	"github.com/tarotdeck/backend/internal/service"
)

const oauthStateCookie = "oauth_state"

// AuthHandler handles authentication HTTP endpoints.
type AuthHandler struct {
	auth             *service.AuthService
	google           *service.GoogleAuth
	frontendRedirect string
}

// NewAuthHandler creates a new AuthHandler. google may be nil when sign-in with Google is off.
func NewAuthHandler(auth *service.AuthService, google *service.GoogleAuth, frontendRedirect string) *AuthHandler {
	return &AuthHandler{auth: auth, google: google, frontendRedirect: frontendRedirect}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, err)
		return
	}

	resp, err := h.auth.Register(r.Context(), &req)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusCreated, resp)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, err)
		return
	}

	resp, err := h.auth.Login(r.Context(), &req)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, resp)
}

// Me handles GET /api/auth/me. The session was hydrated by the Auth middleware.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, sess)
}

// GoogleStart handles GET /api/auth/google.
func (h *AuthHandler) GoogleStart(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		Error(w, domain.ErrNotFound("google sign-in is not configured"))
		return
	}

	state, err := service.NewOAuthState()
	if err != nil {
		Error(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/api/auth/google",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.google.AuthURL(state), http.StatusFound)
}

// GoogleCallback handles GET /api/auth/google/callback.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		Error(w, domain.ErrNotFound("google sign-in is not configured"))
		return
	}

	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		Error(w, domain.ErrBadRequest("invalid oauth state"))
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/api/auth/google", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		Error(w, domain.ErrBadRequest("missing authorization code"))
		return
	}

	resp, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		log.Printf("[Auth] Google callback failed: %v", err)
		Error(w, err)
		return
	}

	if h.frontendRedirect == "" {
		JSON(w, http.StatusOK, resp)
		return
	}
	http.Redirect(w, r, h.frontendRedirect+"?token="+url.QueryEscape(resp.Token), http.StatusFound)
}
