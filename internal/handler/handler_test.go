package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarotdeck/backend/internal/domain"
	"github.com/tarotdeck/backend/internal/handler"
	"github.com/tarotdeck/backend/internal/middleware"
	"github.com/tarotdeck/backend/internal/service"
	"github.com/tarotdeck/backend/internal/service/servicetest"
	"github.com/tarotdeck/backend/pkg/crypto"
	"github.com/tarotdeck/backend/pkg/payment"
)

const (
	adminEmail    = "admin@tarot.local"
	adminPassword = "admin123"
)

type testServer struct {
	*httptest.Server
	gateway *payment.MockGateway
	bot     *servicetest.Completer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	users := servicetest.NewUsers()
	enc, err := crypto.NewEncryptor("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	bot := &servicetest.Completer{Reply: "The cards favour patience."}
	gw := payment.NewMockGateway("http://localhost:3000")

	authSvc := service.NewAuthService("test-secret", adminEmail, adminPassword, users)
	require.NoError(t, authSvc.SeedAdmin(context.Background()))
	readingSvc := service.NewReadingService(servicetest.NewReadings(), enc, bot, 5*time.Minute)
	subSvc := service.NewSubscriptionService(servicetest.NewPayments(users), gw, servicetest.NewEvents(),
		domain.Pricing{Monthly: 499, Yearly: 3999, Currency: "usd"}, "http://localhost:3000")
	ticketSvc := service.NewTicketService(servicetest.NewTickets())

	authH := handler.NewAuthHandler(authSvc, nil, "")
	readingH := handler.NewReadingHandler(readingSvc)
	paymentH := handler.NewPaymentHandler(subSvc)
	ticketH := handler.NewTicketHandler(ticketSvc)
	accountH := handler.NewAccountHandler(authSvc)
	adminH := handler.NewAdminHandler(service.NewStatsService(fixedStats{}), subSvc, ticketSvc)

	r := chi.NewRouter()
	r.Get("/api/plans", handler.NewPlansHandler(subSvc).List)
	r.Post("/api/auth/register", authH.Register)
	r.Post("/api/auth/login", authH.Login)
	r.Get("/api/auth/google", authH.GoogleStart)
	r.Post("/api/payment/webhook", paymentH.Webhook)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(authSvc))
		r.Get("/api/auth/me", authH.Me)
		r.Get("/api/limits", readingH.Limits)
		r.Post("/api/readings", readingH.Create)
		r.Get("/api/readings", readingH.List)
		r.Get("/api/readings/{id}", readingH.Get)
		r.Delete("/api/readings/{id}", readingH.Delete)
		r.Get("/api/readings/{id}/messages", readingH.Messages)
		r.Post("/api/readings/{id}/messages", readingH.SendMessage)
		r.Post("/api/payment/checkout", paymentH.CreateCheckout)
		r.Get("/api/payment/history", paymentH.History)
		r.Get("/api/payment/{id}/status", paymentH.Status)
		r.Post("/api/tickets", ticketH.Create)
		r.Get("/api/tickets", ticketH.List)
		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminOnly)
			r.Get("/api/users", accountH.List)
			r.Get("/api/admin/users", accountH.List)
			r.Post("/api/admin/users", accountH.Create)
			r.Delete("/api/admin/users/{id}", accountH.Delete)
			r.Get("/api/admin/stats", adminH.GetStats)
			r.Post("/api/admin/payments/{id}/activate", adminH.ActivatePayment)
			r.Get("/api/admin/tickets", adminH.ListTickets)
			r.Post("/api/admin/tickets/{id}/reply", adminH.ReplyTicket)
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, gateway: gw, bot: bot}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case []byte:
			buf.Write(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err == nil {
		_ = json.Unmarshal(raw, &out)
	}
	return resp, out
}

func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	resp, body := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": email, "password": "secret123"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["token"].(string)
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	resp, body := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return body["token"].(string)
}

func newReading() map[string]interface{} {
	return map[string]interface{}{
		"category": "love",
		"question": "Will it last?",
		"cards":    []map[string]interface{}{{"name": "The Lovers", "reversed": false}},
	}
}

func TestAuth_RegisterLoginMe(t *testing.T) {
	s := newTestServer(t)

	s.register(t, "seeker@example.com")
	token := s.login(t, "seeker@example.com", "secret123")

	resp, me := s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "seeker@example.com", me["email"])
	assert.Equal(t, false, me["isPremium"])

	resp, _ = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "seeker@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/auth/register", "", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuth_GoogleDisabled(t *testing.T) {
	s := newTestServer(t)
	resp, _ := s.do(t, http.MethodGet, "/api/auth/google", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReading_CooldownReturns429(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "free@example.com")

	resp, rd := s.do(t, http.MethodPost, "/api/readings", token, newReading())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Will it last?", rd["question"])

	resp, body := s.do(t, http.MethodPost, "/api/readings", token, newReading())
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, body["error"])

	left, ok := body["timeLeft"].(float64)
	require.True(t, ok)
	assert.Greater(t, left, float64(0))
	assert.LessOrEqual(t, left, float64((5 * time.Minute).Milliseconds()))

	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, secs, 1)

	resp, limits := s.do(t, http.MethodGet, "/api/limits", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64((5 * time.Minute).Milliseconds()), limits["windowMs"])
	assert.Equal(t, false, limits["reading"].(map[string]interface{})["allowed"])
}

func TestReading_DeleteThenCreateStillLimited(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "sneaky@example.com")

	resp, rd := s.do(t, http.MethodPost, "/api/readings", token, newReading())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = s.do(t, http.MethodDelete, "/api/readings/"+rd["id"].(string), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/readings", token, newReading())
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestReading_ChatAndOwnership(t *testing.T) {
	s := newTestServer(t)
	owner := s.register(t, "owner@example.com")
	other := s.register(t, "other@example.com")

	_, rd := s.do(t, http.MethodPost, "/api/readings", owner, newReading())
	id := rd["id"].(string)

	resp, _ := s.do(t, http.MethodGet, "/api/readings/"+id, other, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/readings/"+id+"/messages", other, map[string]string{"content": "hello"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, turn := s.do(t, http.MethodPost, "/api/readings/"+id+"/messages", owner, map[string]string{"content": "What does the Lovers mean?"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "The cards favour patience.", turn["assistantMessage"].(map[string]interface{})["content"])

	resp, _ = s.do(t, http.MethodPost, "/api/readings/"+id+"/messages", owner, map[string]string{"content": "And then?"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp, _ = s.do(t, http.MethodDelete, "/api/readings/"+id, owner, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(t, http.MethodGet, "/api/readings/"+id+"/messages", owner, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReading_AssistantFailureFallsBack(t *testing.T) {
	s := newTestServer(t)
	s.bot.Err = errors.New("upstream down")
	token := s.register(t, "fallback@example.com")

	_, rd := s.do(t, http.MethodPost, "/api/readings", token, newReading())
	resp, turn := s.do(t, http.MethodPost, "/api/readings/"+rd["id"].(string)+"/messages", token, map[string]string{"content": "Hello?"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, service.FallbackReply, turn["assistantMessage"].(map[string]interface{})["content"])
}

func TestPayment_WebhookGrantsPremium(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "buyer@example.com")

	resp, link := s.do(t, http.MethodPost, "/api/payment/checkout", token, map[string]string{"subscriptionType": "monthly"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := link["paymentId"].(string)

	resp, status := s.do(t, http.MethodGet, "/api/payment/"+id+"/status", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending", status["status"])

	hook := map[string]string{"eventId": "evt-1", "paymentId": id, "status": "succeeded"}
	resp, ack := s.do(t, http.MethodPost, "/api/payment/webhook", "", hook)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, ack["received"])

	resp, _ = s.do(t, http.MethodPost, "/api/payment/webhook", "", hook)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "redelivery is acknowledged")

	_, me := s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, true, me["isPremium"])
	assert.NotEmpty(t, me["premiumExpiry"])

	// Premium users are never throttled.
	for i := 0; i < 3; i++ {
		resp, _ = s.do(t, http.MethodPost, "/api/readings", token, newReading())
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	}
}

func TestPayment_InvalidWebhook(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(t, http.MethodPost, "/api/payment/webhook", "", []byte("garbage"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestPayment_InvalidPlan(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "picky@example.com")
	resp, _ := s.do(t, http.MethodPost, "/api/payment/checkout", token, map[string]string{"subscriptionType": "weekly"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAdmin_RoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	user := s.register(t, "plain@example.com")
	admin := s.login(t, adminEmail, adminPassword)

	resp, _ := s.do(t, http.MethodGet, "/api/users", user, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/users", admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdmin_ManageAccounts(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, adminEmail, adminPassword)

	resp, acct := s.do(t, http.MethodPost, "/api/admin/users", admin, map[string]string{"email": "staff@example.com", "password": "secret123"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "user", acct["role"])
	id := acct["id"].(string)

	resp, _ = s.do(t, http.MethodPost, "/api/admin/users", admin, map[string]string{"email": "staff@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/admin/users?premium=maybe", admin, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, me := s.do(t, http.MethodGet, "/api/auth/me", admin, nil)
	resp, _ = s.do(t, http.MethodDelete, "/api/admin/users/"+me["userId"].(string), admin, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "admins cannot delete themselves")

	resp, _ = s.do(t, http.MethodDelete, "/api/admin/users/"+id, admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, http.MethodDelete, "/api/admin/users/"+id, admin, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdmin_ActivatePaymentAndTickets(t *testing.T) {
	s := newTestServer(t)
	user := s.register(t, "stuck@example.com")
	admin := s.login(t, adminEmail, adminPassword)

	_, link := s.do(t, http.MethodPost, "/api/payment/checkout", user, map[string]string{"subscriptionType": "yearly"})
	id := link["paymentId"].(string)

	resp, _ := s.do(t, http.MethodPost, "/api/admin/payments/"+id+"/activate", admin, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode, "unpaid checkout cannot be activated")

	require.NoError(t, s.gateway.SetStatus(id, payment.StatusSucceeded))
	resp, act := s.do(t, http.MethodPost, "/api/admin/payments/"+id+"/activate", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, act["applied"])

	resp, act = s.do(t, http.MethodPost, "/api/admin/payments/"+id+"/activate", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, act["applied"], "second activation is a no-op")

	resp, tk := s.do(t, http.MethodPost, "/api/tickets", user, map[string]string{"subject": "Thanks", "message": "Premium works now"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, replied := s.do(t, http.MethodPost, "/api/admin/tickets/"+tk["id"].(string)+"/reply", admin, map[string]string{"reply": "Enjoy!"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Enjoy!", replied["reply"])
}

type fixedStats struct{}

func (fixedStats) Collect(ctx context.Context) (*domain.Stats, error) {
	return &domain.Stats{Users: 3, PremiumUsers: 1, Readings: 7}, nil
}

func TestAdmin_Stats(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, adminEmail, adminPassword)

	resp, stats := s.do(t, http.MethodGet, "/api/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(7), stats["readings"])
}

type pinger struct{ err error }

func (p pinger) Ping(ctx context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		redis    handler.Pinger
		wantCode int
	}{
		{"db only", nil, http.StatusOK},
		{"redis ok", pinger{}, http.StatusOK},
		{"redis down", pinger{err: errors.New("refused")}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewHealthHandler(pinger{}, tt.redis)
			rr := httptest.NewRecorder()
			h.Check(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.wantCode, rr.Code)
		})
	}
}
