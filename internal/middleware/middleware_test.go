package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarotdeck/backend/internal/domain"
	"github.com/tarotdeck/backend/internal/handler"
)

type stubSessions struct {
	sessions map[string]*domain.Session
}

func (s *stubSessions) VerifyToken(token string) (*domain.JWTClaims, error) {
	if _, ok := s.sessions[token]; !ok {
		return nil, errors.New("bad token")
	}
	return &domain.JWTClaims{Sub: token}, nil
}

func (s *stubSessions) Hydrate(ctx context.Context, userID string) (*domain.Session, error) {
	sess, ok := s.sessions[userID]
	if !ok || sess == nil {
		return nil, domain.ErrUnauthorized("account no longer exists")
	}
	return sess, nil
}

func echoSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := handler.SessionFrom(r)
	if !ok {
		w.WriteHeader(http.StatusTeapot)
		return
	}
	handler.JSON(w, http.StatusOK, sess)
}

func TestAuth(t *testing.T) {
	src := &stubSessions{sessions: map[string]*domain.Session{
		"alice": {UserID: "alice", Role: domain.RoleUser, IsPremium: true},
		"ghost": nil,
	}}
	h := Auth(src)(http.HandlerFunc(echoSession))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "Token alice", http.StatusUnauthorized},
		{"bad token", "Bearer nobody", http.StatusUnauthorized},
		{"deleted account", "Bearer ghost", http.StatusUnauthorized},
		{"ok", "Bearer alice", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer alice")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var got domain.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "alice", got.UserID)
	assert.True(t, got.IsPremium)
}

func TestAdminOnly(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := AdminOnly(ok)

	for role, want := range map[string]int{domain.RoleAdmin: http.StatusNoContent, domain.RoleUser: http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithSession(req.Context(), &domain.Session{UserID: "x", Role: role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	defer rl.Close()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))
	hit := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-IP", ip)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, hit("1.1.1.1").Code)
	assert.Equal(t, http.StatusOK, hit("1.1.1.1").Code)

	rec := hit("1.1.1.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	var body struct {
		Error    string `json:"error"`
		TimeLeft int64  `json:"timeLeft"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1000), body.TimeLeft)

	assert.Equal(t, http.StatusOK, hit("2.2.2.2").Code, "other clients are unaffected")

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, hit("1.1.1.1").Code)

	now = now.Add(10 * time.Minute)
	rl.evict(3 * time.Minute)
	assert.Empty(t, rl.visitors)
}

func TestExtractClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", extractClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", extractClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", extractClientIP(req))
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
