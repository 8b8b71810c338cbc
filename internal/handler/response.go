package handler

import (
	"encoding/json"
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/tarotdeck/backend/internal/contextkeys"
	"github.com/tarotdeck/backend/internal/domain"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("failed to encode JSON response: %v", err)
		}
	}
}

// rateLimitBody is the shape clients use to render a countdown.
type rateLimitBody struct {
	Error    string `json:"error"`
	TimeLeft int64  `json:"timeLeft"` // milliseconds
}

// Error writes an error JSON response, using AppError status codes when available.
// Cooldown rejections carry timeLeft in the body and a Retry-After header in seconds.
func Error(w http.ResponseWriter, err error) {
	appErr, ok := domain.AsAppError(err)
	if !ok {
		log.Printf("unhandled error: %v", err)
		JSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	switch {
	case appErr.Code == http.StatusTooManyRequests:
		WriteRateLimited(w, appErr.Message, appErr.RetryAfter.Milliseconds())
	case appErr.Code >= 500:
		log.Printf("[%d] %v", appErr.Code, appErr)
		JSON(w, appErr.Code, map[string]string{"error": appErr.Message})
	default:
		JSON(w, appErr.Code, map[string]string{"error": appErr.Message})
	}
}

// WriteRateLimited writes a 429 with the remaining wait in milliseconds.
func WriteRateLimited(w http.ResponseWriter, msg string, timeLeftMs int64) {
	secs := int64(math.Ceil(float64(timeLeftMs) / 1000))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	JSON(w, http.StatusTooManyRequests, rateLimitBody{Error: msg, TimeLeft: timeLeftMs})
}

// DecodeJSON decodes a JSON request body into the given struct.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrBadRequest("invalid JSON body")
	}
	return nil
}

// SessionFrom returns the hydrated session stored by the Auth middleware.
func SessionFrom(r *http.Request) (*domain.Session, bool) {
	s, ok := r.Context().Value(contextkeys.Session).(*domain.Session)
	return s, ok && s != nil
}

// requireSession writes a 401 and returns false when no session is present.
func requireSession(w http.ResponseWriter, r *http.Request) (*domain.Session, bool) {
	s, ok := SessionFrom(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return nil, false
	}
	return s, true
}
