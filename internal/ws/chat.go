package ws

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/tarotdeck/backend/internal/domain"
	"github.com/tarotdeck/backend/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxFrame   = 8 << 10
)

// SessionSource verifies tokens and hydrates sessions. Implemented by service.AuthService.
type SessionSource interface {
	VerifyToken(token string) (*domain.JWTClaims, error)
	Hydrate(ctx context.Context, userID string) (*domain.Session, error)
}

// Frame types sent to the client.
const (
	FrameReady = "ready"
	FrameTurn  = "turn"
	FrameError = "error"
)

// inbound is a chat message from the client.
type inbound struct {
	Content string `json:"content"`
}

// Frame is a message to the client.
type Frame struct {
	Type             string                 `json:"type"`
	Limits           *domain.LimitsResponse `json:"limits,omitempty"`
	UserMessage      *domain.ChatMessage    `json:"userMessage,omitempty"`
	AssistantMessage *domain.ChatMessage    `json:"assistantMessage,omitempty"`
	Error            string                 `json:"error,omitempty"`
	TimeLeft         int64                  `json:"timeLeft,omitempty"` // milliseconds
}

// ChatHandler serves reading chat over a WebSocket. Every message goes through the same
// ReadingService path as the REST endpoint, so cooldowns and ownership apply unchanged.
type ChatHandler struct {
	sessions SessionSource
	readings *service.ReadingService
	upgrader websocket.Upgrader
}

// NewChatHandler creates a new ChatHandler. Browser origins outside allowedOrigins are refused.
func NewChatHandler(sessions SessionSource, readings *service.ReadingService, allowedOrigins []string) *ChatHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = true
	}

	return &ChatHandler{
		sessions: sessions,
		readings: readings,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowed["*"] {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return allowed[u.Scheme+"://"+u.Host]
			},
		},
	}
}

// Handle upgrades HTTP to WebSocket for one reading.
// URL: /api/readings/{id}/chat?token=JWT_TOKEN
func (h *ChatHandler) Handle(w http.ResponseWriter, r *http.Request) {
	readingID := chi.URLParam(r, "id")

	// Authenticate via query param token, or Authorization header
	token := r.URL.Query().Get("token")
	if token == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if token == "" {
		http.Error(w, "token required", http.StatusUnauthorized)
		return
	}

	claims, err := h.sessions.VerifyToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	sess, err := h.sessions.Hydrate(r.Context(), claims.Sub)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// Verify ownership before upgrading
	limits, err := h.readings.Limits(r.Context(), sess, readingID)
	if err != nil {
		if appErr, ok := domain.AsAppError(err); ok {
			http.Error(w, appErr.Message, appErr.Code)
			return
		}
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("🔌 Chat connected to reading %s (user: %s)", readingID, sess.Email)

	conn.SetReadLimit(maxFrame)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go keepAlive(conn, done)

	if err := writeFrame(conn, Frame{Type: FrameReady, Limits: limits}); err != nil {
		return
	}

	for {
		var in inbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Chat] read error on reading %s: %v", readingID, err)
			}
			return
		}

		// Premium may lapse or be granted while the socket is open.
		sess, err = h.sessions.Hydrate(r.Context(), claims.Sub)
		if err != nil {
			writeFrame(conn, Frame{Type: FrameError, Error: "unauthorized"})
			return
		}

		turn, err := h.readings.SendMessage(r.Context(), sess, readingID, &domain.SendMessageRequest{Content: in.Content})
		if err != nil {
			if werr := writeFrame(conn, errorFrame(err)); werr != nil {
				return
			}
			continue
		}

		if err := writeFrame(conn, Frame{Type: FrameTurn, UserMessage: turn.UserMessage, AssistantMessage: turn.AssistantMessage}); err != nil {
			return
		}
	}
}

func errorFrame(err error) Frame {
	appErr, ok := domain.AsAppError(err)
	if !ok {
		log.Printf("[Chat] unhandled error: %v", err)
		return Frame{Type: FrameError, Error: "internal server error"}
	}
	f := Frame{Type: FrameError, Error: appErr.Message}
	if appErr.Code == http.StatusTooManyRequests {
		f.TimeLeft = appErr.RetryAfter.Milliseconds()
	}
	return f
}

func writeFrame(conn *websocket.Conn, f Frame) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(f)
}

func keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
