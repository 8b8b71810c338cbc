package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tarotdeck/backend/internal/domain"
	"github.com/tarotdeck/backend/pkg/assistant"
)

// FallbackReply is stored when the assistant cannot answer.
const FallbackReply = "The cards are quiet right now. Please try asking again in a little while."

// historyTurns caps how many earlier messages are sent to the assistant.
const historyTurns = 20

const systemPrompt = `You are a warm, thoughtful tarot reader. Interpret the cards drawn for the
querent in the context of their question and category. Be specific to the cards, avoid medical,
legal or financial advice, and keep answers under 200 words.`

// SendMessage stores the caller's message and the assistant's reply for one of their readings.
// The user message is kept even when the assistant fails; the reply then falls back to FallbackReply.
func (s *ReadingService) SendMessage(ctx context.Context, sess *domain.Session, readingID string, req *domain.SendMessageRequest) (*domain.ChatTurn, error) {
	if err := validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}
	content := cleanText(req.Content)
	if content == "" {
		return nil, domain.ErrValidation("content must contain text")
	}

	rd, err := s.owned(ctx, sess, readingID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	last, err := s.readings.LatestUserMessage(ctx, rd.ID)
	if err != nil {
		return nil, domain.ErrInternal("failed to check message limit", err)
	}
	if st := s.cooldown.Check(sess, now, last); !st.Allowed {
		return nil, domain.ErrRateLimited("please wait before sending another message", st.TimeLeft)
	}

	userMsg := &domain.ChatMessage{
		ID:        domain.NewID(),
		ReadingID: rd.ID,
		IsUser:    true,
		Content:   content,
		CreatedAt: now,
	}
	if err := s.readings.CreateMessage(ctx, userMsg); err != nil {
		return nil, domain.ErrInternal("failed to store message", err)
	}

	// The turn completes even if the client goes away mid-request.
	ctx = context.WithoutCancel(ctx)

	history, err := s.readings.ListMessages(ctx, rd.ID)
	if err != nil {
		log.Printf("[Chat] Failed to load history for %s: %v", rd.ID, err)
		history = []*domain.ChatMessage{userMsg}
	}

	reply, err := s.assistant.Complete(ctx, buildPrompt(rd, history))
	if err != nil {
		log.Printf("[Chat] Assistant failed for reading %s: %v", rd.ID, err)
		reply = FallbackReply
	}

	replyAt := s.now()
	if !replyAt.After(now) {
		replyAt = now.Add(time.Millisecond)
	}
	botMsg := &domain.ChatMessage{
		ID:        domain.NewID(),
		ReadingID: rd.ID,
		IsUser:    false,
		Content:   reply,
		CreatedAt: replyAt,
	}
	if err := s.readings.CreateMessage(ctx, botMsg); err != nil {
		return nil, domain.ErrInternal("failed to store reply", err)
	}

	return &domain.ChatTurn{UserMessage: userMsg, AssistantMessage: botMsg}, nil
}

func buildPrompt(rd *domain.Reading, history []*domain.ChatMessage) []assistant.Message {
	msgs := []assistant.Message{
		{Role: assistant.RoleSystem, Content: systemPrompt},
		{Role: assistant.RoleSystem, Content: fmt.Sprintf(
			"Category: %s\nQuestion: %s\nCards drawn (JSON): %s", rd.Category, rd.Question, string(rd.Cards),
		)},
	}

	if len(history) > historyTurns {
		history = history[len(history)-historyTurns:]
	}
	for _, m := range history {
		role := assistant.RoleAssistant
		if m.IsUser {
			role = assistant.RoleUser
		}
		msgs = append(msgs, assistant.Message{Role: role, Content: m.Content})
	}
	return msgs
}
