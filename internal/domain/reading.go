package domain

import (
	"encoding/json"
	"time"
)

// Reading is one complete card-draw session. Chat messages and cooldowns are scoped to it.
type Reading struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Category  string          `json:"category"`
	Question  string          `json:"question"`
	Cards     json.RawMessage `json:"cards"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ChatMessage is one side of a chat turn about a reading.
type ChatMessage struct {
	ID        string    `json:"id"`
	ReadingID string    `json:"readingId"`
	IsUser    bool      `json:"isUser"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateReadingRequest is the validated input for creating a reading.
type CreateReadingRequest struct {
	Category string          `json:"category" validate:"required,min=1,max=50"`
	Question string          `json:"question" validate:"required,min=1,max=1000"`
	Cards    json.RawMessage `json:"cards" validate:"required"`
}

// SendMessageRequest is the validated input for one chat turn.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,min=1,max=2000"`
}

// ReadingDetail is a reading together with its chat history.
type ReadingDetail struct {
	*Reading
	Messages []*ChatMessage `json:"messages"`
}

// ChatTurn is the pair of messages produced by one successful send.
type ChatTurn struct {
	UserMessage      *ChatMessage `json:"userMessage"`
	AssistantMessage *ChatMessage `json:"assistantMessage"`
}
