package service

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/tarotdeck/backend/internal/domain"
)

// ReadingService creates readings and chat turns behind the free-tier cooldown.
type ReadingService struct {
	readings  ReadingStore
	sealer    Sealer
	assistant Completer
	cooldown  domain.Cooldown
	now       Clock
}

// NewReadingService creates a new ReadingService.
func NewReadingService(readings ReadingStore, sealer Sealer, assistant Completer, window time.Duration) *ReadingService {
	return &ReadingService{
		readings:  readings,
		sealer:    sealer,
		assistant: assistant,
		cooldown:  domain.Cooldown{Window: window},
		now:       time.Now,
	}
}

// Window is the authoritative cooldown applied to free users.
func (s *ReadingService) Window() time.Duration {
	return s.cooldown.Window
}

// Create stores a new reading if the caller is not cooling down.
func (s *ReadingService) Create(ctx context.Context, sess *domain.Session, req *domain.CreateReadingRequest) (*domain.Reading, error) {
	if err := validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}

	category := cleanText(req.Category)
	question := cleanText(req.Question)
	if category == "" || question == "" {
		return nil, domain.ErrValidation("category and question must contain text")
	}
	if !isJSONArray(req.Cards) {
		return nil, domain.ErrValidation("cards must be a JSON array")
	}

	now := s.now()
	last, err := s.readings.LatestByUser(ctx, sess.UserID)
	if err != nil {
		return nil, domain.ErrInternal("failed to check reading limit", err)
	}
	if st := s.cooldown.Check(sess, now, last); !st.Allowed {
		return nil, domain.ErrRateLimited("please wait before starting another reading", st.TimeLeft)
	}

	sealed, err := s.sealer.SealString(question)
	if err != nil {
		return nil, domain.ErrInternal("failed to seal question", err)
	}

	rd := &domain.Reading{
		ID:        domain.NewID(),
		UserID:    sess.UserID,
		Category:  category,
		Question:  sealed,
		Cards:     req.Cards,
		CreatedAt: now,
	}
	if err := s.readings.Create(ctx, rd); err != nil {
		return nil, domain.ErrInternal("failed to create reading", err)
	}

	rd.Question = question
	return rd, nil
}

// List returns the caller's readings, newest first.
func (s *ReadingService) List(ctx context.Context, sess *domain.Session) ([]*domain.Reading, error) {
	readings, err := s.readings.ListByUser(ctx, sess.UserID)
	if err != nil {
		return nil, domain.ErrInternal("failed to list readings", err)
	}
	for _, rd := range readings {
		if err := s.open(rd); err != nil {
			return nil, err
		}
	}
	return readings, nil
}

// Get returns one of the caller's readings with its chat history.
func (s *ReadingService) Get(ctx context.Context, sess *domain.Session, id string) (*domain.ReadingDetail, error) {
	rd, err := s.owned(ctx, sess, id)
	if err != nil {
		return nil, err
	}

	messages, err := s.readings.ListMessages(ctx, rd.ID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load messages", err)
	}
	return &domain.ReadingDetail{Reading: rd, Messages: messages}, nil
}

// Delete removes one of the caller's readings and its messages.
func (s *ReadingService) Delete(ctx context.Context, sess *domain.Session, id string) error {
	deleted, err := s.readings.Delete(ctx, id, sess.UserID)
	if err != nil {
		return domain.ErrInternal("failed to delete reading", err)
	}
	if !deleted {
		return domain.ErrNotFound("reading not found")
	}
	return nil
}

// Limits reports the caller's cooldowns. readingID is optional and adds the message limit.
func (s *ReadingService) Limits(ctx context.Context, sess *domain.Session, readingID string) (*domain.LimitsResponse, error) {
	now := s.now()

	last, err := s.readings.LatestByUser(ctx, sess.UserID)
	if err != nil {
		return nil, domain.ErrInternal("failed to check reading limit", err)
	}

	resp := &domain.LimitsResponse{
		WindowMs:  s.cooldown.Window.Milliseconds(),
		IsPremium: sess.PremiumAt(now),
		Reading:   s.cooldown.Check(sess, now, last).View(),
	}

	if readingID != "" {
		rd, err := s.readings.FindByID(ctx, readingID, sess.UserID)
		if err != nil {
			return nil, domain.ErrInternal("failed to find reading", err)
		}
		if rd == nil {
			return nil, domain.ErrNotFound("reading not found")
		}
		lastMsg, err := s.readings.LatestUserMessage(ctx, rd.ID)
		if err != nil {
			return nil, domain.ErrInternal("failed to check message limit", err)
		}
		view := s.cooldown.Check(sess, now, lastMsg).View()
		resp.Message = &view
	}
	return resp, nil
}

// owned loads a reading of the caller. Foreign and missing readings are both 404.
func (s *ReadingService) owned(ctx context.Context, sess *domain.Session, id string) (*domain.Reading, error) {
	rd, err := s.readings.FindByID(ctx, id, sess.UserID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find reading", err)
	}
	if rd == nil {
		return nil, domain.ErrNotFound("reading not found")
	}
	if err := s.open(rd); err != nil {
		return nil, err
	}
	return rd, nil
}

func (s *ReadingService) open(rd *domain.Reading) error {
	q, err := s.sealer.OpenString(rd.Question)
	if err != nil {
		return domain.ErrInternal("failed to open question", err)
	}
	rd.Question = q
	return nil
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '[' && json.Valid(trimmed)
}
