package service

import (
	"context"
	"time"

	"github.com/tarotdeck/backend/internal/domain"
)

// TicketService handles support tickets.
type TicketService struct {
	tickets TicketStore
	now     Clock
}

// NewTicketService creates a new TicketService.
func NewTicketService(tickets TicketStore) *TicketService {
	return &TicketService{tickets: tickets, now: time.Now}
}

// Create files a ticket for the caller.
func (s *TicketService) Create(ctx context.Context, sess *domain.Session, req *domain.CreateTicketRequest) (*domain.Ticket, error) {
	if err := validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}
	subject, message := cleanText(req.Subject), cleanText(req.Message)
	if subject == "" || message == "" {
		return nil, domain.ErrValidation("subject and message must contain text")
	}

	now := s.now()
	t := &domain.Ticket{
		ID:        domain.NewID(),
		UserID:    sess.UserID,
		Subject:   subject,
		Message:   message,
		Status:    domain.TicketOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.tickets.Create(ctx, t); err != nil {
		return nil, domain.ErrInternal("failed to create ticket", err)
	}
	return t, nil
}

// ListMine returns the caller's tickets.
func (s *TicketService) ListMine(ctx context.Context, sess *domain.Session) ([]*domain.Ticket, error) {
	tickets, err := s.tickets.ListByUser(ctx, sess.UserID)
	if err != nil {
		return nil, domain.ErrInternal("failed to list tickets", err)
	}
	return tickets, nil
}

// ListAll returns every ticket (admin only).
func (s *TicketService) ListAll(ctx context.Context) ([]*domain.Ticket, error) {
	tickets, err := s.tickets.ListAll(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to list tickets", err)
	}
	return tickets, nil
}

// Reply answers a ticket (admin only). Closed tickets cannot be answered.
func (s *TicketService) Reply(ctx context.Context, id string, req *domain.ReplyTicketRequest) (*domain.Ticket, error) {
	if err := validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}

	t, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == domain.TicketClosed {
		return nil, domain.ErrBadRequest("ticket is closed")
	}

	reply := cleanText(req.Reply)
	t.Reply = &reply
	t.Status = domain.TicketAnswered
	t.UpdatedAt = s.now()
	if err := s.tickets.Update(ctx, t); err != nil {
		return nil, domain.ErrInternal("failed to update ticket", err)
	}
	return t, nil
}

// Close marks a ticket closed (admin only).
func (s *TicketService) Close(ctx context.Context, id string) (*domain.Ticket, error) {
	t, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == domain.TicketClosed {
		return t, nil
	}

	t.Status = domain.TicketClosed
	t.UpdatedAt = s.now()
	if err := s.tickets.Update(ctx, t); err != nil {
		return nil, domain.ErrInternal("failed to update ticket", err)
	}
	return t, nil
}

func (s *TicketService) find(ctx context.Context, id string) (*domain.Ticket, error) {
	t, err := s.tickets.FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to find ticket", err)
	}
	if t == nil {
		return nil, domain.ErrNotFound("ticket not found")
	}
	return t, nil
}
