package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tarotdeck/backend/internal/domain"
	"github.com/tarotdeck/backend/pkg/assistant"
)

// UserStore persists users. Implemented by repository.UserRepository.
type UserStore interface {
	Create(ctx context.Context, u *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByGoogleSub(ctx context.Context, sub string) (*domain.User, error)
	LinkGoogleSub(ctx context.Context, id, sub string) error
	Exists(ctx context.Context, email string) (bool, error)
	ListAll(ctx context.Context) ([]*domain.User, error)
	Delete(ctx context.Context, id string) error
	ExpirePremium(ctx context.Context, id string, now time.Time) (bool, error)
	ExpireAllPremium(ctx context.Context, now time.Time) (int64, error)
}

// ReadingStore persists readings and chat messages. Implemented by repository.ReadingRepository.
type ReadingStore interface {
	Create(ctx context.Context, rd *domain.Reading) error
	FindByID(ctx context.Context, id, userID string) (*domain.Reading, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Reading, error)
	Delete(ctx context.Context, id, userID string) (bool, error)
	LatestByUser(ctx context.Context, userID string) (*time.Time, error)
	CreateMessage(ctx context.Context, m *domain.ChatMessage) error
	ListMessages(ctx context.Context, readingID string) ([]*domain.ChatMessage, error)
	LatestUserMessage(ctx context.Context, readingID string) (*time.Time, error)
}

// PaymentStore persists payments. Implemented by repository.PaymentRepository.
type PaymentStore interface {
	Create(ctx context.Context, p *domain.Payment) error
	FindByID(ctx context.Context, id string) (*domain.Payment, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Payment, error)
	ListAll(ctx context.Context) ([]*domain.Payment, error)
	UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus) error
	ApplySucceeded(ctx context.Context, id string, now time.Time) (*domain.Activation, error)
}

// TicketStore persists support tickets. Implemented by repository.TicketRepository.
type TicketStore interface {
	Create(ctx context.Context, t *domain.Ticket) error
	FindByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Ticket, error)
	ListAll(ctx context.Context) ([]*domain.Ticket, error)
	Update(ctx context.Context, t *domain.Ticket) error
}

// StatsStore collects dashboard counts. Implemented by repository.StatsRepository.
type StatsStore interface {
	Collect(ctx context.Context) (*domain.Stats, error)
}

// EventLog remembers processed webhook events. Implemented by the Redis and Postgres stores.
type EventLog interface {
	MarkProcessed(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// Locker is a named, expiring lock shared between instances.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, name string) error
}

// Sealer encrypts user-authored text at rest.
type Sealer interface {
	SealString(s string) (string, error)
	OpenString(stored string) (string, error)
}

// Completer produces assistant replies.
type Completer interface {
	Complete(ctx context.Context, messages []assistant.Message) (string, error)
}

// Clock returns the current time. Tests replace it to move time forward.
type Clock func() time.Time

var validate = validator.New()

func formatValidationErrors(err error) string {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return fe.Field() + " failed on '" + fe.Tag() + "'"
	}
	return err.Error()
}
