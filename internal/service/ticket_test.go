package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarotdeck/backend/internal/domain"
	"github.com/tarotdeck/backend/internal/service/servicetest"
)

func TestTicket_Lifecycle(t *testing.T) {
	svc := NewTicketService(servicetest.NewTickets())
	ctx := context.Background()
	sess := freeSession("u1")

	tk, err := svc.Create(ctx, sess, &domain.CreateTicketRequest{Subject: "Billing <i>issue</i>", Message: "I was charged twice"})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketOpen, tk.Status)
	assert.Equal(t, "Billing issue", tk.Subject)

	mine, err := svc.ListMine(ctx, sess)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	others, err := svc.ListMine(ctx, freeSession("u2"))
	require.NoError(t, err)
	assert.Empty(t, others)

	replied, err := svc.Reply(ctx, tk.ID, &domain.ReplyTicketRequest{Reply: "Refunded, sorry!"})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketAnswered, replied.Status)
	require.NotNil(t, replied.Reply)
	assert.Equal(t, "Refunded, sorry!", *replied.Reply)

	closed, err := svc.Close(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketClosed, closed.Status)

	_, err = svc.Reply(ctx, tk.ID, &domain.ReplyTicketRequest{Reply: "late"})
	requireAppCode(t, err, 400)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTicket_Errors(t *testing.T) {
	svc := NewTicketService(servicetest.NewTickets())
	ctx := context.Background()

	_, err := svc.Create(ctx, freeSession("u1"), &domain.CreateTicketRequest{Subject: "x", Message: "y"})
	requireAppCode(t, err, 422)

	_, err = svc.Close(ctx, "missing")
	requireAppCode(t, err, 404)
}

func TestSweeper_ExpiresLapsedUsers(t *testing.T) {
	users := servicetest.NewUsers()
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	users.Put(&domain.User{ID: "lapsed", IsPremium: true, PremiumExpiry: ptr(now.Add(-time.Hour))})
	users.Put(&domain.User{ID: "active", IsPremium: true, PremiumExpiry: ptr(now.Add(time.Hour))})
	users.Put(&domain.User{ID: "free"})

	locker := servicetest.NewLocker()
	sw := NewExpirySweeper(users, locker, time.Minute)
	sw.now = func() time.Time { return now }

	assert.EqualValues(t, 1, sw.sweep(context.Background()))
	assert.False(t, users.Get("lapsed").IsPremium)
	assert.True(t, users.Get("active").IsPremium)
	assert.False(t, locker.Held(sweepLock), "lock released after sweep")

	// Another instance holding the lock skips the pass.
	locker.Hold(sweepLock)
	users.Put(&domain.User{ID: "lapsed2", IsPremium: true, PremiumExpiry: ptr(now.Add(-time.Hour))})
	assert.EqualValues(t, 0, sw.sweep(context.Background()))
	assert.True(t, users.Get("lapsed2").IsPremium)
}

func TestSweeper_WithoutLocker(t *testing.T) {
	users := servicetest.NewUsers()
	now := time.Now()
	users.Put(&domain.User{ID: "lapsed", IsPremium: true, PremiumExpiry: ptr(now.Add(-time.Minute))})

	sw := NewExpirySweeper(users, nil, time.Minute)
	assert.EqualValues(t, 1, sw.sweep(context.Background()))
}
