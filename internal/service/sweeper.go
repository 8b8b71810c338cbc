package service

import (
	"context"
	"log"
	"time"
)

const sweepLock = "premium-expiry-sweep"

// ExpirySweeper periodically clears lapsed premium flags for users who have not signed in.
type ExpirySweeper struct {
	users    UserStore
	locker   Locker
	interval time.Duration
	now      Clock
}

// NewExpirySweeper creates a sweeper. locker may be nil on single-instance deployments.
func NewExpirySweeper(users UserStore, locker Locker, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{users: users, locker: locker, interval: interval, now: time.Now}
}

// Start begins the sweep loop in a background goroutine.
func (s *ExpirySweeper) Start(ctx context.Context) {
	go func() {
		s.sweep(ctx)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// sweep runs one pass and returns how many users were corrected.
func (s *ExpirySweeper) sweep(ctx context.Context) int64 {
	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx, sweepLock, s.interval/2)
		if err != nil {
			log.Printf("[Sweeper] Lock failed: %v", err)
			return 0
		}
		if !ok {
			return 0
		}
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx), sweepLock); err != nil {
				log.Printf("[Sweeper] Unlock failed: %v", err)
			}
		}()
	}

	n, err := s.users.ExpireAllPremium(ctx, s.now())
	if err != nil {
		log.Printf("[Sweeper] Failed to expire premium: %v", err)
		return 0
	}
	if n > 0 {
		log.Printf("[Sweeper] Expired premium for %d user(s)", n)
	}
	return n
}
