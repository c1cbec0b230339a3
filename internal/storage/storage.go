package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("state not found")
	ErrLockTaken   = errors.New("lock held by another owner")
	ErrLockExpired = errors.New("lock expired before release")
)

type RateLimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
}

type RateLimiter interface {
	Allow(ctx context.Context, key string) (RateLimitResult, error)
}

// StateEntry is what the server remembers between sending a user to a vendor's
// consent page and receiving the callback.
type StateEntry struct {
	UserID    string    `json:"user_id"`
	Provider  string    `json:"provider"`
	Verifier  string    `json:"verifier,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type StateStore interface {
	Set(ctx context.Context, state string, entry StateEntry, ttl time.Duration) error

	// GetAndDelete atomically retrieves and removes a state entry.
	// Returns ErrNotFound if the state does not exist or has expired.
	GetAndDelete(ctx context.Context, state string) (StateEntry, error)
}

// Locker provides short-lived mutual exclusion across every process sharing
// the backend.
type Locker interface {
	// TryLock acquires key for ttl. Returns ErrLockTaken if someone else holds it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (Unlock, error)
}

type Unlock func(ctx context.Context) error

// Quota is a provider's request budget as last reported in response headers.
type Quota struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

func (q Quota) Exhausted(now time.Time) bool {
	return q.Remaining <= 0 && now.Before(q.ResetAt)
}

type QuotaStore interface {
	// GetQuota returns ErrNotFound if nothing is known or the window has reset.
	GetQuota(ctx context.Context, key string) (Quota, error)
	SetQuota(ctx context.Context, key string, quota Quota) error
}

type Backend interface {
	RateLimiter
	StateStore
	Locker
	QuotaStore

	Close() error

	Ping(ctx context.Context) error
}

// Lock blocks until key is acquired, polling every interval, or ctx ends.
func Lock(ctx context.Context, locker Locker, key string, ttl, interval time.Duration) (Unlock, error) {
	for {
		unlock, err := locker.TryLock(ctx, key, ttl)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, ErrLockTaken) {
			return nil, err
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
