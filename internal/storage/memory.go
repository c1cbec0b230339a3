package storage

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var _ Backend = (*MemoryBackend)(nil)

type stateWithTTL struct {
	entry StateEntry
	ttl   time.Duration
}

type lockEntry struct {
	owner     uint64
	expiresAt time.Time
}

type MemoryBackend struct {
	// Rate limiting
	limiters  map[string]*rate.Limiter
	limiterMu sync.RWMutex
	rateLimit rate.Limit
	rateBurst int

	// State storage
	states   map[string]stateWithTTL
	statesMu sync.RWMutex

	// Locks
	locks     map[string]lockEntry
	lockSeq   uint64
	locksMu   sync.Mutex
	clockFunc func() time.Time

	// Provider quotas
	quotas   map[string]Quota
	quotasMu sync.RWMutex

	// Cleanup
	done      chan struct{}
	closeOnce sync.Once
}

func NewMemoryBackend(ratePerSec float64, burst int) *MemoryBackend {
	return newMemoryBackend(ratePerSec, burst, time.Now)
}

func newMemoryBackend(ratePerSec float64, burst int, now func() time.Time) *MemoryBackend {
	m := &MemoryBackend{
		limiters:  make(map[string]*rate.Limiter),
		rateLimit: rate.Limit(ratePerSec),
		rateBurst: burst,
		states:    make(map[string]stateWithTTL),
		locks:     make(map[string]lockEntry),
		quotas:    make(map[string]Quota),
		clockFunc: now,
		done:      make(chan struct{}),
	}

	go m.cleanupLoop()

	return m
}

func (m *MemoryBackend) Allow(_ context.Context, key string) (RateLimitResult, error) {
	limiter := m.limiter(key)

	r := limiter.Reserve()
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return RateLimitResult{Allowed: false, RetryAfter: delay}, nil
	}
	return RateLimitResult{Allowed: true}, nil
}

func (m *MemoryBackend) limiter(key string) *rate.Limiter {
	m.limiterMu.RLock()
	limiter, exists := m.limiters[key]
	m.limiterMu.RUnlock()

	if exists {
		return limiter
	}

	m.limiterMu.Lock()
	defer m.limiterMu.Unlock()

	limiter, exists = m.limiters[key]
	if exists {
		return limiter
	}

	limiter = rate.NewLimiter(m.rateLimit, m.rateBurst)
	m.limiters[key] = limiter
	return limiter
}

func (m *MemoryBackend) Set(_ context.Context, state string, entry StateEntry, ttl time.Duration) error {
	m.statesMu.Lock()
	m.states[state] = stateWithTTL{entry: entry, ttl: ttl}
	m.statesMu.Unlock()
	return nil
}

func (m *MemoryBackend) GetAndDelete(_ context.Context, state string) (StateEntry, error) {
	m.statesMu.Lock()
	s, ok := m.states[state]
	if ok {
		delete(m.states, state)
	}
	m.statesMu.Unlock()

	if !ok {
		return StateEntry{}, ErrNotFound
	}

	if time.Since(s.entry.CreatedAt) > s.ttl {
		return StateEntry{}, ErrNotFound
	}

	return s.entry, nil
}

func (m *MemoryBackend) TryLock(_ context.Context, key string, ttl time.Duration) (Unlock, error) {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	now := m.clockFunc()
	if held, ok := m.locks[key]; ok && now.Before(held.expiresAt) {
		return nil, ErrLockTaken
	}

	m.lockSeq++
	owner := m.lockSeq
	m.locks[key] = lockEntry{owner: owner, expiresAt: now.Add(ttl)}

	return func(context.Context) error {
		m.locksMu.Lock()
		defer m.locksMu.Unlock()

		held, ok := m.locks[key]
		if !ok || held.owner != owner {
			return ErrLockExpired
		}
		delete(m.locks, key)
		return nil
	}, nil
}

func (m *MemoryBackend) GetQuota(_ context.Context, key string) (Quota, error) {
	m.quotasMu.RLock()
	q, ok := m.quotas[key]
	m.quotasMu.RUnlock()

	if !ok || !m.clockFunc().Before(q.ResetAt) {
		return Quota{}, ErrNotFound
	}
	return q, nil
}

func (m *MemoryBackend) SetQuota(_ context.Context, key string, quota Quota) error {
	m.quotasMu.Lock()
	m.quotas[key] = quota
	m.quotasMu.Unlock()
	return nil
}

func (m *MemoryBackend) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryBackend) Ping(_ context.Context) error {
	return nil
}

func (m *MemoryBackend) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.purge(m.clockFunc())
		case <-m.done:
			return
		}
	}
}

func (m *MemoryBackend) purge(now time.Time) {
	m.statesMu.Lock()
	for state, s := range m.states {
		if now.Sub(s.entry.CreatedAt) > s.ttl {
			delete(m.states, state)
		}
	}
	m.statesMu.Unlock()

	m.locksMu.Lock()
	for key, l := range m.locks {
		if !now.Before(l.expiresAt) {
			delete(m.locks, key)
		}
	}
	m.locksMu.Unlock()

	m.quotasMu.Lock()
	for key, q := range m.quotas {
		if !now.Before(q.ResetAt) {
			delete(m.quotas, key)
		}
	}
	m.quotasMu.Unlock()
}
