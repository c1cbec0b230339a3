package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// NewMemory returns a Repository held in process memory. It keeps the same
// keys and upsert semantics as the Postgres implementation.
func NewMemory() *Repository {
	return &Repository{
		Integrations: &memIntegrations{byID: make(map[string]*wearable.Integration)},
		Recoveries:   &memRecords[wearable.RecoveryRecord]{rows: make(map[recordKey]wearable.RecoveryRecord), key: recoveryKey, less: byDateProvider[wearable.RecoveryRecord](recoveryKey)},
		Sleeps:       &memRecords[wearable.SleepRecord]{rows: make(map[recordKey]wearable.SleepRecord), key: sleepKey, less: byDateProvider[wearable.SleepRecord](sleepKey)},
		Activities:   &memRecords[wearable.ActivityRecord]{rows: make(map[recordKey]wearable.ActivityRecord), key: activityKey, less: byDateProvider[wearable.ActivityRecord](activityKey)},
		SyncStatus:   &memSyncStatus{rows: make(map[syncKey]wearable.SyncStatus)},
		Trainers:     &memTrainers{rows: make(map[[2]string]wearable.TrainerClient)},
	}
}

type memIntegrations struct {
	mu   sync.RWMutex
	byID map[string]*wearable.Integration
}

func (m *memIntegrations) GetActive(_ context.Context, userID string, p wearable.Provider) (*wearable.Integration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, in := range m.byID {
		if in.Active && in.UserID == userID && in.Provider == p {
			cp := *in
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memIntegrations) ListActive(_ context.Context, userID string) ([]wearable.Integration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []wearable.Integration{}
	for _, in := range m.byID {
		if in.Active && in.UserID == userID {
			out = append(out, *in)
		}
	}
	slices.SortFunc(out, func(a, b wearable.Integration) int { return cmp.Compare(a.Provider, b.Provider) })
	return out, nil
}

func (m *memIntegrations) ListActiveUserIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for _, in := range m.byID {
		if in.Active && !slices.Contains(ids, in.UserID) {
			ids = append(ids, in.UserID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *memIntegrations) Replace(_ context.Context, in *wearable.Integration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, prev := range m.byID {
		if prev.Active && prev.UserID == in.UserID && prev.Provider == in.Provider {
			prev.Active = false
		}
	}

	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.ConnectedAt.IsZero() {
		in.ConnectedAt = time.Now()
	}
	in.Active = true

	cp := *in
	m.byID[cp.ID] = &cp
	return nil
}

func (m *memIntegrations) UpdateTokens(_ context.Context, id string, tok *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.byID[id]
	if !ok || !in.Active {
		return ErrNotFound
	}
	in.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		in.RefreshToken = tok.RefreshToken
	}
	in.TokenExpiry = tok.Expiry
	return nil
}

func (m *memIntegrations) Deactivate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if in, ok := m.byID[id]; ok {
		in.Active = false
	}
	return nil
}

func (m *memIntegrations) TouchLastSync(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if in, ok := m.byID[id]; ok {
		in.LastSyncAt = &at
	}
	return nil
}

// recordKey is the natural key of a unified record: the date for recovery
// and sleep, the activity id for activities.
type recordKey struct {
	userID   string
	provider wearable.Provider
	id       string
}

func recoveryKey(r wearable.RecoveryRecord) recordKey {
	return recordKey{r.UserID, r.Provider, r.Date}
}

func sleepKey(r wearable.SleepRecord) recordKey {
	return recordKey{r.UserID, r.Provider, r.Date}
}

func activityKey(r wearable.ActivityRecord) recordKey {
	return recordKey{r.UserID, r.Provider, r.ActivityID}
}

type dated interface {
	wearable.RecoveryRecord | wearable.SleepRecord | wearable.ActivityRecord
}

func recordDate[T dated](rec T) string {
	switch r := any(rec).(type) {
	case wearable.RecoveryRecord:
		return r.Date
	case wearable.SleepRecord:
		return r.Date
	case wearable.ActivityRecord:
		return r.Date
	}
	return ""
}

func byDateProvider[T dated](key func(T) recordKey) func(a, b T) int {
	return func(a, b T) int {
		ka, kb := key(a), key(b)
		return cmp.Or(
			cmp.Compare(recordDate(a), recordDate(b)),
			cmp.Compare(ka.provider, kb.provider),
			cmp.Compare(ka.id, kb.id),
		)
	}
}

type memRecords[T dated] struct {
	mu   sync.RWMutex
	rows map[recordKey]T
	key  func(T) recordKey
	less func(a, b T) int
}

func (m *memRecords[T]) UpsertBatch(_ context.Context, records []T) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range records {
		m.rows[m.key(rec)] = rec
	}
	return nil
}

func (m *memRecords[T]) ListByDateRange(_ context.Context, userID string, r wearable.DateRange) ([]T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start, end := r.StartDate(), r.EndDate()
	out := []T{}
	for k, rec := range m.rows {
		if d := recordDate(rec); k.userID == userID && d >= start && d <= end {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, m.less)
	return out, nil
}

// Len reports how many rows are stored.
func (m *memRecords[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

type syncKey struct {
	userID   string
	provider wearable.Provider
	dataType wearable.DataType
}

type memSyncStatus struct {
	mu   sync.Mutex
	rows map[syncKey]wearable.SyncStatus
}

func (m *memSyncStatus) Get(_ context.Context, userID string, p wearable.Provider, dt wearable.DataType) (*wearable.SyncStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.rows[syncKey{userID, p, dt}]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *memSyncStatus) List(_ context.Context, userID string) ([]wearable.SyncStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []wearable.SyncStatus{}
	for k, s := range m.rows {
		if k.userID == userID {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b wearable.SyncStatus) int {
		return cmp.Or(cmp.Compare(a.Provider, b.Provider), cmp.Compare(a.DataType, b.DataType))
	})
	return out, nil
}

func (m *memSyncStatus) update(userID string, p wearable.Provider, dt wearable.DataType, fn func(*wearable.SyncStatus)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := syncKey{userID, p, dt}
	s, ok := m.rows[k]
	if !ok {
		s = wearable.SyncStatus{UserID: userID, Provider: p, DataType: dt}
	}
	fn(&s)
	m.rows[k] = s
}

func (m *memSyncStatus) MarkStarted(_ context.Context, userID string, p wearable.Provider, dt wearable.DataType, at time.Time) error {
	m.update(userID, p, dt, func(s *wearable.SyncStatus) {
		s.Status = wearable.SyncStarted
		s.LastAttemptAt = &at
	})
	return nil
}

func (m *memSyncStatus) MarkSuccess(_ context.Context, userID string, p wearable.Provider, dt wearable.DataType, at time.Time, count int, highWater time.Time) error {
	m.update(userID, p, dt, func(s *wearable.SyncStatus) {
		s.Status = wearable.SyncSuccess
		if s.LastAttemptAt == nil {
			s.LastAttemptAt = &at
		}
		s.LastSuccessAt = &at
		s.LastError = nil
		s.RecordCount = count
		if s.HighWaterMark == nil || highWater.After(*s.HighWaterMark) {
			s.HighWaterMark = &highWater
		}
		s.RetryAfter = nil
	})
	return nil
}

func (m *memSyncStatus) MarkFailed(_ context.Context, userID string, p wearable.Provider, dt wearable.DataType, f SyncFailure) error {
	m.update(userID, p, dt, func(s *wearable.SyncStatus) {
		s.Status = f.Outcome
		s.LastAttemptAt = &f.At
		s.LastError = &f.Err
		s.RecordCount = 0
		s.RetryAfter = f.RetryAfter
	})
	return nil
}

type memTrainers struct {
	mu   sync.Mutex
	rows map[[2]string]wearable.TrainerClient
}

func (m *memTrainers) Grant(_ context.Context, trainerID, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := [2]string{trainerID, clientID}
	if tc, ok := m.rows[k]; ok && tc.Active {
		return nil
	}
	m.rows[k] = wearable.TrainerClient{TrainerID: trainerID, ClientID: clientID, Active: true, GrantedAt: time.Now()}
	return nil
}

func (m *memTrainers) Revoke(_ context.Context, trainerID, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := [2]string{trainerID, clientID}
	tc, ok := m.rows[k]
	if !ok || !tc.Active {
		return ErrNotFound
	}
	now := time.Now()
	tc.Active = false
	tc.RevokedAt = &now
	m.rows[k] = tc
	return nil
}

func (m *memTrainers) IsActive(_ context.Context, trainerID, clientID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[[2]string{trainerID, clientID}].Active, nil
}

func (m *memTrainers) ListClients(_ context.Context, trainerID string) ([]wearable.TrainerClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []wearable.TrainerClient{}
	for _, tc := range m.rows {
		if tc.TrainerID == trainerID && tc.Active {
			out = append(out, tc)
		}
	}
	slices.SortFunc(out, func(a, b wearable.TrainerClient) int { return a.GrantedAt.Compare(b.GrantedAt) })
	return out, nil
}
