package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/meridian/internal/interfaces"
	"github.com/ternarybob/meridian/internal/models"
)

// memStore is an in-memory KeyValueStore with TTL support for tests.
type memStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	failAll bool
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]memEntry)}
}

func (s *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, fmt.Errorf("store unavailable")
	}
	entry, ok := s.entries[key]
	if !ok || (!entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt)) {
		return nil, interfaces.ErrKeyNotFound
	}
	return entry.value, nil
}

func (s *memStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return fmt.Errorf("store unavailable")
	}
	s.entries[key] = s.entry(value, ttl)
	return nil
}

func (s *memStore) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return false, fmt.Errorf("store unavailable")
	}
	if entry, ok := s.entries[key]; ok && (entry.expiresAt.IsZero() || time.Now().Before(entry.expiresAt)) {
		return false, nil
	}
	s.entries[key] = s.entry(value, ttl)
	return true, nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return fmt.Errorf("store unavailable")
	}
	delete(s.entries, key)
	return nil
}

func (s *memStore) entry(value []byte, ttl time.Duration) memEntry {
	e := memEntry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	return e
}

var _ interfaces.KeyValueStore = (*memStore)(nil)

func newTestLeaseManager(store interfaces.KeyValueStore) *LeaseManager {
	return NewLeaseManager(store, createTestLogger(), 10*time.Minute, time.Hour)
}

func testReport() models.Report {
	return models.Report{
		Content: "DAILY BRIEF",
		Provenance: models.Provenance{
			RunID:    "run-1",
			Provider: "gemini",
			Model:    "gemini-3-flash-preview",
		},
	}
}

func TestLeaseManager_StatusNoneWhenEmpty(t *testing.T) {
	m := newTestLeaseManager(newMemStore())
	assert.Equal(t, LeaseStateNone, m.Status(context.Background(), "2026-08-30"))
}

func TestLeaseManager_AcquireThenPending(t *testing.T) {
	m := newTestLeaseManager(newMemStore())
	ctx := context.Background()

	require.True(t, m.Acquire(ctx, "2026-08-30"))
	assert.Equal(t, LeaseStatePending, m.Status(ctx, "2026-08-30"))

	// Second acquire for the same day loses.
	assert.False(t, m.Acquire(ctx, "2026-08-30"))

	// Other days are unaffected.
	assert.True(t, m.Acquire(ctx, "2026-08-31"))
}

func TestLeaseManager_ConcurrentAcquireSingleWinner(t *testing.T) {
	m := newTestLeaseManager(newMemStore())
	ctx := context.Background()

	const callers = 20
	var wg sync.WaitGroup
	wins := make(chan bool, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- m.Acquire(ctx, "2026-08-30")
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for w := range wins {
		if w {
			won++
		}
	}
	assert.Equal(t, 1, won)
}

func TestLeaseManager_CompleteStoresResult(t *testing.T) {
	m := newTestLeaseManager(newMemStore())
	ctx := context.Background()

	require.True(t, m.Acquire(ctx, "2026-08-30"))
	require.NoError(t, m.Complete(ctx, "2026-08-30", testReport()))

	assert.Equal(t, LeaseStateCompleted, m.Status(ctx, "2026-08-30"))

	rec, ok := m.Result(ctx, "2026-08-30")
	require.True(t, ok)
	assert.Equal(t, "DAILY BRIEF", rec.Report.Content)
	assert.Equal(t, "run-1", rec.Report.Provenance.RunID)
}

func TestLeaseManager_ResultAbsentBeforeComplete(t *testing.T) {
	m := newTestLeaseManager(newMemStore())
	ctx := context.Background()

	_, ok := m.Result(ctx, "2026-08-30")
	assert.False(t, ok)

	require.True(t, m.Acquire(ctx, "2026-08-30"))
	_, ok = m.Result(ctx, "2026-08-30")
	assert.False(t, ok)
}

func TestLeaseManager_ReleaseOnFailureAllowsRetry(t *testing.T) {
	m := newTestLeaseManager(newMemStore())
	ctx := context.Background()

	require.True(t, m.Acquire(ctx, "2026-08-30"))
	m.ReleaseOnFailure(ctx, "2026-08-30")

	assert.Equal(t, LeaseStateNone, m.Status(ctx, "2026-08-30"))
	assert.True(t, m.Acquire(ctx, "2026-08-30"))
}

func TestLeaseManager_ForceRefreshOverridesExisting(t *testing.T) {
	m := newTestLeaseManager(newMemStore())
	ctx := context.Background()

	require.True(t, m.Acquire(ctx, "2026-08-30"))
	require.NoError(t, m.Complete(ctx, "2026-08-30", testReport()))

	assert.True(t, m.ForceRefresh(ctx, "2026-08-30"))
	assert.Equal(t, LeaseStatePending, m.Status(ctx, "2026-08-30"))
}

func TestLeaseManager_ForceRefreshOverridesPending(t *testing.T) {
	m := newTestLeaseManager(newMemStore())
	ctx := context.Background()

	// A pending lease held by another run yields to a forced refresh.
	require.True(t, m.Acquire(ctx, "2026-08-30"))
	require.Equal(t, LeaseStatePending, m.Status(ctx, "2026-08-30"))

	assert.True(t, m.ForceRefresh(ctx, "2026-08-30"))
	assert.Equal(t, LeaseStatePending, m.Status(ctx, "2026-08-30"))
}

func TestLeaseManager_FailOpenOnStoreErrors(t *testing.T) {
	store := newMemStore()
	store.failAll = true
	m := newTestLeaseManager(store)
	ctx := context.Background()

	// A broken cache must not block generation.
	assert.True(t, m.Acquire(ctx, "2026-08-30"))
	assert.Equal(t, LeaseStateNone, m.Status(ctx, "2026-08-30"))

	_, ok := m.Result(ctx, "2026-08-30")
	assert.False(t, ok)
}

func TestLeaseManager_CorruptRecordTreatedAsNone(t *testing.T) {
	store := newMemStore()
	m := newTestLeaseManager(store)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "brief:lease:2026-08-30", []byte("not json"), 0))
	assert.Equal(t, LeaseStateNone, m.Status(ctx, "2026-08-30"))
}
