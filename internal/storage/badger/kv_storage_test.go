package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/meridian/internal/common"
	"github.com/ternarybob/meridian/internal/interfaces"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()
	config := &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "badger")}
	db, err := NewBadgerDB(arbor.NewLogger(), config)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestKVStorage_SetAndGet(t *testing.T) {
	kv := NewKVStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "brief:lease:2026-08-30", []byte("payload"), 0))

	value, err := kv.Get(ctx, "brief:lease:2026-08-30")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), value)
}

func TestKVStorage_GetMissingKey(t *testing.T) {
	kv := NewKVStorage(newTestDB(t), arbor.NewLogger())

	_, err := kv.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestKVStorage_SetIfAbsent(t *testing.T) {
	kv := NewKVStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	ok, err := kv.SetIfAbsent(ctx, "key", []byte("first"), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = kv.SetIfAbsent(ctx, "key", []byte("second"), 0)
	require.NoError(t, err)
	assert.False(t, ok)

	value, err := kv.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), value)
}

func TestKVStorage_SetIfAbsentConcurrentSingleWinner(t *testing.T) {
	kv := NewKVStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	// Concurrent transactions on the same key make Badger fail the losing
	// commits with ErrConflict. Losers must report the key as taken, not
	// surface an error.
	const racers = 20
	var wg sync.WaitGroup
	var wins atomic.Int64
	errs := make(chan error, racers)

	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func(n int) {
			defer wg.Done()
			ok, err := kv.SetIfAbsent(ctx, "contested", []byte(fmt.Sprintf("writer-%d", n)), 0)
			if err != nil {
				errs <- err
				return
			}
			if ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), wins.Load())
}

func TestKVStorage_SetIfAbsentAfterDelete(t *testing.T) {
	kv := NewKVStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	ok, err := kv.SetIfAbsent(ctx, "key", []byte("first"), 0)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, kv.Delete(ctx, "key"))

	ok, err = kv.SetIfAbsent(ctx, "key", []byte("second"), 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestKVStorage_DeleteMissingKeyIsNoop(t *testing.T) {
	kv := NewKVStorage(newTestDB(t), arbor.NewLogger())
	assert.NoError(t, kv.Delete(context.Background(), "never-existed"))
}

func TestKVStorage_TTLExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping TTL wait in short mode")
	}

	kv := NewKVStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	// Badger TTLs have one-second granularity.
	require.NoError(t, kv.Set(ctx, "ephemeral", []byte("x"), time.Second))

	_, err := kv.Get(ctx, "ephemeral")
	require.NoError(t, err)

	time.Sleep(1500 * time.Millisecond)

	_, err = kv.Get(ctx, "ephemeral")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	// An expired key no longer blocks SetIfAbsent.
	ok, err := kv.SetIfAbsent(ctx, "ephemeral", []byte("y"), 0)
	require.NoError(t, err)
	assert.True(t, ok)
}
