package dlq

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "dlq_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecorderRecord(t *testing.T) {
	store := NewMemoryStore()
	recorder := NewRecorder(store, nil)
	ctx := context.Background()

	err := recorder.Record(ctx, []byte(`{"event":"x"}`), 3, errors.New("HTTP 503: unavailable"), "http://agent/webhooks")
	require.NoError(t, err)

	entries, err := recorder.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, []byte(`{"event":"x"}`), entry.Payload)
	assert.Equal(t, 3, entry.Attempts)
	assert.Equal(t, "HTTP 503: unavailable", entry.LastError)
	assert.Equal(t, "http://agent/webhooks", entry.Endpoint)
	assert.True(t, entry.RequiresManualReview)
	assert.False(t, entry.RecordedAt.IsZero())
}

func TestRecorderDuplicatesAreTolerated(t *testing.T) {
	recorder := NewRecorder(NewMemoryStore(), nil)
	ctx := context.Background()
	cause := errors.New("exhausted")

	require.NoError(t, recorder.Record(ctx, []byte("p"), 3, cause, "ep"))
	require.NoError(t, recorder.Record(ctx, []byte("p"), 3, cause, "ep"))

	stats, err := recorder.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalEntries)
}

type failingStore struct{ MemoryStore }

func (f *failingStore) Insert(ctx context.Context, entry *Entry) error {
	return errors.New("disk full")
}

func TestRecorderStoreFailureIsSurfacedNotPanicked(t *testing.T) {
	recorder := NewRecorder(&failingStore{}, nil)

	err := recorder.Record(context.Background(), []byte("p"), 3, errors.New("original"), "ep")
	assert.EqualError(t, err, "disk full")
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := newSQLiteStore(t)
	recorder := NewRecorder(store, nil)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, recorder.Record(ctx, []byte{byte(i)}, i, errors.New("boom"), "http://agent"))
	}

	t.Run("list newest first", func(t *testing.T) {
		entries, err := store.List(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, 3, entries[0].Attempts)
		assert.True(t, entries[0].RequiresManualReview)
	})

	t.Run("pagination", func(t *testing.T) {
		entries, err := store.List(ctx, 2, 0)
		require.NoError(t, err)
		assert.Len(t, entries, 2)

		rest, err := store.List(ctx, 2, 2)
		require.NoError(t, err)
		assert.Len(t, rest, 1)
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.TotalEntries)
		require.NotNil(t, stats.OldestEntry)
		require.NotNil(t, stats.NewestEntry)
		assert.False(t, stats.NewestEntry.Before(*stats.OldestEntry))
	})
}

func TestSQLiteStoreEmptyStats(t *testing.T) {
	store := newSQLiteStore(t)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEntries)
	assert.Nil(t, stats.OldestEntry)
	assert.Nil(t, stats.NewestEntry)
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	_, err := NewSQLiteStore("")
	assert.Error(t, err)
}
