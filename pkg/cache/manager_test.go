package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Key     string `json:"key"`
	Summary string `json:"summary"`
}

func newTestManager(t *testing.T, cfg Config) (*Manager, *FileStore) {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return NewManager(store, cfg, zerolog.Nop()), store
}

// failingStore reports errors for every operation.
type failingStore struct{}

func (failingStore) Get(context.Context, CacheKey) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func (failingStore) Set(context.Context, CacheKey, []byte, time.Duration) error {
	return errors.New("disk on fire")
}

func (failingStore) Delete(context.Context, CacheKey) error { return nil }

func (failingStore) Layer() string { return "failing" }

func TestManager_SaveLoad(t *testing.T) {
	m, store := newTestManager(t, DefaultConfig())
	ctx := context.Background()
	key := NewKey("bugs", "project = FPB", []string{"summary"})

	records := []record{{Key: "FPB-1", Summary: "first"}, {Key: "FPB-2", Summary: "second"}}
	saved, err := Save(ctx, m, key, records)
	require.NoError(t, err)
	assert.Equal(t, records, saved.Records)

	// A fresh manager over the same directory only has the file layer.
	fresh := NewManager(store, DefaultConfig(), zerolog.Nop())
	loaded, err := Load[record](ctx, fresh, key)
	require.NoError(t, err)
	assert.Equal(t, records, loaded.Records)
	assert.Equal(t, saved.Timestamp, loaded.Timestamp)
}

func TestManager_LoadMiss(t *testing.T) {
	m, _ := newTestManager(t, DefaultConfig())

	_, err := Load[record](context.Background(), m, NewKey("none", "project = X", nil))
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestManager_LoadStale(t *testing.T) {
	m, store := newTestManager(t, DefaultConfig())
	ctx := context.Background()
	key := NewKey("bugs", "project = FPB", nil)

	old := time.Now().Add(-DefaultWindow).Unix()
	doc := fmt.Sprintf(`{"timestamp": %d, "records": [{"key":"FPB-1","summary":"old"}]}`, old)
	require.NoError(t, store.Set(ctx, key, []byte(doc), 0))

	_, err := Load[record](ctx, m, key)
	assert.ErrorIs(t, err, ErrStale)
}

func TestManager_LoadInvalid(t *testing.T) {
	m, store := newTestManager(t, DefaultConfig())
	ctx := context.Background()
	key := NewKey("bugs", "project = FPB", nil)

	require.NoError(t, store.Set(ctx, key, []byte(`{"timestamp": "invalid type!", "records": []}`), 0))

	_, err := Load[record](ctx, m, key)
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestManager_MemoryLayerServesRepeatLoads(t *testing.T) {
	m, store := newTestManager(t, DefaultConfig())
	ctx := context.Background()
	key := NewKey("bugs", "project = FPB", nil)

	_, err := Save(ctx, m, key, []record{{Key: "FPB-1"}})
	require.NoError(t, err)

	// Remove the file behind the manager's back; memory still has it.
	require.NoError(t, store.Delete(ctx, key))

	loaded, err := Load[record](ctx, m, key)
	require.NoError(t, err)
	assert.Len(t, loaded.Records, 1)

	require.NoError(t, m.Delete(ctx, key))
	_, err = Load[record](ctx, m, key)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestManager_MemoryLayerDisabled(t *testing.T) {
	m, store := newTestManager(t, Config{Window: time.Hour, MemorySize: -1})
	ctx := context.Background()
	key := NewKey("bugs", "project = FPB", nil)

	_, err := Save(ctx, m, key, []record{{Key: "FPB-1"}})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, key))

	_, err = Load[record](ctx, m, key)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestLoadOrSearch(t *testing.T) {
	m, _ := newTestManager(t, DefaultConfig())
	ctx := context.Background()
	key := NewKey("bugs", "project = FPB", nil)

	calls := 0
	search := func(context.Context) ([]record, error) {
		calls++
		return []record{{Key: "FPB-1"}, {Key: "FPB-2"}}, nil
	}

	records, cached, err := LoadOrSearch(ctx, m, key, search)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, records, 2)

	records, cached, err = LoadOrSearch(ctx, m, key, search)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Len(t, records, 2)
	assert.Equal(t, 1, calls)
}

func TestLoadOrSearch_RefreshesStaleEntry(t *testing.T) {
	m, store := newTestManager(t, Config{Window: time.Hour, MemorySize: -1})
	ctx := context.Background()
	key := NewKey("bugs", "project = FPB", nil)

	old := time.Now().Add(-2 * time.Hour).Unix()
	doc := fmt.Sprintf(`{"timestamp": %d, "records": [{"key":"FPB-OLD"}]}`, old)
	require.NoError(t, store.Set(ctx, key, []byte(doc), 0))

	records, cached, err := LoadOrSearch(ctx, m, key, func(context.Context) ([]record, error) {
		return []record{{Key: "FPB-NEW"}}, nil
	})
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, records, 1)
	assert.Equal(t, "FPB-NEW", records[0].Key)

	loaded, err := Load[record](ctx, m, key)
	require.NoError(t, err)
	assert.Equal(t, "FPB-NEW", loaded.Records[0].Key)
}

func TestLoadOrSearch_SearchError(t *testing.T) {
	m, _ := newTestManager(t, DefaultConfig())
	ctx := context.Background()
	key := NewKey("bugs", "project = FPB", nil)
	searchErr := errors.New("first page failed")

	_, _, err := LoadOrSearch(ctx, m, key, func(context.Context) ([]record, error) {
		return nil, searchErr
	})
	assert.ErrorIs(t, err, searchErr)

	_, err = Load[record](ctx, m, key)
	assert.ErrorIs(t, err, ErrCacheMiss, "failed search must not be cached")
}

func TestLoadOrSearch_StoreFailureStillSearches(t *testing.T) {
	m := NewManager(failingStore{}, Config{Window: time.Hour, MemorySize: -1}, zerolog.Nop())

	records, cached, err := LoadOrSearch(context.Background(), m, NewKey("", "project = FPB", nil),
		func(context.Context) ([]record, error) {
			return []record{{Key: "FPB-1"}}, nil
		})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, records, 1)
}

func TestNewManager_Panic(t *testing.T) {
	assert.Panics(t, func() { NewManager(nil, DefaultConfig(), zerolog.Nop()) })
}
