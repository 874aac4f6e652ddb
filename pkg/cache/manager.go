package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrStale indicates the entry is older than the freshness window
	ErrStale = errors.New("cache entry is stale")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Config holds the cache manager configuration.
type Config struct {
	// Window is how long entries stay fresh.
	Window time.Duration

	// MemorySize is the number of entries kept in the in-memory layer.
	// A negative value disables it.
	MemorySize int
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		Window:     DefaultWindow,
		MemorySize: 64,
	}
}

// Manager layers an in-memory LRU over a backing Store.
type Manager struct {
	store  Store
	memory *expirable.LRU[string, []byte]
	window time.Duration
	logger zerolog.Logger
}

// NewManager creates a cache manager over store.
func NewManager(store Store, cfg Config, logger zerolog.Logger) *Manager {
	if store == nil {
		panic("cache store cannot be nil")
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MemorySize == 0 {
		cfg.MemorySize = DefaultConfig().MemorySize
	}

	m := &Manager{
		store:  store,
		window: cfg.Window,
		logger: logger,
	}
	if cfg.MemorySize > 0 {
		m.memory = expirable.NewLRU[string, []byte](cfg.MemorySize, nil, cfg.Window)
	}
	return m
}

// Window returns the freshness window.
func (m *Manager) Window() time.Duration {
	return m.window
}

// get returns the encoded entry and the layer it came from.
func (m *Manager) get(ctx context.Context, key CacheKey) ([]byte, string, error) {
	if m.memory != nil {
		if data, ok := m.memory.Get(key.String()); ok {
			return data, "memory", nil
		}
	}

	data, err := m.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			CacheErrors.WithLabelValues("get").Inc()
		}
		return nil, "", err
	}
	if m.memory != nil {
		m.memory.Add(key.String(), data)
	}
	return data, m.store.Layer(), nil
}

func (m *Manager) set(ctx context.Context, key CacheKey, data []byte, ttl time.Duration) error {
	if err := m.store.Set(ctx, key, data, ttl); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return err
	}
	if m.memory != nil {
		m.memory.Add(key.String(), data)
	}
	CacheSize.WithLabelValues(m.store.Layer()).Set(float64(len(data)))
	return nil
}

// Delete removes an entry from every layer.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if m.memory != nil {
		m.memory.Remove(key.String())
	}
	if err := m.store.Delete(ctx, key); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return err
	}
	return nil
}

// Load returns the entry stored under key. It returns ErrCacheMiss if there
// is none, ErrStale once the window has passed and ErrInvalidEntry if the
// stored document cannot be decoded.
func Load[T any](ctx context.Context, m *Manager, key CacheKey) (*Entry[T], error) {
	data, layer, err := m.get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			CacheMisses.WithLabelValues("miss").Inc()
		}
		return nil, err
	}

	var entry Entry[T]
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheMisses.WithLabelValues("invalid").Inc()
		if m.memory != nil {
			m.memory.Remove(key.String())
		}
		m.logger.Error().Err(err).Str("key", key.String()).Msg("Unable to decode cached records")
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsStale(m.window) {
		CacheMisses.WithLabelValues("stale").Inc()
		if m.memory != nil {
			m.memory.Remove(key.String())
		}
		m.logger.Warn().
			Str("key", key.String()).
			Time("saved_at", entry.SavedAt()).
			Msg("Cached records are outdated, refreshing from server")
		return nil, ErrStale
	}

	CacheHits.WithLabelValues(layer).Inc()
	m.logger.Info().
		Str("key", key.String()).
		Str("layer", layer).
		Int("records", len(entry.Records)).
		Time("saved_at", entry.SavedAt()).
		Msg("Loaded cached records")

	return &entry, nil
}

// Save stamps records with the current time and stores them under key.
func Save[T any](ctx context.Context, m *Manager, key CacheKey, records []T) (*Entry[T], error) {
	entry := NewEntry(records)

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return nil, fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.set(ctx, key, data, m.window); err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("key", key.String()).
		Int("records", len(entry.Records)).
		Int64("timestamp", entry.Timestamp).
		Msg("Records saved to cache")

	return entry, nil
}

// SearchFunc produces the records for a key when the cache cannot.
type SearchFunc[T any] func(ctx context.Context) ([]T, error)

// LoadOrSearch returns the cached records for key while they are fresh.
// Otherwise it runs search and writes the result back. The bool reports
// whether the records came from the cache. A failed write back is logged
// and does not fail the call.
func LoadOrSearch[T any](ctx context.Context, m *Manager, key CacheKey, search SearchFunc[T]) ([]T, bool, error) {
	entry, err := Load[T](ctx, m, key)
	if err == nil {
		return entry.Records, true, nil
	}
	if !errors.Is(err, ErrCacheMiss) && !errors.Is(err, ErrStale) && !errors.Is(err, ErrInvalidEntry) {
		m.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache read failed, searching instead")
	}

	records, err := search(ctx)
	if err != nil {
		return nil, false, err
	}

	if _, err := Save(ctx, m, key, records); err != nil {
		m.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to cache records")
	}
	return records, false, nil
}
