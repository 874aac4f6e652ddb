package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a backing layer for encoded entries.
type Store interface {
	// Get returns ErrCacheMiss if the key doesn't exist.
	Get(ctx context.Context, key CacheKey) ([]byte, error)

	// Set stores data. Stores that support expiry drop it after ttl.
	Set(ctx context.Context, key CacheKey, data []byte, ttl time.Duration) error

	Delete(ctx context.Context, key CacheKey) error

	// Layer names the store in metrics and logs.
	Layer() string
}

// FileStore keeps one file per key in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed and returns a store writing into it.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the file backing key.
func (f *FileStore) Path(key CacheKey) string {
	return filepath.Join(f.dir, key.Filename())
}

// Get implements Store.
func (f *FileStore) Get(_ context.Context, key CacheKey) ([]byte, error) {
	data, err := os.ReadFile(f.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	return data, nil
}

// Set implements Store. The file is replaced atomically so readers never
// see a partial entry. ttl is ignored; freshness is judged by timestamp.
func (f *FileStore) Set(_ context.Context, key CacheKey, data []byte, _ time.Duration) error {
	tmp, err := os.CreateTemp(f.dir, ".tmp-"+key.Filename()+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmpName, f.Path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

// Delete implements Store.
func (f *FileStore) Delete(_ context.Context, key CacheKey) error {
	if err := os.Remove(f.Path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	return nil
}

// Layer implements Store.
func (f *FileStore) Layer() string { return "file" }

// RedisStore keeps entries in Redis.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a store with Redis backend.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, key CacheKey) ([]byte, error) {
	data, err := r.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Set implements Store. A ttl <= 0 means the entry is already stale and
// nothing is written.
func (r *RedisStore) Set(ctx context.Context, key CacheKey, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete implements Store.
func (r *RedisStore) Delete(ctx context.Context, key CacheKey) error {
	if err := r.redis.Del(ctx, key.String()).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Layer implements Store.
func (r *RedisStore) Layer() string { return "redis" }
