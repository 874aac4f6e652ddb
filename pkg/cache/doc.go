// Package cache keeps the records of a finished search so repeated runs can
// skip the tracker while the data is fresh.
//
// A cached entry is a JSON document holding the save time in Unix seconds
// and the records themselves:
//
//	{
//	  "timestamp": 1760000000,
//	  "records": [ ... ]
//	}
//
// Entries older than the freshness window (two hours by default) are
// reported as ErrStale and refetched by LoadOrSearch.
//
// # Layers
//
// A Manager puts an in-memory LRU in front of one backing Store:
//
//   - FileStore keeps one pretty printed file per key in a directory
//   - RedisStore keeps one Redis key per entry, expiring with the window
//
// # Basic Usage
//
//	store, err := cache.NewFileStore(".cache")
//	if err != nil {
//		return err
//	}
//	manager := cache.NewManager(store, cache.DefaultConfig(), logger)
//
//	key := cache.NewKey("open-bugs", jql, fields)
//	issues, cached, err := cache.LoadOrSearch(ctx, manager, key, func(ctx context.Context) ([]issue.RawIssue, error) {
//		acc, err := searcher.Search(ctx, q)
//		if err != nil {
//			return nil, err
//		}
//		return acc.Items(), nil
//	})
//
// # Metrics
//
//   - jira_cache_hits_total{layer} - Cache hits by layer (memory, file, redis)
//   - jira_cache_misses_total{reason} - Misses by reason (miss, stale, invalid)
//   - jira_cache_size_bytes{layer} - Size of the last entry written
//   - jira_cache_errors_total{operation} - Store errors by operation
package cache
