package pyrocache

import (
	"context"
	"time"

	"github.com/samber/lo"

	"pyrocache/internal/pyrocache/entries"
	"pyrocache/internal/pyrocache/keyspace"
)

// Removes every expired key and returns how many were dropped
func (cache *PyroCache) RemoveExpiredKeys() int {
	expiredKeys := lo.FilterMap(cache.store.Items(), func(item keyspace.Item, _ int) (string, bool) {
		return item.Key, item.Entry.IsExpired()
	})

	// a key rewritten since the scan keeps its new entry
	return lo.CountBy(expiredKeys, func(key string) bool {
		return cache.store.RemoveIf(key, entries.Entry.IsExpired)
	})
}

// Periodically sweeps keys whose ttl elapsed without being read
func (cache *PyroCache) StartDataExpirationListener(ctx context.Context) {
	ticker := time.NewTicker(cache.envs.DataExpirationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := cache.RemoveExpiredKeys(); removed > 0 {
				cache.RecordChange()
				cache.logger.Debug("expired keys removed", "count", removed)
			}
		}
	}
}
