package pyrocache

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/samber/lo"

	"pyrocache/internal/pyrocache/codec"
	"pyrocache/internal/pyrocache/keyspace"
	"pyrocache/pkg/utils"
)

// Period at which the save rules are evaluated
const ruleCheckInterval = time.Second

// Checks the save rules every second and flushes a dirty keyspace at the
// configured interval regardless of the rules.
func (cache *PyroCache) StartSnapshotListener(ctx context.Context) {
	rulesTicker := time.NewTicker(ruleCheckInterval)
	defer rulesTicker.Stop()
	flushTicker := time.NewTicker(cache.envs.FlushInterval)
	defer flushTicker.Stop()

	save := func(reason string) {
		if err := cache.Save(ctx); err != nil {
			cache.logger.Error("error when updating snapshot", "reason", reason, "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-flushTicker.C:
			if cache.changes.Load() > 0 {
				save("flush")
			}
		case now := <-rulesTicker.C:
			if cache.ruleTriggered(now) {
				save("rule")
			}
		}
	}
}

func (cache *PyroCache) ruleTriggered(now time.Time) bool {
	elapsed := now.Sub(cache.lastSave.Load())
	changes := cache.changes.Load()

	return lo.SomeBy(cache.saveRules, func(rule SaveRule) bool {
		return rule.Triggered(elapsed, changes)
	})
}

// Writes the live keyspace to the snapshot file. Concurrent calls share a
// single write.
func (cache *PyroCache) Save(ctx context.Context) error {
	_, err, _ := cache.saves.Do("snapshot", func() (any, error) {
		return nil, cache.UpdateSnapshot(ctx)
	})
	return err
}

func (cache *PyroCache) BackgroundSave() {
	go func() {
		if err := cache.Save(context.Background()); err != nil {
			cache.logger.Error("background snapshot failed", "error", err)
		} else {
			cache.logger.Info("background saving completed successfully")
		}
	}()
}

func (cache *PyroCache) LastSave() time.Time {
	return cache.lastSave.Load()
}

func (cache *PyroCache) UpdateSnapshot(ctx context.Context) error {
	started := time.Now()
	pending := cache.changes.Load()

	items := cache.store.Select(keyspace.LiveQuery{})
	data, err := codec.EncodeToBytes(items)
	if err != nil {
		return err
	}

	if err := utils.WriteFileAtomic(cache.snapshotPath, data); err != nil {
		return err
	}

	cache.changes.Sub(pending)
	cache.lastSave.Store(time.Now())
	cache.logger.Info("snapshot updated", "keys", len(items), "bytes", len(data), "duration", time.Since(started))

	if cache.uploader != nil {
		if err := cache.uploader.Upload(ctx, data); err != nil {
			return fmt.Errorf("snapshot saved locally, upload failed: %w", err)
		}
	}
	return nil
}

// Replaces the keyspace with the snapshot file content. A missing file
// leaves an empty keyspace.
func (cache *PyroCache) LoadFromSnapshot() error {
	if !utils.FileExists(cache.snapshotPath) {
		cache.logger.Info("no snapshot found, starting empty", "path", cache.snapshotPath)
		return nil
	}

	content, err := os.ReadFile(cache.snapshotPath)
	if err != nil {
		return err
	}

	items, err := codec.Decode(bytes.NewReader(content))
	if err != nil {
		return err
	}

	cache.store.Replace(items)
	cache.logger.Info(fmt.Sprintf("Loaded %d items from DB file.", len(items)), "path", cache.snapshotPath)
	return nil
}
