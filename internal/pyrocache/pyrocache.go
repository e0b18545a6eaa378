// Package pyrocache owns the keyspace lifecycle: loading the snapshot at
// startup, saving it on schedule and sweeping expired keys.
package pyrocache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"pyrocache/envs"
	"pyrocache/internal/pyrocache/keyspace"
	"pyrocache/pkg/utils"
)

type PyroCache struct {
	store        *keyspace.Store
	envs         envs.Envs
	snapshotPath string
	saveRules    []SaveRule
	uploader     SnapshotUploader
	logger       *slog.Logger

	changes  atomic.Int64 // writes since the last successful save
	lastSave atomic.Time
	saves    singleflight.Group
}

type Option func(*PyroCache)

// Copies every snapshot to an offsite location after it is written locally
func WithUploader(uploader SnapshotUploader) Option {
	return func(cache *PyroCache) {
		cache.uploader = uploader
	}
}

// Creates the cache and restores the keyspace from the snapshot file when present
func InitializePyroCache(config envs.Envs, logger *slog.Logger, options ...Option) (*PyroCache, error) {
	rules, err := ParseSaveRules(config.SaveRules)
	if err != nil {
		return nil, err
	}

	snapshotPath, err := utils.GetSnapshotFilePath(config.PyroRootDirPath)
	if err != nil {
		return nil, err
	}

	cache := &PyroCache{
		store:        keyspace.New(),
		envs:         config,
		snapshotPath: snapshotPath,
		saveRules:    rules,
		logger:       logger,
	}
	for _, option := range options {
		option(cache)
	}

	if err := cache.LoadFromSnapshot(); err != nil {
		return nil, fmt.Errorf("error loading snapshot: %w", err)
	}
	cache.lastSave.Store(time.Now())

	return cache, nil
}

func (cache *PyroCache) Store() *keyspace.Store {
	return cache.store
}

func (cache *PyroCache) SnapshotPath() string {
	return cache.snapshotPath
}

// Counts one keyspace write towards the save rules
func (cache *PyroCache) RecordChange() {
	cache.changes.Inc()
}

func (cache *PyroCache) Changes() int64 {
	return cache.changes.Load()
}

// Runs the snapshot and expiration listeners until ctx is done, then writes
// a final snapshot when there are unsaved changes.
func (cache *PyroCache) Start(ctx context.Context) error {
	group, groupContext := errgroup.WithContext(ctx)

	group.Go(func() error {
		cache.StartSnapshotListener(groupContext)
		return nil
	})
	group.Go(func() error {
		cache.StartDataExpirationListener(groupContext)
		return nil
	})

	err := group.Wait()

	if cache.changes.Load() > 0 {
		shutdownContext, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if saveErr := cache.Save(shutdownContext); saveErr != nil {
			cache.logger.Error("final snapshot failed", "error", saveErr)
			return saveErr
		}
	}
	return err
}
