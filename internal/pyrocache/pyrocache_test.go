package pyrocache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"pyrocache/envs"
	"pyrocache/internal/pyrocache/codec"
	"pyrocache/internal/pyrocache/entries"
	pyroerrors "pyrocache/internal/pyrocache/errors"
	"pyrocache/internal/pyrocache/keyspace"
)

func testConfig(t *testing.T) envs.Envs {
	return envs.Envs{
		PyroRootDirPath:        t.TempDir(),
		FlushInterval:          time.Hour,
		DataExpirationInterval: time.Hour,
		SaveRules:              []string{"900 1", "60 10000"},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCache(t *testing.T, config envs.Envs, options ...Option) *PyroCache {
	t.Helper()
	cache, err := InitializePyroCache(config, testLogger(), options...)
	if err != nil {
		t.Fatalf("InitializePyroCache: %v", err)
	}
	return cache
}

func TestParseSaveRules(t *testing.T) {
	rules, err := ParseSaveRules([]string{"900 1", " 300 10 ", ""})
	if err != nil {
		t.Fatalf("ParseSaveRules: %v", err)
	}
	if len(rules) != 2 || rules[0].Interval != 900*time.Second || rules[1].Changes != 10 {
		t.Errorf("rules = %+v", rules)
	}

	for _, raw := range []string{"900", "x 1", "60 0", "-5 3"} {
		if _, err := ParseSaveRules([]string{raw}); !errors.Is(err, pyroerrors.ErrorInvalidSaveRule) {
			t.Errorf("%q: err = %v", raw, err)
		}
	}
}

func TestSaveRuleTriggered(t *testing.T) {
	rule := SaveRule{Interval: time.Minute, Changes: 10}

	tests := []struct {
		elapsed time.Duration
		changes int64
		want    bool
	}{
		{time.Minute, 10, true},
		{time.Hour, 9, false},
		{time.Second, 100, false},
		{time.Hour, 0, false},
	}
	for _, tt := range tests {
		if got := rule.Triggered(tt.elapsed, tt.changes); got != tt.want {
			t.Errorf("Triggered(%v, %d) = %v", tt.elapsed, tt.changes, got)
		}
	}
}

func TestRuleTriggeredUsesLastSave(t *testing.T) {
	cache := newTestCache(t, testConfig(t))

	cache.RecordChange()
	if cache.ruleTriggered(time.Now()) {
		t.Error("rule triggered right after startup")
	}
	if !cache.ruleTriggered(time.Now().Add(901 * time.Second)) {
		t.Error("900 1 rule not triggered")
	}
}

func TestSaveAndReload(t *testing.T) {
	config := testConfig(t)
	cache := newTestCache(t, config)

	store := cache.Store()
	store.Set("name", entries.NewString("name", "pyro"))
	store.Set("queue", entries.NewList("queue", "a", "b"))
	store.Set("scores", entries.NewSortedSet("scores", entries.ScoredMember{Member: "x", Score: 1.5}))
	store.Set("profile", entries.NewHash("profile", map[string]string{"lang": "go"}))

	stale := entries.NewString("stale", "old")
	stale.SetTTL(-time.Second)
	store.Set("stale", stale)

	cache.RecordChange()
	cache.RecordChange()
	before := cache.LastSave()

	if err := cache.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if cache.Changes() != 0 {
		t.Errorf("changes after save = %d", cache.Changes())
	}
	if !cache.LastSave().After(before) {
		t.Error("LastSave not advanced")
	}

	reloaded := newTestCache(t, config)
	keys := keyspace.Keys(reloaded.Store().Items())
	if len(keys) != 4 {
		t.Fatalf("reloaded keys = %v", keys)
	}
	if value, ok := keyspace.Lookup[*entries.StringEntry](reloaded.Store(), "name"); !ok || value.Value() != "pyro" {
		t.Error("string not restored")
	}
	if list, ok := keyspace.Lookup[*entries.ListEntry](reloaded.Store(), "queue"); !ok || list.Len() != 2 {
		t.Error("list not restored")
	}
	if reloaded.Store().Contains("stale") {
		t.Error("expired key persisted")
	}
}

func TestLoadRejectsCorruptSnapshot(t *testing.T) {
	config := testConfig(t)
	cache := newTestCache(t, config)

	if err := os.WriteFile(cache.SnapshotPath(), []byte{1, 0, 0}, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := InitializePyroCache(config, testLogger()); !errors.Is(err, pyroerrors.ErrorCorruptSnapshot) {
		t.Errorf("err = %v", err)
	}
}

type recordingUploader struct {
	mutex   sync.Mutex
	uploads [][]byte
	err     error
}

func (u *recordingUploader) Upload(_ context.Context, data []byte) error {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	u.uploads = append(u.uploads, data)
	return u.err
}

func TestSaveUploadsSnapshot(t *testing.T) {
	uploader := &recordingUploader{}
	cache := newTestCache(t, testConfig(t), WithUploader(uploader))
	cache.Store().Set("k", entries.NewString("k", "v"))

	if err := cache.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(uploader.uploads) != 1 {
		t.Fatalf("uploads = %d", len(uploader.uploads))
	}

	local, err := os.ReadFile(cache.SnapshotPath())
	if err != nil {
		t.Fatal(err)
	}
	if string(local) != string(uploader.uploads[0]) {
		t.Error("uploaded bytes differ from the local snapshot")
	}

	uploader.err = errors.New("bucket unavailable")
	if err := cache.Save(context.Background()); err == nil {
		t.Error("upload failure not reported")
	}
}

func TestRemoveExpiredKeys(t *testing.T) {
	cache := newTestCache(t, testConfig(t))
	store := cache.Store()

	for _, key := range []string{"a", "b"} {
		entry := entries.NewString(key, "v")
		entry.SetTTL(-time.Second)
		store.Set(key, entry)
	}
	store.Set("live", entries.NewString("live", "v"))

	if removed := cache.RemoveExpiredKeys(); removed != 2 {
		t.Errorf("removed = %d", removed)
	}
	if store.Len() != 1 || !store.Contains("live") {
		t.Errorf("remaining keys = %v", keyspace.Keys(store.Items()))
	}
}

func TestStartWritesFinalSnapshot(t *testing.T) {
	cache := newTestCache(t, testConfig(t))
	cache.Store().Set("k", entries.NewString("k", "v"))
	cache.RecordChange()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- cache.Start(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return")
	}

	file, err := os.Open(cache.SnapshotPath())
	if err != nil {
		t.Fatalf("snapshot missing: %v", err)
	}
	defer file.Close()
	items, err := codec.Decode(file)
	if err != nil || len(items) != 1 {
		t.Errorf("snapshot items = %v, %v", items, err)
	}
}
