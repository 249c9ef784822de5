package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// setupTestStore creates a file-backed SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(StoreConfig{
		Path: filepath.Join(t.TempDir(), "tasks.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func testTask(name string, version int) *Task {
	now := time.Now().UTC().Truncate(time.Second)
	return &Task{
		Name:      name,
		Schedule:  "cron(0 12 * * ? *)",
		Workflow:  json.RawMessage(`{"datasetGroup":{"name":"media"}}`),
		Version:   version,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestStoreLifecycle(t *testing.T) {
	store := setupTestStore(t)
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Fatalf("health check failed: %v", err)
	}
}

func TestStorePutAndLatest(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stored, err := store.Put(ctx, testTask("nightly", 0))
	if err != nil {
		t.Fatalf("failed to put task: %v", err)
	}
	if stored.Version != 1 {
		t.Fatalf("first version = %d, want 1", stored.Version)
	}

	got, err := store.Latest(ctx, "nightly")
	if err != nil {
		t.Fatalf("failed to get task: %v", err)
	}
	if got.Version != 1 || got.Schedule != stored.Schedule || !got.Active {
		t.Errorf("latest = %+v, want stored snapshot", got)
	}
	if string(got.Workflow) == "" {
		t.Errorf("workflow not persisted")
	}
}

func TestStoreVersionsAreMonotonic(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for want := 1; want <= 5; want++ {
		latestVersion := want - 1
		task := testTask("nightly", latestVersion)
		stored, err := store.Put(ctx, task)
		if err != nil {
			t.Fatalf("put version %d: %v", want, err)
		}
		if stored.Version != want {
			t.Fatalf("version = %d, want %d", stored.Version, want)
		}
	}

	for v := 1; v <= 5; v++ {
		snap, err := store.Version(ctx, "nightly", v)
		if err != nil {
			t.Fatalf("read version %d: %v", v, err)
		}
		if snap.Version != v {
			t.Errorf("snapshot version = %d, want %d", snap.Version, v)
		}
	}
}

func TestStoreVersionZeroResolvesLatest(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for v := 0; v < 3; v++ {
		if _, err := store.Put(ctx, testTask("nightly", v)); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	got, err := store.Version(ctx, "nightly", 0)
	if err != nil {
		t.Fatalf("version 0: %v", err)
	}
	if got.Version != 3 {
		t.Errorf("version 0 resolved to %d, want latest 3", got.Version)
	}
}

func TestStoreReadDerivesFreshInvocationID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.Put(ctx, testTask("nightly", 0)); err != nil {
		t.Fatalf("put: %v", err)
	}

	first, err := store.Latest(ctx, "nightly")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	second, err := store.Latest(ctx, "nightly")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if first.NextInvocationID == "" || first.NextInvocationID == second.NextInvocationID {
		t.Errorf("reads shared invocation identifier %q", first.NextInvocationID)
	}
}

func TestStorePoolConfigApplied(t *testing.T) {
	store, err := NewSQLiteStore(StoreConfig{
		Path:         filepath.Join(t.TempDir(), "tasks.db"),
		MaxOpenConns: 3,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if got := store.db.Stats().MaxOpenConnections; got != 3 {
		t.Errorf("max open connections = %d, want 3", got)
	}
}

func TestStorePutStaleVersionConflicts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.Put(ctx, testTask("nightly", 0)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, testTask("nightly", 1)); err != nil {
		t.Fatalf("put: %v", err)
	}

	// A writer still holding version 1 must lose.
	_, err := store.Put(ctx, testTask("nightly", 1))
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale put err = %v, want ErrVersionConflict", err)
	}

	// Creating over an existing task must lose too.
	_, err = store.Put(ctx, testTask("nightly", 0))
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("duplicate create err = %v, want ErrVersionConflict", err)
	}
}

func TestStoreRacingWritersSingleWinner(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.Put(ctx, testTask("nightly", 0)); err != nil {
		t.Fatalf("put: %v", err)
	}

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Put(ctx, testTask("nightly", 1))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrVersionConflict) {
			t.Errorf("unexpected writer error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}

	latest, err := store.Latest(ctx, "nightly")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Version != 2 {
		t.Errorf("latest version = %d, want 2", latest.Version)
	}
}

func TestStoreDeleteRemovesHistory(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for v := 0; v < 3; v++ {
		if _, err := store.Put(ctx, testTask("nightly", v)); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	removed, err := store.Delete(ctx, "nightly")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !removed {
		t.Fatalf("delete reported nothing removed")
	}

	if _, err := store.Latest(ctx, "nightly"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("latest after delete err = %v, want ErrTaskNotFound", err)
	}
	for v := 1; v <= 3; v++ {
		if _, err := store.Version(ctx, "nightly", v); !errors.Is(err, ErrTaskNotFound) {
			t.Errorf("version %d after delete err = %v, want ErrTaskNotFound", v, err)
		}
	}

	removed, err = store.Delete(ctx, "nightly")
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if removed {
		t.Errorf("second delete reported a removal")
	}
}

func TestStoreNamesDeduplicatesVersions(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Enough versions to cross several listing pages.
	for _, name := range []string{"alpha", "beta", "gamma"} {
		for v := 0; v < 60; v++ {
			if _, err := store.Put(ctx, testTask(name, v)); err != nil {
				t.Fatalf("put %s v%d: %v", name, v, err)
			}
		}
	}

	names, err := store.Names(ctx)
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	want := []string{"alpha", "beta", "gamma"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
}
