package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/curator-ml/curator/pkg/telemetry"
)

func setupTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(setupTestStore(t), telemetry.Nop(), nil)
}

func TestServiceUpsertLifecycle(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	workflow := json.RawMessage(`{"datasetGroup":{"name":"media"}}`)

	created, err := svc.Upsert(ctx, "nightly", "cron(0 12 * * ? *)", workflow)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Version != 1 {
		t.Fatalf("created version = %d, want 1", created.Version)
	}

	changed, err := svc.Upsert(ctx, "nightly", "cron(0 6 * * ? *)", workflow)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if changed.Version != 2 {
		t.Fatalf("updated version = %d, want 2", changed.Version)
	}

	// History keeps the old schedule.
	v1, err := svc.ReadVersion(ctx, "nightly", 1)
	if err != nil {
		t.Fatalf("read version 1: %v", err)
	}
	if v1.Schedule != "cron(0 12 * * ? *)" {
		t.Errorf("version 1 schedule = %q", v1.Schedule)
	}
}

func TestServiceUpsertIsIdempotent(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	workflow := json.RawMessage(`{"solution": {"name": "ranker"}}`)

	first, err := svc.Upsert(ctx, "nightly", "cron(0 12 * * ? *)", workflow)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Same schedule, same document with different formatting.
	again, err := svc.Upsert(ctx, "nightly", "cron(0 12 * * ? *)",
		json.RawMessage(`{"solution":{"name":"ranker"}}`))
	if err != nil {
		t.Fatalf("repeat: %v", err)
	}
	if again.Version != first.Version {
		t.Errorf("repeat moved version %d -> %d", first.Version, again.Version)
	}
}

func TestServiceUpsertValidation(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	if _, err := svc.Upsert(ctx, "bad name", "cron(0 12 * * ? *)", nil); err == nil {
		t.Errorf("bad name accepted")
	}
	if _, err := svc.Upsert(ctx, "nightly", "cron(0 12 * * ? 1888)", nil); err == nil {
		t.Errorf("bad schedule accepted")
	}
}

func TestServiceDeleteSentinel(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	if _, err := svc.Upsert(ctx, "nightly", "cron(0 12 * * ? *)", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Upsert(ctx, "nightly", "delete", nil); err != nil {
		t.Fatalf("delete via sentinel: %v", err)
	}
	if _, err := svc.Read(ctx, "nightly"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("read after delete err = %v, want ErrTaskNotFound", err)
	}

	// Deleting an absent task is silent.
	if _, err := svc.Upsert(ctx, "nightly", "DELETE", nil); err != nil {
		t.Errorf("repeat delete: %v", err)
	}
}

func TestServiceList(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	for _, name := range []string{"beta", "alpha"} {
		if _, err := svc.Upsert(ctx, name, "cron(0 12 * * ? *)", nil); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	names, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("names = %v", names)
	}
}

func TestServiceReadsDeriveInvocationIDs(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	created, err := svc.Upsert(ctx, "nightly", "cron(0 12 * * ? *)", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := svc.Read(ctx, "nightly")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	second, err := svc.Read(ctx, "nightly")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if first.NextInvocationID == second.NextInvocationID {
		t.Errorf("reads shared invocation identifier %q", first.NextInvocationID)
	}
	if !strings.HasPrefix(first.NextInvocationID, "nightly-") {
		t.Errorf("invocation identifier %q not derived from the task name", first.NextInvocationID)
	}
	// Handing out identifiers is not a write.
	if first.Version != created.Version || second.Version != created.Version {
		t.Errorf("reads moved version %d to %d/%d", created.Version, first.Version, second.Version)
	}
}

func TestServiceCountsOnlyFirstVersions(t *testing.T) {
	metrics := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: true, Namespace: "curator"})
	svc := NewService(setupTestStore(t), telemetry.Nop(), metrics)
	ctx := context.Background()

	schedules := []string{"cron(0 12 * * ? *)", "cron(0 6 * * ? *)", "cron(0 3 * * ? *)"}
	for _, schedule := range schedules {
		if _, err := svc.Upsert(ctx, "nightly", schedule, nil); err != nil {
			t.Fatalf("upsert %s: %v", schedule, err)
		}
	}

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "curator_scheduler_tasks_created_total 1") {
		t.Errorf("created counter not 1 after three upserts:\n%s", rec.Body.String())
	}
}

type recordingRegistrar struct {
	starts []string
	stops  []string
}

func (r *recordingRegistrar) Start(_ context.Context, name string) { r.starts = append(r.starts, name) }
func (r *recordingRegistrar) Stop(name string)                     { r.stops = append(r.stops, name) }

func TestServiceUpsertRegistersTrigger(t *testing.T) {
	svc := setupTestService(t)
	reg := &recordingRegistrar{}
	svc.SetRegistrar(reg)
	ctx := context.Background()

	if _, err := svc.Upsert(ctx, "nightly", "cron(0 12 * * ? *)", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(reg.starts) != 1 || reg.starts[0] != "nightly" {
		t.Fatalf("starts = %v, want [nightly]", reg.starts)
	}

	// An unchanged upsert writes nothing and must not restart the loop.
	if _, err := svc.Upsert(ctx, "nightly", "cron(0 12 * * ? *)", nil); err != nil {
		t.Fatalf("repeat: %v", err)
	}
	if len(reg.starts) != 1 {
		t.Errorf("no-op upsert restarted the trigger: starts = %v", reg.starts)
	}

	// A schedule change replaces the running loop.
	if _, err := svc.Upsert(ctx, "nightly", "cron(0 6 * * ? *)", nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(reg.starts) != 2 {
		t.Errorf("schedule change did not re-register: starts = %v", reg.starts)
	}
}

func TestServiceDeleteStopsTrigger(t *testing.T) {
	svc := setupTestService(t)
	reg := &recordingRegistrar{}
	svc.SetRegistrar(reg)
	ctx := context.Background()

	if _, err := svc.Upsert(ctx, "nightly", "cron(0 12 * * ? *)", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Upsert(ctx, "nightly", "delete", nil); err != nil {
		t.Fatalf("delete via sentinel: %v", err)
	}
	if len(reg.stops) != 1 || reg.stops[0] != "nightly" {
		t.Fatalf("stops = %v, want [nightly]", reg.stops)
	}

	// Deleting an absent task stops nothing.
	if err := svc.Delete(ctx, "nightly"); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
	if len(reg.stops) != 1 {
		t.Errorf("absent delete touched the registrar: stops = %v", reg.stops)
	}
}
