package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/curator-ml/curator/pkg/provider"
	"github.com/curator-ml/curator/pkg/resource"
	"github.com/curator-ml/curator/pkg/telemetry"
)

type recordingNotifier struct {
	name      string
	created   []Event
	completed []Event
	fail      error
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) NotifyCreate(_ context.Context, ev Event) error {
	if r.fail != nil {
		return r.fail
	}
	r.created = append(r.created, ev)
	return nil
}

func (r *recordingNotifier) NotifyComplete(_ context.Context, ev Event) error {
	if r.fail != nil {
		return r.fail
	}
	r.completed = append(r.completed, ev)
	return nil
}

func newTestDispatcher(t *testing.T, notifiers ...Notifier) *Dispatcher {
	t.Helper()
	d := NewDispatcher(telemetry.Nop(), nil, notifiers...)
	d.now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }
	return d
}

func TestObserveCreation(t *testing.T) {
	sink := &recordingNotifier{name: "rec"}
	d := newTestDispatcher(t, sink)

	arn := resource.DefaultPartition.ARN(resource.KindDatasetGroup, "media")
	d.Observe(context.Background(), resource.KindDatasetGroup, provider.Result{"datasetGroupArn": arn})

	if len(sink.created) != 1 || len(sink.completed) != 0 {
		t.Fatalf("created=%d completed=%d, want exactly one creation", len(sink.created), len(sink.completed))
	}
	if sink.created[0].ARN != arn {
		t.Errorf("event ARN = %q, want %q", sink.created[0].ARN, arn)
	}
}

func TestObserveStability(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	arn := resource.DefaultPartition.ARN(resource.KindSolution, "ranker")

	describe := func(status string, created, updated time.Time) provider.Result {
		return provider.Result{"solution": map[string]any{
			"solutionArn":         arn,
			"status":              status,
			"creationDateTime":    created,
			"lastUpdatedDateTime": updated,
		}}
	}

	t.Run("fresh active resource after run start", func(t *testing.T) {
		sink := &recordingNotifier{name: "rec"}
		d := newTestDispatcher(t, sink)
		d.StartRun()

		d.Observe(context.Background(), resource.KindSolution,
			describe("ACTIVE", start.Add(-time.Hour), start.Add(10*time.Minute)))
		if len(sink.completed) != 1 || len(sink.created) != 0 {
			t.Fatalf("created=%d completed=%d, want exactly one completion", len(sink.created), len(sink.completed))
		}
		if got := sink.completed[0].Duration; got != 70*time.Minute {
			t.Errorf("duration = %v, want 70m", got)
		}
	})

	t.Run("resource active since before the run is silent", func(t *testing.T) {
		sink := &recordingNotifier{name: "rec"}
		d := newTestDispatcher(t, sink)
		d.StartRun()

		d.Observe(context.Background(), resource.KindSolution,
			describe("ACTIVE", start.Add(-2*time.Hour), start.Add(-time.Hour)))
		if len(sink.completed) != 0 {
			t.Fatalf("stale active resource announced %d completions", len(sink.completed))
		}
	})

	t.Run("no run start means no completions", func(t *testing.T) {
		sink := &recordingNotifier{name: "rec"}
		d := newTestDispatcher(t, sink)

		d.Observe(context.Background(), resource.KindSolution,
			describe("ACTIVE", start.Add(-time.Hour), start.Add(10*time.Minute)))
		if len(sink.completed) != 0 {
			t.Fatalf("completion fired without a run cutoff")
		}
	})

	t.Run("in-progress resource is silent", func(t *testing.T) {
		sink := &recordingNotifier{name: "rec"}
		d := newTestDispatcher(t, sink)
		d.StartRun()

		d.Observe(context.Background(), resource.KindSolution,
			describe("CREATE IN_PROGRESS", start.Add(-time.Hour), start.Add(10*time.Minute)))
		if len(sink.completed) != 0 {
			t.Fatalf("in-progress resource announced completion")
		}
	})
}

func TestObserveCampaignWaitsForUpdate(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	arn := resource.DefaultPartition.ARN(resource.KindCampaign, "live")

	describe := func(updateStatus string) provider.Result {
		return provider.Result{"campaign": map[string]any{
			"campaignArn":          arn,
			"status":               "ACTIVE",
			"creationDateTime":     start.Add(-time.Hour),
			"lastUpdatedDateTime":  start.Add(5 * time.Minute),
			"latestCampaignUpdate": map[string]any{"status": updateStatus},
		}}
	}

	sink := &recordingNotifier{name: "rec"}
	d := newTestDispatcher(t, sink)
	d.StartRun()

	d.Observe(context.Background(), resource.KindCampaign, describe("CREATE IN_PROGRESS"))
	if len(sink.completed) != 0 {
		t.Fatalf("campaign with pending update announced completion")
	}
	d.Observe(context.Background(), resource.KindCampaign, describe("ACTIVE"))
	if len(sink.completed) != 1 {
		t.Fatalf("settled campaign announced %d completions, want 1", len(sink.completed))
	}
}

func TestObserveFailingSinkDoesNotBlockOthers(t *testing.T) {
	broken := &recordingNotifier{name: "broken", fail: errors.New("down")}
	healthy := &recordingNotifier{name: "healthy"}
	d := newTestDispatcher(t, broken, healthy)

	arn := resource.DefaultPartition.ARN(resource.KindDatasetGroup, "media")
	d.Observe(context.Background(), resource.KindDatasetGroup, provider.Result{"datasetGroupArn": arn})

	if len(healthy.created) != 1 {
		t.Fatalf("healthy sink got %d events, want 1", len(healthy.created))
	}
}

func TestBusNotifierPayload(t *testing.T) {
	var gotSubject string
	var gotPayload []byte
	pub := publisherFunc(func(_ context.Context, subject string, payload []byte) error {
		gotSubject, gotPayload = subject, payload
		return nil
	})

	bus := NewBusNotifier(pub, "curator")
	ev := Event{
		Kind:     resource.KindSolutionVersion,
		ARN:      "arn:aws:personalize:us-east-1:account:solution/ranker/1",
		Status:   "ACTIVE",
		Duration: 90 * time.Second,
	}
	if err := bus.NotifyComplete(context.Background(), ev); err != nil {
		t.Fatalf("NotifyComplete: %v", err)
	}

	if gotSubject != "curator.solutionVersion.stable" {
		t.Errorf("subject = %q", gotSubject)
	}
	var decoded busPayload
	if err := json.Unmarshal(gotPayload, &decoded); err != nil {
		t.Fatalf("payload does not decode: %v", err)
	}
	if decoded.ARN != ev.ARN || decoded.Status != "ACTIVE" || decoded.DurationSeconds != 90 {
		t.Errorf("payload = %+v", decoded)
	}
}

type publisherFunc func(ctx context.Context, subject string, payload []byte) error

func (f publisherFunc) Publish(ctx context.Context, subject string, payload []byte) error {
	return f(ctx, subject, payload)
}
