package notify

import (
	"context"
	"time"

	"github.com/curator-ml/curator/pkg/provider"
	"github.com/curator-ml/curator/pkg/resource"
	"github.com/curator-ml/curator/pkg/telemetry"
)

// Dispatcher inspects provider result envelopes and announces at most one
// transition per envelope to every configured notifier.
type Dispatcher struct {
	notifiers []Notifier
	log       *telemetry.Logger
	metrics   *telemetry.Metrics

	// cutoff is the start of the current run. Stability is announced
	// only for resources whose last update lands after it, so resources
	// that were already active stay quiet.
	cutoff time.Time

	now func() time.Time
}

func NewDispatcher(log *telemetry.Logger, metrics *telemetry.Metrics, notifiers ...Notifier) *Dispatcher {
	if log == nil {
		log = telemetry.Nop()
	}
	return &Dispatcher{
		notifiers: notifiers,
		log:       log,
		metrics:   metrics,
		now:       time.Now,
	}
}

// StartRun marks the beginning of a reconciliation run. Without it no
// stability events fire.
func (d *Dispatcher) StartRun() {
	d.cutoff = d.now()
}

// Observe classifies a provider result envelope and dispatches the
// matching transition, if any. A create acknowledgement (the bare
// "<kind>Arn" envelope) announces creation; a describe envelope showing a
// freshly active resource announces stability. Everything else is silent.
func (d *Dispatcher) Observe(ctx context.Context, kind resource.Kind, result provider.Result) {
	if result == nil {
		return
	}
	arnKey := kind.ArnKey()

	if arn, ok := result[arnKey].(string); ok && arn != "" {
		if _, described := result[string(kind)]; !described {
			d.send(ctx, TransitionCreated, Event{Kind: kind, ARN: arn})
			return
		}
	}

	fields, ok := result[string(kind)].(map[string]any)
	if !ok {
		return
	}
	created, haveCreated := timestampOf(fields["creationDateTime"])
	updated, haveUpdated := timestampOf(fields["lastUpdatedDateTime"])
	if !haveCreated || !haveUpdated {
		return
	}
	status, _ := fields["status"].(string)
	if status != "ACTIVE" {
		return
	}
	if kind == resource.KindCampaign {
		if latest, ok := fields["latestCampaignUpdate"].(map[string]any); ok && len(latest) > 0 {
			if s, _ := latest["status"].(string); s != "ACTIVE" {
				return
			}
		}
	}
	if d.cutoff.IsZero() || !updated.After(d.cutoff) {
		return
	}

	arn, _ := fields[arnKey].(string)
	d.send(ctx, TransitionStable, Event{
		Kind:     kind,
		ARN:      arn,
		Status:   status,
		Duration: updated.Sub(created),
	})
}

func (d *Dispatcher) send(ctx context.Context, transition Transition, ev Event) {
	for _, n := range d.notifiers {
		var err error
		switch transition {
		case TransitionCreated:
			err = n.NotifyCreate(ctx, ev)
		case TransitionStable:
			err = n.NotifyComplete(ctx, ev)
		}
		if err != nil {
			d.log.WithError(err).WithKind(string(ev.Kind)).
				Warnf("notifier %s failed to deliver %s event", n.Name(), transition)
			d.metrics.NotificationFailed(n.Name())
			continue
		}
		d.metrics.NotificationSent(n.Name(), string(transition))
	}
}

func timestampOf(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed, true
		}
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
