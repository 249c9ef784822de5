// Package notify fans resource lifecycle transitions out to configured
// sinks. Delivery is best effort: a failing sink is logged and counted,
// never allowed to disturb reconciliation.
package notify

import (
	"context"
	"time"

	"github.com/curator-ml/curator/pkg/resource"
)

// Transition names the two lifecycle moments worth announcing.
type Transition string

const (
	// TransitionCreated fires when a create call has been accepted.
	TransitionCreated Transition = "created"
	// TransitionStable fires when a resource reached ACTIVE during the
	// current run.
	TransitionStable Transition = "stable"
)

// Event describes one transition of one resource.
type Event struct {
	Kind   resource.Kind
	ARN    string
	Status string

	// Duration is the time from creation to stability. Zero for
	// creation events.
	Duration time.Duration
}

// Notifier receives lifecycle events. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Name() string
	NotifyCreate(ctx context.Context, ev Event) error
	NotifyComplete(ctx context.Context, ev Event) error
}
