package notify

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publisher delivers a serialized event to an external bus.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
}

// BusNotifier serializes events onto a Publisher, one subject per
// transition.
type BusNotifier struct {
	publisher Publisher
	source    string
}

type busPayload struct {
	ARN             string  `json:"arn"`
	Status          string  `json:"status,omitempty"`
	DurationSeconds float64 `json:"durationSeconds"`
}

func NewBusNotifier(p Publisher, source string) *BusNotifier {
	return &BusNotifier{publisher: p, source: source}
}

func (b *BusNotifier) Name() string { return "bus" }

func (b *BusNotifier) NotifyCreate(ctx context.Context, ev Event) error {
	return b.publish(ctx, TransitionCreated, ev)
}

func (b *BusNotifier) NotifyComplete(ctx context.Context, ev Event) error {
	return b.publish(ctx, TransitionStable, ev)
}

func (b *BusNotifier) publish(ctx context.Context, transition Transition, ev Event) error {
	payload, err := json.Marshal(busPayload{
		ARN:             ev.ARN,
		Status:          ev.Status,
		DurationSeconds: ev.Duration.Seconds(),
	})
	if err != nil {
		return fmt.Errorf("encoding %s event for %s: %w", transition, ev.ARN, err)
	}
	subject := fmt.Sprintf("%s.%s.%s", b.source, ev.Kind, transition)
	if err := b.publisher.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publishing %s: %w", subject, err)
	}
	return nil
}
