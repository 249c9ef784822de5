package notify

import (
	"context"

	"github.com/curator-ml/curator/pkg/telemetry"
)

// LogNotifier writes events to the structured log. It is always wired so
// a run leaves a readable transition trail even with no bus configured.
type LogNotifier struct {
	log *telemetry.Logger
}

func NewLogNotifier(log *telemetry.Logger) *LogNotifier {
	if log == nil {
		log = telemetry.Nop()
	}
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Name() string { return "log" }

func (l *LogNotifier) NotifyCreate(_ context.Context, ev Event) error {
	l.log.WithKind(string(ev.Kind)).WithField("arn", ev.ARN).Info("resource creation submitted")
	return nil
}

func (l *LogNotifier) NotifyComplete(_ context.Context, ev Event) error {
	l.log.WithKind(string(ev.Kind)).WithField("arn", ev.ARN).
		WithField("durationSeconds", ev.Duration.Seconds()).Info("resource became active")
	return nil
}
