package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/curator-ml/curator/pkg/telemetry"
)

// WorkflowStarter launches the workflow a trigger fires. The invocation
// identifier deduplicates starts: submitting the same identifier twice
// must start at most one workflow.
type WorkflowStarter interface {
	StartWorkflow(ctx context.Context, invocationID string, workflow json.RawMessage) error
}

// Runner drives the trigger loop for scheduled tasks: load the task,
// compute the next firing, sleep until then, start the workflow, repeat.
// A failed start is logged and the loop continues to the next firing.
type Runner struct {
	service *Service
	starter WorkflowStarter
	log     *telemetry.Logger
	metrics *telemetry.Metrics
	now     func() time.Time

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewRunner(service *Service, starter WorkflowStarter, log *telemetry.Logger, metrics *telemetry.Metrics) *Runner {
	if log == nil {
		log = telemetry.Nop()
	}
	return &Runner{
		service: service,
		starter: starter,
		log:     log.NewComponentLogger("runner"),
		metrics: metrics,
		now:     time.Now,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Start launches the trigger loop for the named task, replacing any loop
// already running under that name.
func (r *Runner) Start(ctx context.Context, name string) {
	loopCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	if old, ok := r.cancels[name]; ok {
		old()
	}
	r.cancels[name] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.loop(loopCtx, name)
	}()
}

// Stop cancels the loop for the named task without waiting for it.
func (r *Runner) Stop(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.cancels[name]; ok {
		cancel()
		delete(r.cancels, name)
	}
}

// StartAll launches loops for every stored task.
func (r *Runner) StartAll(ctx context.Context) error {
	names, err := r.service.List(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		r.Start(ctx, name)
	}
	return nil
}

// Shutdown cancels every loop and waits for them to unwind.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	for name, cancel := range r.cancels {
		cancel()
		delete(r.cancels, name)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, name string) {
	log := r.log.WithTask(name)
	for {
		task, err := r.service.Read(ctx, name)
		if errors.Is(err, ErrTaskNotFound) {
			log.Info("task removed, stopping trigger loop")
			return
		}
		if err != nil {
			log.WithError(err).Error("cannot load task, stopping trigger loop")
			return
		}
		if !task.Active {
			log.Info("task inactive, stopping trigger loop")
			return
		}

		expr, err := Parse(task.Schedule)
		if err != nil {
			log.WithError(err).Error("stored schedule no longer parses, stopping trigger loop")
			return
		}
		next, err := expr.Next(r.now())
		if errors.Is(err, ErrNoFutureTrigger) {
			log.Info("schedule exhausted, stopping trigger loop")
			return
		}
		if err != nil {
			log.WithError(err).Error("cannot compute next firing, stopping trigger loop")
			return
		}

		timer := time.NewTimer(next.Sub(r.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		// Each Read materializes a fresh invocation identifier, so the
		// re-read at the top of the loop can never hand the spent one
		// to the next firing.
		if err := r.starter.StartWorkflow(ctx, task.NextInvocationID, task.Workflow); err != nil {
			log.WithError(err).Error("workflow start failed")
			r.metrics.TriggerFired("error")
		} else {
			log.WithField("invocation", task.NextInvocationID).Info("workflow started")
			r.metrics.TriggerFired("ok")
		}
	}
}
