package orchestrate

import (
	"context"
	"fmt"

	"github.com/curator-ml/curator/pkg/config"
	"github.com/curator-ml/curator/pkg/notify"
	"github.com/curator-ml/curator/pkg/reconcile"
	"github.com/curator-ml/curator/pkg/resource"
	"github.com/curator-ml/curator/pkg/telemetry"
)

// Orchestrator assembles the standard pipeline: resolve the document,
// check ownership against the live service, converge every item with
// backoff, announce transitions, and register declared schedules.
type Orchestrator struct {
	engine     *reconcile.Engine
	dispatcher *notify.Dispatcher
	partition  resource.Partition
	factory    BackoffFactory
	scheduler  TaskScheduler
	log        *telemetry.Logger
}

func New(engine *reconcile.Engine, dispatcher *notify.Dispatcher, partition resource.Partition, log *telemetry.Logger) *Orchestrator {
	if log == nil {
		log = telemetry.Nop()
	}
	o := &Orchestrator{
		engine:     engine,
		dispatcher: dispatcher,
		partition:  partition,
		factory:    DefaultBackoff,
		log:        log.NewComponentLogger("orchestrate"),
	}
	if dispatcher != nil {
		engine.SetObserver(dispatcher.Observe)
	}
	return o
}

// SetBackoff overrides the retry policy, mainly for tests.
func (o *Orchestrator) SetBackoff(factory BackoffFactory) { o.factory = factory }

// Converge drives one normalized document to a terminal state for every
// resource in it. The returned Pass carries per-item outcomes even when
// an item failed.
func (o *Orchestrator) Converge(ctx context.Context, doc *config.Document) (*Pass, error) {
	if o.dispatcher != nil {
		o.dispatcher.StartRun()
	}
	pass := &Pass{Document: doc}
	pipeline := NewPipeline(o.log,
		resolver{partition: o.partition}.stage(),
		o.ownershipStage(),
		o.reconcileStage(),
		o.notifyStage(),
		o.scheduleStage(),
	)
	if err := pipeline.Run(ctx, pass); err != nil {
		return pass, err
	}
	return pass, nil
}

// reconcileStage converges items in dependency order, resolving solution
// version ARNs for dependents as their solutions finish training.
func (o *Orchestrator) reconcileStage() Stage {
	run := func(ctx context.Context, pass *Pass) error {
		r := retrier{engine: o.engine, factory: o.factory, log: o.log}
		versions := make(map[string]string)

		for _, item := range pass.Items {
			if needsSolutionVersion(item.Kind) {
				if _, ok := item.Desired["solutionVersionArn"]; !ok {
					arn := versions[item.Solution]
					if arn == "" {
						return fmt.Errorf("%s %s: no active solution version for solution %s", item.Kind, item.Name, item.Solution)
					}
					item.Desired["solutionVersionArn"] = arn
				}
			}

			if err := r.converge(ctx, item); err != nil {
				return err
			}

			if item.Kind == resource.KindSolutionVersion {
				arn := terminalARN(item)
				if arn == "" {
					return fmt.Errorf("solution version for %s settled without an identifier", item.Solution)
				}
				versions[item.Solution] = arn
			}
		}
		return nil
	}
	return Stage{Name: "reconcile", Run: run}
}

// notifyStage announces stability for every item that settled terminal.
func (o *Orchestrator) notifyStage() Stage {
	run := func(ctx context.Context, pass *Pass) error {
		if o.dispatcher == nil {
			return nil
		}
		for _, item := range pass.Items {
			if item.Outcome.Tag != reconcile.TagTerminal {
				continue
			}
			o.dispatcher.Observe(ctx, item.Kind, item.Outcome.Resource)
		}
		return nil
	}
	return Stage{Name: "notify", Run: run}
}

func needsSolutionVersion(kind resource.Kind) bool {
	switch kind {
	case resource.KindCampaign, resource.KindBatchInferenceJob, resource.KindBatchSegmentJob:
		return true
	}
	return false
}

// terminalARN extracts the resource's own ARN from a terminal outcome.
func terminalARN(item *Item) string {
	fields, ok := item.Outcome.Resource[string(item.Kind)].(map[string]any)
	if !ok {
		return ""
	}
	arn, _ := fields[item.Kind.ArnKey()].(string)
	return arn
}
