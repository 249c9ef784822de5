// Package orchestrate drives whole desired-state documents through the
// reconciliation engine: resolving documents into ordered resource items,
// retrying passes with backoff until terminal, and fanning out
// notifications.
package orchestrate

import (
	"context"
	"fmt"

	"github.com/curator-ml/curator/pkg/config"
	"github.com/curator-ml/curator/pkg/provider"
	"github.com/curator-ml/curator/pkg/reconcile"
	"github.com/curator-ml/curator/pkg/resource"
	"github.com/curator-ml/curator/pkg/telemetry"
)

// Item is one resolved desired resource inside a Pass.
type Item struct {
	Kind resource.Kind

	// Name is the resource name, or the generated job name for job
	// kinds.
	Name string

	// Solution names the owning solution for kinds that need a
	// solution version ARN resolved at run time.
	Solution string

	Desired provider.Fields
	Outcome reconcile.Outcome
}

// Pass is the shared state a pipeline run threads through its stages.
type Pass struct {
	Document *config.Document
	Items    []*Item

	// Tree is the live ownership adjacency surveyed from the provider
	// before reconciliation.
	Tree *resource.Tree
}

// Stage is one named step of a pipeline.
type Stage struct {
	Name string
	Run  func(ctx context.Context, pass *Pass) error
}

// Pipeline runs its stages in order over one Pass, stopping at the first
// stage error.
type Pipeline struct {
	stages []Stage
	log    *telemetry.Logger
}

func NewPipeline(log *telemetry.Logger, stages ...Stage) *Pipeline {
	if log == nil {
		log = telemetry.Nop()
	}
	return &Pipeline{stages: stages, log: log}
}

func (p *Pipeline) Run(ctx context.Context, pass *Pass) error {
	for _, stage := range p.stages {
		p.log.WithField("stage", stage.Name).Debug("running stage")
		if err := stage.Run(ctx, pass); err != nil {
			return fmt.Errorf("stage %s: %w", stage.Name, err)
		}
	}
	return nil
}
