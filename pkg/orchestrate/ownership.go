package orchestrate

import (
	"context"
	"fmt"

	"github.com/curator-ml/curator/pkg/resource"
)

// ownershipStage surveys the live service and rejects any item whose
// stable identifier is taken by a resource outside the document's own
// dataset group. Kinds without a stable identifier are discovered by
// listing and cannot collide.
func (o *Orchestrator) ownershipStage() Stage {
	run := func(ctx context.Context, pass *Pass) error {
		tree, err := o.engine.Survey(ctx)
		if err != nil {
			return fmt.Errorf("surveying live resources: %w", err)
		}
		pass.Tree = tree

		groupARN := o.partition.ARN(resource.KindDatasetGroup, pass.Document.DatasetGroup.Name())
		group := resource.Element{Kind: resource.KindDatasetGroup, ARN: groupARN}

		for _, item := range pass.Items {
			// The group itself is the owner being checked against.
			if item.Kind == resource.KindDatasetGroup || item.Name == "" {
				continue
			}
			arn := o.partition.ARN(item.Kind, item.Name)
			if tree.Available(arn) || tree.OwnedBy(arn, group) {
				continue
			}
			return fmt.Errorf("%s %s belongs to another dataset group", item.Kind, item.Name)
		}
		return nil
	}
	return Stage{Name: "ownership", Run: run}
}
