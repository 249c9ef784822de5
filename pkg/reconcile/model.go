package reconcile

import (
	"context"
	"fmt"

	"github.com/curator-ml/curator/pkg/provider"
	"github.com/curator-ml/curator/pkg/resource"
)

// Survey lists every dataset group and its descendants and returns the
// live ownership tree. Callers use it to decide whether a desired
// identifier is free to claim or already belongs to another group.
func (e *Engine) Survey(ctx context.Context) (*resource.Tree, error) {
	tree := resource.NewTree()
	groups, err := provider.ListAll(ctx, e.provider, resource.KindDatasetGroup, "")
	if err != nil {
		return nil, fmt.Errorf("listing dataset groups: %w", err)
	}
	spec := resource.MustLookup(resource.KindDatasetGroup)
	for _, fields := range groups {
		arn, _ := fields[resource.KindDatasetGroup.ArnKey()].(string)
		if arn == "" {
			continue
		}
		group := resource.Element{Kind: resource.KindDatasetGroup, ARN: arn}
		if err := e.surveyChildren(ctx, tree, spec, group); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

func (e *Engine) surveyChildren(ctx context.Context, tree *resource.Tree, spec resource.Spec, parent resource.Element) error {
	for _, kind := range spec.Children {
		items, err := provider.ListAll(ctx, e.provider, kind, parent.ARN)
		if err != nil {
			return fmt.Errorf("listing %s under %s: %w", kind, parent.ARN, err)
		}
		childSpec := resource.MustLookup(kind)
		for _, fields := range items {
			arn, _ := fields[kind.ArnKey()].(string)
			if arn == "" {
				continue
			}
			child := resource.Element{Kind: kind, ARN: arn}
			if err := tree.Add(parent, child); err != nil {
				return fmt.Errorf("surveying %s: %w", kind, err)
			}
			if err := e.surveyChildren(ctx, tree, childSpec, child); err != nil {
				return err
			}
		}
	}
	return nil
}
