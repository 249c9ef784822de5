package orchestrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/curator-ml/curator/pkg/config"
	"github.com/curator-ml/curator/pkg/provider"
	"github.com/curator-ml/curator/pkg/resource"
)

// resolver turns a normalized document into ordered resource items with
// parent identifiers and workflow fields filled in. Order follows the
// dependency chain, so every item can assume its parents were handled
// before it.
type resolver struct {
	partition resource.Partition
}

func (r resolver) stage() Stage {
	return Stage{Name: "resolve", Run: r.run}
}

func (r resolver) run(_ context.Context, pass *Pass) error {
	doc := pass.Document
	if doc == nil || doc.DatasetGroup == nil {
		return fmt.Errorf("document has no dataset group")
	}
	groupName := doc.DatasetGroup.Name()
	groupARN := r.partition.ARN(resource.KindDatasetGroup, groupName)
	groupElem := resource.Element{Kind: resource.KindDatasetGroup, ARN: groupARN}

	// The scratch tree catches duplicate placements: two resolved
	// resources may never claim the same stable identifier.
	tree := resource.NewTree()
	var items []*Item
	add := func(parent resource.Element, item *Item) error {
		items = append(items, item)
		elem := r.element(item)
		if parent.ARN == "" || elem.ARN == "" {
			return nil
		}
		if err := tree.Add(parent, elem); err != nil {
			return fmt.Errorf("placing %s %s: %w", item.Kind, item.Name, err)
		}
		return nil
	}

	group := &Item{
		Kind:    resource.KindDatasetGroup,
		Name:    groupName,
		Desired: desiredFields(doc.DatasetGroup.ServiceConfig, doc.DatasetGroup.WorkflowConfig, nil),
	}
	items = append(items, group)

	if doc.Datasets != nil {
		slots := []struct {
			slot string
			pair *config.DatasetPair
		}{
			{"USERS", doc.Datasets.Users},
			{"ITEMS", doc.Datasets.Items},
			{"INTERACTIONS", doc.Datasets.Interactions},
		}
		for _, s := range slots {
			if s.pair == nil {
				continue
			}
			if err := r.resolveDatasetPair(doc, s.slot, s.pair, groupARN, groupElem, add); err != nil {
				return err
			}
		}
	}

	if doc.EventTracker != nil {
		item := &Item{
			Kind: resource.KindEventTracker,
			Name: doc.EventTracker.Name(),
			Desired: desiredFields(doc.EventTracker.ServiceConfig, doc.EventTracker.WorkflowConfig,
				provider.Fields{"datasetGroupArn": groupARN}),
		}
		if err := add(groupElem, item); err != nil {
			return err
		}
	}

	for i := range doc.Filters {
		f := &doc.Filters[i]
		item := &Item{
			Kind: resource.KindFilter,
			Name: f.Name(),
			Desired: desiredFields(f.ServiceConfig, f.WorkflowConfig,
				provider.Fields{"datasetGroupArn": groupARN}),
		}
		if err := add(groupElem, item); err != nil {
			return err
		}
	}

	for i := range doc.Solutions {
		if err := r.resolveSolution(doc, &doc.Solutions[i], groupARN, groupElem, add); err != nil {
			return err
		}
	}

	for i := range doc.Recommenders {
		rec := &doc.Recommenders[i]
		item := &Item{
			Kind: resource.KindRecommender,
			Name: rec.Name(),
			Desired: desiredFields(rec.ServiceConfig, rec.WorkflowConfig,
				provider.Fields{"datasetGroupArn": groupARN}),
		}
		if err := add(groupElem, item); err != nil {
			return err
		}
	}

	pass.Items = items
	return nil
}

func (r resolver) resolveDatasetPair(doc *config.Document, slot string, pair *config.DatasetPair, groupARN string, groupElem resource.Element, add func(resource.Element, *Item) error) error {
	var schemaARN string
	if pair.Schema != nil {
		schemaARN = r.partition.ARN(resource.KindSchema, pair.Schema.Name())
		item := &Item{
			Kind:    resource.KindSchema,
			Name:    pair.Schema.Name(),
			Desired: desiredFields(pair.Schema.ServiceConfig, nil, nil),
		}
		// Schemas live outside the dataset group tree.
		if err := add(resource.Element{}, item); err != nil {
			return err
		}
	}

	if pair.Dataset == nil {
		return nil
	}
	desired := desiredFields(pair.Dataset.ServiceConfig, pair.Dataset.WorkflowConfig, provider.Fields{
		"datasetGroupArn": groupARN,
		"schemaArn":       schemaARN,
		"datasetType":     slot,
	})
	// Import parameters ride on the dataset config but belong to the
	// import job.
	dataSource := desired["dataSource"]
	roleARN := desired["roleArn"]
	delete(desired, "dataSource")
	delete(desired, "roleArn")

	datasetName := pair.Dataset.Name()
	dataset := &Item{Kind: resource.KindDataset, Name: datasetName, Desired: desired}
	if err := add(groupElem, dataset); err != nil {
		return err
	}

	if dataSource == nil {
		return nil
	}
	datasetARN := r.partition.ARN(resource.KindDataset, fmt.Sprintf("%s/%s", groupElemName(groupARN), slot))
	jobName := fmt.Sprintf("import_%s_%s", datasetName, doc.CurrentDate)
	var jobWC *config.WorkflowConfig
	if doc.DatasetGroup.WorkflowConfig != nil {
		jobWC = &config.WorkflowConfig{
			MaxAge:      doc.DatasetGroup.WorkflowConfig.MaxAge,
			TimeStarted: doc.DatasetGroup.WorkflowConfig.TimeStarted,
		}
	}
	job := &Item{
		Kind: resource.KindDatasetImportJob,
		Name: jobName,
		Desired: desiredFields(nil, jobWC, provider.Fields{
			"jobName":    jobName,
			"datasetArn": datasetARN,
			"dataSource": dataSource,
			"roleArn":    roleARN,
		}),
	}
	return add(resource.Element{Kind: resource.KindDataset, ARN: datasetARN}, job)
}

func (r resolver) resolveSolution(doc *config.Document, sol *config.Solution, groupARN string, groupElem resource.Element, add func(resource.Element, *Item) error) error {
	name := sol.Name()
	solutionARN := r.partition.ARN(resource.KindSolution, name)
	solutionElem := resource.Element{Kind: resource.KindSolution, ARN: solutionARN}

	item := &Item{
		Kind: resource.KindSolution,
		Name: name,
		Desired: desiredFields(sol.ServiceConfig, sol.WorkflowConfig,
			provider.Fields{"datasetGroupArn": groupARN}),
	}
	if err := add(groupElem, item); err != nil {
		return err
	}

	var versionWC *config.WorkflowConfig
	if sol.WorkflowConfig != nil {
		versionWC = &config.WorkflowConfig{
			MaxAge:      sol.WorkflowConfig.MaxAge,
			TimeStarted: sol.WorkflowConfig.TimeStarted,
		}
	}
	version := &Item{
		Kind:     resource.KindSolutionVersion,
		Name:     name,
		Solution: name,
		Desired: desiredFields(nil, versionWC, provider.Fields{
			"solutionArn":  solutionARN,
			"trainingMode": "FULL",
		}),
	}
	if err := add(solutionElem, version); err != nil {
		return err
	}

	for i := range sol.Campaigns {
		c := &sol.Campaigns[i]
		item := &Item{
			Kind:     resource.KindCampaign,
			Name:     c.Name(),
			Solution: name,
			Desired:  desiredFields(c.ServiceConfig, c.WorkflowConfig, nil),
		}
		if err := add(solutionElem, item); err != nil {
			return err
		}
	}

	jobs := []struct {
		kind resource.Kind
		list []config.ResourceConfig
	}{
		{resource.KindBatchInferenceJob, sol.BatchInferenceJobs},
		{resource.KindBatchSegmentJob, sol.BatchSegmentJobs},
	}
	for _, group := range jobs {
		for i := range group.list {
			j := &group.list[i]
			jobName := fmt.Sprintf("batch_%s_%s", name, doc.CurrentDate)
			item := &Item{
				Kind:     group.kind,
				Name:     jobName,
				Solution: name,
				Desired: desiredFields(j.ServiceConfig, j.WorkflowConfig,
					provider.Fields{"jobName": jobName}),
			}
			if err := add(solutionElem, item); err != nil {
				return err
			}
		}
	}
	return nil
}

// element derives the tree element for an item; kinds without a stable
// identifier get a name-derived placeholder ARN for adjacency tracking.
func (r resolver) element(item *Item) resource.Element {
	if item.Name == "" {
		return resource.Element{}
	}
	return resource.Element{Kind: item.Kind, ARN: r.partition.ARN(item.Kind, item.Name)}
}

// desiredFields merges remote fields, workflow bookkeeping, and injected
// identifiers into the engine's desired field set.
func desiredFields(service map[string]any, wc *config.WorkflowConfig, extra provider.Fields) provider.Fields {
	out := make(provider.Fields, len(service)+len(extra)+2)
	for k, v := range service {
		out[k] = v
	}
	for k, v := range extra {
		if v == nil || v == "" {
			continue
		}
		out[k] = v
	}
	if wc != nil {
		if wc.MaxAge != "" {
			out["maxAge"] = wc.MaxAge
		}
		if wc.TimeStarted != "" {
			out["timeStarted"] = wc.TimeStarted
		}
	}
	return out
}

// groupElemName is the final path segment of a dataset group ARN.
func groupElemName(groupARN string) string {
	if i := strings.LastIndex(groupARN, "/"); i >= 0 {
		return groupARN[i+1:]
	}
	return groupARN
}
