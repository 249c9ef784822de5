package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/curator-ml/curator/pkg/provider"
	"github.com/curator-ml/curator/pkg/resource"
	"github.com/curator-ml/curator/pkg/telemetry"
)

// Engine converges one desired resource at a time against the remote
// provider. A pass never blocks on remote progress: it observes, takes at
// most one mutating action, and reports an Outcome for the orchestrator
// to act on.
type Engine struct {
	provider  provider.Provider
	partition resource.Partition
	log       *telemetry.Logger
	metrics   *telemetry.Metrics

	// freshness, when set, supplies the data-change detector used by the
	// staleness rules for a given resource.
	freshness func(kind resource.Kind, desired provider.Fields) Freshness

	// observer, when set, receives the acknowledgement envelope of every
	// accepted create call.
	observer func(ctx context.Context, kind resource.Kind, result provider.Result)

	now func() time.Time
}

func New(p provider.Provider, log *telemetry.Logger, metrics *telemetry.Metrics) *Engine {
	if log == nil {
		log = telemetry.Nop()
	}
	return &Engine{
		provider:  p,
		partition: resource.DefaultPartition,
		log:       log,
		metrics:   metrics,
		now:       time.Now,
	}
}

// SetPartition overrides the partition used to derive stable identifiers.
func (e *Engine) SetPartition(p resource.Partition) { e.partition = p }

// SetFreshness wires a per-resource data-change detector.
func (e *Engine) SetFreshness(f func(resource.Kind, provider.Fields) Freshness) {
	e.freshness = f
}

// SetObserver wires a sink for create acknowledgements.
func (e *Engine) SetObserver(f func(context.Context, resource.Kind, provider.Result)) {
	e.observer = f
}

// Reconcile runs one pass for the desired resource and reports what the
// orchestrator should do next.
func (e *Engine) Reconcile(ctx context.Context, kind resource.Kind, desired provider.Fields) Outcome {
	spec, err := resource.Lookup(kind)
	if err != nil {
		return Invalid("%v", err)
	}
	out := e.reconcile(ctx, e.log.WithKind(string(kind)), spec, desired)
	e.metrics.ReconcilePass(string(kind), string(out.Tag))
	return out
}

func (e *Engine) reconcile(ctx context.Context, log *telemetry.Logger, spec resource.Spec, desired provider.Fields) Outcome {
	remote, err := e.describe(ctx, spec, desired)
	switch {
	case errors.Is(err, provider.ErrNotFound):
		return e.create(ctx, log, spec, desired)
	case errors.Is(err, provider.ErrResourceInUse):
		log.Info("resource busy, will retry")
		return Pending()
	case err != nil:
		return Failed("describing %s: %v", spec.Kind, err)
	}

	fields, ok := remote[string(spec.Kind)].(map[string]any)
	if !ok {
		return Invalid("describe envelope missing %q", string(spec.Kind))
	}
	effective := effectiveFields(spec, fields)

	mismatches, cmpErr := compareFields(spec, desired, effective)
	if cmpErr != nil {
		return Failed("%v", cmpErr)
	}
	if len(mismatches) > 0 {
		sort.Strings(mismatches)
		if spec.SupportsUpdate {
			log.Infof("drift on %s, update required", strings.Join(mismatches, ", "))
			return NeedsUpdate(mismatches)
		}
		return Failed("%s changed out of band on %s", spec.Kind, strings.Join(mismatches, ", "))
	}

	if !spec.HasStatus {
		return Terminal(remote)
	}
	status, _ := effective["status"].(string)
	switch {
	case status == StatusActive:
		return Terminal(remote)
	case isInProgress(status):
		log.WithField("status", status).Debug("resource not yet stable")
		return Pending()
	case status == StatusCreateFailed:
		reason, _ := fields["failureReason"].(string)
		return Failed("%s reported %s: %s", spec.Kind, status, reason)
	default:
		return Invalid("%s reported unknown status %q", spec.Kind, status)
	}
}

// Update pushes the desired fields onto a live resource. The orchestrator
// calls it after a needs-update outcome and then retries the pass.
func (e *Engine) Update(ctx context.Context, kind resource.Kind, desired provider.Fields) Outcome {
	spec, err := resource.Lookup(kind)
	if err != nil {
		return Invalid("%v", err)
	}
	if !spec.SupportsUpdate {
		return Failed("%s does not support update", kind)
	}
	name, _ := desired["name"].(string)
	if name == "" {
		return Failed("desired %s has no name", kind)
	}
	log := e.log.WithKind(string(kind)).WithField("name", name)

	_, err = e.provider.Update(ctx, kind, e.partition.ARN(kind, name), createFields(desired))
	switch {
	case errors.Is(err, provider.ErrResourceInUse):
		log.Info("resource busy, update will retry")
		return Pending()
	case errors.Is(err, provider.ErrLimitExceeded) && spec.HasSoftLimit:
		log.Warn("capacity limit reached, update waiting for headroom")
		return Pending()
	case err != nil:
		return Failed("updating %s: %v", kind, err)
	}
	log.Info("update submitted")
	return Pending()
}

// describe resolves the live resource for the desired fields, either by
// its stable identifier or by discovering the newest current candidate
// under its parent.
func (e *Engine) describe(ctx context.Context, spec resource.Spec, desired provider.Fields) (provider.Result, error) {
	if spec.HasStableID {
		name, _ := desired["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("desired %s has no name", spec.Kind)
		}
		return e.provider.Describe(ctx, spec.Kind, e.partition.ARN(spec.Kind, name))
	}
	arn, err := e.discover(ctx, spec, desired)
	if err != nil {
		return nil, err
	}
	return e.provider.Describe(ctx, spec.Kind, arn)
}

// discover lists the parent and picks the most recently created candidate
// that still counts as current.
func (e *Engine) discover(ctx context.Context, spec resource.Spec, desired provider.Fields) (string, error) {
	parentKey := spec.Parent.ArnKey()
	parentARN, _ := desired[parentKey].(string)
	if parentARN == "" {
		return "", fmt.Errorf("desired %s has no %s", spec.Kind, parentKey)
	}
	items, err := provider.ListAll(ctx, e.provider, spec.Kind, parentARN)
	if err != nil {
		return "", fmt.Errorf("listing %s under %s: %w", spec.Kind, parentARN, err)
	}

	accept := e.acceptor(spec, desired)
	var (
		best     provider.Fields
		bestTime time.Time
	)
	for _, item := range items {
		if !accept(ctx, item) {
			continue
		}
		created, _ := timestampOf(item["creationDateTime"])
		if best == nil || created.After(bestTime) {
			best, bestTime = item, created
		}
	}
	if best == nil {
		return "", fmt.Errorf("no current %s under %s: %w", spec.Kind, parentARN, provider.ErrNotFound)
	}
	arn, _ := best[spec.Kind.ArnKey()].(string)
	if arn == "" {
		return "", fmt.Errorf("listed %s has no %s", spec.Kind, spec.Kind.ArnKey())
	}
	return arn, nil
}

// acceptor returns the per-kind candidate filter used during discovery.
func (e *Engine) acceptor(spec resource.Spec, desired provider.Fields) func(context.Context, provider.Fields) bool {
	cur := currency{now: e.now, log: e.log}
	if e.freshness != nil {
		cur.fresh = e.freshness(spec.Kind, desired)
	}
	switch spec.Kind {
	case resource.KindDataset:
		want, _ := desired["datasetType"].(string)
		return func(_ context.Context, item provider.Fields) bool {
			got, _ := item["datasetType"].(string)
			return strings.EqualFold(want, got)
		}
	case resource.KindEventTracker:
		return func(_ context.Context, item provider.Fields) bool {
			status, _ := item["status"].(string)
			return isActiveOrCreating(status)
		}
	case resource.KindDatasetImportJob, resource.KindBatchInferenceJob, resource.KindBatchSegmentJob:
		cur.nameKey = "jobName"
	case resource.KindSolutionVersion:
		cur.nameKey = "solutionVersionArn"
	}
	return func(ctx context.Context, item provider.Fields) bool {
		return cur.isCurrent(ctx, item, desired)
	}
}

func (e *Engine) create(ctx context.Context, log *telemetry.Logger, spec resource.Spec, desired provider.Fields) Outcome {
	result, err := e.provider.Create(ctx, spec.Kind, createFields(desired))
	switch {
	case errors.Is(err, provider.ErrLimitExceeded) && spec.HasSoftLimit:
		log.Warn("capacity limit reached, waiting for headroom")
		return Pending()
	case errors.Is(err, provider.ErrResourceInUse):
		log.Info("parent busy, create will retry")
		return Pending()
	case err != nil:
		return Failed("creating %s: %v", spec.Kind, err)
	}
	e.metrics.ResourceCreated(string(spec.Kind))
	if e.observer != nil {
		e.observer(ctx, spec.Kind, result)
	}

	arn, _ := result[spec.Kind.ArnKey()].(string)
	log.WithField("arn", arn).Info("resource created")
	if spec.Kind == resource.KindSolutionVersion {
		return SolutionVersionPending(arn)
	}
	return Pending()
}

// createFields strips the workflow bookkeeping keys before handing
// desired fields to the provider.
func createFields(desired provider.Fields) provider.Fields {
	out := make(provider.Fields, len(desired))
	for k, v := range desired {
		if resource.IsWorkflowField(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// effectiveFields folds a campaign's pending update block over the base
// description, so drift and stability are judged against the newest
// requested settings.
func effectiveFields(spec resource.Spec, fields provider.Fields) provider.Fields {
	if spec.Kind != resource.KindCampaign {
		return fields
	}
	latest, ok := fields["latestCampaignUpdate"].(map[string]any)
	if !ok || len(latest) == 0 {
		return fields
	}
	out := make(provider.Fields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	for k, v := range latest {
		switch k {
		case "creationDateTime", "lastUpdatedDateTime", "failureReason":
			continue
		}
		out[k] = v
	}
	return out
}
