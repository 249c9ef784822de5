package provider

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/curator-ml/curator/pkg/resource"
)

// Fake is an in-memory Provider used by the engine tests, the
// end-to-end tests, and the CLI dry-run mode. Resources advance through
// scripted status sequences one step per Describe call.
type Fake struct {
	mu        sync.Mutex
	partition resource.Partition
	pageSize  int

	resources map[string]*fakeResource // by ARN
	byKind    map[resource.Kind][]string

	// FailCreate maps a kind to the error Create returns for it.
	FailCreate map[resource.Kind]error

	// InUse marks ARNs that report ErrResourceInUse on Describe.
	InUse map[string]bool

	CreateCalls int
	UpdateCalls int
}

type fakeResource struct {
	kind      resource.Kind
	arn       string
	fields    Fields
	statuses  []string
	statusIdx int
	created   time.Time
	updated   time.Time
}

// NewFake returns an empty fake provider with two-item listing pages,
// small enough that the engine's pagination handling is exercised.
func NewFake(p resource.Partition) *Fake {
	return &Fake{
		partition:  p,
		pageSize:   2,
		resources:  make(map[string]*fakeResource),
		byKind:     make(map[resource.Kind][]string),
		FailCreate: make(map[resource.Kind]error),
		InUse:      make(map[string]bool),
	}
}

// Script seeds a resource with a status sequence. The final status
// repeats once the sequence is exhausted.
func (f *Fake) Script(kind resource.Kind, arn string, fields Fields, statuses ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	if fields == nil {
		fields = Fields{}
	}
	if _, ok := fields["creationDateTime"]; !ok {
		fields["creationDateTime"] = now
	}
	if _, ok := fields["lastUpdatedDateTime"]; !ok {
		fields["lastUpdatedDateTime"] = now
	}
	r := &fakeResource{
		kind:     kind,
		arn:      arn,
		fields:   fields,
		statuses: statuses,
		created:  now,
		updated:  now,
	}
	f.resources[arn] = r
	f.byKind[kind] = append(f.byKind[kind], arn)
}

// SetField mutates a live fake resource, as an out-of-band change would.
func (f *Fake) SetField(arn, key string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.resources[arn]; ok {
		r.fields[key] = value
	}
}

func (f *Fake) Create(_ context.Context, kind resource.Kind, fields Fields) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateCalls++

	if err := f.FailCreate[kind]; err != nil {
		return nil, err
	}

	name, _ := fields["name"].(string)
	if name == "" {
		if job, ok := fields["jobName"].(string); ok {
			name = job
		} else {
			name = fmt.Sprintf("%s-%d", kind, len(f.byKind[kind]))
		}
	}

	var arn string
	if kind == resource.KindSolutionVersion {
		solutionARN, _ := fields[resource.KindSolution.ArnKey()].(string)
		arn = fmt.Sprintf("%s/%s", solutionARN, strconv.Itoa(len(f.byKind[kind])+1))
	} else {
		arn = f.partition.ARN(kind, name)
	}

	now := time.Now().UTC()
	stored := Fields{}
	for k, v := range fields {
		stored[k] = v
	}
	stored[kind.ArnKey()] = arn
	stored["creationDateTime"] = now
	stored["lastUpdatedDateTime"] = now

	f.resources[arn] = &fakeResource{
		kind:     kind,
		arn:      arn,
		fields:   stored,
		statuses: []string{"CREATE PENDING", "CREATE IN_PROGRESS", "ACTIVE"},
		created:  now,
		updated:  now,
	}
	f.byKind[kind] = append(f.byKind[kind], arn)

	return Result{kind.ArnKey(): arn}, nil
}

func (f *Fake) Describe(_ context.Context, kind resource.Kind, arn string) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.InUse[arn] {
		return nil, fmt.Errorf("describe %s: %w", arn, ErrResourceInUse)
	}
	r, ok := f.resources[arn]
	if !ok || r.kind != kind {
		return nil, fmt.Errorf("describe %s: %w", arn, ErrNotFound)
	}
	return Result{string(kind): r.snapshot(true)}, nil
}

func (f *Fake) Update(_ context.Context, kind resource.Kind, arn string, fields Fields) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpdateCalls++

	r, ok := f.resources[arn]
	if !ok || r.kind != kind {
		return nil, fmt.Errorf("update %s: %w", arn, ErrNotFound)
	}
	for k, v := range fields {
		r.fields[k] = v
	}
	r.updated = time.Now().UTC()
	r.fields["lastUpdatedDateTime"] = r.updated
	return Result{kind.ArnKey(): arn}, nil
}

func (f *Fake) List(_ context.Context, kind resource.Kind, parentARN, pageToken string) (Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	spec, err := resource.Lookup(kind)
	if err != nil {
		return Page{}, err
	}

	var matches []Fields
	arns := append([]string(nil), f.byKind[kind]...)
	sort.Strings(arns)
	for _, arn := range arns {
		r := f.resources[arn]
		if parentARN != "" && spec.Parent != "" {
			parent, _ := r.fields[spec.Parent.ArnKey()].(string)
			switch kind {
			case resource.KindSolutionVersion:
				parent = resource.SolutionOf(arn)
			case resource.KindCampaign:
				// Campaigns carry a solution version ARN, not the
				// solution ARN they are listed under.
				if sv, ok := r.fields[resource.KindSolutionVersion.ArnKey()].(string); ok {
					parent = resource.SolutionOf(sv)
				}
			}
			if parent != parentARN {
				continue
			}
		}
		matches = append(matches, r.snapshot(false))
	}

	start := 0
	if pageToken != "" {
		start, err = strconv.Atoi(pageToken)
		if err != nil {
			return Page{}, fmt.Errorf("bad page token %q", pageToken)
		}
	}
	end := start + f.pageSize
	next := ""
	if end < len(matches) {
		next = strconv.Itoa(end)
	} else {
		end = len(matches)
	}
	if start > end {
		start = end
	}
	return Page{Items: matches[start:end], NextToken: next}, nil
}

// snapshot copies the resource fields, advancing the status script when
// the copy backs a Describe.
func (r *fakeResource) snapshot(advance bool) Fields {
	out := Fields{}
	for k, v := range r.fields {
		out[k] = v
	}
	if len(r.statuses) > 0 {
		out["status"] = r.statuses[r.statusIdx]
		if advance && r.statusIdx < len(r.statuses)-1 {
			r.statusIdx++
		}
	}
	out[r.kind.ArnKey()] = r.arn
	return out
}
