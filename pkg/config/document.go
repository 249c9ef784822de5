// Package config is the boundary between raw desired-state documents and
// the reconciliation engine: nothing downstream ever sees input that has
// not been validated and normalized here.
package config

import (
	"time"
)

// Document is the normalized desired-state document. Every leaf carries
// the remote-API fields under ServiceConfig and workflow bookkeeping
// under WorkflowConfig.
type Document struct {
	DatasetGroup *ResourceConfig  `json:"datasetGroup" validate:"required"`
	Datasets     *Datasets        `json:"datasets,omitempty"`
	EventTracker *ResourceConfig  `json:"eventTracker,omitempty"`
	Filters      []ResourceConfig `json:"filters,omitempty" validate:"dive"`
	Solutions    []Solution       `json:"solutions,omitempty" validate:"dive"`
	Recommenders []ResourceConfig `json:"recommenders,omitempty" validate:"dive"`

	// CurrentDate is stamped during normalization and feeds generated
	// job names.
	CurrentDate string `json:"currentDate,omitempty"`
}

// ResourceConfig is one desired resource.
type ResourceConfig struct {
	ServiceConfig  map[string]any  `json:"serviceConfig" validate:"required"`
	WorkflowConfig *WorkflowConfig `json:"workflowConfig,omitempty"`
}

// Name returns the serviceConfig name, empty when absent.
func (r *ResourceConfig) Name() string {
	if r == nil || r.ServiceConfig == nil {
		return ""
	}
	name, _ := r.ServiceConfig["name"].(string)
	return name
}

// WorkflowConfig carries the workflow-only knobs that never reach the
// remote API.
type WorkflowConfig struct {
	MaxAge      string            `json:"maxAge,omitempty"`
	TimeStarted string            `json:"timeStarted,omitempty"`
	Schedules   map[string]string `json:"schedules,omitempty"`
	Schedule    string            `json:"schedule,omitempty"`
}

// Datasets groups the three dataset slots. Only interactions is
// mandatory when the block is present.
type Datasets struct {
	Users        *DatasetPair `json:"users,omitempty"`
	Items        *DatasetPair `json:"items,omitempty"`
	Interactions *DatasetPair `json:"interactions,omitempty"`
}

// DatasetPair couples a dataset with its schema declaration.
type DatasetPair struct {
	Dataset *ResourceConfig `json:"dataset,omitempty"`
	Schema  *ResourceConfig `json:"schema,omitempty"`
}

// Solution is a solution with its dependents.
type Solution struct {
	ServiceConfig      map[string]any   `json:"serviceConfig" validate:"required"`
	WorkflowConfig     *WorkflowConfig  `json:"workflowConfig,omitempty"`
	Campaigns          []ResourceConfig `json:"campaigns,omitempty" validate:"dive"`
	BatchInferenceJobs []ResourceConfig `json:"batchInferenceJobs,omitempty" validate:"dive"`
	BatchSegmentJobs   []ResourceConfig `json:"batchSegmentJobs,omitempty" validate:"dive"`
}

// Name returns the solution's serviceConfig name.
func (s *Solution) Name() string {
	if s == nil || s.ServiceConfig == nil {
		return ""
	}
	name, _ := s.ServiceConfig["name"].(string)
	return name
}

// DefaultMaxAge is the staleness window injected for a dataset group
// that declares none.
const DefaultMaxAge = "365 days"

// normalize injects defaults into a decoded document: the dataset group
// staleness window, a start timestamp on every workflow config, empty
// dependent slices, and the current date tag.
func (d *Document) normalize(now time.Time) {
	stamp := now.UTC().Format(time.RFC3339)
	d.CurrentDate = now.UTC().Format("2006_01_02_15_04_05")

	if d.DatasetGroup != nil {
		if d.DatasetGroup.WorkflowConfig == nil {
			d.DatasetGroup.WorkflowConfig = &WorkflowConfig{}
		}
		if d.DatasetGroup.WorkflowConfig.MaxAge == "" {
			d.DatasetGroup.WorkflowConfig.MaxAge = DefaultMaxAge
		}
	}

	for _, wc := range d.workflowConfigs() {
		if wc.TimeStarted == "" {
			wc.TimeStarted = stamp
		}
	}

	if d.Filters == nil {
		d.Filters = []ResourceConfig{}
	}
	if d.Solutions == nil {
		d.Solutions = []Solution{}
	}
	if d.Recommenders == nil {
		d.Recommenders = []ResourceConfig{}
	}
	for i := range d.Solutions {
		if d.Solutions[i].Campaigns == nil {
			d.Solutions[i].Campaigns = []ResourceConfig{}
		}
		if d.Solutions[i].BatchInferenceJobs == nil {
			d.Solutions[i].BatchInferenceJobs = []ResourceConfig{}
		}
		if d.Solutions[i].BatchSegmentJobs == nil {
			d.Solutions[i].BatchSegmentJobs = []ResourceConfig{}
		}
	}
}

// workflowConfigs collects every non-nil workflow config in the document.
func (d *Document) workflowConfigs() []*WorkflowConfig {
	var out []*WorkflowConfig
	add := func(wc *WorkflowConfig) {
		if wc != nil {
			out = append(out, wc)
		}
	}
	if d.DatasetGroup != nil {
		add(d.DatasetGroup.WorkflowConfig)
	}
	for i := range d.Solutions {
		add(d.Solutions[i].WorkflowConfig)
		for j := range d.Solutions[i].BatchInferenceJobs {
			add(d.Solutions[i].BatchInferenceJobs[j].WorkflowConfig)
		}
		for j := range d.Solutions[i].BatchSegmentJobs {
			add(d.Solutions[i].BatchSegmentJobs[j].WorkflowConfig)
		}
	}
	return out
}
