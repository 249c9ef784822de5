package resource

import "fmt"

// Kind identifies a managed resource kind. The set is closed: dispatch
// against the remote API goes through the Spec registry below rather
// than building verb names at runtime.
type Kind string

const (
	KindDatasetGroup      Kind = "datasetGroup"
	KindDataset           Kind = "dataset"
	KindSchema            Kind = "schema"
	KindDatasetImportJob  Kind = "datasetImportJob"
	KindSolution          Kind = "solution"
	KindSolutionVersion   Kind = "solutionVersion"
	KindCampaign          Kind = "campaign"
	KindEventTracker      Kind = "eventTracker"
	KindFilter            Kind = "filter"
	KindBatchInferenceJob Kind = "batchInferenceJob"
	KindBatchSegmentJob   Kind = "batchSegmentJob"
	KindRecommender       Kind = "recommender"
)

// Spec describes the workflow-relevant traits of a resource kind.
type Spec struct {
	Kind Kind

	// Parent is the kind listed to discover instances of this kind.
	// Empty for the root (dataset group).
	Parent Kind

	// HasStableID is true when the remote describe accepts an
	// identifier derived deterministically from the resource name.
	// Kinds without one are discovered by listing the parent.
	HasStableID bool

	// SupportsUpdate is true when the remote API has an update verb
	// for this kind.
	SupportsUpdate bool

	// HasSoftLimit marks kinds whose limit-exceeded errors are
	// retryable capacity conditions rather than hard failures.
	HasSoftLimit bool

	// HasStatus is false for kinds like schema that the remote API
	// reports without a lifecycle status.
	HasStatus bool

	// Children are the kinds listed beneath this kind when building
	// the ownership tree.
	Children []Kind

	// ExcludedFields are desired-state fields never compared against
	// the remote description (workflow-only or never echoed back).
	ExcludedFields []string

	// CaseInsensitiveFields are compared without case sensitivity.
	CaseInsensitiveFields []string
}

// WorkflowFields are desired-state keys consumed by the workflow itself
// and excluded from every remote equality comparison.
var WorkflowFields = []string{"maxAge", "timeStarted"}

// IsWorkflowField reports whether field belongs to WorkflowFields.
func IsWorkflowField(field string) bool {
	for _, f := range WorkflowFields {
		if f == field {
			return true
		}
	}
	return false
}

var registry = map[Kind]Spec{
	KindDatasetGroup: {
		Kind:        KindDatasetGroup,
		HasStableID: true,
		HasStatus:   true,
		Children:    []Kind{KindDataset, KindEventTracker, KindFilter, KindSolution, KindRecommender},
		ExcludedFields: []string{
			"tags", // never echoed back by describe
		},
	},
	KindDataset: {
		Kind:                  KindDataset,
		Parent:                KindDatasetGroup,
		HasStatus:             true,
		Children:              []Kind{KindDatasetImportJob},
		ExcludedFields:        []string{"tags"},
		CaseInsensitiveFields: []string{"datasetType"},
	},
	KindSchema: {
		Kind:           KindSchema,
		HasStableID:    true,
		ExcludedFields: []string{"tags"},
	},
	KindDatasetImportJob: {
		Kind:           KindDatasetImportJob,
		Parent:         KindDataset,
		HasStatus:      true,
		ExcludedFields: []string{"tags", "jobName", "dataSource", "roleArn", "importMode"},
	},
	KindSolution: {
		Kind:           KindSolution,
		Parent:         KindDatasetGroup,
		HasStatus:      true,
		HasSoftLimit:   true,
		Children:       []Kind{KindSolutionVersion, KindCampaign},
		ExcludedFields: []string{"tags"},
	},
	KindSolutionVersion: {
		Kind:           KindSolutionVersion,
		Parent:         KindSolution,
		HasStatus:      true,
		HasSoftLimit:   true,
		Children:       []Kind{KindBatchInferenceJob, KindBatchSegmentJob},
		ExcludedFields: []string{"tags", "trainingMode"},
	},
	KindCampaign: {
		Kind:           KindCampaign,
		Parent:         KindSolution,
		HasStableID:    true,
		SupportsUpdate: true,
		HasStatus:      true,
		HasSoftLimit:   true,
		ExcludedFields: []string{"tags"},
	},
	KindEventTracker: {
		Kind:           KindEventTracker,
		Parent:         KindDatasetGroup,
		HasStatus:      true,
		ExcludedFields: []string{"tags"},
	},
	KindFilter: {
		Kind:           KindFilter,
		Parent:         KindDatasetGroup,
		HasStableID:    true,
		HasStatus:      true,
		HasSoftLimit:   true,
		ExcludedFields: []string{"tags"},
	},
	KindBatchInferenceJob: {
		Kind:           KindBatchInferenceJob,
		Parent:         KindSolutionVersion,
		HasStatus:      true,
		ExcludedFields: []string{"tags", "jobName", "jobInput", "jobOutput", "roleArn"},
	},
	KindBatchSegmentJob: {
		Kind:           KindBatchSegmentJob,
		Parent:         KindSolutionVersion,
		HasStatus:      true,
		ExcludedFields: []string{"tags", "jobName", "jobInput", "jobOutput", "roleArn"},
	},
	KindRecommender: {
		Kind:           KindRecommender,
		Parent:         KindDatasetGroup,
		HasStableID:    true,
		SupportsUpdate: true,
		HasStatus:      true,
		HasSoftLimit:   true,
		Children:       []Kind{KindBatchInferenceJob, KindBatchSegmentJob},
		ExcludedFields: []string{"tags"},
	},
}

// Lookup returns the Spec for a kind. Unknown kinds are an error, not a
// panic: kind strings can arrive from stored task input.
func Lookup(kind Kind) (Spec, error) {
	spec, ok := registry[kind]
	if !ok {
		return Spec{}, fmt.Errorf("unknown resource kind %q", kind)
	}
	return spec, nil
}

// MustLookup is Lookup for the static call sites that use Kind
// constants directly.
func MustLookup(kind Kind) Spec {
	spec, err := Lookup(kind)
	if err != nil {
		panic(err)
	}
	return spec
}

// Kinds returns every registered kind.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	return kinds
}

// Name returns the kind's validated Name for casing conversions.
func (k Kind) Name() Name {
	n, err := NewName(string(k))
	if err != nil {
		panic(fmt.Sprintf("invalid kind name %q: %v", k, err))
	}
	return n
}

// ArnKey returns the key the remote API uses for this kind's ARN in
// requests and responses, e.g. "datasetGroupArn".
func (k Kind) ArnKey() string {
	return string(k) + "Arn"
}

// IsExcludedField reports whether a desired-state field is skipped
// during equality comparison for this kind.
func (s Spec) IsExcludedField(field string) bool {
	for _, f := range WorkflowFields {
		if f == field {
			return true
		}
	}
	for _, f := range s.ExcludedFields {
		if f == field {
			return true
		}
	}
	return false
}

// IsCaseInsensitiveField reports whether a field compares without case.
func (s Spec) IsCaseInsensitiveField(field string) bool {
	for _, f := range s.CaseInsensitiveFields {
		if f == field {
			return true
		}
	}
	return false
}
