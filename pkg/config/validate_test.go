package config

import (
	"strings"
	"testing"
	"time"
)

func testValidator(t *testing.T) *Validator {
	t.Helper()
	v := NewValidator()
	v.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	return v
}

const minimalDocument = `{
	"datasetGroup": {"serviceConfig": {"name": "media"}}
}`

const fullDocument = `{
	"datasetGroup": {
		"serviceConfig": {"name": "media"},
		"workflowConfig": {"schedules": {"import": "cron(0 6 * * ? *)"}}
	},
	"datasets": {
		"interactions": {
			"dataset": {"serviceConfig": {"name": "clicks"}},
			"schema": {"serviceConfig": {"name": "clicks-schema", "schema": {"type": "record"}}}
		}
	},
	"eventTracker": {"serviceConfig": {"name": "tracker"}},
	"filters": [{"serviceConfig": {"name": "watched", "filterExpression": "INCLUDE itemId"}}],
	"solutions": [{
		"serviceConfig": {"name": "ranker", "recipeArn": "arn:aws:personalize:::recipe/aws-user-personalization"},
		"workflowConfig": {"schedules": {"full": "cron(0 12 * * ? *)"}, "maxAge": "7 days"},
		"campaigns": [{"serviceConfig": {"name": "live", "minProvisionedTPS": 1}}],
		"batchInferenceJobs": [{
			"serviceConfig": {"numResults": 25},
			"workflowConfig": {"schedule": "cron(0 3 * * ? *)", "maxAge": "1 day"}
		}]
	}]
}`

func TestValidateAcceptsWellFormedDocuments(t *testing.T) {
	v := testValidator(t)
	for name, raw := range map[string]string{"minimal": minimalDocument, "full": fullDocument} {
		t.Run(name, func(t *testing.T) {
			doc, errs := v.Validate([]byte(raw))
			if len(errs) > 0 {
				t.Fatalf("unexpected errors: %v", errs)
			}
			if doc == nil {
				t.Fatal("no document returned")
			}
		})
	}
}

func TestValidateNormalization(t *testing.T) {
	v := testValidator(t)
	doc, errs := v.Validate([]byte(fullDocument))
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	if got := doc.DatasetGroup.WorkflowConfig.MaxAge; got != DefaultMaxAge {
		t.Errorf("dataset group maxAge = %q, want default %q", got, DefaultMaxAge)
	}
	if doc.Solutions[0].WorkflowConfig.TimeStarted == "" {
		t.Errorf("solution workflowConfig missing timeStarted stamp")
	}
	if doc.Solutions[0].BatchSegmentJobs == nil {
		t.Errorf("absent dependent list not normalized to empty")
	}
	if doc.CurrentDate != "2026_08_30_12_00_00" {
		t.Errorf("currentDate = %q", doc.CurrentDate)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	v := testValidator(t)

	cases := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "not json",
			raw:  "{",
			want: "could not decode JSON",
		},
		{
			name: "empty document",
			raw:  "{}",
			want: "should not be empty",
		},
		{
			name: "unknown key",
			raw:  `{"datasetGroup": {"serviceConfig": {"name": "g"}}, "dataSetGroup": {}}`,
			want: "unknown key dataSetGroup",
		},
		{
			name: "missing dataset group",
			raw:  `{"eventTracker": {"serviceConfig": {"name": "t"}}}`,
			want: "datasetGroup",
		},
		{
			name: "datasets without interactions",
			raw: `{"datasetGroup": {"serviceConfig": {"name": "g"}},
				"datasets": {"users": {"dataset": {"serviceConfig": {"name": "u"}},
					"schema": {"serviceConfig": {"name": "us", "schema": {}}}}}}`,
			want: "interactions dataset",
		},
		{
			name: "schema without name",
			raw: `{"datasetGroup": {"serviceConfig": {"name": "g"}},
				"datasets": {"interactions": {"dataset": {"serviceConfig": {"name": "i"}},
					"schema": {"serviceConfig": {"schema": {}}}}}}`,
			want: "schema name is missing",
		},
		{
			name: "bad cron schedule",
			raw: `{"datasetGroup": {"serviceConfig": {"name": "g"},
				"workflowConfig": {"schedules": {"import": "cron(0 6 * * ? 1888)"}}}}`,
			want: "schedules.import",
		},
		{
			name: "duplicate solution names",
			raw: `{"datasetGroup": {"serviceConfig": {"name": "g"}},
				"solutions": [
					{"serviceConfig": {"name": "ranker", "recipeArn": "r"}},
					{"serviceConfig": {"name": "ranker", "recipeArn": "r"}}
				]}`,
			want: "duplicate solution name ranker",
		},
		{
			name: "incremental update on unsupported recipe",
			raw: `{"datasetGroup": {"serviceConfig": {"name": "g"}},
				"solutions": [{
					"serviceConfig": {"name": "ranker", "recipeArn": "arn:aws:personalize:::recipe/aws-sims"},
					"workflowConfig": {"schedules": {"update": "cron(0 12 * * ? *)"}}
				}]}`,
			want: "does not support solution version incremental updates",
		},
		{
			name: "overlong generated batch job name",
			raw: `{"datasetGroup": {"serviceConfig": {"name": "g"}},
				"solutions": [{
					"serviceConfig": {"name": "` + strings.Repeat("n", 60) + `", "recipeArn": "r"},
					"batchInferenceJobs": [{"serviceConfig": {"numResults": 25}}]
				}]}`,
			want: "longer than 63 characters",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc, errs := v.Validate([]byte(tc.raw))
			if doc != nil {
				t.Fatalf("invalid document was returned")
			}
			if len(errs) == 0 {
				t.Fatalf("no errors reported")
			}
			for _, e := range errs {
				if strings.Contains(e, tc.want) {
					return
				}
			}
			t.Errorf("errors %v do not mention %q", errs, tc.want)
		})
	}
}

func TestValidateDeleteSentinelSchedule(t *testing.T) {
	v := testValidator(t)
	raw := `{"datasetGroup": {"serviceConfig": {"name": "g"},
		"workflowConfig": {"schedules": {"import": "delete"}}}}`
	if _, errs := v.Validate([]byte(raw)); len(errs) > 0 {
		t.Fatalf("delete sentinel rejected: %v", errs)
	}
}
