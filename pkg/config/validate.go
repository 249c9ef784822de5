package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/curator-ml/curator/pkg/scheduler"
)

// keySchema describes the allowed keys of an object node. A nil value
// marks a free-form leaf; a listOf value marks a homogeneous array.
type keySchema map[string]any

type listOf struct{ elem any }

var datasetPairSchema = keySchema{
	"dataset": keySchema{"serviceConfig": nil},
	"schema":  keySchema{"serviceConfig": nil},
}

var batchJobSchema = keySchema{
	"serviceConfig":  nil,
	"workflowConfig": keySchema{"schedule": nil, "maxAge": nil, "timeStarted": nil},
}

// Documents registered as scheduled workflows are re-validated when a
// trigger fires, so normalization outputs (timeStarted, currentDate)
// must stay within the allow-list.
var documentSchema = keySchema{
	"datasetGroup": keySchema{
		"serviceConfig": nil,
		"workflowConfig": keySchema{
			"schedules":   keySchema{"import": nil},
			"maxAge":      nil,
			"timeStarted": nil,
		},
	},
	"datasets": keySchema{
		"users":        datasetPairSchema,
		"items":        datasetPairSchema,
		"interactions": datasetPairSchema,
	},
	"eventTracker": keySchema{"serviceConfig": nil},
	"filters":      listOf{keySchema{"serviceConfig": nil}},
	"solutions": listOf{keySchema{
		"serviceConfig": nil,
		"workflowConfig": keySchema{
			"schedules":   keySchema{"full": nil, "update": nil},
			"maxAge":      nil,
			"timeStarted": nil,
		},
		"campaigns":          listOf{keySchema{"serviceConfig": nil}},
		"batchInferenceJobs": listOf{batchJobSchema},
		"batchSegmentJobs":   listOf{batchJobSchema},
	}},
	"recommenders": listOf{keySchema{"serviceConfig": nil}},
	"currentDate":  nil,
}

// recipes that support incremental solution version updates.
var incrementalRecipes = map[string]bool{
	"arn:aws:personalize:::recipe/aws-hrnn-coldstart":       true,
	"arn:aws:personalize:::recipe/aws-user-personalization": true,
}

const maxBatchJobNameLen = 63

// Validator checks desired-state documents. The zero value is not
// usable; construct with NewValidator.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

func NewValidator() *Validator {
	return &Validator{
		validate: validator.New(),
		now:      time.Now,
	}
}

// Validate decodes, checks, and normalizes a raw document. All problems
// are collected into human-readable strings; the returned document is
// non-nil only when the list is empty, and only then may it reach the
// engine or the scheduler.
func (v *Validator) Validate(raw []byte) (*Document, []string) {
	var errs []string

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, []string{fmt.Sprintf("could not decode JSON: %v", err)}
	}
	if len(decoded) == 0 {
		return nil, []string{"configuration should not be empty"}
	}

	errs = append(errs, walkKeys(decoded, documentSchema, "")...)

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		errs = append(errs, fmt.Sprintf("could not decode configuration: %v", err))
		return nil, errs
	}

	if err := v.validate.Struct(&doc); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	errs = append(errs, v.checkDatasetGroup(&doc)...)
	errs = append(errs, v.checkDatasets(&doc)...)
	errs = append(errs, v.checkSolutions(&doc)...)
	errs = append(errs, v.checkNaming(&doc)...)
	errs = append(errs, v.checkSchedules(&doc)...)

	if len(errs) > 0 {
		return nil, errs
	}
	doc.normalize(v.now())
	return &doc, nil
}

func (v *Validator) checkDatasetGroup(doc *Document) []string {
	if doc.DatasetGroup == nil || doc.DatasetGroup.ServiceConfig == nil {
		return []string{"a datasetGroup must be provided at path datasetGroup"}
	}
	if doc.DatasetGroup.Name() == "" {
		return []string{"datasetGroup.serviceConfig.name is required"}
	}
	return nil
}

func (v *Validator) checkDatasets(doc *Document) []string {
	if doc.Datasets == nil {
		return nil
	}
	var errs []string
	if doc.Datasets.Interactions == nil || doc.Datasets.Interactions.Dataset == nil {
		errs = append(errs, "you must at minimum create an interactions dataset and declare its schema")
	}

	pairs := map[string]*DatasetPair{
		"users":        doc.Datasets.Users,
		"items":        doc.Datasets.Items,
		"interactions": doc.Datasets.Interactions,
	}
	for slot, pair := range pairs {
		if pair == nil {
			continue
		}
		if pair.Schema != nil {
			if pair.Schema.Name() == "" {
				errs = append(errs, fmt.Sprintf("the %s schema name is missing", slot))
			}
			if _, ok := pair.Schema.ServiceConfig["schema"]; !ok {
				errs = append(errs, fmt.Sprintf("the %s schema is missing", slot))
			}
		}
		if pair.Dataset != nil && pair.Schema == nil {
			errs = append(errs, fmt.Sprintf("the %s dataset declares no schema", slot))
		}
	}
	return errs
}

func (v *Validator) checkSolutions(doc *Document) []string {
	var errs []string
	for i := range doc.Solutions {
		sol := &doc.Solutions[i]
		name := sol.Name()
		if name == "" {
			errs = append(errs, fmt.Sprintf("solutions[%d].serviceConfig.name is required", i))
			continue
		}

		// Incremental updates only work for a couple of recipes.
		if sol.WorkflowConfig != nil && sol.WorkflowConfig.Schedules["update"] != "" {
			recipe, _ := sol.ServiceConfig["recipeArn"].(string)
			if !incrementalRecipes[recipe] {
				errs = append(errs, fmt.Sprintf(
					"solution %s does not support solution version incremental updates - use `full` instead of `update`", name))
			}
		}

		// Generated batch job names embed the solution name and a
		// timestamp and must fit the service limit.
		if len(sol.BatchInferenceJobs)+len(sol.BatchSegmentJobs) > 0 {
			generated := fmt.Sprintf("batch_%s_%s", name, v.now().UTC().Format("2006_01_02_15_04_05"))
			if len(generated) > maxBatchJobNameLen {
				errs = append(errs, fmt.Sprintf(
					"the generated batch job name %s is longer than %d characters, use a shorter solution name",
					generated, maxBatchJobNameLen))
			}
		}

		for j := range sol.Campaigns {
			if sol.Campaigns[j].Name() == "" {
				errs = append(errs, fmt.Sprintf("solutions[%d].campaigns[%d].serviceConfig.name is required", i, j))
			}
		}
	}
	for i := range doc.Filters {
		if doc.Filters[i].Name() == "" {
			errs = append(errs, fmt.Sprintf("filters[%d].serviceConfig.name is required", i))
		}
	}
	for i := range doc.Recommenders {
		if doc.Recommenders[i].Name() == "" {
			errs = append(errs, fmt.Sprintf("recommenders[%d].serviceConfig.name is required", i))
		}
	}
	return errs
}

// checkNaming rejects duplicate names within a namespace.
func (v *Validator) checkNaming(doc *Document) []string {
	var errs []string
	flag := func(seen map[string]bool, namespace, name string) {
		if name == "" {
			return
		}
		if seen[name] {
			errs = append(errs, fmt.Sprintf("duplicate %s name %s", namespace, name))
		}
		seen[name] = true
	}

	solutions := make(map[string]bool)
	campaigns := make(map[string]bool)
	filters := make(map[string]bool)
	for i := range doc.Solutions {
		flag(solutions, "solution", doc.Solutions[i].Name())
		for j := range doc.Solutions[i].Campaigns {
			flag(campaigns, "campaign", doc.Solutions[i].Campaigns[j].Name())
		}
	}
	for i := range doc.Filters {
		flag(filters, "filter", doc.Filters[i].Name())
	}
	for i := range doc.Recommenders {
		flag(solutions, "recommender", doc.Recommenders[i].Name())
	}
	return errs
}

// checkSchedules validates every schedule expression in the document.
func (v *Validator) checkSchedules(doc *Document) []string {
	var errs []string
	check := func(path, expr string) {
		if expr == "" {
			return
		}
		if strings.EqualFold(strings.TrimSpace(expr), scheduler.DeleteSentinel) {
			return
		}
		if _, err := scheduler.Parse(expr); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", path, err))
		}
	}

	if dg := doc.DatasetGroup; dg != nil && dg.WorkflowConfig != nil {
		check("datasetGroup.workflowConfig.schedules.import", dg.WorkflowConfig.Schedules["import"])
	}
	for i := range doc.Solutions {
		sol := &doc.Solutions[i]
		if sol.WorkflowConfig != nil {
			check(fmt.Sprintf("solutions[%d].workflowConfig.schedules.full", i), sol.WorkflowConfig.Schedules["full"])
			check(fmt.Sprintf("solutions[%d].workflowConfig.schedules.update", i), sol.WorkflowConfig.Schedules["update"])
		}
		for j := range sol.BatchInferenceJobs {
			if wc := sol.BatchInferenceJobs[j].WorkflowConfig; wc != nil {
				check(fmt.Sprintf("solutions[%d].batchInferenceJobs[%d].workflowConfig.schedule", i, j), wc.Schedule)
			}
		}
		for j := range sol.BatchSegmentJobs {
			if wc := sol.BatchSegmentJobs[j].WorkflowConfig; wc != nil {
				check(fmt.Sprintf("solutions[%d].batchSegmentJobs[%d].workflowConfig.schedule", i, j), wc.Schedule)
			}
		}
	}
	return errs
}

// walkKeys rejects keys outside the allow list, so typos fail loudly
// instead of silently configuring nothing.
func walkKeys(node any, schema any, path string) []string {
	switch sch := schema.(type) {
	case nil:
		return nil
	case keySchema:
		obj, ok := node.(map[string]any)
		if !ok {
			return []string{fmt.Sprintf("%s must be an object", pathOrRoot(path))}
		}
		var errs []string
		for key, child := range obj {
			childSchema, allowed := sch[key]
			if !allowed {
				errs = append(errs, fmt.Sprintf("unknown key %s", joinPath(path, key)))
				continue
			}
			errs = append(errs, walkKeys(child, childSchema, joinPath(path, key))...)
		}
		return errs
	case listOf:
		list, ok := node.([]any)
		if !ok {
			return []string{fmt.Sprintf("%s must be a list", pathOrRoot(path))}
		}
		var errs []string
		for i, item := range list {
			errs = append(errs, walkKeys(item, sch.elem, fmt.Sprintf("%s[%d]", path, i))...)
		}
		return errs
	default:
		return []string{fmt.Sprintf("an unknown validation error occurred at %s", pathOrRoot(path))}
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func pathOrRoot(path string) string {
	if path == "" {
		return "configuration"
	}
	return path
}
