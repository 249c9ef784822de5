package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/curator-ml/curator/pkg/config"
	"github.com/curator-ml/curator/pkg/scheduler"
)

// TaskScheduler registers recurring maintenance work. Satisfied by
// *scheduler.Service.
type TaskScheduler interface {
	Upsert(ctx context.Context, name, schedule string, workflow json.RawMessage) (*scheduler.Task, error)
}

// SetScheduler wires the task store. Documents carrying schedules then
// register their maintenance tasks after a successful converge.
func (o *Orchestrator) SetScheduler(s TaskScheduler) { o.scheduler = s }

var taskNameSanitizer = regexp.MustCompile(`[^0-9A-Za-z_-]`)

// taskName builds a stored task name from a purpose prefix and the
// resource the schedule maintains.
func taskName(prefix, name string) string {
	n := prefix + "-" + taskNameSanitizer.ReplaceAllString(name, "-")
	if len(n) > 80 {
		n = n[:80]
	}
	return n
}

// scheduleStage registers one task per schedule the document declares:
// dataset import for the group, full or incremental retraining per
// solution, and batch job runs. Each task's workflow is the document
// itself, so a firing converges exactly what was declared. A schedule
// set to the delete sentinel retires the task.
func (o *Orchestrator) scheduleStage() Stage {
	run := func(ctx context.Context, pass *Pass) error {
		if o.scheduler == nil {
			return nil
		}
		doc := pass.Document
		workflow, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encoding workflow document: %w", err)
		}

		upsert := func(name, schedule string) error {
			if schedule == "" {
				return nil
			}
			if _, err := o.scheduler.Upsert(ctx, name, schedule, workflow); err != nil {
				return fmt.Errorf("registering task %s: %w", name, err)
			}
			o.log.WithField("task", name).Debug("schedule registered")
			return nil
		}

		groupName := doc.DatasetGroup.Name()
		if wc := doc.DatasetGroup.WorkflowConfig; wc != nil {
			if err := upsert(taskName("dataset-import", groupName), wc.Schedules["import"]); err != nil {
				return err
			}
		}

		for i := range doc.Solutions {
			sol := &doc.Solutions[i]
			wc := sol.WorkflowConfig
			if wc != nil {
				if err := upsert(taskName("solution-maintenance-full", sol.Name()), wc.Schedules["full"]); err != nil {
					return err
				}
				if err := upsert(taskName("solution-maintenance-update", sol.Name()), wc.Schedules["update"]); err != nil {
					return err
				}
			}
			if err := o.registerBatchJobs(upsert, "batch-inference", sol.Name(), sol.BatchInferenceJobs); err != nil {
				return err
			}
			if err := o.registerBatchJobs(upsert, "batch-segment", sol.Name(), sol.BatchSegmentJobs); err != nil {
				return err
			}
		}
		return nil
	}
	return Stage{Name: "schedules", Run: run}
}

func (o *Orchestrator) registerBatchJobs(upsert func(name, schedule string) error, prefix, solution string, jobs []config.ResourceConfig) error {
	for i := range jobs {
		wc := jobs[i].WorkflowConfig
		if wc == nil {
			continue
		}
		if err := upsert(taskName(prefix, solution), wc.Schedule); err != nil {
			return err
		}
	}
	return nil
}
