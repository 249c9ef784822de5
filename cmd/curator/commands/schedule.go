package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/curator-ml/curator/pkg/scheduler"
	"github.com/curator-ml/curator/pkg/telemetry"
)

func newScheduleCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage recurring maintenance tasks",
		Long: `Manage the versioned task store that drives recurring maintenance
runs. Every change to a task produces a new version; the full history
is kept until the task is deleted.`,
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db", "curator.db", "task store database path")

	cmd.AddCommand(newScheduleListCommand(&dbPath))
	cmd.AddCommand(newSchedulePutCommand(&dbPath))
	cmd.AddCommand(newScheduleDeleteCommand(&dbPath))

	return cmd
}

// openService opens the task store and wraps it in the scheduling
// service. The caller closes the returned store.
func openService(ctx context.Context, dbPath string, log *telemetry.Logger, metrics *telemetry.Metrics) (*scheduler.Service, scheduler.Store, error) {
	store, err := scheduler.NewSQLiteStore(scheduler.StoreConfig{Path: dbPath})
	if err != nil {
		return nil, nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to open task store: %w", err)
	}
	return scheduler.NewService(store, log, metrics), store, nil
}

func newScheduleListCommand(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled tasks",
		Example: `  # List every task with its schedule and version
  curator schedule list`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, metrics, err := newTelemetry()
			if err != nil {
				return err
			}
			svc, store, err := openService(cmd.Context(), *dbPath, log, metrics)
			if err != nil {
				return err
			}
			defer store.Close()

			names, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Println("No tasks.")
				return nil
			}
			for _, name := range names {
				task, err := svc.Read(cmd.Context(), name)
				if err != nil {
					return err
				}
				status := "active"
				if !task.Active {
					status = "inactive"
				}
				fmt.Printf("%-40s v%-4d %-10s %s\n", task.Name, task.Version, status, task.Schedule)
			}
			return nil
		},
	}
}

func newSchedulePutCommand(dbPath *string) *cobra.Command {
	var (
		schedule     string
		workflowFile string
	)

	cmd := &cobra.Command{
		Use:   "put <name>",
		Short: "Create or update a task",
		Long: `Create or update a scheduled task. An existing task gets a new
version; putting identical schedule and workflow is a no-op. The
schedule "delete" removes the task instead.`,
		Example: `  # Run a maintenance workflow every night at 2am
  curator schedule put nightly-media --schedule "cron(0 2 * * ? *)" --workflow media.json

  # Remove a task via the delete sentinel
  curator schedule put nightly-media --schedule delete`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, metrics, err := newTelemetry()
			if err != nil {
				return err
			}
			svc, store, err := openService(cmd.Context(), *dbPath, log, metrics)
			if err != nil {
				return err
			}
			defer store.Close()

			var workflow json.RawMessage
			if workflowFile != "" {
				data, err := os.ReadFile(workflowFile)
				if err != nil {
					return fmt.Errorf("failed to read workflow: %w", err)
				}
				workflow = data
			}

			task, err := svc.Upsert(cmd.Context(), args[0], schedule, workflow)
			if err != nil {
				return err
			}
			if task == nil {
				fmt.Printf("Task %s removed.\n", args[0])
				return nil
			}
			fmt.Printf("Task %s at version %d, next invocation %s.\n", task.Name, task.Version, task.NextInvocationID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&schedule, "schedule", "s", "", `schedule expression, e.g. "cron(0 2 * * ? *)"`)
	cmd.Flags().StringVarP(&workflowFile, "workflow", "w", "", "workflow document file")
	cmd.MarkFlagRequired("schedule")

	return cmd
}

func newScheduleDeleteCommand(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a task and its version history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, metrics, err := newTelemetry()
			if err != nil {
				return err
			}
			svc, store, err := openService(cmd.Context(), *dbPath, log, metrics)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := svc.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Task %s removed.\n", args[0])
			return nil
		},
	}
}
