package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/curator-ml/curator/pkg/config"
	"github.com/curator-ml/curator/pkg/notify"
	"github.com/curator-ml/curator/pkg/orchestrate"
	"github.com/curator-ml/curator/pkg/provider"
	"github.com/curator-ml/curator/pkg/reconcile"
	"github.com/curator-ml/curator/pkg/resource"
)

func newReconcileCommand() *cobra.Command {
	var (
		region  string
		account string
	)

	cmd := &cobra.Command{
		Use:   "reconcile <file>",
		Short: "Converge a desired-state document",
		Long: `Validate a desired-state document and drive every resource in it to a
stable state, creating what is missing and retrying what is pending.

Runs against the in-memory provider, which simulates resource
lifecycles locally. Convergence stops with an error on the first
resource that fails or drifts beyond repair.`,
		Example: `  # Converge a document
  curator reconcile media.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, metrics, err := newTelemetry()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read document: %w", err)
			}
			doc, errs := config.NewValidator().Validate(data)
			if len(errs) > 0 {
				for _, msg := range errs {
					fmt.Fprintln(os.Stderr, " -", msg)
				}
				return fmt.Errorf("document rejected with %d problem(s)", len(errs))
			}

			partition := resource.DefaultPartition
			partition.Region = region
			partition.Account = account

			engine := reconcile.New(provider.NewFake(partition), log, metrics)
			dispatcher := notify.NewDispatcher(log, metrics, notify.NewLogNotifier(log))
			orch := orchestrate.New(engine, dispatcher, partition, log)

			pass, err := orch.Converge(cmd.Context(), doc)
			for _, item := range pass.Items {
				fmt.Printf("%-22s %-40s %s\n", item.Kind, item.Name, item.Outcome.Tag)
			}
			if err != nil {
				return fmt.Errorf("convergence failed: %w", err)
			}
			fmt.Printf("Converged %d resource(s).\n", len(pass.Items))
			return nil
		},
	}

	cmd.Flags().StringVar(&region, "region", resource.DefaultPartition.Region, "partition region for generated identifiers")
	cmd.Flags().StringVar(&account, "account", resource.DefaultPartition.Account, "partition account for generated identifiers")

	return cmd
}
