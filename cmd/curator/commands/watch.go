package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/curator-ml/curator/pkg/ingest"
	"github.com/curator-ml/curator/pkg/notify"
	"github.com/curator-ml/curator/pkg/orchestrate"
	"github.com/curator-ml/curator/pkg/provider"
	"github.com/curator-ml/curator/pkg/reconcile"
	"github.com/curator-ml/curator/pkg/resource"
	"github.com/curator-ml/curator/pkg/scheduler"
)

func newWatchCommand() *cobra.Command {
	var (
		dbPath        string
		runSchedules  bool
		metricsListen string
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Watch a directory for documents and converge them",
		Long: `Run as a daemon: watch a drop directory for desired-state documents,
validate each one and converge it. With --schedules the stored tasks
are loaded and their trigger loops started alongside the watcher.

Runs until interrupted.`,
		Example: `  # Watch a drop directory
  curator watch ./drop

  # Watch and run scheduled maintenance tasks too
  curator watch ./drop --schedules --db curator.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, metrics, err := newTelemetry()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			partition := resource.DefaultPartition
			engine := reconcile.New(provider.NewFake(partition), log, metrics)
			dispatcher := notify.NewDispatcher(log, metrics, notify.NewLogNotifier(log))
			orch := orchestrate.New(engine, dispatcher, partition, log)
			starter := orchestrate.NewStarter(orch, log)

			if runSchedules {
				svc, store, err := openService(ctx, dbPath, log, metrics)
				if err != nil {
					return err
				}
				defer store.Close()

				runner := scheduler.NewRunner(svc, starter, log, metrics)
				svc.SetRegistrar(runner)
				orch.SetScheduler(svc)
				if err := runner.StartAll(ctx); err != nil {
					return fmt.Errorf("failed to start trigger loops: %w", err)
				}
				defer runner.Shutdown()
			}

			if metricsListen != "" && metrics != nil {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				srv := &http.Server{Addr: metricsListen, Handler: mux}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.WithError(err).Error("Metrics endpoint failed")
					}
				}()
				defer srv.Close()
				log.WithField("listen", metricsListen).Info("Serving metrics")
			}

			watcher := ingest.New(args[0], starter, log)
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "curator.db", "task store database path")
	cmd.Flags().BoolVar(&runSchedules, "schedules", false, "start trigger loops for stored tasks")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", `serve Prometheus metrics on this address, e.g. ":9464"`)

	return cmd
}
