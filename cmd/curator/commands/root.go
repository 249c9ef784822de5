package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/curator-ml/curator/pkg/telemetry"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "curator",
		Short: "Curator - personalization resource lifecycle manager",
		Long: `Curator keeps a fleet of personalization resources converged on a
declarative desired-state document.

Features:
  - Declarative JSON documents describing dataset groups, solutions,
    campaigns and their supporting resources
  - Convergence with backoff until every resource is stable
  - Versioned cron schedules for recurring maintenance runs
  - Notifications on resource creation and stabilization`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "settings file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newReconcileCommand())
	rootCmd.AddCommand(newScheduleCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}

// newTelemetry builds the logger and metrics from the settings file,
// honoring the global verbosity flag.
func newTelemetry() (*telemetry.Logger, *telemetry.Metrics, error) {
	cfg, err := telemetry.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	log, err := telemetry.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	var metrics *telemetry.Metrics
	if cfg.Metrics.Enabled {
		metrics = telemetry.NewMetrics(cfg.Metrics)
	}
	return log, metrics, nil
}
