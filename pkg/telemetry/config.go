package telemetry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "json" or "console".
	Format string `yaml:"format"`

	// Output is "stdout", "stderr", or a file path.
	Output string `yaml:"output"`

	// EnableCaller adds file:line caller information.
	EnableCaller bool `yaml:"enable_caller"`
}

// MetricsConfig configures the Prometheus registry.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`

	// Listen is the metrics endpoint address, e.g. ":9464".
	Listen string `yaml:"listen"`
}

// Config is the daemon's own settings document.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// DefaultConfig returns the settings used when no file is supplied.
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stderr"},
		Metrics: MetricsConfig{Enabled: true, Namespace: "curator"},
	}
}

// LoadConfig reads a YAML settings file, layering it over defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
