package models

import (
	"time"
)

const (
	BackendSwarm  = "swarm"
	BackendPodman = "podman"

	DefaultConfigsDir      = "/inputs/config"
	DefaultSecretsDir      = "/run/secrets"
	DefaultServicesDir     = "/inputs/config/services"
	DefaultStartupTimeout  = 5 * time.Minute
	DefaultPollInterval    = 500 * time.Millisecond
	DefaultMaxPollInterval = 10 * time.Second
	DefaultPullRetryWindow = 2 * time.Minute
)

type Configuration struct {
	Stack           string `json:"stack" validate:"required,hostname_rfc1123"`
	Backend         string `json:"backend" validate:"required,oneof=swarm podman"` // "swarm" | "podman"
	BackendEndpoint string `json:"backend_endpoint,omitempty"`                     // engine or podman socket, e.g. unix:///run/podman/podman.sock

	// Source-of-truth directories for named objects
	ConfigsDir string `json:"configs_dir,omitempty"`
	SecretsDir string `json:"secrets_dir,omitempty"`

	// Directory holding service descriptors and the ones to reconcile.
	// An empty Services list means every descriptor in the directory.
	ServicesDir string   `json:"services_dir,omitempty"`
	Services    []string `json:"services,omitempty"`

	StartupTimeout  Duration `json:"startup_timeout,omitempty"`
	PollInterval    Duration `json:"poll_interval,omitempty"`
	MaxPollInterval Duration `json:"max_poll_interval,omitempty"`
	PullRetryWindow Duration `json:"pull_retry_window,omitempty"`

	SkipBindSourceCheck bool `json:"skip_bind_source_check,omitempty"`

	// Teardown removes the stack's units, named objects and network instead
	// of reconciling.
	Teardown bool `json:"teardown,omitempty"`

	Logging LoggingConfig `json:"logging"`
	Metrics MetricsConfig `json:"metrics"`
}

type LoggingConfig struct {
	Level  string `json:"level,omitempty" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `json:"format,omitempty" validate:"omitempty,oneof=json console"`
	Output string `json:"output,omitempty"` // stdout | stderr | file path
}

type MetricsConfig struct {
	Enabled   bool   `json:"enabled,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Listen    string `json:"listen,omitempty" validate:"required_if=Enabled true"`
}

// ApplyDefaults fills every unset optional field.
func (c *Configuration) ApplyDefaults() {
	if c.ConfigsDir == "" {
		c.ConfigsDir = DefaultConfigsDir
	}
	if c.SecretsDir == "" {
		c.SecretsDir = DefaultSecretsDir
	}
	if c.ServicesDir == "" {
		c.ServicesDir = DefaultServicesDir
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = Duration(DefaultStartupTimeout)
	}
	if c.PollInterval <= 0 {
		c.PollInterval = Duration(DefaultPollInterval)
	}
	if c.MaxPollInterval <= 0 {
		c.MaxPollInterval = Duration(DefaultMaxPollInterval)
	}
	if c.MaxPollInterval < c.PollInterval {
		c.MaxPollInterval = c.PollInterval
	}
	if c.PullRetryWindow <= 0 {
		c.PullRetryWindow = Duration(DefaultPullRetryWindow)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "stack_reconciler"
	}
}
