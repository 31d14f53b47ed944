package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadConfigurationAppliesDefaults(t *testing.T) {
	t.Setenv("STACK_NAME", "")
	p := writeConfig(t, `{"stack":"demo","backend":"podman","startup_timeout":"30s"}`)

	cfg, err := loadConfiguration(p)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Stack)
	assert.Equal(t, 30*time.Second, cfg.StartupTimeout.Std())
	assert.Equal(t, models.DefaultConfigsDir, cfg.ConfigsDir)
	assert.Equal(t, models.DefaultPollInterval, cfg.PollInterval.Std())
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfigurationStackFromEnv(t *testing.T) {
	t.Setenv("STACK_NAME", "override")
	p := writeConfig(t, `{"backend":"swarm"}`)

	cfg, err := loadConfiguration(p)
	require.NoError(t, err)
	assert.Equal(t, "override", cfg.Stack)
}

func TestLoadConfigurationRejectsInvalid(t *testing.T) {
	t.Setenv("STACK_NAME", "")

	tests := map[string]string{
		"unknown backend": `{"stack":"demo","backend":"k8s"}`,
		"missing stack":   `{"backend":"swarm"}`,
		"metrics listen":  `{"stack":"demo","backend":"swarm","metrics":{"enabled":true}}`,
		"bad log level":   `{"stack":"demo","backend":"swarm","logging":{"level":"loud"}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := loadConfiguration(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigurationMissingFile(t *testing.T) {
	_, err := loadConfiguration(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestSelectBackend(t *testing.T) {
	t.Setenv("PODMAN_ENDPOINT", "")

	b, err := selectBackend(models.Configuration{Backend: models.BackendPodman, BackendEndpoint: "tcp://127.0.0.1:8080"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, models.BackendPodman, b.Name())

	_, err = selectBackend(models.Configuration{Backend: "k8s"}, zerolog.Nop())
	assert.Error(t, err)
}
