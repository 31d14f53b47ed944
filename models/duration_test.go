package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDurationJSON(t *testing.T) {
	var v struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"90s","b":1000000000}`), &v))
	assert.Equal(t, 90*time.Second, v.A.Std())
	assert.Equal(t, time.Second, v.B.Std())

	assert.Error(t, json.Unmarshal([]byte(`{"a":"soon"}`), &v))
}

func TestDurationYAML(t *testing.T) {
	var v struct {
		A Duration `yaml:"a"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("a: 2m\n"), &v))
	assert.Equal(t, 2*time.Minute, v.A.Std())
}

func TestApplyDefaults(t *testing.T) {
	cfg := Configuration{Stack: "s", Backend: BackendSwarm, PollInterval: Duration(time.Minute)}
	cfg.ApplyDefaults()

	assert.Equal(t, DefaultConfigsDir, cfg.ConfigsDir)
	assert.Equal(t, DefaultSecretsDir, cfg.SecretsDir)
	assert.Equal(t, DefaultServicesDir, cfg.ServicesDir)
	assert.Equal(t, DefaultStartupTimeout, cfg.StartupTimeout.Std())
	assert.Equal(t, time.Minute, cfg.MaxPollInterval.Std())
	assert.Equal(t, "info", cfg.Logging.Level)
}
