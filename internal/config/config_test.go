package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ConnectionStyleAutonomous, cfg.ConnectionStyle.Kind)
}

func TestLoadParsesYAMLAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `
worker_name: gnb-cu-cp-test
plmn:
  mcc: "002"
  mnc: "f8"
ip_address: 127.0.0.1
f1_bind_address: 0.0.0.0:38472
e1_bind_address: 0.0.0.0:38462
connection_style:
  kind: coordinated
  coordinated:
    coordinator_base_url: http://coordinator:9000
    connection_api_address: 0.0.0.0:9100
ue_store:
  backend: memory
  ttl_seconds: 3600
  sweep_seconds: 30
refresh_interval_seconds: 10
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ConnectionStyleCoordinated, cfg.ConnectionStyle.Kind)
	assert.Equal(t, "http://coordinator:9000", cfg.ConnectionStyle.Coordinated.CoordinatorBaseURL)
}

func TestValidateRejectsBothStylesPresent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConnectionStyle.Coordinated = &WorkerConnectionManagementConfig{CoordinatorBaseURL: "x"}
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidateRejectsRedisBackendWithoutURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UEStore.Backend = "redis"
	cfg.UEStore.RedisURL = ""
	err := cfg.Validate()
	assert.Error(t, err)
}
