package domain

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name          string
		setupConfig   func() *Config
		expectedField string
	}{
		{
			name: "defaults_with_data_dir",
			setupConfig: func() *Config {
				return NewConfigFromSimple("/tmp/playbook", testLogger())
			},
		},
		{
			name: "nil_logger",
			setupConfig: func() *Config {
				c := DefaultConfig()
				c.DataDir = "/tmp/playbook"
				return c
			},
			expectedField: "logger",
		},
		{
			name: "badger_without_location",
			setupConfig: func() *Config {
				return NewConfigFromSimple("", testLogger())
			},
			expectedField: "data_dir",
		},
		{
			name: "memory_backend_needs_no_dir",
			setupConfig: func() *Config {
				return NewConfigFromSimple("", testLogger()).WithStorage(StorageMemory, "")
			},
		},
		{
			name: "unknown_backend",
			setupConfig: func() *Config {
				return NewConfigFromSimple("/tmp", testLogger()).WithStorage("etcd", "")
			},
			expectedField: "storage.backend",
		},
		{
			name: "zero_concurrency",
			setupConfig: func() *Config {
				return NewConfigFromSimple("/tmp", testLogger()).WithEngineSettings(0, time.Second)
			},
			expectedField: "engine.max_concurrent_resolves",
		},
		{
			name: "process_compute_without_command",
			setupConfig: func() *Config {
				return NewConfigFromSimple("/tmp", testLogger()).WithProcessCompute()
			},
			expectedField: "compute.command",
		},
		{
			name: "grpc_compute_without_address",
			setupConfig: func() *Config {
				return NewConfigFromSimple("/tmp", testLogger()).WithGRPCCompute("")
			},
			expectedField: "compute.address",
		},
		{
			name: "empty_public_url",
			setupConfig: func() *Config {
				return NewConfigFromSimple("/tmp", testLogger()).WithPublicURL("")
			},
			expectedField: "export.public_url",
		},
		{
			name: "unknown_tracing_exporter",
			setupConfig: func() *Config {
				c := NewConfigFromSimple("/tmp", testLogger())
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "jaeger"
				return c
			},
			expectedField: "tracing.exporter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.setupConfig().Validate()
			if tt.expectedField == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			var configErr *ConfigError
			require.True(t, errors.As(err, &configErr))
			assert.Equal(t, tt.expectedField, configErr.Field)
			assert.True(t, IsInvalidConfig(err))
		})
	}
}

func TestConfig_StoragePath(t *testing.T) {
	c := NewConfigFromSimple("/data", testLogger())
	assert.Equal(t, "/data/badger", c.StoragePath())

	c.WithStorage(StorageSQLite, "")
	assert.Equal(t, "/data/playbook.db", c.StoragePath())

	c.WithStorage(StorageSQLite, "/abs/store.db")
	assert.Equal(t, "/abs/store.db", c.StoragePath())
}

func TestConfig_Merge(t *testing.T) {
	base := NewConfigFromSimple("/data", testLogger())
	override := &Config{
		Engine:  EngineConfig{MaxConcurrentResolves: 2},
		Export:  ExportConfig{PublicURL: "https://playbook.example.org", Platform: []string{"Ubuntu 24.04"}},
		Compute: ComputeConfig{Mode: ComputeGRPC, Address: "localhost:9090"},
	}

	require.NoError(t, base.Merge(override))

	assert.Equal(t, 2, base.Engine.MaxConcurrentResolves)
	assert.Equal(t, 10*time.Minute, base.Engine.ResolveTimeout)
	assert.Equal(t, "https://playbook.example.org", base.Export.PublicURL)
	assert.Equal(t, []string{"Ubuntu 24.04"}, base.Export.Platform)
	assert.Equal(t, DefaultLicense, base.Export.License)
	assert.Equal(t, ComputeGRPC, base.Compute.Mode)
	assert.NotNil(t, base.Logger)
	assert.NoError(t, base.Validate())

	assert.NoError(t, base.Merge(nil))
}

func TestMergeMeta_FillsDefaults(t *testing.T) {
	meta := Meta{Label: "Gene", Tags: map[string]map[string]float64{"Type": {"Gene": 1}}}
	merged, err := MergeMeta(meta, Meta{Version: DefaultNodeVersion, Label: "ignored"})
	require.NoError(t, err)

	assert.Equal(t, "Gene", merged.Label)
	assert.Equal(t, DefaultNodeVersion, merged.Version)
	assert.Equal(t, 1.0, merged.Tags["Type"]["Gene"])
}
