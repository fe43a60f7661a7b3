package playbook

import (
	"log/slog"
	"time"

	"github.com/eleven-am/playbook/internal/domain"
)

type Config = domain.Config

type StorageConfig = domain.StorageConfig

type EngineConfig = domain.EngineConfig

type ValueCacheConfig = domain.ValueCacheConfig

type ComputeConfig = domain.ComputeConfig

type ExportConfig = domain.ExportConfig

type TracingConfig = domain.TracingConfig

type StorageBackend = domain.StorageBackend

const (
	StorageBadger StorageBackend = domain.StorageBadger
	StorageSQLite StorageBackend = domain.StorageSQLite
	StorageMemory StorageBackend = domain.StorageMemory
)

type ValueCacheBackend = domain.ValueCacheBackend

const (
	ValueCacheNone    ValueCacheBackend = domain.ValueCacheNone
	ValueCacheMemory  ValueCacheBackend = domain.ValueCacheMemory
	ValueCacheStorage ValueCacheBackend = domain.ValueCacheStorage
)

type ComputeMode = domain.ComputeMode

const (
	ComputeNone    ComputeMode = domain.ComputeNone
	ComputeLocal   ComputeMode = domain.ComputeLocal
	ComputeProcess ComputeMode = domain.ComputeProcess
	ComputeGRPC    ComputeMode = domain.ComputeGRPC
)

func DefaultConfig() *Config {
	return domain.DefaultConfig()
}

func DefaultEngineConfig() EngineConfig {
	return domain.DefaultEngineConfig()
}

func DefaultComputeConfig() ComputeConfig {
	return domain.DefaultComputeConfig()
}

func DefaultExportConfig() ExportConfig {
	return domain.DefaultExportConfig()
}

type ConfigBuilder struct {
	config *Config
}

func NewConfigBuilder(dataDir string) *ConfigBuilder {
	return &ConfigBuilder{config: domain.NewConfigFromSimple(dataDir, nil)}
}

func (cb *ConfigBuilder) WithLogger(logger *slog.Logger) *ConfigBuilder {
	cb.config.Logger = logger
	return cb
}

func (cb *ConfigBuilder) WithStorage(backend StorageBackend, path string) *ConfigBuilder {
	cb.config.WithStorage(backend, path)
	return cb
}

func (cb *ConfigBuilder) WithInMemoryStorage() *ConfigBuilder {
	cb.config.WithInMemoryStorage()
	return cb
}

func (cb *ConfigBuilder) WithValueCache(backend ValueCacheBackend, ttl time.Duration) *ConfigBuilder {
	cb.config.WithValueCache(backend, ttl)
	return cb
}

func (cb *ConfigBuilder) WithProcessCompute(command ...string) *ConfigBuilder {
	cb.config.WithProcessCompute(command...)
	return cb
}

func (cb *ConfigBuilder) WithGRPCCompute(address string) *ConfigBuilder {
	cb.config.WithGRPCCompute(address)
	return cb
}

func (cb *ConfigBuilder) WithoutCompute() *ConfigBuilder {
	cb.config.Compute.Mode = domain.ComputeNone
	return cb
}

func (cb *ConfigBuilder) WithEngineSettings(maxConcurrent int, resolveTimeout time.Duration) *ConfigBuilder {
	cb.config.WithEngineSettings(maxConcurrent, resolveTimeout)
	return cb
}

func (cb *ConfigBuilder) WithPublicURL(url string) *ConfigBuilder {
	cb.config.WithPublicURL(url)
	return cb
}

func (cb *ConfigBuilder) WithTracing(exporter string, sampleRate float64) *ConfigBuilder {
	cb.config.Tracing.Enabled = true
	cb.config.Tracing.Exporter = exporter
	cb.config.Tracing.SampleRate = sampleRate
	return cb
}

func (cb *ConfigBuilder) WithoutMetrics() *ConfigBuilder {
	cb.config.Metrics.Enabled = false
	return cb
}

// WithOverrides overlays the non-zero fields of override.
func (cb *ConfigBuilder) WithOverrides(override *Config) *ConfigBuilder {
	if err := cb.config.Merge(override); err != nil {
		cb.config.Logger.Warn("ignoring config overrides", "error", err)
	}
	return cb
}

func (cb *ConfigBuilder) Build() *Config {
	return cb.config
}
