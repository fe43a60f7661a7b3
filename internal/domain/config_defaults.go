package domain

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"
)

const (
	DefaultLicense   = "https://creativecommons.org/licenses/by-nc-sa/4.0/"
	DefaultPublicURL = "http://localhost:3000"
	DefaultVersion   = "0.0.0"
)

func DefaultConfig() *Config {
	return &Config{
		Storage:    DefaultStorageConfig(),
		Engine:     DefaultEngineConfig(),
		ValueCache: DefaultValueCacheConfig(),
		Compute:    DefaultComputeConfig(),
		Export:     DefaultExportConfig(),
		Tracing:    DefaultTracingConfig(),
		Metrics:    MetricsConfig{Enabled: true},
	}
}

func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Backend:        StorageBadger,
		ObjectIDPrefix: "urn:playbook:bco:",
	}
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxConcurrentResolves: 8,
		ResolveTimeout:        10 * time.Minute,
	}
}

func DefaultValueCacheConfig() ValueCacheConfig {
	return ValueCacheConfig{
		Backend:         ValueCacheNone,
		TTL:             time.Hour,
		CleanupInterval: 10 * time.Minute,
	}
}

func DefaultComputeConfig() ComputeConfig {
	return ComputeConfig{
		Mode:    ComputeLocal,
		Timeout: 5 * time.Minute,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
			MaxRequests:      1,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 10,
			BurstSize:         10,
		},
	}
}

func DefaultExportConfig() ExportConfig {
	return ExportConfig{
		PublicURL: DefaultPublicURL,
		Version:   DefaultVersion,
		License:   DefaultLicense,
		Platform:  []string{"Debian GNU/Linux 11"},
		SoftwarePrerequisites: []SoftwarePrerequisite{
			{
				Name:    "Docker",
				Version: "20.10.21",
				URI:     URI{URI: "https://docs.docker.com/get-docker/"},
			},
		},
		ScriptDriver:   "shell",
		ScriptURI:      "https://github.com/nih-cfde/playbook-partnership/tree/dev/cli/playbook-partnership-executor.sh",
		ScriptFilename: "playbook-partnership-executor.sh",
	}
}

func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		Enabled:     false,
		Exporter:    "stdout",
		ServiceName: "playbook",
		SampleRate:  1.0,
	}
}

func NewConfigFromSimple(dataDir string, logger *slog.Logger) *Config {
	config := DefaultConfig()
	config.DataDir = dataDir
	config.Logger = logger

	if logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return config
}

func (c *Config) WithStorage(backend StorageBackend, path string) *Config {
	c.Storage.Backend = backend
	c.Storage.Path = path
	return c
}

func (c *Config) WithInMemoryStorage() *Config {
	c.Storage.InMemory = true
	return c
}

func (c *Config) WithValueCache(backend ValueCacheBackend, ttl time.Duration) *Config {
	c.ValueCache.Backend = backend
	if ttl > 0 {
		c.ValueCache.TTL = ttl
	}
	return c
}

func (c *Config) WithProcessCompute(command ...string) *Config {
	c.Compute.Mode = ComputeProcess
	c.Compute.Command = command
	return c
}

func (c *Config) WithGRPCCompute(address string) *Config {
	c.Compute.Mode = ComputeGRPC
	c.Compute.Address = address
	return c
}

func (c *Config) WithEngineSettings(maxConcurrent int, resolveTimeout time.Duration) *Config {
	c.Engine.MaxConcurrentResolves = maxConcurrent
	c.Engine.ResolveTimeout = resolveTimeout
	return c
}

func (c *Config) WithPublicURL(url string) *Config {
	c.Export.PublicURL = url
	return c
}

// StoragePath resolves the storage location relative to DataDir.
func (c *Config) StoragePath() string {
	path := c.Storage.Path
	if path == "" {
		switch c.Storage.Backend {
		case StorageSQLite:
			path = "playbook.db"
		default:
			path = "badger"
		}
	}
	if !filepath.IsAbs(path) && c.DataDir != "" {
		path = filepath.Join(c.DataDir, path)
	}
	return path
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return NewConfigError("logger", ErrInvalidInput)
	}

	switch c.Storage.Backend {
	case StorageBadger, StorageSQLite:
		if c.DataDir == "" && c.Storage.Path == "" && !c.Storage.InMemory {
			return NewConfigError("data_dir", ErrInvalidInput)
		}
	case StorageMemory:
	default:
		return NewConfigError("storage.backend", fmt.Errorf("%w: %q", ErrInvalidInput, c.Storage.Backend))
	}

	if c.Engine.MaxConcurrentResolves <= 0 {
		return NewConfigError("engine.max_concurrent_resolves", ErrInvalidInput)
	}
	if c.Engine.ResolveTimeout < 0 {
		return NewConfigError("engine.resolve_timeout", ErrInvalidInput)
	}

	switch c.ValueCache.Backend {
	case ValueCacheNone, ValueCacheMemory, ValueCacheStorage, "":
	default:
		return NewConfigError("value_cache.backend", fmt.Errorf("%w: %q", ErrInvalidInput, c.ValueCache.Backend))
	}

	switch c.Compute.Mode {
	case ComputeNone, ComputeLocal, "":
	case ComputeProcess:
		if len(c.Compute.Command) == 0 {
			return NewConfigError("compute.command", ErrInvalidInput)
		}
	case ComputeGRPC:
		if c.Compute.Address == "" {
			return NewConfigError("compute.address", ErrInvalidInput)
		}
	default:
		return NewConfigError("compute.mode", fmt.Errorf("%w: %q", ErrInvalidInput, c.Compute.Mode))
	}
	if c.Compute.RateLimit.Enabled && c.Compute.RateLimit.RequestsPerSecond <= 0 {
		return NewConfigError("compute.rate_limit.requests_per_second", ErrInvalidInput)
	}

	if c.Export.PublicURL == "" {
		return NewConfigError("export.public_url", ErrInvalidInput)
	}

	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "stdout", "none":
		default:
			return NewConfigError("tracing.exporter", fmt.Errorf("%w: %q", ErrInvalidInput, c.Tracing.Exporter))
		}
	}

	return nil
}

type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config field %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() []error {
	return []error{ErrInvalidConfig, e.Err}
}

func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{
		Field: field,
		Err:   err,
	}
}
