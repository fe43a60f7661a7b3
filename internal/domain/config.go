package domain

import (
	"log/slog"
	"time"
)

type Config struct {
	DataDir string       `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	Logger  *slog.Logger `json:"-" yaml:"-" mapstructure:"-"`

	Storage    StorageConfig    `json:"storage" yaml:"storage" mapstructure:"storage"`
	Engine     EngineConfig     `json:"engine" yaml:"engine" mapstructure:"engine"`
	ValueCache ValueCacheConfig `json:"value_cache" yaml:"value_cache" mapstructure:"value_cache"`
	Compute    ComputeConfig    `json:"compute" yaml:"compute" mapstructure:"compute"`
	Export     ExportConfig     `json:"export" yaml:"export" mapstructure:"export"`
	Tracing    TracingConfig    `json:"tracing" yaml:"tracing" mapstructure:"tracing"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}

type StorageBackend string

const (
	StorageBadger StorageBackend = "badger"
	StorageSQLite StorageBackend = "sqlite"
	StorageMemory StorageBackend = "memory"
)

type StorageConfig struct {
	Backend  StorageBackend `json:"backend" yaml:"backend" mapstructure:"backend"`
	Path     string         `json:"path,omitempty" yaml:"path,omitempty" mapstructure:"path"`
	InMemory bool           `json:"in_memory" yaml:"in_memory" mapstructure:"in_memory"`
	// ObjectIDPrefix is prepended to minted BCO object ids.
	ObjectIDPrefix string `json:"object_id_prefix" yaml:"object_id_prefix" mapstructure:"object_id_prefix"`
}

type EngineConfig struct {
	MaxConcurrentResolves int           `json:"max_concurrent_resolves" yaml:"max_concurrent_resolves" mapstructure:"max_concurrent_resolves"`
	ResolveTimeout        time.Duration `json:"resolve_timeout" yaml:"resolve_timeout" mapstructure:"resolve_timeout"`
}

type ValueCacheBackend string

const (
	ValueCacheNone    ValueCacheBackend = "none"
	ValueCacheMemory  ValueCacheBackend = "memory"
	ValueCacheStorage ValueCacheBackend = "storage"
)

type ValueCacheConfig struct {
	Backend         ValueCacheBackend `json:"backend" yaml:"backend" mapstructure:"backend"`
	TTL             time.Duration     `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
	CleanupInterval time.Duration     `json:"cleanup_interval" yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
}

type ComputeMode string

const (
	ComputeNone    ComputeMode = "none"
	ComputeLocal   ComputeMode = "local"
	ComputeProcess ComputeMode = "process"
	ComputeGRPC    ComputeMode = "grpc"
)

type ComputeConfig struct {
	Mode           ComputeMode          `json:"mode" yaml:"mode" mapstructure:"mode"`
	Command        []string             `json:"command,omitempty" yaml:"command,omitempty" mapstructure:"command"`
	Address        string               `json:"address,omitempty" yaml:"address,omitempty" mapstructure:"address"`
	Timeout        time.Duration        `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker" mapstructure:"circuit_breaker"`
	RateLimit      RateLimitConfig      `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	FailureThreshold int           `json:"failure_threshold" yaml:"failure_threshold" mapstructure:"failure_threshold"`
	SuccessThreshold int           `json:"success_threshold" yaml:"success_threshold" mapstructure:"success_threshold"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	MaxRequests      int           `json:"max_requests" yaml:"max_requests" mapstructure:"max_requests"`
}

type RateLimitConfig struct {
	Enabled           bool    `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `json:"burst_size" yaml:"burst_size" mapstructure:"burst_size"`
}

type ExportConfig struct {
	PublicURL             string                 `json:"public_url" yaml:"public_url" mapstructure:"public_url"`
	Version               string                 `json:"version" yaml:"version" mapstructure:"version"`
	License               string                 `json:"license" yaml:"license" mapstructure:"license"`
	Platform              []string               `json:"platform" yaml:"platform" mapstructure:"platform"`
	SoftwarePrerequisites []SoftwarePrerequisite `json:"software_prerequisites" yaml:"software_prerequisites" mapstructure:"software_prerequisites"`
	ScriptDriver          string                 `json:"script_driver" yaml:"script_driver" mapstructure:"script_driver"`
	ScriptURI             string                 `json:"script_uri" yaml:"script_uri" mapstructure:"script_uri"`
	ScriptFilename        string                 `json:"script_filename" yaml:"script_filename" mapstructure:"script_filename"`
}

type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Exporter    string  `json:"exporter" yaml:"exporter" mapstructure:"exporter"`
	ServiceName string  `json:"service_name" yaml:"service_name" mapstructure:"service_name"`
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate" mapstructure:"sample_rate"`
}

type MetricsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
}
