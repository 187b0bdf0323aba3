package config

import (
	"context"
	"time"
)

// Config is the complete configuration for a taskmill application.
type Config struct {
	Server    ServerConfig    `koanf:"server"    validate:"required"`
	Temporal  TemporalConfig  `koanf:"temporal"  validate:"required"`
	Worker    WorkerConfig    `koanf:"worker"    validate:"required"`
	Discovery DiscoveryConfig `koanf:"discovery"`
	Runtime   RuntimeConfig   `koanf:"runtime"   validate:"required"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host    string        `koanf:"host"    validate:"required"        env:"SERVER_HOST"`
	Port    int           `koanf:"port"    validate:"min=1,max=65535" env:"SERVER_PORT"`
	Timeout time.Duration `koanf:"timeout"                            env:"SERVER_TIMEOUT"`
}

// TemporalConfig contains the Temporal connection configuration.
type TemporalConfig struct {
	HostPort   string            `koanf:"host_port"   env:"TEMPORAL_HOST_PORT"`
	Namespace  string            `koanf:"namespace"   env:"TEMPORAL_NAMESPACE"`
	TaskQueue  string            `koanf:"task_queue"  env:"TEMPORAL_TASK_QUEUE"`
	APIKey     SensitiveString   `koanf:"api_key"     env:"TEMPORAL_API_KEY"     sensitive:"true"`
	TLSEnabled bool              `koanf:"tls_enabled" env:"TEMPORAL_TLS_ENABLED"`
	Metadata   map[string]string `koanf:"metadata"`
}

// WorkerConfig contains worker lifecycle configuration.
type WorkerConfig struct {
	AutoStart              bool               `koanf:"auto_start"               env:"WORKER_AUTO_START"`
	AutoRestart            bool               `koanf:"auto_restart"             env:"WORKER_AUTO_RESTART"`
	MaxRestarts            int                `koanf:"max_restarts"             env:"WORKER_MAX_RESTARTS"     validate:"min=0"`
	RestartDelay           time.Duration      `koanf:"restart_delay"            env:"WORKER_RESTART_DELAY"`
	AllowConnectionFailure bool               `koanf:"allow_connection_failure" env:"WORKER_ALLOW_CONNECTION_FAILURE"`
	ShutdownTimeout        time.Duration      `koanf:"shutdown_timeout"         env:"WORKER_SHUTDOWN_TIMEOUT"`
	WorkflowsPath          string             `koanf:"workflows_path"           env:"WORKER_WORKFLOWS_PATH"`
	Definitions            []WorkerDefinition `koanf:"definitions"`
}

// WorkerDefinition configures one worker bound to a task queue.
type WorkerDefinition struct {
	TaskQueue       string   `koanf:"task_queue" validate:"required"`
	Namespace       string   `koanf:"namespace"`
	ActivityClasses []string `koanf:"activity_classes"`
	WorkflowsPath   string   `koanf:"workflows_path"`
	AutoStart       *bool    `koanf:"auto_start"`
}

// DiscoveryConfig bounds the wait for container scanning at bootstrap.
type DiscoveryConfig struct {
	WaitAttempts int           `koanf:"wait_attempts" validate:"min=1" env:"DISCOVERY_WAIT_ATTEMPTS"`
	WaitInterval time.Duration `koanf:"wait_interval"                  env:"DISCOVERY_WAIT_INTERVAL"`
}

// RuntimeConfig contains runtime behavior configuration.
type RuntimeConfig struct {
	Environment string `koanf:"environment" validate:"oneof=development staging production" env:"RUNTIME_ENVIRONMENT"`
	LogLevel    string `koanf:"log_level"   validate:"oneof=debug info warn error"          env:"RUNTIME_LOG_LEVEL"`
}

// Service defines the configuration management interface.
type Service interface {
	// Load loads configuration from the specified sources with precedence
	// order: defaults, then sources in order, then environment variables.
	Load(ctx context.Context, sources ...Source) (*Config, error)
	// Validate checks if the configuration meets all validation requirements.
	Validate(config *Config) error
	// GetSource returns the source type that provided a configuration key.
	GetSource(key string) SourceType
}

// Source defines the interface for configuration sources.
type Source interface {
	Load() (map[string]any, error)
	Type() SourceType
}

// SourceType identifies the type of configuration source.
type SourceType string

const (
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceDefault SourceType = "default"
)

// Metadata records which source provided each configuration key.
type Metadata struct {
	Sources  map[string]SourceType `json:"sources"`
	LoadedAt time.Time             `json:"loaded_at"`
}

// Default returns a Config with development defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    5400,
			Timeout: 30 * time.Second,
		},
		Temporal: TemporalConfig{
			HostPort:  "localhost:7233",
			Namespace: "default",
			TaskQueue: "taskmill",
		},
		Worker: WorkerConfig{
			AutoStart:       true,
			AutoRestart:     true,
			MaxRestarts:     3,
			RestartDelay:    5 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Discovery: DiscoveryConfig{
			WaitAttempts: 10,
			WaitInterval: 100 * time.Millisecond,
		},
		Runtime: RuntimeConfig{
			Environment: "development",
			LogLevel:    "info",
		},
	}
}

// Load loads configuration using the default service.
func Load() (*Config, error) {
	service := NewService()
	return service.Load(context.Background())
}
