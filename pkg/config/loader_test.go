package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskmill.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoaderDefaults(t *testing.T) {
	t.Run("Should load and validate defaults", func(t *testing.T) {
		service := NewService()
		cfg, err := service.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "localhost:7233", cfg.Temporal.HostPort)
		assert.Equal(t, "default", cfg.Temporal.Namespace)
		assert.True(t, cfg.Worker.AutoStart)
		assert.Equal(t, 3, cfg.Worker.MaxRestarts)
		assert.Equal(t, 30*time.Second, cfg.Worker.ShutdownTimeout)
		assert.Equal(t, 10, cfg.Discovery.WaitAttempts)
		assert.Equal(t, SourceDefault, service.GetSource("worker.max_restarts"))
	})
}

func TestLoaderYAML(t *testing.T) {
	t.Run("Should override defaults from a sparse YAML file", func(t *testing.T) {
		path := writeYAML(t, `
temporal:
  host_port: temporal.internal:7233
worker:
  max_restarts: 5
`)
		service := NewService()
		cfg, err := service.Load(context.Background(), NewYAMLProvider(path))
		require.NoError(t, err)
		assert.Equal(t, "temporal.internal:7233", cfg.Temporal.HostPort)
		assert.Equal(t, 5, cfg.Worker.MaxRestarts)
		// Untouched keys keep their defaults.
		assert.Equal(t, "default", cfg.Temporal.Namespace)
		assert.True(t, cfg.Worker.AutoRestart)
		assert.Equal(t, SourceYAML, service.GetSource("worker.max_restarts"))
		assert.Equal(t, SourceDefault, service.GetSource("temporal.namespace"))
	})
	t.Run("Should treat a missing YAML file as empty", func(t *testing.T) {
		service := NewService()
		cfg, err := service.Load(context.Background(), NewYAMLProvider("/nonexistent/taskmill.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "localhost:7233", cfg.Temporal.HostPort)
	})
	t.Run("Should load worker definitions", func(t *testing.T) {
		path := writeYAML(t, `
worker:
  definitions:
    - task_queue: payments
      activity_classes: ["*billing.Service"]
    - task_queue: reports
      auto_start: false
`)
		service := NewService()
		cfg, err := service.Load(context.Background(), NewYAMLProvider(path))
		require.NoError(t, err)
		require.Len(t, cfg.Worker.Definitions, 2)
		assert.Equal(t, "payments", cfg.Worker.Definitions[0].TaskQueue)
		assert.Equal(t, []string{"*billing.Service"}, cfg.Worker.Definitions[0].ActivityClasses)
		require.NotNil(t, cfg.Worker.Definitions[1].AutoStart)
		assert.False(t, *cfg.Worker.Definitions[1].AutoStart)
	})
}

func TestLoaderEnvironment(t *testing.T) {
	t.Run("Should override YAML and defaults from environment", func(t *testing.T) {
		t.Setenv("TEMPORAL_HOST_PORT", "env.internal:7233")
		t.Setenv("WORKER_RESTART_DELAY", "10s")
		t.Setenv("TEMPORAL_API_KEY", "env-secret")
		path := writeYAML(t, `
temporal:
  host_port: yaml.internal:7233
`)
		service := NewService()
		cfg, err := service.Load(context.Background(), NewYAMLProvider(path))
		require.NoError(t, err)
		assert.Equal(t, "env.internal:7233", cfg.Temporal.HostPort)
		assert.Equal(t, 10*time.Second, cfg.Worker.RestartDelay)
		assert.Equal(t, "env-secret", cfg.Temporal.APIKey.Value())
		assert.Equal(t, "[REDACTED]", cfg.Temporal.APIKey.String())
		assert.Equal(t, SourceEnv, service.GetSource("temporal.host_port"))
	})
	t.Run("Should track sources when config values are maps", func(t *testing.T) {
		path := writeYAML(t, `
temporal:
  metadata:
    x-tenant: acme
`)
		service := NewService()
		var cfg *Config
		require.NotPanics(t, func() {
			var err error
			cfg, err = service.Load(context.Background(), NewYAMLProvider(path))
			require.NoError(t, err)
		})
		assert.Equal(t, "acme", cfg.Temporal.Metadata["x-tenant"])
		assert.Equal(t, SourceYAML, service.GetSource("temporal.metadata.x-tenant"))
	})
}

func TestLoaderValidation(t *testing.T) {
	t.Run("Should reject an invalid log level", func(t *testing.T) {
		path := writeYAML(t, `
runtime:
  log_level: verbose
`)
		_, err := NewService().Load(context.Background(), NewYAMLProvider(path))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
	})
	t.Run("Should reject duplicate worker definitions", func(t *testing.T) {
		path := writeYAML(t, `
worker:
  definitions:
    - task_queue: payments
    - task_queue: payments
`)
		_, err := NewService().Load(context.Background(), NewYAMLProvider(path))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate worker task queue")
	})
	t.Run("Should require a temporal host port", func(t *testing.T) {
		err := NewService().Validate(&Config{})
		require.Error(t, err)
	})
	t.Run("Should reject a nil configuration", func(t *testing.T) {
		require.Error(t, NewService().Validate(nil))
	})
}

func TestTransformEnvKey(t *testing.T) {
	t.Run("Should map env names to koanf paths", func(t *testing.T) {
		assert.Equal(t, "worker.max_restarts", transformEnvKey("WORKER_MAX_RESTARTS"))
		assert.Equal(t, "server.port", transformEnvKey("SERVER_PORT"))
		assert.Equal(t, "server", transformEnvKey("SERVER"))
		assert.Equal(t, "", transformEnvKey("___"))
	})
}
