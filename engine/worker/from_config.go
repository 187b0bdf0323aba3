package worker

import (
	"crypto/tls"

	appconfig "github.com/taskmill/taskmill/pkg/config"
)

// FromAppConfig maps the application configuration onto a manager config.
// Workflow bundles cannot be expressed in configuration files and are left
// empty; code wires them through Definition.Workflows.
func FromAppConfig(cfg *appconfig.Config) *Config {
	out := DefaultConfig()
	if cfg == nil {
		return out
	}
	out.Temporal = &TemporalConfig{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		TaskQueue: cfg.Temporal.TaskQueue,
		APIKey:    cfg.Temporal.APIKey.Value(),
		Metadata:  cfg.Temporal.Metadata,
	}
	if cfg.Temporal.TLSEnabled {
		out.Temporal.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	out.AutoStart = cfg.Worker.AutoStart
	out.AutoRestart = cfg.Worker.AutoRestart
	out.MaxRestarts = cfg.Worker.MaxRestarts
	out.RestartDelay = cfg.Worker.RestartDelay
	out.AllowConnectionFailure = cfg.Worker.AllowConnectionFailure
	out.ShutdownTimeout = cfg.Worker.ShutdownTimeout
	out.Worker.WorkflowsPath = cfg.Worker.WorkflowsPath
	for _, def := range cfg.Worker.Definitions {
		out.Workers = append(out.Workers, Definition{
			TaskQueue:       def.TaskQueue,
			Namespace:       def.Namespace,
			ActivityClasses: def.ActivityClasses,
			WorkflowsPath:   def.WorkflowsPath,
			AutoStart:       def.AutoStart,
		})
	}
	out.applyDefaults()
	return out
}
