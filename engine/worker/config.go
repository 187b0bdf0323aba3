package worker

import (
	"fmt"
	"time"

	"github.com/gosimple/slug"
)

const (
	defaultMaxRestarts     = 3
	defaultRestartDelay    = 5 * time.Second
	defaultShutdownTimeout = 30 * time.Second
	defaultNamespace       = "default"
)

// Config controls the worker manager lifecycle.
type Config struct {
	Temporal *TemporalConfig
	// Worker is the single-worker definition, used when Workers is empty.
	Worker Definition
	// Workers declares multiple worker instances, one per task queue.
	Workers []Definition

	AutoStart              bool
	AutoRestart            bool
	MaxRestarts            int
	RestartDelay           time.Duration
	AllowConnectionFailure bool
	ShutdownTimeout        time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		AutoStart:       true,
		AutoRestart:     true,
		MaxRestarts:     defaultMaxRestarts,
		RestartDelay:    defaultRestartDelay,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

func (c *Config) applyDefaults() {
	if c.MaxRestarts <= 0 {
		c.MaxRestarts = defaultMaxRestarts
	}
	if c.RestartDelay <= 0 {
		c.RestartDelay = defaultRestartDelay
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
}

// definitions resolves and validates the configured worker definitions.
// Task queues are normalized to slugs and must be unique.
func (c *Config) definitions() ([]Definition, error) {
	defs := c.Workers
	if len(defs) == 0 {
		def := c.Worker
		if def.TaskQueue == "" && c.Temporal != nil {
			def.TaskQueue = c.Temporal.TaskQueue
		}
		defs = []Definition{def}
	}
	seen := make(map[string]struct{}, len(defs))
	out := make([]Definition, 0, len(defs))
	for _, def := range defs {
		if def.TaskQueue == "" {
			return nil, ErrMissingTaskQueue
		}
		def.TaskQueue = slug.Make(def.TaskQueue)
		if _, dup := seen[def.TaskQueue]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTaskQueue, def.TaskQueue)
		}
		seen[def.TaskQueue] = struct{}{}
		if len(def.Workflows) > 0 && def.WorkflowsPath != "" {
			return nil, fmt.Errorf("%w: %s", ErrConflictingWorkflowSource, def.TaskQueue)
		}
		if def.Namespace == "" {
			if c.Temporal != nil && c.Temporal.Namespace != "" {
				def.Namespace = c.Temporal.Namespace
			} else {
				def.Namespace = defaultNamespace
			}
		}
		out = append(out, def)
	}
	return out, nil
}

func (c *Config) shouldAutoStart(def *Definition) bool {
	if def.AutoStart != nil {
		return *def.AutoStart
	}
	return c.AutoStart
}
