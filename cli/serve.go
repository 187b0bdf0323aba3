package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskmill/taskmill/engine/discovery"
	"github.com/taskmill/taskmill/engine/facade"
	"github.com/taskmill/taskmill/engine/infra/server"
	"github.com/taskmill/taskmill/engine/metadata"
	"github.com/taskmill/taskmill/engine/schedule"
	"github.com/taskmill/taskmill/engine/worker"
	"github.com/taskmill/taskmill/pkg/config"
	"github.com/taskmill/taskmill/pkg/logger"
)

func ServeCmd() *cobra.Command {
	var (
		configFile string
		logLevel   string
		logJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the worker runtime and its health server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, configFile, logLevel, logJSON)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to a YAML configuration file")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")

	return cmd
}

func runServe(cmd *cobra.Command, configFile, logLevel string, logJSON bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, configFile)
	if err != nil {
		return err
	}

	// The flag wins over the configured level when explicitly set.
	if logLevel == "" {
		logLevel = cfg.Runtime.LogLevel
	}
	logger.SetupLogger(logLevel, logJSON, false)
	log := logger.GetDefault()
	ctx = logger.ContextWithLogger(ctx, log)

	runtime, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
		defer cancel()
		if err := runtime.manager.Shutdown(shutdownCtx); err != nil {
			log.Error("Worker shutdown failed", "error", err)
		}
	}()

	srv := server.NewServer(cfg, runtime.facade, runtime.discovery, runtime.manager, runtime.schedules)
	return srv.Run(ctx)
}

// runtime holds the assembled subsystems for one serve invocation.
type runtime struct {
	discovery *discovery.Service
	manager   *worker.Manager
	schedules *schedule.Registry
	facade    *facade.Service
}

func buildRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	registry := metadata.NewRegistry()
	container := discovery.NewStaticContainer()
	disc := discovery.NewService(container, registry, &discovery.Config{
		WaitAttempts: cfg.Discovery.WaitAttempts,
		WaitInterval: cfg.Discovery.WaitInterval,
	})
	if err := disc.Discover(ctx); err != nil {
		return nil, fmt.Errorf("component discovery failed: %w", err)
	}

	manager := worker.NewManager(worker.FromAppConfig(cfg), disc)
	schedules := schedule.NewRegistry()
	svc := facade.NewService(manager, disc, schedules)
	svc.WireScheduleTriggers()

	if err := manager.Setup(ctx); err != nil {
		return nil, fmt.Errorf("worker manager setup failed: %w", err)
	}

	return &runtime{
		discovery: disc,
		manager:   manager,
		schedules: schedules,
		facade:    svc,
	}, nil
}

func loadConfig(ctx context.Context, configFile string) (*config.Config, error) {
	service := config.NewService()
	var sources []config.Source
	if configFile != "" {
		sources = append(sources, config.NewYAMLProvider(configFile))
	}
	cfg, err := service.Load(ctx, sources...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
