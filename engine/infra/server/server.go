package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskmill/taskmill/engine/discovery"
	"github.com/taskmill/taskmill/engine/facade"
	"github.com/taskmill/taskmill/engine/schedule"
	"github.com/taskmill/taskmill/engine/worker"
	"github.com/taskmill/taskmill/pkg/config"
	"github.com/taskmill/taskmill/pkg/logger"
)

const serverShutdownTimeout = 5 * time.Second

// Server exposes the health and introspection surface over HTTP. Handlers are
// pure projections of subsystem state and never mutate it.
type Server struct {
	config     *config.Config
	facade     *facade.Service
	discovery  *discovery.Service
	manager    *worker.Manager
	schedules  *schedule.Registry
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(
	cfg *config.Config,
	svc *facade.Service,
	disc *discovery.Service,
	manager *worker.Manager,
	schedules *schedule.Registry,
) *Server {
	s := &Server{
		config:    cfg,
		facade:    svc,
		discovery: disc,
		manager:   manager,
		schedules: schedules,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *gin.Engine {
	if s.config != nil && s.config.Runtime.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	s.registerHealthRoutes(r)
	return r
}

// Router exposes the gin engine, mainly for tests and embedding.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves HTTP until the context is canceled, then drains in-flight
// requests within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	log.Info("HTTP server stopped")
	return nil
}
