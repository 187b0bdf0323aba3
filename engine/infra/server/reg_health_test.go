package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskmill/taskmill/engine/discovery"
	"github.com/taskmill/taskmill/engine/facade"
	"github.com/taskmill/taskmill/engine/metadata"
	"github.com/taskmill/taskmill/engine/schedule"
	"github.com/taskmill/taskmill/engine/worker"
	"github.com/taskmill/taskmill/pkg/config"
	"github.com/taskmill/taskmill/pkg/logger"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"
	sdkworker "go.temporal.io/sdk/worker"
)

type inventoryService struct{}

func (s *inventoryService) Reserve(_ context.Context, sku string) error { return nil }

type noopEngine struct{}

func (noopEngine) RegisterWorkflow(any)                                      {}
func (noopEngine) RegisterActivityWithOptions(any, activity.RegisterOptions) {}
func (noopEngine) Stop()                                                     {}
func (noopEngine) Run(interruptCh <-chan any) error {
	<-interruptCh
	return nil
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	return logger.ContextWithLogger(context.Background(), logger.NewLogger(logger.TestConfig()))
}

func newTestServer(t *testing.T) (*Server, *worker.Manager, *discovery.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := metadata.NewRegistry()
	metadata.ActivityContainer[*inventoryService](reg)
	metadata.Activity[*inventoryService](reg, "inventory.reserve", "Reserve", func(s *inventoryService) any {
		return s.Reserve
	})
	metadata.Signal[*inventoryService](reg, "inventory.restock", "Reserve", func(s *inventoryService) any {
		return s.Reserve
	}, nil)
	container := discovery.NewStaticContainer().AddController("inventory", &inventoryService{})
	disc := discovery.NewService(container, reg, nil)
	require.NoError(t, disc.Discover(testContext(t)))

	wcfg := worker.DefaultConfig()
	wcfg.Temporal = &worker.TemporalConfig{HostPort: "localhost:7233", Namespace: "default"}
	wcfg.Worker.TaskQueue = "inventory"
	mgr := worker.NewManager(wcfg, disc,
		worker.WithClient(worker.WrapClient(&mocks.Client{}, wcfg.Temporal)),
		worker.WithWorkerFactory(func(client.Client, string, sdkworker.Options) worker.EngineWorker {
			return noopEngine{}
		}))
	require.NoError(t, mgr.Setup(testContext(t)))

	schedules := schedule.NewRegistry()
	svc := facade.NewService(mgr, disc, schedules)
	srv := NewServer(config.Default(), svc, disc, mgr, schedules)
	return srv, mgr, disc
}

func doRequest(t *testing.T, srv *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	srv.Router().ServeHTTP(w, req)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestHealthEndpoints(t *testing.T) {
	t.Run("Should report healthy system status", func(t *testing.T) {
		srv, mgr, _ := newTestServer(t)
		require.Eventually(t, func() bool {
			return mgr.AllWorkers().RunningWorkers == 1
		}, 2*time.Second, 5*time.Millisecond)
		w, body := doRequest(t, srv, "/health")
		assert.Equal(t, http.StatusOK, w.Code)
		data := body["data"].(map[string]any)
		assert.Equal(t, "healthy", data["health"])
		assert.Equal(t, true, data["connected"])
	})
	t.Run("Should return 503 after shutdown", func(t *testing.T) {
		srv, mgr, _ := newTestServer(t)
		require.NoError(t, mgr.Shutdown(testContext(t)))
		w, body := doRequest(t, srv, "/health")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		data := body["data"].(map[string]any)
		assert.Equal(t, "unhealthy", data["health"])
	})
	t.Run("Should always report liveness", func(t *testing.T) {
		srv, mgr, _ := newTestServer(t)
		require.NoError(t, mgr.Shutdown(testContext(t)))
		w, body := doRequest(t, srv, "/health/live")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "alive", body["status"])
	})
	t.Run("Should gate readiness on the connection", func(t *testing.T) {
		srv, mgr, _ := newTestServer(t)
		w, body := doRequest(t, srv, "/health/ready")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["ready"])
		require.NoError(t, mgr.Shutdown(testContext(t)))
		w, body = doRequest(t, srv, "/health/ready")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, false, body["ready"])
	})
	t.Run("Should report startup once discovery completed", func(t *testing.T) {
		srv, _, _ := newTestServer(t)
		w, body := doRequest(t, srv, "/health/startup")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["started"])
	})
	t.Run("Should report startup pending before discovery", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		reg := metadata.NewRegistry()
		disc := discovery.NewService(discovery.NewStaticContainer(), reg, nil)
		wcfg := worker.DefaultConfig()
		wcfg.Temporal = &worker.TemporalConfig{HostPort: "localhost:7233"}
		mgr := worker.NewManager(wcfg, disc)
		srv := NewServer(config.Default(), facade.NewService(mgr, disc, schedule.NewRegistry()), disc, mgr, schedule.NewRegistry())
		w, body := doRequest(t, srv, "/health/startup")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "discovering", body["status"])
	})
	t.Run("Should list discovered components and workers", func(t *testing.T) {
		srv, _, _ := newTestServer(t)
		w, body := doRequest(t, srv, "/health/components")
		assert.Equal(t, http.StatusOK, w.Code)
		data := body["data"].(map[string]any)
		activities := data["activities"].([]any)
		require.Len(t, activities, 1)
		entry := activities[0].(map[string]any)
		assert.Equal(t, "inventory.reserve", entry["name"])
		signals := data["signals"].([]any)
		assert.Contains(t, signals, "inventory.restock")
		workers := data["workers"].(map[string]any)
		assert.Equal(t, float64(1), workers["total_workers"])
	})
}
