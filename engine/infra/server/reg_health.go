package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskmill/taskmill/engine/core"
)

func (s *Server) registerHealthRoutes(r *gin.Engine) {
	health := r.Group("/health")
	health.GET("", s.handleHealth)
	health.GET("/live", s.handleLive)
	health.GET("/ready", s.handleReady)
	health.GET("/startup", s.handleStartup)
	health.GET("/components", s.handleComponents)
}

// handleHealth reports the composite system status. Unhealthy maps to 503 so
// load balancers stop routing, degraded still serves traffic.
func (s *Server) handleHealth(c *gin.Context) {
	status := s.facade.SystemStatus()
	statusCode := http.StatusOK
	if status.Health == core.HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, gin.H{
		"data":    status,
		"message": "Success",
	})
}

func (s *Server) handleLive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// handleReady gates on a usable connection and at least the configured
// workers being created.
func (s *Server) handleReady(c *gin.Context) {
	ready := s.manager.IsInitialized() && s.manager.GetConnection() != nil
	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"ready":  false,
			"status": "not ready",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ready":  true,
		"status": "ready",
	})
}

// handleStartup reports whether the initial container scan completed.
func (s *Server) handleStartup(c *gin.Context) {
	if !s.discovery.IsComplete() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"started": false,
			"status":  "discovering",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"started": true,
		"status":  "started",
	})
}

// handleComponents details every discovered component and worker.
func (s *Server) handleComponents(c *gin.Context) {
	activities := make([]gin.H, 0)
	for name, rec := range s.discovery.ActivityRecords() {
		activities = append(activities, gin.H{
			"name":            name,
			"container_class": rec.ContainerClass,
		})
	}
	signals := make([]string, 0)
	for name := range s.discovery.SignalRecords() {
		signals = append(signals, name)
	}
	queries := make([]string, 0)
	for name := range s.discovery.QueryRecords() {
		queries = append(queries, name)
	}
	childWorkflows := make([]string, 0)
	for name := range s.discovery.ChildWorkflowRecords() {
		childWorkflows = append(childWorkflows, name)
	}
	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"discovery":       s.discovery.Stats(),
			"activities":      activities,
			"signals":         signals,
			"queries":         queries,
			"child_workflows": childWorkflows,
			"workers":         s.manager.AllWorkers(),
			"schedules":       s.schedules.List(),
		},
		"message": "Success",
	})
}
