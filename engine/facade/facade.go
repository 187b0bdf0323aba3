package facade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taskmill/taskmill/engine/core"
	"github.com/taskmill/taskmill/engine/discovery"
	"github.com/taskmill/taskmill/engine/schedule"
	"github.com/taskmill/taskmill/engine/worker"
	"github.com/taskmill/taskmill/pkg/logger"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
)

// ErrWorkflowAlreadyStarted is returned when a workflow start collides with a
// running execution that has the same workflow ID.
var ErrWorkflowAlreadyStarted = errors.New("workflow execution already started")

// Service is the single entry point applications use to talk to Temporal. It
// delegates client operations to the shared connection and composes health
// from every subsystem.
type Service struct {
	manager   *worker.Manager
	discovery *discovery.Service
	schedules *schedule.Registry
}

func NewService(manager *worker.Manager, disc *discovery.Service, schedules *schedule.Registry) *Service {
	return &Service{
		manager:   manager,
		discovery: disc,
		schedules: schedules,
	}
}

func (s *Service) connection() (client.Client, error) {
	c := s.manager.GetConnection()
	if c == nil {
		return nil, worker.ErrNotConnected
	}
	return c, nil
}

// StartWorkflow starts a workflow execution on the shared connection.
func (s *Service) StartWorkflow(
	ctx context.Context,
	options client.StartWorkflowOptions,
	workflowType any,
	args ...any,
) (client.WorkflowRun, error) {
	c, err := s.connection()
	if err != nil {
		return nil, err
	}
	if options.ID == "" {
		options.ID = uuid.NewString()
	}
	run, err := c.ExecuteWorkflow(ctx, options, workflowType, args...)
	if err != nil {
		var already *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &already) {
			return nil, fmt.Errorf("failed to start workflow %s: %w", options.ID, ErrWorkflowAlreadyStarted)
		}
		return nil, fmt.Errorf("failed to start workflow %s: %w", options.ID, err)
	}
	logger.FromContext(ctx).Debug("Workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID())
	return run, nil
}

// SignalWorkflow delivers a signal to a running workflow.
func (s *Service) SignalWorkflow(ctx context.Context, workflowID, runID, signalName string, arg any) error {
	c, err := s.connection()
	if err != nil {
		return err
	}
	if err := c.SignalWorkflow(ctx, workflowID, runID, signalName, arg); err != nil {
		return fmt.Errorf("failed to signal workflow %s: %w", workflowID, err)
	}
	return nil
}

// QueryWorkflow queries a running workflow and returns the encoded result.
func (s *Service) QueryWorkflow(
	ctx context.Context,
	workflowID, runID, queryType string,
	args ...any,
) (converter.EncodedValue, error) {
	c, err := s.connection()
	if err != nil {
		return nil, err
	}
	value, err := c.QueryWorkflow(ctx, workflowID, runID, queryType, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow %s: %w", workflowID, err)
	}
	return value, nil
}

// CancelWorkflow requests cooperative cancellation of a workflow.
func (s *Service) CancelWorkflow(ctx context.Context, workflowID, runID string) error {
	c, err := s.connection()
	if err != nil {
		return err
	}
	if err := c.CancelWorkflow(ctx, workflowID, runID); err != nil {
		return fmt.Errorf("failed to cancel workflow %s: %w", workflowID, err)
	}
	return nil
}

// TerminateWorkflow forcefully terminates a workflow execution.
func (s *Service) TerminateWorkflow(ctx context.Context, workflowID, runID, reason string, details ...any) error {
	c, err := s.connection()
	if err != nil {
		return err
	}
	if err := c.TerminateWorkflow(ctx, workflowID, runID, reason, details...); err != nil {
		return fmt.Errorf("failed to terminate workflow %s: %w", workflowID, err)
	}
	return nil
}

// TriggerSchedule fires a registered schedule immediately.
func (s *Service) TriggerSchedule(ctx context.Context, scheduleID string) (string, error) {
	return s.schedules.Trigger(ctx, scheduleID)
}

// WireScheduleTriggers points schedule triggers at the shared connection so
// every trigger starts the bound workflow on its configured task queue.
func (s *Service) WireScheduleTriggers() {
	s.schedules.SetTriggerFunc(func(ctx context.Context, snap schedule.Snapshot, runID string) error {
		options := client.StartWorkflowOptions{
			ID:        fmt.Sprintf("%s-%s", snap.Binding.ScheduleID, runID),
			TaskQueue: snap.Binding.TaskQueue,
		}
		_, err := s.StartWorkflow(ctx, options, snap.Binding.WorkflowName, snap.Binding.Args...)
		return err
	})
}

// SystemStatus is a composite snapshot of every subsystem.
type SystemStatus struct {
	Health    core.HealthLevel        `json:"health"`
	Connected bool                    `json:"connected"`
	Discovery discovery.HealthStatus  `json:"discovery"`
	Workers   worker.AllWorkersStatus `json:"workers"`
	Schedules schedule.Stats          `json:"schedules"`
	Timestamp time.Time               `json:"timestamp"`
}

func (s *Service) SystemStatus() SystemStatus {
	return SystemStatus{
		Health:    s.OverallHealth(),
		Connected: s.manager.GetConnection() != nil,
		Discovery: s.discovery.HealthStatus(),
		Workers:   s.manager.AllWorkers(),
		Schedules: s.schedules.Stats(),
		Timestamp: time.Now().UTC(),
	}
}

// OverallHealth folds subsystem states into a single level. Health only ever
// worsens during the fold, so one degraded subsystem cannot be masked by a
// healthy one reported later.
func (s *Service) OverallHealth() core.HealthLevel {
	health := core.HealthHealthy
	if !s.manager.IsInitialized() || s.manager.GetConnection() == nil {
		health = health.Degrade(core.HealthUnhealthy)
	}
	workers := s.manager.AllWorkers()
	for _, st := range workers.Workers {
		if !st.IsHealthy {
			health = health.Degrade(core.HealthDegraded)
		}
	}
	if workers.TotalWorkers > 0 && workers.RunningWorkers == 0 {
		health = health.Degrade(core.HealthDegraded)
	}
	if s.discovery.HealthStatus().Status != discovery.StatusHealthy {
		health = health.Degrade(core.HealthDegraded)
	}
	if s.schedules.Stats().Errored > 0 {
		health = health.Degrade(core.HealthDegraded)
	}
	return health
}
