package worker

import (
	"sync"
	"time"
)

// WorkflowSource describes where a worker's workflow definitions come from.
type WorkflowSource string

const (
	SourceBundle         WorkflowSource = "bundle"
	SourceFilesystem     WorkflowSource = "filesystem"
	SourceActivitiesOnly WorkflowSource = "activities-only"
	SourceNone           WorkflowSource = "none"
)

// Definition configures a single worker instance.
type Definition struct {
	TaskQueue string `json:"task_queue"`
	Namespace string `json:"namespace,omitempty"`
	// ActivityClasses restricts registered activities to the named container
	// classes. Empty means every discovered activity.
	ActivityClasses []string `json:"activity_classes,omitempty"`
	Workflows       []any    `json:"-"`
	WorkflowsPath   string   `json:"workflows_path,omitempty"`
	// AutoStart overrides the manager-level default when set.
	AutoStart *bool `json:"auto_start,omitempty"`
}

func (d *Definition) workflowSource(activityCount int) WorkflowSource {
	switch {
	case len(d.Workflows) > 0:
		return SourceBundle
	case d.WorkflowsPath != "":
		return SourceFilesystem
	case activityCount > 0:
		return SourceActivitiesOnly
	default:
		return SourceNone
	}
}

// Instance tracks the runtime state of one worker bound to a task queue.
type Instance struct {
	mu sync.Mutex

	taskQueue  string
	namespace  string
	source     WorkflowSource
	engine     EngineWorker
	activities int

	initialized  bool
	running      bool
	stopping     bool
	startedAt    time.Time
	lastError    string
	restartCount int

	stopCh       chan any
	runDone      chan struct{}
	restartTimer *time.Timer
}

// Status is a point-in-time snapshot of a worker instance.
type Status struct {
	TaskQueue       string         `json:"task_queue"`
	Namespace       string         `json:"namespace"`
	IsInitialized   bool           `json:"is_initialized"`
	IsRunning       bool           `json:"is_running"`
	IsHealthy       bool           `json:"is_healthy"`
	LastError       string         `json:"last_error,omitempty"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	RestartCount    int            `json:"restart_count"`
	ActivitiesCount int            `json:"activities_count"`
	WorkflowSource  WorkflowSource `json:"workflow_source"`
}

func (i *Instance) status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	st := Status{
		TaskQueue:       i.taskQueue,
		Namespace:       i.namespace,
		IsInitialized:   i.initialized,
		IsRunning:       i.running,
		LastError:       i.lastError,
		RestartCount:    i.restartCount,
		ActivitiesCount: i.activities,
		WorkflowSource:  i.source,
	}
	if !i.startedAt.IsZero() {
		t := i.startedAt
		st.StartedAt = &t
	}
	st.IsHealthy = st.IsInitialized && st.IsRunning && st.LastError == ""
	return st
}
