package worker

import "errors"

var (
	// ErrMissingTaskQueue is returned when a worker definition has no task queue.
	ErrMissingTaskQueue = errors.New("task queue is required")
	// ErrMissingHostPort is returned when no connection address is configured
	// and no external connection was supplied.
	ErrMissingHostPort = errors.New("temporal connection address is required")
	// ErrDuplicateTaskQueue is returned when two worker definitions normalize
	// to the same task queue.
	ErrDuplicateTaskQueue = errors.New("task queue already registered")
	// ErrConflictingWorkflowSource is returned when a definition specifies both
	// a workflow bundle and a workflows path.
	ErrConflictingWorkflowSource = errors.New("workflow bundle and workflows path are mutually exclusive")
	// ErrWorkerNotFound is returned when no worker exists for a task queue.
	ErrWorkerNotFound = errors.New("no worker registered for task queue")
	// ErrNotConnected is returned when an operation requires a Temporal
	// connection that was never established.
	ErrNotConnected = errors.New("temporal connection is not established")
)
