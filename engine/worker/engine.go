package worker

import (
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// EngineWorker is the subset of the Temporal worker surface the manager
// drives. worker.Worker satisfies it, and tests substitute fakes.
type EngineWorker interface {
	RegisterWorkflow(w any)
	RegisterActivityWithOptions(a any, options activity.RegisterOptions)
	Run(interruptCh <-chan any) error
	Stop()
}

// WorkerFactory builds the engine worker for a task queue.
type WorkerFactory func(c client.Client, taskQueue string, options worker.Options) EngineWorker

func defaultWorkerFactory(c client.Client, taskQueue string, options worker.Options) EngineWorker {
	return worker.New(c, taskQueue, options)
}
