package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/taskmill/taskmill/engine/core"
	"github.com/taskmill/taskmill/engine/discovery"
	"github.com/taskmill/taskmill/pkg/logger"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	sdkworker "go.temporal.io/sdk/worker"
)

// Dialer establishes a Temporal connection. Tests substitute fakes.
type Dialer func(ctx context.Context, cfg *TemporalConfig) (*Client, error)

// Manager owns the full lifecycle of Temporal workers: connection,
// registration, supervised run loops, restart and shutdown.
type Manager struct {
	mu sync.Mutex

	config    *Config
	discovery *discovery.Service
	factory   WorkerFactory
	dialer    Dialer

	client         *Client
	clientInjected bool
	instances      map[string]*Instance
	initialized    bool
	shutdownDone   chan struct{}
}

type Option func(*Manager)

// WithClient supplies an externally managed connection. The manager will use
// it but never close it.
func WithClient(c *Client) Option {
	return func(m *Manager) {
		m.client = c
		m.clientInjected = true
	}
}

func WithWorkerFactory(f WorkerFactory) Option {
	return func(m *Manager) { m.factory = f }
}

func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

func NewManager(cfg *Config, disc *discovery.Service, opts ...Option) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.applyDefaults()
	m := &Manager{
		config:    cfg,
		discovery: disc,
		factory:   defaultWorkerFactory,
		dialer:    NewClient,
		instances: make(map[string]*Instance),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Setup validates the configuration, establishes the connection and creates
// one worker instance per definition. Definitions with auto-start enabled are
// started at the end. When AllowConnectionFailure is set, connection and
// per-instance failures are logged and tolerated, leaving the manager
// uninitialized or partially initialized.
func (m *Manager) Setup(ctx context.Context) error {
	log := logger.FromContext(ctx)
	defs, err := m.config.definitions()
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.client == nil && (m.config.Temporal == nil || m.config.Temporal.HostPort == "") {
		m.mu.Unlock()
		return ErrMissingHostPort
	}
	if err := m.ensureConnectionLocked(ctx); err != nil {
		m.mu.Unlock()
		if m.config.AllowConnectionFailure {
			log.Warn("Temporal connection failed, continuing without workers", "error", err)
			return nil
		}
		return err
	}
	m.mu.Unlock()

	// The container may still be wiring components when the manager boots.
	if err := m.discovery.WaitForCompletion(ctx); err != nil {
		log.Warn("Discovery did not complete in time, registering current snapshot", "error", err)
	}

	m.mu.Lock()
	for i := range defs {
		def := defs[i]
		if _, exists := m.instances[def.TaskQueue]; exists {
			continue
		}
		inst, err := m.buildInstance(ctx, &def)
		if err != nil {
			if !m.config.AllowConnectionFailure {
				m.mu.Unlock()
				return err
			}
			log.Error("Failed to create worker instance", "task_queue", def.TaskQueue, "error", err)
			continue
		}
		m.instances[def.TaskQueue] = inst
	}
	m.initialized = true
	m.shutdownDone = nil
	m.mu.Unlock()

	for i := range defs {
		def := defs[i]
		if !m.config.shouldAutoStart(&def) {
			continue
		}
		if err := m.Start(ctx, def.TaskQueue); err != nil {
			log.Error("Failed to auto-start worker", "task_queue", def.TaskQueue, "error", err)
		}
	}
	return nil
}

func (m *Manager) ensureConnectionLocked(ctx context.Context) error {
	if m.client != nil {
		return nil
	}
	cli, err := m.dialer(ctx, m.config.Temporal)
	if err != nil {
		return fmt.Errorf("failed to connect to temporal: %w", err)
	}
	m.client = cli
	m.clientInjected = false
	return nil
}

// buildInstance registers discovered activities and bundled workflows on a
// fresh engine worker. Caller holds m.mu.
func (m *Manager) buildInstance(ctx context.Context, def *Definition) (*Instance, error) {
	log := logger.FromContext(ctx)
	if m.client == nil {
		return nil, ErrNotConnected
	}
	handlers := m.activitiesFor(def)
	ew := m.factory(m.client.Client, def.TaskQueue, sdkworker.Options{})
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ew.RegisterActivityWithOptions(handlers[name], activity.RegisterOptions{Name: name})
	}
	for _, wf := range def.Workflows {
		ew.RegisterWorkflow(wf)
	}
	inst := &Instance{
		taskQueue:   def.TaskQueue,
		namespace:   def.Namespace,
		source:      def.workflowSource(len(handlers)),
		engine:      ew,
		activities:  len(handlers),
		initialized: true,
	}
	log.Info("Worker instance created",
		"task_queue", def.TaskQueue,
		"activities", len(handlers),
		"workflow_source", inst.source)
	return inst, nil
}

func (m *Manager) activitiesFor(def *Definition) map[string]any {
	if len(def.ActivityClasses) == 0 {
		return m.discovery.AllActivities()
	}
	allowed := make(map[string]struct{}, len(def.ActivityClasses))
	for _, class := range def.ActivityClasses {
		allowed[class] = struct{}{}
	}
	out := make(map[string]any)
	for _, rec := range m.discovery.ActivityRecords() {
		if _, ok := allowed[string(rec.ContainerClass)]; ok {
			out[rec.LogicalName] = rec.Handler
		}
	}
	return out
}

func (m *Manager) instance(taskQueue string) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[taskQueue]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkerNotFound, taskQueue)
	}
	return inst, nil
}

// Start launches the supervised run loop for a task queue. Starting an
// already-running worker is a logged no-op. A manual start resets the restart
// budget and clears the last error.
func (m *Manager) Start(ctx context.Context, taskQueue string) error {
	inst, err := m.instance(taskQueue)
	if err != nil {
		return err
	}
	return m.startInstance(ctx, inst, true)
}

func (m *Manager) startInstance(ctx context.Context, inst *Instance, manual bool) error {
	log := logger.FromContext(ctx)
	inst.mu.Lock()
	if !inst.initialized {
		inst.mu.Unlock()
		return fmt.Errorf("worker on task queue %s is not initialized", inst.taskQueue)
	}
	if inst.running {
		inst.mu.Unlock()
		log.Warn("Worker already running", "task_queue", inst.taskQueue)
		return nil
	}
	stopCh := make(chan any)
	done := make(chan struct{})
	inst.stopCh = stopCh
	inst.runDone = done
	inst.running = true
	inst.stopping = false
	inst.startedAt = time.Now()
	if manual {
		inst.restartCount = 0
		inst.lastError = ""
	}
	ew := inst.engine
	inst.mu.Unlock()
	go m.supervise(inst, ew, stopCh, done, log)
	log.Info("Worker started", "task_queue", inst.taskQueue)
	return nil
}

// supervise blocks on the run loop and handles its single completion: a
// requested stop, a graceful return, or an unexpected failure that may
// trigger a delayed restart.
func (m *Manager) supervise(inst *Instance, ew EngineWorker, stopCh chan any, done chan struct{}, log logger.Logger) {
	defer close(done)
	err := ew.Run(stopCh)
	inst.mu.Lock()
	wasStopping := inst.stopping
	inst.running = false
	inst.startedAt = time.Time{}
	if wasStopping {
		inst.mu.Unlock()
		if err != nil {
			log.Warn("Worker stopped with error", "task_queue", inst.taskQueue, "error", err)
		}
		return
	}
	if err == nil {
		inst.mu.Unlock()
		log.Warn("Worker run loop exited without a stop request", "task_queue", inst.taskQueue)
		return
	}
	inst.lastError = err.Error()
	if !m.config.AutoRestart || inst.restartCount >= m.config.MaxRestarts {
		count := inst.restartCount
		inst.mu.Unlock()
		log.Error("Worker failed and restart budget is exhausted",
			"task_queue", inst.taskQueue,
			"restart_count", count,
			"error", err)
		return
	}
	inst.restartCount++
	attempt := inst.restartCount
	inst.restartTimer = time.AfterFunc(m.config.RestartDelay, func() {
		m.autoRestart(inst, log)
	})
	inst.mu.Unlock()
	log.Error("Worker failed, scheduling restart",
		"task_queue", inst.taskQueue,
		"attempt", attempt,
		"max_restarts", m.config.MaxRestarts,
		"delay", m.config.RestartDelay,
		"error", err)
}

func (m *Manager) autoRestart(inst *Instance, log logger.Logger) {
	inst.mu.Lock()
	inst.restartTimer = nil
	if inst.running || inst.stopping || !inst.initialized {
		inst.mu.Unlock()
		return
	}
	inst.mu.Unlock()
	ctx := logger.ContextWithLogger(context.Background(), log)
	if err := m.startInstance(ctx, inst, false); err != nil {
		log.Error("Worker restart failed", "task_queue", inst.taskQueue, "error", err)
	}
}

// Stop requests a graceful shutdown of the run loop and waits up to
// ShutdownTimeout for it to drain. Stopping a non-running worker is a no-op
// and never touches the recorded error state. Stop is best-effort: a timeout
// is logged, not returned.
func (m *Manager) Stop(ctx context.Context, taskQueue string) error {
	inst, err := m.instance(taskQueue)
	if err != nil {
		return err
	}
	if stopErr := m.stopInstance(ctx, inst); stopErr != nil {
		logger.FromContext(ctx).Warn("Worker stop did not complete cleanly",
			"task_queue", taskQueue, "error", stopErr)
	}
	return nil
}

func (m *Manager) stopInstance(ctx context.Context, inst *Instance) error {
	log := logger.FromContext(ctx)
	inst.mu.Lock()
	if t := inst.restartTimer; t != nil {
		t.Stop()
		inst.restartTimer = nil
	}
	if !inst.running {
		inst.mu.Unlock()
		log.Debug("Worker not running, nothing to stop", "task_queue", inst.taskQueue)
		return nil
	}
	done := inst.runDone
	ew := inst.engine
	// A concurrent stop may already have closed stopCh; only the caller that
	// flips the stopping flag closes it.
	alreadyStopping := inst.stopping
	inst.stopping = true
	stopCh := inst.stopCh
	inst.mu.Unlock()
	if !alreadyStopping {
		close(stopCh)
	}
	select {
	case <-done:
		log.Info("Worker stopped", "task_queue", inst.taskQueue)
		return nil
	case <-time.After(m.config.ShutdownTimeout):
		// Last resort for a run loop that ignored the interrupt.
		ew.Stop()
		return fmt.Errorf("timed out waiting for worker on task queue %s to stop", inst.taskQueue)
	}
}

// Restart stops the worker, waits the configured delay and starts it again
// with a fresh restart budget.
func (m *Manager) Restart(ctx context.Context, taskQueue string) error {
	inst, err := m.instance(taskQueue)
	if err != nil {
		return err
	}
	if stopErr := m.stopInstance(ctx, inst); stopErr != nil {
		logger.FromContext(ctx).Warn("Worker stop did not complete cleanly",
			"task_queue", taskQueue, "error", stopErr)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.config.RestartDelay):
	}
	return m.startInstance(ctx, inst, true)
}

// RegistrationResult reports the outcome of a dynamic worker registration.
type RegistrationResult struct {
	Success   bool   `json:"success"`
	TaskQueue string `json:"task_queue"`
	Error     string `json:"error,omitempty"`
}

// RegisterWorker creates a worker for a new task queue at runtime. Failures
// are reported in the result rather than returned, so one bad registration
// cannot take down a caller iterating over many.
func (m *Manager) RegisterWorker(ctx context.Context, def Definition) RegistrationResult {
	log := logger.FromContext(ctx)
	scoped := &Config{Temporal: m.config.Temporal, Workers: []Definition{def}}
	defs, err := scoped.definitions()
	if err != nil {
		return RegistrationResult{TaskQueue: def.TaskQueue, Error: err.Error()}
	}
	resolved := defs[0]
	m.mu.Lock()
	if _, exists := m.instances[resolved.TaskQueue]; exists {
		m.mu.Unlock()
		return RegistrationResult{
			TaskQueue: resolved.TaskQueue,
			Error:     fmt.Sprintf("%s: %s", ErrDuplicateTaskQueue.Error(), resolved.TaskQueue),
		}
	}
	if err := m.ensureConnectionLocked(ctx); err != nil {
		m.mu.Unlock()
		return RegistrationResult{TaskQueue: resolved.TaskQueue, Error: err.Error()}
	}
	inst, err := m.buildInstance(ctx, &resolved)
	if err != nil {
		m.mu.Unlock()
		return RegistrationResult{TaskQueue: resolved.TaskQueue, Error: err.Error()}
	}
	m.instances[resolved.TaskQueue] = inst
	m.mu.Unlock()
	if m.config.shouldAutoStart(&resolved) {
		if err := m.startInstance(ctx, inst, true); err != nil {
			log.Error("Failed to start registered worker", "task_queue", resolved.TaskQueue, "error", err)
		}
	}
	return RegistrationResult{Success: true, TaskQueue: resolved.TaskQueue}
}

// Shutdown stops every worker, closes an owned connection exactly once and
// marks the manager uninitialized. It is idempotent: concurrent callers wait
// for the first invocation to finish. Individual stop failures are collected
// and logged, never escalated.
func (m *Manager) Shutdown(ctx context.Context) error {
	log := logger.FromContext(ctx)
	m.mu.Lock()
	if m.shutdownDone != nil {
		done := m.shutdownDone
		m.mu.Unlock()
		<-done
		return nil
	}
	done := make(chan struct{})
	m.shutdownDone = done
	instances := m.instances
	m.instances = make(map[string]*Instance)
	cli := m.client
	owned := cli != nil && !m.clientInjected
	m.client = nil
	m.clientInjected = false
	m.initialized = false
	m.mu.Unlock()
	defer close(done)

	var multi *core.MultiError
	for _, inst := range instances {
		// Uninitialize before stopping so a restart timer that fires mid
		// shutdown cannot resurrect the run loop.
		inst.mu.Lock()
		inst.initialized = false
		if t := inst.restartTimer; t != nil {
			t.Stop()
			inst.restartTimer = nil
		}
		inst.mu.Unlock()
		if err := m.stopInstance(ctx, inst); err != nil {
			multi = core.AppendError(multi, err)
		}
	}
	if owned {
		cli.Close()
		log.Debug("Temporal connection closed")
	}
	if err := multi.ErrorOrNil(); err != nil {
		log.Error("Worker shutdown completed with errors", "error", err)
	}
	log.Info("Worker manager shut down", "workers", len(instances))
	return nil
}

// WorkerStatus reports the current state of one worker.
func (m *Manager) WorkerStatus(taskQueue string) (Status, error) {
	inst, err := m.instance(taskQueue)
	if err != nil {
		return Status{}, err
	}
	return inst.status(), nil
}

// AllWorkersStatus aggregates every worker instance.
type AllWorkersStatus struct {
	Workers        []Status `json:"workers"`
	TotalWorkers   int      `json:"total_workers"`
	RunningWorkers int      `json:"running_workers"`
}

func (m *Manager) AllWorkers() AllWorkersStatus {
	m.mu.Lock()
	instances := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		instances = append(instances, inst)
	}
	m.mu.Unlock()
	out := AllWorkersStatus{Workers: make([]Status, 0, len(instances))}
	for _, inst := range instances {
		st := inst.status()
		out.Workers = append(out.Workers, st)
		if st.IsRunning {
			out.RunningWorkers++
		}
	}
	sort.Slice(out.Workers, func(i, j int) bool {
		return out.Workers[i].TaskQueue < out.Workers[j].TaskQueue
	})
	out.TotalWorkers = len(out.Workers)
	return out
}

// GetConnection exposes the shared Temporal client, nil when disconnected.
func (m *Manager) GetConnection() client.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	return m.client.Client
}

func (m *Manager) IsInitialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}
