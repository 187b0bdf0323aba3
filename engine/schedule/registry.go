package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taskmill/taskmill/pkg/logger"
)

// TriggerFunc launches the workflow behind a schedule. The registry records
// trigger bookkeeping either way, so it stays usable without a backend.
type TriggerFunc func(ctx context.Context, snap Snapshot, runID string) error

// Registry tracks scheduled workflow bindings and their trigger state.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	trigger TriggerFunc
}

type entry struct {
	binding       Binding
	active        bool
	inFlight      bool
	createdAt     time.Time
	lastTriggered *time.Time
	nextRun       *time.Time
	triggerCount  int
	lastError     string
}

func (e *entry) snapshot() Snapshot {
	snap := Snapshot{
		Binding:      e.binding,
		Active:       e.active,
		CreatedAt:    e.createdAt,
		TriggerCount: e.triggerCount,
		LastError:    e.lastError,
	}
	if e.lastTriggered != nil {
		t := *e.lastTriggered
		snap.LastTriggered = &t
	}
	if e.nextRun != nil {
		t := *e.nextRun
		snap.NextRun = &t
	}
	return snap
}

type RegistryOption func(*Registry)

func WithTriggerFunc(fn TriggerFunc) RegistryOption {
	return func(r *Registry) { r.trigger = fn }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{entries: make(map[string]*entry)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetTriggerFunc wires the workflow starter after construction, once a client
// connection exists.
func (r *Registry) SetTriggerFunc(fn TriggerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trigger = fn
}

// Register validates and stores a binding. Schedule IDs are globally unique.
func (r *Registry) Register(ctx context.Context, b Binding) (Snapshot, error) {
	log := logger.FromContext(ctx)
	if err := b.validate(); err != nil {
		return Snapshot{}, err
	}
	if b.OverlapPolicy == "" {
		b.OverlapPolicy = OverlapAllowAll
	}
	if b.Timezone == "" && b.CronExpression != "" {
		b.Timezone = DefaultTimezone
	}
	active := b.AutoStart == nil || *b.AutoStart
	now := time.Now()
	e := &entry{
		binding:   b,
		active:    active,
		createdAt: now,
	}
	if active {
		if next, err := b.nextRun(now); err == nil {
			e.nextRun = &next
		}
	}
	r.mu.Lock()
	if _, exists := r.entries[b.ScheduleID]; exists {
		r.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: %s", ErrDuplicateSchedule, b.ScheduleID)
	}
	r.entries[b.ScheduleID] = e
	snap := e.snapshot()
	r.mu.Unlock()
	if b.OverlapPolicy != OverlapAllowAll && b.OverlapPolicy != OverlapSkip {
		log.Warn("Overlap policy is recorded but enforcement is delegated to the workflow backend",
			"schedule_id", b.ScheduleID,
			"policy", b.OverlapPolicy)
	}
	log.Info("Schedule registered",
		"schedule_id", b.ScheduleID,
		"workflow", b.WorkflowName,
		"active", active)
	return snap, nil
}

// Trigger fires a schedule immediately and returns the generated run ID. The
// trigger outcome is recorded on the entry and returned to the caller.
func (r *Registry) Trigger(ctx context.Context, scheduleID string) (string, error) {
	log := logger.FromContext(ctx)
	r.mu.Lock()
	e, ok := r.entries[scheduleID]
	if !ok {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrScheduleNotFound, scheduleID)
	}
	if e.binding.OverlapPolicy == OverlapSkip && e.inFlight {
		r.mu.Unlock()
		log.Debug("Schedule trigger skipped, previous run still in flight", "schedule_id", scheduleID)
		return "", fmt.Errorf("%w: %s", ErrOverlapSkipped, scheduleID)
	}
	e.inFlight = true
	snap := e.snapshot()
	trigger := r.trigger
	r.mu.Unlock()

	runID := uuid.NewString()
	var triggerErr error
	if trigger != nil {
		triggerErr = trigger(ctx, snap, runID)
	}

	now := time.Now()
	r.mu.Lock()
	// Entry may have been deleted while the trigger ran.
	if e, ok = r.entries[scheduleID]; ok {
		e.inFlight = false
		e.lastTriggered = &now
		e.triggerCount++
		if triggerErr != nil {
			e.lastError = triggerErr.Error()
		} else {
			e.lastError = ""
		}
		if e.active {
			if next, err := e.binding.nextRun(now); err == nil {
				e.nextRun = &next
			}
		}
	}
	r.mu.Unlock()

	if triggerErr != nil {
		log.Error("Schedule trigger failed", "schedule_id", scheduleID, "run_id", runID, "error", triggerErr)
		return runID, fmt.Errorf("failed to trigger schedule %s: %w", scheduleID, triggerErr)
	}
	log.Debug("Schedule triggered", "schedule_id", scheduleID, "run_id", runID)
	return runID, nil
}

// Pause deactivates a schedule and clears its next run.
func (r *Registry) Pause(ctx context.Context, scheduleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[scheduleID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrScheduleNotFound, scheduleID)
	}
	e.active = false
	e.nextRun = nil
	logger.FromContext(ctx).Info("Schedule paused", "schedule_id", scheduleID)
	return nil
}

// Resume reactivates a schedule and recomputes its next run.
func (r *Registry) Resume(ctx context.Context, scheduleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[scheduleID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrScheduleNotFound, scheduleID)
	}
	e.active = true
	if next, err := e.binding.nextRun(time.Now()); err == nil {
		e.nextRun = &next
	}
	logger.FromContext(ctx).Info("Schedule resumed", "schedule_id", scheduleID)
	return nil
}

// Delete removes a schedule from the registry.
func (r *Registry) Delete(ctx context.Context, scheduleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[scheduleID]; !ok {
		return fmt.Errorf("%w: %s", ErrScheduleNotFound, scheduleID)
	}
	delete(r.entries, scheduleID)
	logger.FromContext(ctx).Info("Schedule deleted", "schedule_id", scheduleID)
	return nil
}

func (r *Registry) Get(scheduleID string) (Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[scheduleID]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrScheduleNotFound, scheduleID)
	}
	return e.snapshot(), nil
}

// List returns every schedule ordered by ID.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	out := make([]Snapshot, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.snapshot())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Binding.ScheduleID < out[j].Binding.ScheduleID
	})
	return out
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := Stats{Total: len(r.entries)}
	for _, e := range r.entries {
		if e.active {
			stats.Active++
		} else {
			stats.Paused++
		}
		if e.lastError != "" {
			stats.Errored++
		}
		stats.TotalTriggers += e.triggerCount
	}
	return stats
}
