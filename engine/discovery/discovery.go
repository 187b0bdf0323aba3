package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/taskmill/taskmill/engine/metadata"
	"github.com/taskmill/taskmill/pkg/logger"
)

const (
	// StatusHealthy indicates at least one item was discovered.
	StatusHealthy = "healthy"
	// StatusDegraded indicates a completed scan that found nothing.
	StatusDegraded = "degraded"

	defaultWaitAttempts = 10
	defaultWaitInterval = 100 * time.Millisecond
)

// snapshot is one immutable discovery result. Readers always observe a whole
// snapshot; rediscovery builds a fresh one and swaps the pointer, so a reader
// never sees a partially cleared state.
type snapshot struct {
	activities     map[string]ActivityRecord
	signals        map[string]SignalRecord
	queries        map[string]QueryRecord
	childWorkflows map[string]ChildWorkflowRecord
	controllers    int
	methods        int
	complete       bool
	lastDiscovery  time.Time
	duration       time.Duration
}

func emptySnapshot() *snapshot {
	return &snapshot{
		activities:     make(map[string]ActivityRecord),
		signals:        make(map[string]SignalRecord),
		queries:        make(map[string]QueryRecord),
		childWorkflows: make(map[string]ChildWorkflowRecord),
	}
}

// Config tunes the bounded wait used to bridge the boot race between
// discovery and worker creation.
type Config struct {
	WaitAttempts int
	WaitInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.WaitAttempts <= 0 {
		c.WaitAttempts = defaultWaitAttempts
	}
	if c.WaitInterval <= 0 {
		c.WaitInterval = defaultWaitInterval
	}
}

// Service scans the host container for annotated components and maintains the
// runtime registry of activity, signal, query and child-workflow handlers.
type Service struct {
	container Container
	registry  *metadata.Registry
	accessor  *metadata.Accessor
	config    Config

	snap atomicSnapshot
}

// NewService creates a discovery service over the given container and
// metadata registry.
func NewService(container Container, registry *metadata.Registry, cfg *Config) *Service {
	config := Config{}
	if cfg != nil {
		config = *cfg
	}
	config.applyDefaults()
	s := &Service{
		container: container,
		registry:  registry,
		accessor:  metadata.NewAccessor(registry),
		config:    config,
	}
	s.snap.store(emptySnapshot())
	return s
}

// Accessor exposes the metadata accessor, mainly so hosts can clear the
// per-class cache on hot reload.
func (s *Service) Accessor() *metadata.Accessor {
	return s.accessor
}

// Discover enumerates every managed component and classifies its methods.
// A failure while processing one component is logged and skipped; an error
// from the container enumeration itself signals a severe misconfiguration and
// is propagated.
func (s *Service) Discover(ctx context.Context) error {
	log := logger.FromContext(ctx)
	started := time.Now()

	components, err := s.container.Components()
	if err != nil {
		return fmt.Errorf("failed to enumerate container components: %w", err)
	}

	next := emptySnapshot()
	for _, component := range components {
		s.scanComponent(ctx, next, component)
	}
	next.complete = true
	next.lastDiscovery = time.Now()
	next.duration = time.Since(started)

	s.snap.store(next)
	log.Info("Component discovery completed",
		"components", len(components),
		"activities", len(next.activities),
		"signals", len(next.signals),
		"queries", len(next.queries),
		"child_workflows", len(next.childWorkflows),
		"duration", next.duration,
	)
	return nil
}

// Rediscover re-runs discovery from scratch. Concurrent readers observe
// either the previous or the new snapshot, never a mix.
func (s *Service) Rediscover(ctx context.Context) error {
	return s.Discover(ctx)
}

// scanComponent classifies one component. Any panic while processing it is
// recovered so the scan of remaining components continues.
func (s *Service) scanComponent(ctx context.Context, snap *snapshot, component Component) {
	log := logger.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Failed to process component during discovery",
				"component", component.Name,
				"kind", component.Kind,
				"error", fmt.Sprint(r),
			)
		}
	}()

	if component.Instance == nil {
		log.Warn("Skipping component with nil instance", "component", component.Name)
		return
	}
	if component.Kind == KindController {
		snap.controllers++
	}

	classID := metadata.ClassIDOf(component.Instance)
	class := string(classID)

	if s.accessor.IsActivityContainer(component.Instance) {
		if result := s.accessor.ValidateActivityContainer(component.Instance); !result.IsValid {
			log.Warn("Activity container failed validation, registering anyway",
				"component", component.Name,
				"issues", result.Issues,
			)
		}
		for name, handler := range s.accessor.ExtractActivityMethods(ctx, component.Instance) {
			if existing, ok := snap.activities[name]; ok {
				log.Warn("Duplicate activity name discovered, last definition wins",
					"activity", name,
					"previous_class", existing.ContainerClass,
					"class", class,
				)
			}
			snap.activities[name] = ActivityRecord{
				LogicalName:    name,
				ContainerClass: class,
				Handler:        handler,
			}
			snap.methods++
		}
	}

	// Signal, query and child-workflow metadata are independent lookups; a
	// component need not be an activity container to declare them, and one
	// method may carry more than one kind.
	for _, binding := range s.registry.SignalBindings(classID) {
		handler, ok := binding.Bind(component.Instance)
		if !ok {
			log.Warn("Skipping signal with unresolvable binding",
				"signal", binding.SignalName, "class", class)
			continue
		}
		if existing, ok := snap.signals[binding.SignalName]; ok {
			log.Warn("Duplicate signal name discovered, last definition wins",
				"signal", binding.SignalName,
				"previous_class", existing.ContainerClass,
				"class", class,
			)
		}
		snap.signals[binding.SignalName] = SignalRecord{
			LogicalName:    binding.SignalName,
			ContainerClass: class,
			MethodName:     binding.MethodName,
			Handler:        handler,
			Options:        binding.Options,
		}
	}
	for _, binding := range s.registry.QueryBindings(classID) {
		handler, ok := binding.Bind(component.Instance)
		if !ok {
			log.Warn("Skipping query with unresolvable binding",
				"query", binding.QueryName, "class", class)
			continue
		}
		if existing, ok := snap.queries[binding.QueryName]; ok {
			log.Warn("Duplicate query name discovered, last definition wins",
				"query", binding.QueryName,
				"previous_class", existing.ContainerClass,
				"class", class,
			)
		}
		snap.queries[binding.QueryName] = QueryRecord{
			LogicalName:    binding.QueryName,
			ContainerClass: class,
			MethodName:     binding.MethodName,
			Handler:        handler,
			Options:        binding.Options,
		}
	}
	for _, binding := range s.registry.ChildWorkflowBindings(classID) {
		handler, ok := binding.Bind(component.Instance)
		if !ok {
			log.Warn("Skipping child workflow with unresolvable binding",
				"workflow", binding.WorkflowName, "class", class)
			continue
		}
		snap.childWorkflows[binding.WorkflowName] = ChildWorkflowRecord{
			WorkflowName:   binding.WorkflowName,
			ContainerClass: class,
			MethodName:     binding.MethodName,
			Handler:        handler,
			Options:        binding.Options,
		}
	}
}

// AllActivities returns a flattened read-only snapshot of activity handlers
// keyed by logical name.
func (s *Service) AllActivities() map[string]any {
	snap := s.snap.load()
	out := make(map[string]any, len(snap.activities))
	for name, record := range snap.activities {
		out[name] = record.Handler
	}
	return out
}

// ActivityRecords returns a copy of the discovered activity records.
func (s *Service) ActivityRecords() map[string]ActivityRecord {
	snap := s.snap.load()
	out := make(map[string]ActivityRecord, len(snap.activities))
	for name, record := range snap.activities {
		out[name] = record
	}
	return out
}

// SignalRecords returns a copy of the discovered signal records.
func (s *Service) SignalRecords() map[string]SignalRecord {
	snap := s.snap.load()
	out := make(map[string]SignalRecord, len(snap.signals))
	for name, record := range snap.signals {
		out[name] = record
	}
	return out
}

// QueryRecords returns a copy of the discovered query records.
func (s *Service) QueryRecords() map[string]QueryRecord {
	snap := s.snap.load()
	out := make(map[string]QueryRecord, len(snap.queries))
	for name, record := range snap.queries {
		out[name] = record
	}
	return out
}

// ChildWorkflowRecords returns a copy of the discovered child-workflow records.
func (s *Service) ChildWorkflowRecords() map[string]ChildWorkflowRecord {
	snap := s.snap.load()
	out := make(map[string]ChildWorkflowRecord, len(snap.childWorkflows))
	for name, record := range snap.childWorkflows {
		out[name] = record
	}
	return out
}

// IsComplete reports whether a full discovery pass has finished.
func (s *Service) IsComplete() bool {
	return s.snap.load().complete
}

// Stats returns best-effort discovery counters.
func (s *Service) Stats() Stats {
	snap := s.snap.load()
	return Stats{
		Controllers:    snap.controllers,
		Methods:        snap.methods,
		Signals:        len(snap.signals),
		Queries:        len(snap.queries),
		Workflows:      len(snap.childWorkflows),
		ChildWorkflows: len(snap.childWorkflows),
	}
}

// HealthStatus returns the discovery health view for probes.
func (s *Service) HealthStatus() HealthStatus {
	snap := s.snap.load()
	discovered := len(snap.activities) + len(snap.signals) + len(snap.queries) + len(snap.childWorkflows)
	status := StatusHealthy
	if discovered == 0 {
		status = StatusDegraded
	}
	return HealthStatus{
		Status:            status,
		DiscoveredItems:   discovered,
		IsComplete:        snap.complete,
		LastDiscovery:     snap.lastDiscovery,
		DiscoveryDuration: snap.duration,
	}
}

// WaitForCompletion polls until discovery reports completion, bounded by the
// configured attempt cap. It returns an error when the cap is exhausted so
// callers can decide whether to proceed with a possibly empty snapshot.
func (s *Service) WaitForCompletion(ctx context.Context) error {
	backoff := retry.WithMaxRetries(uint64(s.config.WaitAttempts), retry.NewConstant(s.config.WaitInterval))
	return retry.Do(ctx, backoff, func(_ context.Context) error {
		if s.IsComplete() {
			return nil
		}
		return retry.RetryableError(fmt.Errorf("discovery has not completed"))
	})
}
