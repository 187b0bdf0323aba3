package metadata

import (
	"fmt"
	"sync"
)

// ClassID is a stable identifier for a concrete component type, derived from
// its fully qualified Go type name. It replaces reflection-based class
// identity with an explicit key.
type ClassID string

// ClassIDOf derives the ClassID for a live instance.
func ClassIDOf(instance any) ClassID {
	if instance == nil {
		return ""
	}
	return ClassID(fmt.Sprintf("%T", instance))
}

func classIDFor[T any]() ClassID {
	var zero T
	return ClassID(fmt.Sprintf("%T", zero))
}

// BindFunc resolves the bound handler for a method on a concrete instance.
// It returns false when the instance is not of the expected type.
type BindFunc func(instance any) (any, bool)

// ActivityBinding describes one activity method declared on a container type.
type ActivityBinding struct {
	LogicalName string
	MethodName  string
	Bind        BindFunc
}

// SignalBinding describes one signal handler method.
type SignalBinding struct {
	SignalName string
	MethodName string
	Bind       BindFunc
	Options    map[string]any
}

// QueryBinding describes one query handler method.
type QueryBinding struct {
	QueryName  string
	MethodName string
	Bind       BindFunc
	Options    map[string]any
}

// ChildWorkflowBinding declares that a type binds a child workflow by name.
type ChildWorkflowBinding struct {
	WorkflowName string
	MethodName   string
	Bind         BindFunc
	Options      map[string]any
}

// Registry holds one explicit side-table per metadata concept. Registration
// happens at composition time, in place of decorator-driven reflection: the
// calls a decorator would trigger at class-definition time are made directly
// against the registry.
type Registry struct {
	mu             sync.RWMutex
	containers     map[ClassID]struct{}
	activities     map[ClassID][]ActivityBinding
	signals        map[ClassID][]SignalBinding
	queries        map[ClassID][]QueryBinding
	childWorkflows map[ClassID][]ChildWorkflowBinding
}

// NewRegistry creates an empty metadata registry.
func NewRegistry() *Registry {
	return &Registry{
		containers:     make(map[ClassID]struct{}),
		activities:     make(map[ClassID][]ActivityBinding),
		signals:        make(map[ClassID][]SignalBinding),
		queries:        make(map[ClassID][]QueryBinding),
		childWorkflows: make(map[ClassID][]ChildWorkflowBinding),
	}
}

func bindAs[T any](bind func(T) any) BindFunc {
	return func(instance any) (any, bool) {
		typed, ok := instance.(T)
		if !ok {
			return nil, false
		}
		handler := bind(typed)
		if handler == nil {
			return nil, false
		}
		return handler, true
	}
}

// ActivityContainer marks the type T as an activity container.
func ActivityContainer[T any](r *Registry) {
	id := classIDFor[T]()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.containers[id] = struct{}{}
}

// Activity registers an activity method on T. The logical name defaults to
// the method name when empty.
func Activity[T any](r *Registry, logicalName, methodName string, bind func(T) any) {
	if logicalName == "" {
		logicalName = methodName
	}
	id := classIDFor[T]()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities[id] = append(r.activities[id], ActivityBinding{
		LogicalName: logicalName,
		MethodName:  methodName,
		Bind:        bindAs(bind),
	})
}

// Signal registers a signal handler method on T.
func Signal[T any](r *Registry, signalName, methodName string, bind func(T) any, options map[string]any) {
	if signalName == "" {
		signalName = methodName
	}
	id := classIDFor[T]()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals[id] = append(r.signals[id], SignalBinding{
		SignalName: signalName,
		MethodName: methodName,
		Bind:       bindAs(bind),
		Options:    options,
	})
}

// Query registers a query handler method on T.
func Query[T any](r *Registry, queryName, methodName string, bind func(T) any, options map[string]any) {
	if queryName == "" {
		queryName = methodName
	}
	id := classIDFor[T]()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries[id] = append(r.queries[id], QueryBinding{
		QueryName:  queryName,
		MethodName: methodName,
		Bind:       bindAs(bind),
		Options:    options,
	})
}

// ChildWorkflow registers a child-workflow binding on T.
func ChildWorkflow[T any](r *Registry, workflowName, methodName string, bind func(T) any, options map[string]any) {
	id := classIDFor[T]()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.childWorkflows[id] = append(r.childWorkflows[id], ChildWorkflowBinding{
		WorkflowName: workflowName,
		MethodName:   methodName,
		Bind:         bindAs(bind),
		Options:      options,
	})
}

// IsActivityContainer reports whether the class has container metadata.
func (r *Registry) IsActivityContainer(id ClassID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.containers[id]
	return ok
}

// ActivityBindings returns the activity bindings declared for a class.
func (r *Registry) ActivityBindings(id ClassID) []ActivityBinding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bindings := r.activities[id]
	out := make([]ActivityBinding, len(bindings))
	copy(out, bindings)
	return out
}

// SignalBindings returns the signal bindings declared for a class.
func (r *Registry) SignalBindings(id ClassID) []SignalBinding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bindings := r.signals[id]
	out := make([]SignalBinding, len(bindings))
	copy(out, bindings)
	return out
}

// QueryBindings returns the query bindings declared for a class.
func (r *Registry) QueryBindings(id ClassID) []QueryBinding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bindings := r.queries[id]
	out := make([]QueryBinding, len(bindings))
	copy(out, bindings)
	return out
}

// ChildWorkflowBindings returns the child-workflow bindings declared for a class.
func (r *Registry) ChildWorkflowBindings(id ClassID) []ChildWorkflowBinding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bindings := r.childWorkflows[id]
	out := make([]ChildWorkflowBinding, len(bindings))
	copy(out, bindings)
	return out
}
