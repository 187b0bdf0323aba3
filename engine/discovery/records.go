package discovery

import "time"

// ActivityRecord is one discovered activity handler. Records are immutable
// once created and replaced wholesale on rediscovery.
type ActivityRecord struct {
	LogicalName    string
	ContainerClass string
	Handler        any
}

// SignalRecord is one discovered signal handler.
type SignalRecord struct {
	LogicalName    string
	ContainerClass string
	MethodName     string
	Handler        any
	Options        map[string]any
}

// QueryRecord is one discovered query handler.
type QueryRecord struct {
	LogicalName    string
	ContainerClass string
	MethodName     string
	Handler        any
	Options        map[string]any
}

// ChildWorkflowRecord is one discovered child-workflow binding.
type ChildWorkflowRecord struct {
	WorkflowName   string
	ContainerClass string
	MethodName     string
	Handler        any
	Options        map[string]any
}

// Stats are best-effort discovery counters. Controllers and Methods count
// scanned components and extracted activity methods; the remaining counters
// track their respective record maps.
type Stats struct {
	Controllers    int `json:"controllers"`
	Methods        int `json:"methods"`
	Signals        int `json:"signals"`
	Queries        int `json:"queries"`
	Workflows      int `json:"workflows"`
	ChildWorkflows int `json:"child_workflows"`
}

// HealthStatus is the discovery view consumed by health probes. Degraded is a
// heuristic signal meaning the scan completed but found nothing, not a hard
// error.
type HealthStatus struct {
	Status            string        `json:"status"`
	DiscoveredItems   int           `json:"discovered_items"`
	IsComplete        bool          `json:"is_complete"`
	LastDiscovery     time.Time     `json:"last_discovery"`
	DiscoveryDuration time.Duration `json:"discovery_duration"`
}
