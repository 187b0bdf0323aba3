package core

import "encoding/json"

// HealthLevel is a three-level health classification. Levels are ordered:
// Healthy < Degraded < Unhealthy.
type HealthLevel int

const (
	HealthHealthy HealthLevel = iota
	HealthDegraded
	HealthUnhealthy
)

func (h HealthLevel) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthDegraded:
		return "degraded"
	case HealthUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Degrade returns the worse of the two levels. Combining checks with Degrade
// guarantees a later check can never upgrade severity back toward healthy.
func (h HealthLevel) Degrade(to HealthLevel) HealthLevel {
	if to > h {
		return to
	}
	return h
}

func (h HealthLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}
