package metadata

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/taskmill/taskmill/pkg/logger"
)

const defaultCacheSize = 256

// classMetadata is the per-class cache entry. Bindings are cached by class;
// handlers are re-bound per instance on every cache hit.
type classMetadata struct {
	isContainer bool
	activities  []ActivityBinding
}

// ValidationResult reports whether a class is usable as an activity container.
type ValidationResult struct {
	IsValid bool
	Issues  []string
}

// Accessor extracts activity metadata for live instances, caching per-class
// lookups in an explicit LRU cache. The cache is keyed by ClassID and is
// invalidated only by ClearCache, intended for hot reload and tests.
type Accessor struct {
	registry *Registry
	cache    *lru.Cache[ClassID, *classMetadata]
}

// NewAccessor creates an accessor over the given registry.
func NewAccessor(registry *Registry) *Accessor {
	cache, err := lru.New[ClassID, *classMetadata](defaultCacheSize)
	if err != nil {
		// lru.New only fails on a non-positive size
		panic(err)
	}
	return &Accessor{registry: registry, cache: cache}
}

func (a *Accessor) classMetadataFor(id ClassID) *classMetadata {
	if meta, ok := a.cache.Get(id); ok {
		return meta
	}
	meta := &classMetadata{
		isContainer: a.registry.IsActivityContainer(id),
		activities:  a.registry.ActivityBindings(id),
	}
	a.cache.Add(id, meta)
	return meta
}

// IsActivityContainer reports whether the instance's class carries
// activity-container metadata. The result is cached per class.
func (a *Accessor) IsActivityContainer(instance any) bool {
	if instance == nil {
		return false
	}
	return a.classMetadataFor(ClassIDOf(instance)).isContainer
}

// ExtractActivityMethods returns every activity method declared on the
// instance's class, keyed by logical name and bound to the instance. It
// returns an empty map, never an error, when the instance is nil or carries
// no metadata; a binding that fails to resolve is skipped and logged.
func (a *Accessor) ExtractActivityMethods(ctx context.Context, instance any) map[string]any {
	handlers := make(map[string]any)
	if instance == nil {
		return handlers
	}
	log := logger.FromContext(ctx)
	id := ClassIDOf(instance)
	meta := a.classMetadataFor(id)
	for _, binding := range meta.activities {
		handler, ok := binding.Bind(instance)
		if !ok {
			log.Warn("Skipping activity method with unresolvable binding",
				"class", id,
				"method", binding.MethodName,
				"activity", binding.LogicalName,
			)
			continue
		}
		handlers[binding.LogicalName] = handler
	}
	return handlers
}

// ValidateActivityContainer checks that the instance's class is registered as
// an activity container and declares at least one activity method. Callers
// use it to gate registration with a non-fatal warning path.
func (a *Accessor) ValidateActivityContainer(instance any) ValidationResult {
	result := ValidationResult{IsValid: true}
	if instance == nil {
		return ValidationResult{IsValid: false, Issues: []string{"instance is nil"}}
	}
	meta := a.classMetadataFor(ClassIDOf(instance))
	if !meta.isContainer {
		result.IsValid = false
		result.Issues = append(result.Issues, "not marked as activity container")
	}
	if len(meta.activities) == 0 {
		result.IsValid = false
		result.Issues = append(result.Issues, "no activity methods found")
	}
	return result
}

// ClearCache drops all cached class metadata.
func (a *Accessor) ClearCache() {
	a.cache.Purge()
}

// CacheLen returns the number of cached class entries.
func (a *Accessor) CacheLen() int {
	return a.cache.Len()
}
