package discovery

// ComponentKind distinguishes request-handling components from plain services.
type ComponentKind string

const (
	KindController ComponentKind = "controller"
	KindProvider   ComponentKind = "provider"
)

// Component is one object managed by the host container.
type Component struct {
	Name     string
	Kind     ComponentKind
	Instance any
}

// Container is the read-only boundary to whatever assembles the application.
// Discovery only enumerates; it never mutates the container.
type Container interface {
	Components() ([]Component, error)
}

// StaticContainer is a Container over a fixed component list, for hosts that
// assemble their object graph by hand and for tests.
type StaticContainer struct {
	components []Component
}

// NewStaticContainer creates a container holding the given components.
func NewStaticContainer(components ...Component) *StaticContainer {
	return &StaticContainer{components: components}
}

// AddController appends a controller component.
func (c *StaticContainer) AddController(name string, instance any) *StaticContainer {
	c.components = append(c.components, Component{Name: name, Kind: KindController, Instance: instance})
	return c
}

// AddProvider appends a provider component.
func (c *StaticContainer) AddProvider(name string, instance any) *StaticContainer {
	c.components = append(c.components, Component{Name: name, Kind: KindProvider, Instance: instance})
	return c
}

func (c *StaticContainer) Components() ([]Component, error) {
	out := make([]Component, len(c.components))
	copy(out, c.components)
	return out, nil
}
