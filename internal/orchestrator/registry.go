package orchestrator

// #region imports
import (
	"context"
	"sort"

	"github.com/danielpatrickdp/identity-engine/internal/fault"
)

// #endregion

// #region module-interface

// Output is what a module reports back after a successful run.
type Output struct {
	ItemsProcessed int
	Details        map[string]any
}

// Module is one syncable slice of the identity document. Run must honor
// ctx cancellation; a run that outlives its deadline is abandoned.
type Module interface {
	Name() string
	Run(ctx context.Context, userID string, sc SyncContext) (Output, error)
}

// #endregion

// #region registry

// Registry holds the known modules. Registration happens at wiring time,
// before any sync runs; lookups after that are read-only.
type Registry struct {
	modules map[string]Module
	order   []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

// Register adds a module under its own name. Re-registering a name is a
// wiring mistake and fails.
func (r *Registry) Register(m Module) error {
	name := m.Name()
	if _, ok := r.modules[name]; ok {
		return fault.AlreadyExists("module %q already registered", name)
	}
	r.modules[name] = m
	r.order = append(r.order, name)
	return nil
}

// Get looks up a module by name.
func (r *Registry) Get(name string) (Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

// Names returns the registered module names sorted alphabetically.
func (r *Registry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// #endregion
