package ir

import "github.com/pkg/errors"

// Registry is an explicit, front-end-owned table of named modules. Per the
// design note on singleton registries, nothing in this package or in
// package flatten keeps a process-global registry; callers build one and
// pass it in explicitly.
type Registry struct {
	modules map[string]*Module
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{modules: map[string]*Module{}}
}

// Register adds m to the registry under m.Name. It is an error to register
// two modules with the same name.
func (r *Registry) Register(m *Module) error {
	if _, ok := r.modules[m.Name]; ok {
		return errors.Errorf("module %q already registered", m.Name)
	}
	r.modules[m.Name] = m
	return nil
}

// Lookup returns the module registered under name.
func (r *Registry) Lookup(name string) (*Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

// CyclicHierarchy is raised when the instantiation graph rooted at a
// module contains a cycle.
type CyclicHierarchy struct {
	Path []string
}

func (e CyclicHierarchy) Error() string {
	s := "cyclic module hierarchy: "
	for i, p := range e.Path {
		if i > 0 {
			s += " -> "
		}
		s += p
	}
	return s
}

// CheckAcyclic walks the instantiation graph starting at root and returns
// CyclicHierarchy if any module (transitively) instantiates itself.
func (r *Registry) CheckAcyclic(root string) error {
	return r.walk(root, nil, map[string]bool{})
}

func (r *Registry) walk(name string, path []string, onPath map[string]bool) error {
	if onPath[name] {
		return errors.WithStack(CyclicHierarchy{Path: append(append([]string{}, path...), name)})
	}
	m, ok := r.modules[name]
	if !ok {
		return errors.Errorf("module %q not found in registry", name)
	}
	onPath[name] = true
	path = append(path, name)
	for _, inst := range m.Instances {
		if err := r.walk(inst.Module, path, onPath); err != nil {
			return err
		}
	}
	onPath[name] = false
	return nil
}
