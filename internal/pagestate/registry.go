package pagestate

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/ballotbox/pkg/core"
)

type stateKey struct {
	section string
	name    string
}

// Registry holds every PageState of a page and keeps at most one of them
// active per section. It is not safe for concurrent use; a page drives it
// from a single goroutine.
type Registry struct {
	states []*PageState
	byKey  map[stateKey]*PageState
	active map[string]*PageState
}

// NewRegistry builds a registry from definitions.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{
		byKey:  make(map[stateKey]*PageState, len(defs)),
		active: make(map[string]*PageState),
	}
	for _, def := range defs {
		if def.Section == "" || def.Name == "" {
			return nil, fmt.Errorf("page state needs a section and a name, got %q/%q", def.Section, def.Name)
		}
		key := stateKey{def.Section, def.Name}
		if _, dup := r.byKey[key]; dup {
			return nil, fmt.Errorf("duplicate page state %s/%s", def.Section, def.Name)
		}
		ps := New(def)
		r.states = append(r.states, ps)
		r.byKey[key] = ps
	}
	return r, nil
}

// Lookup returns the PageState registered under section and name.
func (r *Registry) Lookup(section, name string) (*PageState, bool) {
	ps, ok := r.byKey[stateKey{section, name}]
	return ps, ok
}

// Activate makes the named PageState the active one of its section,
// deactivating its siblings. Seeds, when given, become the condition lists
// of the steps by position. Activate does not dispatch anything.
func (r *Registry) Activate(section, name string, seeds ...[]core.Condition) (*PageState, error) {
	ps, ok := r.Lookup(section, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownState, section, name)
	}
	for _, sibling := range r.states {
		if sibling != ps && sibling.Section == section && sibling.Active() {
			sibling.deactivate()
		}
	}
	ps.activate(seeds, len(seeds) > 0)
	r.active[section] = ps
	return ps, nil
}

// Active returns the active PageState of a section.
func (r *Registry) Active(section string) (*PageState, bool) {
	ps, ok := r.active[section]
	if !ok || !ps.Active() {
		return nil, false
	}
	return ps, true
}

// Current returns the PageState most recently activated in section, even
// when its cycle has since completed. Its result cache is kept until the
// next activation.
func (r *Registry) Current(section string) (*PageState, bool) {
	ps, ok := r.active[section]
	return ps, ok
}

// ActiveStates returns every active PageState, ordered by section.
func (r *Registry) ActiveStates() []*PageState {
	sections := r.Sections()
	out := make([]*PageState, 0, len(sections))
	for _, section := range sections {
		if ps, ok := r.Active(section); ok {
			out = append(out, ps)
		}
	}
	return out
}

// Sections returns the distinct sections in sorted order.
func (r *Registry) Sections() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, ps := range r.states {
		if _, ok := seen[ps.Section]; ok {
			continue
		}
		seen[ps.Section] = struct{}{}
		out = append(out, ps.Section)
	}
	sort.Strings(out)
	return out
}

// States returns every registered PageState in declaration order.
func (r *Registry) States() []*PageState {
	return append([]*PageState(nil), r.states...)
}
