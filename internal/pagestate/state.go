package pagestate

import (
	"maps"

	"github.com/leapstack-labs/ballotbox/pkg/core"
)

// Artifact is what a renderer produces for one result.
type Artifact struct {
	// Key names the artifact in the result cache. When empty the
	// orchestrator derives it from the step.
	Key string
	// Value is read by readiness predicates.
	Value any
	// Reveal lists conditions to append to later steps, by query name.
	Reveal map[string][]core.Condition
}

// Definition declares a PageState.
type Definition struct {
	Section   string
	Name      string
	Container string
	Isolated  bool
	Steps     []QueryStep
}

// PageState is a named group of sequenced queries that fills one region
// of a page. PageStates are built once and reused for every activation.
type PageState struct {
	Section   string
	Name      string
	Container string
	Isolated  bool

	snap  Snapshot
	cache map[string]Artifact
	// resolved is the generation of the last completed cycle.
	resolved uint64
}

// New builds a PageState from its definition. Conditions in the
// definition start unsent.
func New(def Definition) *PageState {
	steps := make([]QueryStep, len(def.Steps))
	for i, step := range def.Steps {
		step = step.clone()
		if step.Filter == nil {
			step.Filter = NoCondition{}
		}
		step.State = Send
		steps[i] = step
	}
	ps := &PageState{
		Section:   def.Section,
		Name:      def.Name,
		Container: def.Container,
		Isolated:  def.Isolated,
		snap:      Snapshot{Steps: steps},
		cache:     make(map[string]Artifact),
	}
	ps.snap.reset()
	return ps
}

// Active reports whether the PageState is in a cycle.
func (ps *PageState) Active() bool { return ps.snap.Active }

// Generation counts activations.
func (ps *PageState) Generation() uint64 { return ps.snap.Generation }

// Resolved reports whether the latest activation ran to completion.
func (ps *PageState) Resolved() bool {
	return !ps.snap.Active && ps.snap.Generation > 0 && ps.resolved == ps.snap.Generation
}

// Snapshot returns a copy of the current snapshot.
func (ps *PageState) Snapshot() Snapshot { return ps.snap.Clone() }

// Steps returns a copy of the steps.
func (ps *PageState) Steps() []QueryStep { return ps.snap.Clone().Steps }

// Ongoing returns the first step whose state is not Delivered.
func (ps *PageState) Ongoing() (QueryStep, bool) {
	idx := ps.snap.Ongoing()
	if idx < 0 {
		return QueryStep{}, false
	}
	return ps.snap.Steps[idx].clone(), true
}

// Results returns a copy of the artifacts cached during the current cycle.
func (ps *PageState) Results() map[string]Artifact {
	return maps.Clone(ps.cache)
}

// Result returns one cached artifact.
func (ps *PageState) Result(key string) (Artifact, bool) {
	a, ok := ps.cache[key]
	return a, ok
}

// String implements fmt.Stringer.
func (ps *PageState) String() string {
	return ps.Section + "/" + ps.Name
}

func (ps *PageState) apply(ev Event) (Effect, error) {
	next, eff, err := Reduce(ps.snap, ev)
	if err != nil {
		return nil, err
	}
	ps.snap = next
	return eff, nil
}

func (ps *PageState) activate(seeds [][]core.Condition, seeded bool) {
	// Activate cannot fail.
	_, _ = ps.apply(Activate{Seeds: seeds, Seeded: seeded})
	clear(ps.cache)
}

func (ps *PageState) deactivate() {
	_, _ = ps.apply(Deactivate{})
}
