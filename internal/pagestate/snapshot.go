package pagestate

import "github.com/leapstack-labs/ballotbox/pkg/core"

// Snapshot is the mutable part of a PageState at one point in time.
// Reduce never modifies the snapshot it is given.
type Snapshot struct {
	Active     bool
	Generation uint64
	Steps      []QueryStep
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Active: s.Active, Generation: s.Generation}
	if s.Steps != nil {
		out.Steps = make([]QueryStep, len(s.Steps))
		for i, step := range s.Steps {
			out.Steps[i] = step.clone()
		}
	}
	return out
}

// Ongoing returns the index of the first step whose state is not
// Delivered, or -1 when every step is Delivered.
func (s Snapshot) Ongoing() int {
	for i, step := range s.Steps {
		if step.State != Delivered {
			return i
		}
	}
	return -1
}

// pending returns the index of the first step that still needs a round
// trip. It differs from Ongoing only while a conditioned step is
// Delivered with conditions left to reveal, which Reduce never leaves
// behind once an Advance has run.
func (s Snapshot) pending() int {
	for i, step := range s.Steps {
		if !step.complete() {
			return i
		}
	}
	return -1
}

// Waiting returns how many steps have a dispatch in flight.
func (s Snapshot) Waiting() int {
	n := 0
	for _, step := range s.Steps {
		if step.State == Waiting {
			n++
		}
	}
	return n
}

// reset puts every step back to Send and marks conditions unsent.
func (s *Snapshot) reset() {
	for i := range s.Steps {
		step := &s.Steps[i]
		step.State = Send
		step.fresh = false
		step.ticket = ""
		step.carried = nil
		if c, ok := step.Filter.(Conditional); ok {
			for j := range c.Conditions {
				c.Conditions[j].Ready = false
			}
		}
	}
}

// seed replaces condition lists from seeds; element i belongs to step i
// and is ignored for NoCondition steps. A nil seeds clears every list.
func (s *Snapshot) seed(seeds [][]core.Condition, supplied bool) {
	for i := range s.Steps {
		step := &s.Steps[i]
		if _, ok := step.Filter.(Conditional); !ok {
			continue
		}
		var conds []core.Condition
		if supplied && i < len(seeds) {
			for _, c := range seeds[i] {
				conds = append(conds, c.Fresh())
			}
		}
		step.Filter = Conditional{Conditions: conds}
		step.fresh = len(conds) > 0
	}
}
