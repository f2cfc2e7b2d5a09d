package pagestate

import (
	"fmt"

	"github.com/leapstack-labs/ballotbox/pkg/core"
)

// Event is an input to Reduce.
type Event interface {
	isEvent()
}

// Activate starts a new cycle. When Seeded is set, Seeds[i] becomes the
// condition list of step i; otherwise condition lists are cleared.
type Activate struct {
	Seeds  [][]core.Condition
	Seeded bool
}

// Deactivate ends the cycle without resetting in-flight bookkeeping.
type Deactivate struct{}

// Advance asks for the next unit of work. Ticket is stamped on the
// dispatch it produces, if any. When Ticket is empty, NewTicket is called
// once a dispatch is certain.
type Advance struct {
	Ticket    string
	NewTicket func() string
}

// Deliver reports a result for Query. An empty Ticket matches by name only.
type Deliver struct {
	Query  string
	Ticket string
}

// Reveal appends conditions to the named conditional step.
type Reveal struct {
	Query      string
	Conditions []core.Condition
}

func (Activate) isEvent()   {}
func (Deactivate) isEvent() {}
func (Advance) isEvent()    {}
func (Deliver) isEvent()    {}
func (Reveal) isEvent()     {}

// Effect is what the caller of Reduce must carry out. A nil Effect means
// nothing to do.
type Effect interface {
	isEffect()
}

// Dispatch sends Request to the backend on behalf of step Step.
type Dispatch struct {
	Step    int
	Request core.Request
}

// Matched reports that a delivered result belongs to step Step.
// Condition is the condition the answered dispatch carried, if any.
type Matched struct {
	Step      int
	Condition *core.Condition
}

// Completed reports that every step was delivered; the snapshot has been
// reset and deactivated.
type Completed struct{}

// Rejected reports a delivered result that does not belong to the cycle.
type Rejected struct {
	Reason string
}

func (Dispatch) isEffect()  {}
func (Matched) isEffect()   {}
func (Completed) isEffect() {}
func (Rejected) isEffect()  {}

// Reduce applies ev to s and returns the next snapshot and the effect to
// carry out. s is not modified. On error the returned snapshot is s.
func Reduce(s Snapshot, ev Event) (Snapshot, Effect, error) {
	next := s.Clone()
	var (
		eff Effect
		err error
	)
	switch ev := ev.(type) {
	case Activate:
		next.Active = true
		next.Generation++
		next.reset()
		next.seed(ev.Seeds, ev.Seeded)
	case Deactivate:
		next.Active = false
	case Advance:
		eff, err = advance(&next, ev)
	case Deliver:
		eff = deliver(&next, ev)
	case Reveal:
		err = reveal(&next, ev)
	default:
		err = fmt.Errorf("%w: unknown event %T", ErrProtocolViolation, ev)
	}
	if err != nil {
		return s, nil, err
	}
	return next, eff, nil
}

func advance(s *Snapshot, ev Advance) (Effect, error) {
	if !s.Active {
		return nil, nil
	}
	for {
		idx := s.pending()
		if idx < 0 {
			s.reset()
			s.Active = false
			return Completed{}, nil
		}
		step := &s.Steps[idx]
		switch step.State {
		case Waiting:
			return nil, nil
		case Delivered:
			c, ok := step.Filter.(Conditional)
			if !ok || firstUnready(c.Conditions) < 0 {
				return nil, violation(*step, "pending without conditions to reveal")
			}
			step.State = Send
		case Send:
			ticket := ev.Ticket
			if ticket == "" && ev.NewTicket != nil {
				ticket = ev.NewTicket()
			}
			req, err := dispatch(step, ticket)
			if err != nil {
				return nil, err
			}
			step.State = Waiting
			step.ticket = ticket
			return Dispatch{Step: idx, Request: req}, nil
		default:
			return nil, violation(*step, "unreachable")
		}
	}
}

func dispatch(step *QueryStep, ticket string) (core.Request, error) {
	req := core.Request{
		Query:  step.Name,
		Count:  step.Window.Count,
		Start:  step.Window.Start,
		Format: step.Window.Format,
		Ticket: ticket,
	}
	step.carried = nil
	switch f := step.Filter.(type) {
	case NoCondition:
	case Conditional:
		if len(f.Conditions) == 0 {
			break
		}
		i := firstUnready(f.Conditions)
		if i < 0 {
			return req, violation(*step, "all %d conditions already sent", len(f.Conditions))
		}
		f.Conditions[i].Ready = true
		cond := f.Conditions[i]
		carried := cond
		req.Condition = &cond
		req.Replace = step.fresh
		step.fresh = false
		step.carried = &carried
	default:
		return req, violation(*step, "filter %T", step.Filter)
	}
	return req, nil
}

func deliver(s *Snapshot, ev Deliver) Effect {
	if !s.Active {
		return Rejected{Reason: "page state inactive"}
	}
	idx := s.pending()
	if idx < 0 {
		return Rejected{Reason: "nothing pending"}
	}
	step := &s.Steps[idx]
	switch {
	case step.State != Waiting:
		return Rejected{Reason: fmt.Sprintf("step %q is %s", step.Name, step.State)}
	case step.Name != ev.Query:
		return Rejected{Reason: fmt.Sprintf("awaiting %q", step.Name)}
	case ev.Ticket != "" && step.ticket != "" && ev.Ticket != step.ticket:
		return Rejected{Reason: "stale ticket"}
	}
	step.State = Delivered
	m := Matched{Step: idx, Condition: step.carried}
	step.ticket = ""
	step.carried = nil
	return m
}

func reveal(s *Snapshot, ev Reveal) error {
	for i := range s.Steps {
		step := &s.Steps[i]
		if step.Name != ev.Query {
			continue
		}
		c, ok := step.Filter.(Conditional)
		if !ok {
			break
		}
		if firstReady(c.Conditions) < 0 && len(ev.Conditions) > 0 {
			step.fresh = true
		}
		for _, cond := range ev.Conditions {
			c.Conditions = append(c.Conditions, cond.Fresh())
		}
		step.Filter = c
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownStep, ev.Query)
}
