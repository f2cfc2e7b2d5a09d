package pagestate

import (
	"fmt"

	"github.com/leapstack-labs/ballotbox/pkg/core"
)

// StepState is the lifecycle state of a QueryStep.
type StepState int

const (
	// Send means the step has work to dispatch.
	Send StepState = iota
	// Waiting means a dispatch is in flight.
	Waiting
	// Delivered means the last dispatch has been answered.
	Delivered
)

// String implements fmt.Stringer.
func (s StepState) String() string {
	switch s {
	case Send:
		return "send"
	case Waiting:
		return "waiting"
	case Delivered:
		return "delivered"
	default:
		return fmt.Sprintf("StepState(%d)", int(s))
	}
}

// Filter is what a query is filtered by: either NoCondition or Conditional.
type Filter interface {
	isFilter()
}

// NoCondition marks a query that is dispatched without a condition payload
// and is complete after its first response.
type NoCondition struct{}

// Conditional holds the conditions of a query, revealed in order.
type Conditional struct {
	Conditions []core.Condition
}

func (NoCondition) isFilter() {}
func (Conditional) isFilter() {}

// Window holds the paging and format extras sent with each dispatch.
type Window struct {
	Start  int
	Count  int
	Format string
}

// QueryStep is one named remote query and its lifecycle.
type QueryStep struct {
	Name   string
	State  StepState
	Filter Filter
	Window Window
	// Key is an optional JMESPath expression evaluated against the payload
	// to name the artifact in the result cache.
	Key string

	// fresh is set when the step received conditions in this cycle and
	// has not dispatched one yet.
	fresh bool
	// ticket identifies the in-flight dispatch.
	ticket string
	// carried is the condition of the in-flight dispatch.
	carried *core.Condition
}

// Step declares a query step with the given filter.
func Step(name string, filter Filter) QueryStep {
	return QueryStep{Name: name, Filter: filter}
}

// Conditions returns a copy of the step's conditions. NoCondition steps
// return nil.
func (q QueryStep) Conditions() []core.Condition {
	if c, ok := q.Filter.(Conditional); ok {
		return core.CloneConditions(c.Conditions)
	}
	return nil
}

// ReadyCount returns how many conditions have been sent.
func (q QueryStep) ReadyCount() int {
	n := 0
	for _, c := range q.Conditions() {
		if c.Ready {
			n++
		}
	}
	return n
}

// Ticket returns the ticket of the in-flight dispatch, if any.
func (q QueryStep) Ticket() string { return q.ticket }

// complete reports whether the step needs no further round trips.
func (q QueryStep) complete() bool {
	if q.State != Delivered {
		return false
	}
	if c, ok := q.Filter.(Conditional); ok {
		return firstUnready(c.Conditions) < 0
	}
	return true
}

func (q QueryStep) clone() QueryStep {
	if c, ok := q.Filter.(Conditional); ok {
		q.Filter = Conditional{Conditions: core.CloneConditions(c.Conditions)}
	}
	if q.carried != nil {
		c := *q.carried
		q.carried = &c
	}
	return q
}

func firstReady(conds []core.Condition) int {
	for i, c := range conds {
		if c.Ready {
			return i
		}
	}
	return -1
}

func firstUnready(conds []core.Condition) int {
	for i, c := range conds {
		if !c.Ready {
			return i
		}
	}
	return -1
}
