package pagestate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ballotbox/pkg/core"
)

func activeSnapshot(t *testing.T, steps ...QueryStep) Snapshot {
	t.Helper()
	next, _, err := Reduce(Snapshot{Steps: steps}, Activate{})
	require.NoError(t, err)
	return next
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	s := activeSnapshot(t, Step("questions", Conditional{}))
	s, _, err := Reduce(s, Reveal{Query: "questions", Conditions: []core.Condition{{ID: "q", Value: 1}}})
	require.NoError(t, err)

	before := s.Clone()
	next, eff, err := Reduce(s, Advance{Ticket: "t1"})
	require.NoError(t, err)

	assert.Equal(t, before, s)
	require.IsType(t, Dispatch{}, eff)
	assert.Equal(t, Waiting, next.Steps[0].State)
	assert.True(t, next.Steps[0].Conditions()[0].Ready)
	assert.False(t, s.Steps[0].Conditions()[0].Ready)
}

func TestReduce_InactiveIgnoresAdvance(t *testing.T) {
	s := Snapshot{Steps: []QueryStep{Step("polls", NoCondition{})}}
	next, eff, err := Reduce(s, Advance{Ticket: "t1"})
	require.NoError(t, err)
	assert.Nil(t, eff)
	assert.Equal(t, s, next)
}

func TestReduce_Deliver(t *testing.T) {
	base := activeSnapshot(t, Step("polls", NoCondition{}), Step("poll", Conditional{}))
	waiting, _, err := Reduce(base, Advance{Ticket: "t1"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		snap   Snapshot
		ev     Deliver
		wantOK bool
	}{
		{"matching name and ticket", waiting, Deliver{Query: "polls", Ticket: "t1"}, true},
		{"matching name without ticket", waiting, Deliver{Query: "polls"}, true},
		{"stale ticket", waiting, Deliver{Query: "polls", Ticket: "t0"}, false},
		{"other query", waiting, Deliver{Query: "poll", Ticket: "t1"}, false},
		{"not dispatched yet", base, Deliver{Query: "polls"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, eff, err := Reduce(tt.snap, tt.ev)
			require.NoError(t, err)
			if tt.wantOK {
				require.IsType(t, Matched{}, eff)
				assert.Equal(t, Delivered, next.Steps[0].State)
				return
			}
			require.IsType(t, Rejected{}, eff)
			assert.Equal(t, tt.snap, next)
		})
	}
}

func TestReduce_EmptyConditionalDispatchesUnfiltered(t *testing.T) {
	s := activeSnapshot(t, Step("answers", Conditional{}))

	s, eff, err := Reduce(s, Advance{Ticket: "t1"})
	require.NoError(t, err)
	d, ok := eff.(Dispatch)
	require.True(t, ok)
	assert.Nil(t, d.Request.Condition)

	s, _, err = Reduce(s, Deliver{Query: "answers", Ticket: "t1"})
	require.NoError(t, err)
	s, eff, err = Reduce(s, Advance{Ticket: "t2"})
	require.NoError(t, err)
	assert.IsType(t, Completed{}, eff)
	assert.False(t, s.Active)
}

func TestReduce_WindowCarriedOnDispatch(t *testing.T) {
	step := Step("polls", NoCondition{})
	step.Window = Window{Start: 20, Count: 10, Format: "json"}
	s := activeSnapshot(t, step)

	_, eff, err := Reduce(s, Advance{Ticket: "t1"})
	require.NoError(t, err)
	d := eff.(Dispatch)
	assert.Equal(t, core.Request{Query: "polls", Start: 20, Count: 10, Format: "json", Ticket: "t1"}, d.Request)
}

func TestReduce_RevealUnknownStep(t *testing.T) {
	s := activeSnapshot(t, Step("polls", NoCondition{}))

	_, _, err := Reduce(s, Reveal{Query: "polls", Conditions: []core.Condition{{ID: "x"}}})
	assert.ErrorIs(t, err, ErrUnknownStep)

	_, _, err = Reduce(s, Reveal{Query: "missing"})
	assert.ErrorIs(t, err, ErrUnknownStep)
}

func TestStepState_String(t *testing.T) {
	assert.Equal(t, "send", Send.String())
	assert.Equal(t, "waiting", Waiting.String())
	assert.Equal(t, "delivered", Delivered.String())
	assert.Equal(t, "StepState(7)", StepState(7).String())
}

func TestReduce_RevealAfterSentKeepsAccumulating(t *testing.T) {
	s := activeSnapshot(t, Step("answers", Conditional{}))
	s, _, err := Reduce(s, Reveal{Query: "answers", Conditions: []core.Condition{{ID: "question", Value: "q1"}}})
	require.NoError(t, err)
	s, eff, err := Reduce(s, Advance{Ticket: "t1"})
	require.NoError(t, err)
	require.IsType(t, Dispatch{}, eff)
	assert.True(t, eff.(Dispatch).Request.Replace)

	s, _, err = Reduce(s, Reveal{Query: "answers", Conditions: []core.Condition{{ID: "question", Value: "q2"}}})
	require.NoError(t, err)
	s, _, err = Reduce(s, Deliver{Query: "answers", Ticket: "t1"})
	require.NoError(t, err)
	_, eff, err = Reduce(s, Advance{Ticket: "t2"})
	require.NoError(t, err)
	require.IsType(t, Dispatch{}, eff)
	assert.Equal(t, "q2", eff.(Dispatch).Request.Condition.Value)
	assert.False(t, eff.(Dispatch).Request.Replace)
}
