package pagestate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ballotbox/pkg/core"
)

func TestNewRegistry_Validation(t *testing.T) {
	tests := []struct {
		name    string
		defs    []Definition
		wantErr string
	}{
		{
			name: "distinct states",
			defs: []Definition{{Section: "poll", Name: "detail"}, {Section: "poll", Name: "results"}},
		},
		{
			name:    "duplicate",
			defs:    []Definition{{Section: "poll", Name: "detail"}, {Section: "poll", Name: "detail"}},
			wantErr: "duplicate page state poll/detail",
		},
		{
			name:    "missing section",
			defs:    []Definition{{Name: "detail"}},
			wantErr: "needs a section",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.defs...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRegistry_ActivateDeactivatesSiblings(t *testing.T) {
	reg, err := NewRegistry(
		Definition{Section: "poll", Name: "detail", Steps: []QueryStep{Step("poll", NoCondition{})}},
		Definition{Section: "poll", Name: "results", Steps: []QueryStep{Step("count", Conditional{})}},
		Definition{Section: "polls", Name: "list", Steps: []QueryStep{Step("polls", NoCondition{})}},
	)
	require.NoError(t, err)

	list, err := reg.Activate("polls", "list")
	require.NoError(t, err)
	detail, err := reg.Activate("poll", "detail")
	require.NoError(t, err)
	assert.True(t, detail.Active())

	results, err := reg.Activate("poll", "results", []core.Condition{{ID: "poll", Value: "p1"}})
	require.NoError(t, err)

	assert.False(t, detail.Active())
	assert.True(t, results.Active())
	assert.True(t, list.Active(), "other sections are untouched")

	active, ok := reg.Active("poll")
	require.True(t, ok)
	assert.Same(t, results, active)
	assert.Len(t, reg.ActiveStates(), 2)
	assert.Equal(t, []string{"poll", "polls"}, reg.Sections())
}

func TestRegistry_ActivateUnknown(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	_, err = reg.Activate("poll", "nope")
	assert.ErrorIs(t, err, ErrUnknownState)
}

func TestRegistry_ActivateSeedsAndClears(t *testing.T) {
	reg, err := NewRegistry(Definition{
		Section: "poll",
		Name:    "detail",
		Steps: []QueryStep{
			Step("poll", NoCondition{}),
			Step("questions", Conditional{}),
		},
	})
	require.NoError(t, err)

	ps, err := reg.Activate("poll", "detail",
		[]core.Condition{{ID: "ignored"}},
		[]core.Condition{{ID: "poll", Value: "p1", Ready: true}})
	require.NoError(t, err)

	steps := ps.Steps()
	assert.Nil(t, steps[0].Conditions(), "no-condition steps ignore their seed")
	require.Len(t, steps[1].Conditions(), 1)
	assert.False(t, steps[1].Conditions()[0].Ready, "seeds start unsent")
	gen := ps.Generation()

	ps, err = reg.Activate("poll", "detail")
	require.NoError(t, err)
	assert.Empty(t, ps.Steps()[1].Conditions())
	assert.Equal(t, gen+1, ps.Generation())

	current, ok := reg.Current("poll")
	require.True(t, ok)
	assert.Same(t, ps, current)
}
