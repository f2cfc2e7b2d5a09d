package components

import (
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, c.Render(context.Background(), &sb))
	return sb.String()
}

func TestPollTable(t *testing.T) {
	assert.Equal(t, `<p class="empty">No polls are open.</p>`, render(t, PollTable(Table{})))

	out := render(t, PollTable(Table{
		Headers: []string{"Poll"},
		Rows: []Row{
			{Action: "@post('/a')", Cells: []string{"Team lunch"}},
			{Cells: []string{"Closed"}},
		},
	}))
	assert.Contains(t, out, `<tr data-on:click="@post(&#39;/a&#39;)"><td>Team lunch</td></tr>`)
	assert.Contains(t, out, `<tr><td>Closed</td></tr>`)
}

func TestAnswerOptions_Escapes(t *testing.T) {
	out := render(t, AnswerOptions("q1", []Option{{ID: "a1", Text: "Fish & chips"}}))
	assert.Equal(t,
		`<label><input type="checkbox" value="a1" data-bind="selection.q1"> Fish &amp; chips</label>`,
		out)
}

func TestTallies(t *testing.T) {
	assert.Equal(t, `<p class="empty">No votes yet.</p>`, render(t, Tallies(nil)))

	out := render(t, Tallies([]TallyGroup{{Question: "q1", Bars: []Bar{{Text: "Pizza", Votes: 3, Percent: 75}}}}))
	assert.Equal(t,
		`<div class="tally" data-question="q1"><div class="bar" style="width: 75%;"><span>Pizza</span> <span>3 (75%)</span></div></div>`,
		out)
}
