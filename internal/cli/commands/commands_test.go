package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/ballotbox/internal/cli/output"
	clitestutil "github.com/leapstack-labs/ballotbox/internal/cli/testutil"
	"github.com/leapstack-labs/ballotbox/internal/history"
	"github.com/leapstack-labs/ballotbox/internal/poll"
	"github.com/leapstack-labs/ballotbox/internal/rpc"
	"github.com/leapstack-labs/ballotbox/internal/testutil"
	"github.com/leapstack-labs/ballotbox/pkg/core"
)

// newPollBackend starts a fake backend with one poll of one question.
func newPollBackend(t *testing.T) *testutil.Backend {
	t.Helper()
	b := testutil.NewBackend(t)
	b.Table(poll.QueryPolls, []string{"id", "title"},
		[]any{"p1", "Team lunch"},
		[]any{"p2", "Offsite | Q3"})
	b.Table(poll.QueryPoll, []string{"id", "title", "description"}, []any{"p1", "Team lunch", "Pick a place"})
	b.Table(poll.QueryQuestions, []string{"id", "text", "min", "max"}, []any{"q1", "Where?", 1, 1})
	b.Table(poll.QueryAnswers, []string{"id", "question", "text"},
		[]any{"a1", "q1", "Pizza"},
		[]any{"a2", "q1", "Sushi"})
	b.Table(poll.QueryCount, []string{"question", "answer", "text", "votes"},
		[]any{"q1", "a1", "Pizza", 3},
		[]any{"q1", "a2", "Sushi", 1})
	b.Handle(poll.QueryVote, func(url.Values) map[string]any {
		return map[string]any{"name": poll.QueryVote, "type": "add_rows"}
	})
	return b
}

// useBackend loads a configuration pointing at b.
func useBackend(t *testing.T, b *testutil.Backend, env map[string]string) {
	t.Helper()
	if env == nil {
		env = map[string]string{}
	}
	env["BACKEND__URL"] = b.URL()
	env["BACKEND__TIMEOUT"] = "2s"
	clitestutil.LoadTestConfig(t, env)
}

// execute runs cmd with args and returns its standard output.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// =============================================================================
// Query Tests
// =============================================================================

func TestQueryCommand_Formats(t *testing.T) {
	b := newPollBackend(t)
	useBackend(t, b, nil)

	tests := []struct {
		name    string
		format  string
		wantOut []string
	}{
		{name: "table", format: "table", wantOut: []string{"ID", "TITLE", "Team lunch", "(2 rows)"}},
		{name: "markdown", format: "md", wantOut: []string{"| id | title |", "| --- | --- |", "| p1 | Team lunch |", `Offsite \| Q3`}},
		{name: "xml", format: "xml", wantOut: []string{"<rows>", `<row id="p1" title="Team lunch"></row>`}},
		{name: "yaml", format: "yaml", wantOut: []string{"query: polls", "- id: p1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewQueryCommand(), poll.QueryPolls, "-f", tt.format)
			require.NoError(t, err)
			for _, want := range tt.wantOut {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestQueryCommand_JSON(t *testing.T) {
	b := newPollBackend(t)
	useBackend(t, b, nil)

	out, err := execute(t, NewQueryCommand(), poll.QueryPolls, "--format", "json")
	require.NoError(t, err)

	var result output.QueryOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, poll.QueryPolls, result.Query)
	assert.NotEmpty(t, result.Ticket, "tickets are echoed back")
	assert.Equal(t, []string{"id", "title"}, result.Columns)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "Team lunch", result.Rows[0]["title"])
}

func TestQueryCommand_YAMLRoundTrip(t *testing.T) {
	b := newPollBackend(t)
	useBackend(t, b, nil)

	out, err := execute(t, NewQueryCommand(), poll.QueryCount, "-f", "yaml")
	require.NoError(t, err)

	var result output.QueryOutput
	require.NoError(t, yaml.Unmarshal([]byte(out), &result))
	assert.Equal(t, poll.QueryCount, result.Name)
	assert.Len(t, result.Rows, 2)
}

func TestQueryCommand_SendsCondition(t *testing.T) {
	b := newPollBackend(t)
	useBackend(t, b, map[string]string{"BACKEND__PAGE_SIZE": "5"})

	_, err := execute(t, NewQueryCommand(), poll.QueryQuestions,
		"--table", "question", "--id", "poll", "--value", "p1", "--replace", "--start", "10")
	require.NoError(t, err)

	reqs := b.Requests()
	require.Len(t, reqs, 1)
	form := reqs[0]
	assert.Equal(t, "5", form.Get(rpc.FieldCount), "page size fills the count")
	assert.Equal(t, "10", form.Get(rpc.FieldStart))

	conds, err := rpc.UnmarshalConditions(form.Get(rpc.FieldCondition))
	require.NoError(t, err)
	require.Len(t, conds, 1)
	assert.Equal(t, core.Condition{Table: "question", ID: "poll", Value: "p1"}, conds[0])
}

func TestQueryCommand_SendsRows(t *testing.T) {
	b := newPollBackend(t)
	useBackend(t, b, nil)

	out, err := execute(t, NewQueryCommand(), poll.QueryVote,
		"--row", "poll=p1,question=q1,answer=a2")
	require.NoError(t, err)
	assert.Equal(t, "vote: add_rows\n", out)

	reqs := b.Requests()
	require.Len(t, reqs, 1)
	rows, err := rpc.UnmarshalRows(reqs[0].Get(rpc.FieldRows))
	require.NoError(t, err)
	assert.Equal(t, []map[string]string{{"poll": "p1", "question": "q1", "answer": "a2"}}, rows)
}

func TestQueryCommand_Errors(t *testing.T) {
	b := newPollBackend(t)
	useBackend(t, b, nil)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "server error", args: []string{"archive"}, wantErr: "unknown query archive"},
		{name: "half a condition", args: []string{"polls", "--table", "poll"}, wantErr: "both --table and --id"},
		{name: "bad row", args: []string{"vote", "--row", "poll"}, wantErr: "expected key=value"},
		{name: "unknown format", args: []string{"polls", "-f", "csv"}, wantErr: "unknown format"},
		{name: "no name", args: nil, wantErr: "accepts 1 arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, NewQueryCommand(), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseRow(t *testing.T) {
	row, err := parseRow(" poll = p1 ,answer=a2,")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"poll": "p1", "answer": "a2"}, row)

	_, err = parseRow(",")
	assert.Error(t, err)

	_, err = parseRow("=a2")
	assert.Error(t, err)
}

// =============================================================================
// Render Tests
// =============================================================================

func TestRenderCommand_Markdown(t *testing.T) {
	b := newPollBackend(t)
	useBackend(t, b, nil)

	out, err := execute(t, NewRenderCommand(), poll.SectionPoll, poll.StateDetail, "--poll", "p1")
	require.NoError(t, err)

	clitestutil.AssertNoANSI(t, out)
	clitestutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "# Poll Detail")
	assert.Contains(t, out, "## "+poll.HeaderTarget)
	assert.Contains(t, out, "Team lunch")
	assert.Contains(t, out, "Sushi")
	assert.Contains(t, b.Queries(), poll.QueryCount, "counts are fetched once the poll has loaded")
}

func TestRenderCommand_JSON(t *testing.T) {
	b := newPollBackend(t)
	useBackend(t, b, map[string]string{"OUTPUT": "json"})

	out, err := execute(t, NewRenderCommand(), poll.SectionPolls, poll.StateList)
	require.NoError(t, err)

	var result output.RenderOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Complete)
	assert.Equal(t, []output.StepOutput{{Query: poll.QueryPolls, State: "delivered"}}, result.Steps)

	var ids []string
	for _, rg := range result.Regions {
		ids = append(ids, rg.ID)
	}
	assert.Contains(t, ids, poll.ListContainer)
}

func TestRenderCommand_Incomplete(t *testing.T) {
	b := newPollBackend(t)
	b.Handle(poll.QueryAnswers, func(url.Values) map[string]any {
		time.Sleep(500 * time.Millisecond)
		return map[string]any{"name": poll.QueryAnswers, "table": map[string]any{"header": []any{}, "body": []any{}}}
	})
	useBackend(t, b, map[string]string{"OUTPUT": "json"})

	out, err := execute(t, NewRenderCommand(), poll.SectionPoll, poll.StateDetail, "--poll", "p1", "--wait", "100ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not complete")

	var result output.RenderOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.False(t, result.Complete)
	require.Len(t, result.Steps, 3)
	assert.Equal(t, output.StepOutput{Query: poll.QueryAnswers, State: "waiting"}, result.Steps[2])
}

func TestRenderCommand_BadState(t *testing.T) {
	b := newPollBackend(t)
	useBackend(t, b, nil)

	_, err := execute(t, NewRenderCommand(), poll.SectionPoll, poll.StateDetail)
	assert.ErrorIs(t, err, poll.ErrMissingParam)

	_, err = execute(t, NewRenderCommand(), poll.SectionPoll, poll.StateDetail, "--param", "poll")
	assert.ErrorContains(t, err, "expected key=value")

	assert.Empty(t, b.Queries())
}

// =============================================================================
// History Tests
// =============================================================================

func seedHistory(t *testing.T, dsn string) {
	t.Helper()
	ctx := context.Background()
	store, err := history.Open(ctx, history.DriverSQLite, dsn)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, err = store.RecordVisit(ctx, "s1", "p1")
	require.NoError(t, err)
	require.NoError(t, store.RecordVote(ctx, &core.Vote{
		SessionID: "s1",
		PollID:    "p1",
		Answers:   map[string][]string{"q2": {"a3", "a4"}, "q1": {"a2"}},
	}))
	_, err = store.RecordVisit(ctx, "s2", "p9")
	require.NoError(t, err)
}

func TestHistoryCommand_JSON(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "history.db")
	seedHistory(t, dsn)
	clitestutil.LoadTestConfig(t, map[string]string{"HISTORY__DSN": dsn, "OUTPUT": "json"})

	out, err := execute(t, NewHistoryCommand(), "--session", "s1")
	require.NoError(t, err)

	var result output.HistoryOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "s1", result.Session)
	require.Len(t, result.Visits, 1)
	assert.Equal(t, "p1", result.Visits[0].PollID)
	require.Len(t, result.Votes, 1)
	assert.Equal(t, []string{"a3", "a4"}, result.Votes[0].Answers["q2"])
}

func TestHistoryCommand_Markdown(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "history.db")
	seedHistory(t, dsn)
	clitestutil.LoadTestConfig(t, map[string]string{"HISTORY__DSN": dsn})

	out, err := execute(t, NewHistoryCommand(), "--session", "s1")
	require.NoError(t, err)

	clitestutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "# History: s1")
	assert.Contains(t, out, "| p1 | q1=a2; q2=a3,a4 |")
	assert.NotContains(t, out, "p9")
}

func TestHistoryCommand_EmptySession(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "history.db")
	clitestutil.LoadTestConfig(t, map[string]string{"HISTORY__DSN": dsn})

	out, err := execute(t, NewHistoryCommand(), "--session", "nobody")
	require.NoError(t, err)

	assert.Contains(t, out, "_No visits._")
	assert.Contains(t, out, "_No votes._")
}

func TestHistoryCommand_RequiresSession(t *testing.T) {
	clitestutil.LoadTestConfig(t, map[string]string{"HISTORY__DSN": ":memory:"})

	_, err := execute(t, NewHistoryCommand())

	require.Error(t, err)
	assert.Contains(t, err.Error(), `"session" not set`)
}

func TestWriteHistory_Text(t *testing.T) {
	tr := clitestutil.NewTestRendererText()
	h := output.HistoryOutput{
		Session: "s1",
		Votes: []output.VoteInfo{{
			PollID:      "p1",
			Answers:     map[string][]string{"q1": {"a1"}},
			SubmittedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		}},
	}

	require.NoError(t, writeHistory(tr.Renderer, h))

	out := tr.Output()
	assert.Contains(t, out, "(no visits)")
	assert.Contains(t, out, "q1=a1")
	assert.True(t, strings.Contains(out, "┌") || strings.Contains(out, "│"), "votes are drawn as a table")
}

func TestWriteRender_Modes(t *testing.T) {
	result := output.RenderOutput{
		Section:  poll.SectionPoll,
		State:    poll.StateDetail,
		Complete: true,
		Steps:    []output.StepOutput{{Query: poll.QueryPoll, State: "delivered"}},
		Regions: []output.RegionOutput{
			{ID: poll.HeaderTarget, Markdown: "## Team lunch"},
			{ID: poll.DetailContainer},
		},
	}

	tests := []struct {
		name     string
		renderer *clitestutil.TestRenderer
		mode     output.OutputMode
		want     []string
		wantNot  []string
	}{
		{
			name:     "auto without terminal",
			renderer: clitestutil.NewTestRendererAuto(),
			mode:     output.ModeMarkdown,
			want:     []string{"# Poll Detail", "## " + poll.HeaderTarget, "Team lunch"},
			wantNot:  []string{"## " + poll.DetailContainer},
		},
		{
			name:     "markdown",
			renderer: clitestutil.NewTestRendererMarkdown(),
			mode:     output.ModeMarkdown,
			want:     []string{"# Poll Detail", "Team lunch"},
			wantNot:  []string{"delivered"},
		},
		{
			name:     "json",
			renderer: clitestutil.NewTestRendererJSON(),
			mode:     output.ModeJSON,
			want:     []string{`"complete": true`, `"state": "delivered"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, writeRender(tt.renderer.Renderer, result))

			out := tt.renderer.Output()
			clitestutil.AssertOutputMode(t, tt.renderer, tt.mode)
			for _, want := range tt.want {
				clitestutil.AssertContains(t, out, want)
			}
			for _, unwanted := range tt.wantNot {
				clitestutil.AssertNotContains(t, out, unwanted)
			}
		})
	}
}

func TestWriteHistory_Markdown(t *testing.T) {
	tr := clitestutil.NewTestRendererMarkdown()
	h := output.HistoryOutput{Session: "s1"}

	require.NoError(t, writeHistory(tr.Renderer, h))

	out := tr.Output()
	clitestutil.AssertOutputMode(t, tr, output.ModeMarkdown)
	clitestutil.AssertValidMarkdown(t, out)
	clitestutil.AssertContains(t, out, "# History: s1")
	clitestutil.AssertContains(t, out, "_No visits._")
	clitestutil.AssertNotContains(t, out, "(no visits)")
}
