package commands

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/ballotbox/internal/cli/output"
	"github.com/leapstack-labs/ballotbox/pkg/core"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Session string
	Limit   int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the polls a session visited and voted on",
		Long: `Show the visits and votes recorded for one browser session.

The session id is the value stored in the ballotbox cookie and logged
with every page loop message.`,
		Example: `  # Show a session's history
  ballotbox history --session 6f1c3c1e-8d0a-4d4b-9a43-0f0b1d7e2a11

  # Show the last five entries as JSON
  ballotbox history --session 6f1c3c1e --limit 5 -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "Session id")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "Maximum entries of each kind (0 for all)")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	cmdCtx := NewCommandContextWithoutClient(cmd)
	ctx := cmd.Context()

	store, err := openHistory(ctx, cmdCtx.Cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	visits, err := store.ListVisits(ctx, opts.Session, opts.Limit)
	if err != nil {
		return err
	}
	votes, err := store.ListVotes(ctx, opts.Session, opts.Limit)
	if err != nil {
		return err
	}

	return writeHistory(cmdCtx.Renderer, historyOutput(opts.Session, visits, votes))
}

func historyOutput(session string, visits []*core.Visit, votes []*core.Vote) output.HistoryOutput {
	out := output.HistoryOutput{
		Session: session,
		Visits:  make([]output.VisitInfo, 0, len(visits)),
		Votes:   make([]output.VoteInfo, 0, len(votes)),
	}
	for _, v := range visits {
		out.Visits = append(out.Visits, output.VisitInfo{PollID: v.PollID, VisitedAt: v.VisitedAt})
	}
	for _, v := range votes {
		out.Votes = append(out.Votes, output.VoteInfo{PollID: v.PollID, Answers: v.Answers, SubmittedAt: v.SubmittedAt})
	}
	return out
}

func writeHistory(r *output.Renderer, h output.HistoryOutput) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(h)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "History: "+h.Session))
		r.Println("")
		r.Println(output.FormatHeader(2, "Visits"))
		r.Println("")
		writeVisitsMarkdown(r.Writer(), h.Visits)
		r.Println("")
		r.Println(output.FormatHeader(2, "Votes"))
		r.Println("")
		writeVotesMarkdown(r.Writer(), h.Votes)
	default:
		r.Header(1, "History")
		r.KeyValue("session", h.Session)
		r.Println("")
		r.Header(2, "Visits")
		writeVisitsTable(r.Writer(), h.Visits)
		r.Println("")
		r.Header(2, "Votes")
		writeVotesTable(r.Writer(), h.Votes)
	}
	return nil
}

func writeVisitsTable(w io.Writer, visits []output.VisitInfo) {
	if len(visits) == 0 {
		_, _ = fmt.Fprintln(w, "(no visits)")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Poll", "Visited"})
	for _, v := range visits {
		t.AppendRow(table.Row{v.PollID, formatTime(v.VisitedAt)})
	}
	t.Render()
}

func writeVotesTable(w io.Writer, votes []output.VoteInfo) {
	if len(votes) == 0 {
		_, _ = fmt.Fprintln(w, "(no votes)")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Poll", "Answers", "Submitted"})
	for _, v := range votes {
		t.AppendRow(table.Row{v.PollID, formatAnswers(v.Answers), formatTime(v.SubmittedAt)})
	}
	t.Render()
}

func writeVisitsMarkdown(w io.Writer, visits []output.VisitInfo) {
	if len(visits) == 0 {
		_, _ = fmt.Fprintln(w, "_No visits._")
		return
	}
	_, _ = fmt.Fprintln(w, "| Poll | Visited |")
	_, _ = fmt.Fprintln(w, "| --- | --- |")
	for _, v := range visits {
		_, _ = fmt.Fprintf(w, "| %s | %s |\n", v.PollID, formatTime(v.VisitedAt))
	}
}

func writeVotesMarkdown(w io.Writer, votes []output.VoteInfo) {
	if len(votes) == 0 {
		_, _ = fmt.Fprintln(w, "_No votes._")
		return
	}
	_, _ = fmt.Fprintln(w, "| Poll | Answers | Submitted |")
	_, _ = fmt.Fprintln(w, "| --- | --- | --- |")
	for _, v := range votes {
		_, _ = fmt.Fprintf(w, "| %s | %s | %s |\n", v.PollID, formatAnswers(v.Answers), formatTime(v.SubmittedAt))
	}
}

// formatAnswers writes "q1=a1; q2=a2,a3" with questions sorted.
func formatAnswers(answers map[string][]string) string {
	questions := make([]string, 0, len(answers))
	for q := range answers {
		questions = append(questions, q)
	}
	slices.Sort(questions)

	parts := make([]string, 0, len(questions))
	for _, q := range questions {
		parts = append(parts, q+"="+strings.Join(answers[q], ","))
	}
	return strings.Join(parts, "; ")
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}
