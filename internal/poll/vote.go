package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/a-h/templ"
	"github.com/google/uuid"

	"github.com/leapstack-labs/ballotbox/internal/page"
	"github.com/leapstack-labs/ballotbox/internal/pagestate"
	"github.com/leapstack-labs/ballotbox/internal/rpc"
	"github.com/leapstack-labs/ballotbox/pkg/core"
)

// ErrAlreadyVoted reports a second ballot from the same session.
var ErrAlreadyVoted = errors.New("poll: already voted")

// Ready reports whether sel is a complete ballot for the loaded poll: every
// question has a number of answers within its bounds, and every answer is
// one of its options.
func Ready(results map[string]pagestate.Artifact, sel page.Selection) error {
	questions := questionsOf(results)
	if len(questions) == 0 {
		return errors.New("no questions loaded")
	}
	answers := answersOf(results)

	known := make(map[string]bool, len(questions))
	for _, q := range questions {
		known[q.ID] = true
		options := make(map[string]bool, len(answers[q.ID]))
		for _, a := range answers[q.ID] {
			options[a.ID] = true
		}
		chosen := sel[q.ID]
		for _, id := range chosen {
			if !options[id] {
				return fmt.Errorf("%q is not an answer to %q", id, q.Text)
			}
		}
		lo, hi := q.Bounds(len(options))
		if len(chosen) < lo || len(chosen) > hi {
			return fmt.Errorf("%q needs %s", q.Text, q.Requirement(len(options)))
		}
	}
	for id := range sel {
		if !known[id] {
			return fmt.Errorf("unknown question %q", id)
		}
	}
	return nil
}

// Config configures the voting page.
type Config struct {
	// History records visits and votes. Optional.
	History  core.HistoryStore
	PageSize int
	Logger   *slog.Logger
}

// voting holds the per-page state of the voting hooks. It is only touched
// from the page loop.
type voting struct {
	history core.HistoryStore
	logger  *slog.Logger
	pending map[string]*core.Vote
	count   countRequest
}

// countRequest is the counts query sent when poll/detail last resolved.
type countRequest struct {
	ticket     string
	generation uint64
}

// Options wires the voting page into page options. The caller sets the
// session id and the backend.
func Options(cfg Config) page.Options {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	v := &voting{
		history: cfg.History,
		logger:  logger,
		pending: make(map[string]*core.Vote),
	}
	return page.Options{
		Definitions: Definitions(cfg.PageSize),
		Views: map[string]page.View{
			QueryPolls:     page.ViewFunc(TableView),
			QueryPoll:      page.ViewFunc(HeaderView),
			QueryQuestions: page.ViewFunc(QuestionsView),
			QueryAnswers:   page.ViewFunc(AnswersView),
			QueryCount:     CountView(QuestionsTarget),
		},
		Shells: map[string]templ.Component{
			DetailContainer: DetailShell(),
		},
		Fallbacks: map[string]page.FallbackFunc{
			QueryCount: v.onCount,
			QueryVote:  v.onVote,
		},
		Resolved:    v.resolved,
		VoteSection: SectionPoll,
		Readiness:   Ready,
		Ballot:      v.ballot,
		ErrorTarget: ErrorTarget,
		ErrorView:   ErrorView,
		Logger:      logger,
	}
}

// NewPage builds the voting page of one session.
func NewPage(cfg Config, doer rpc.Doer, sessionID string) (*page.Page, error) {
	opts := Options(cfg)
	opts.SessionID = sessionID
	opts.Doer = doer
	return page.New(opts)
}

// resolved runs when poll/detail has loaded: the visit is recorded and the
// current counts are fetched.
func (v *voting) resolved(ctx context.Context, a page.Actions, ps *pagestate.PageState) {
	p, ok := pollOf(ps.Results())
	if !ok {
		return
	}
	if v.history != nil {
		if _, err := v.history.RecordVisit(ctx, a.SessionID(), p.ID); err != nil {
			v.logger.Error("failed to record visit", slog.String("poll", p.ID), slog.Any("error", err))
		}
	}
	cond := countCondition(p.ID)
	v.count = countRequest{ticket: uuid.New().String(), generation: ps.Generation()}
	req := core.Request{Query: QueryCount, Condition: &cond, Replace: true, Ticket: v.count.ticket}
	if err := a.Dispatch(ctx, req); err != nil {
		v.logger.Error("failed to fetch counts", slog.String("poll", p.ID), slog.Any("error", err))
	}
}

// onCount renders counts fetched outside a page state. Counts sent for an
// earlier activation of poll/detail are dropped.
func (v *voting) onCount(_ context.Context, a page.Actions, res core.Result) error {
	if !v.currentCount(a, res.Ticket) {
		v.logger.Debug("dropping stale counts", slog.String("ticket", res.Ticket))
		return nil
	}
	frag, err := CountView(CountTarget)(DetailContainer, res.Payload)
	if err != nil {
		return err
	}
	a.Publish(DetailContainer, frag.Target, frag.Component)
	return nil
}

func (v *voting) currentCount(a page.Actions, ticket string) bool {
	if ticket == "" || ticket != v.count.ticket {
		return false
	}
	ps, ok := a.Current(SectionPoll)
	return ok && ps.Name == StateDetail && !ps.Active() && ps.Generation() == v.count.generation
}

// ballot builds the vote request for a ready selection.
func (v *voting) ballot(ctx context.Context, a page.Actions, ps *pagestate.PageState, sel page.Selection) (core.Request, error) {
	results := ps.Results()
	p, ok := pollOf(results)
	if !ok {
		return core.Request{}, errors.New("no poll loaded")
	}
	if v.history != nil {
		voted, err := v.history.HasVoted(ctx, a.SessionID(), p.ID)
		if err != nil {
			return core.Request{}, err
		}
		if voted {
			return core.Request{}, fmt.Errorf("%w on %q", ErrAlreadyVoted, p.Title)
		}
	}

	qids := make([]string, 0, len(sel))
	for qid := range sel {
		qids = append(qids, qid)
	}
	sort.Strings(qids)

	var rows []map[string]any
	answers := make(map[string][]string, len(sel))
	for _, qid := range qids {
		chosen := append([]string(nil), sel[qid]...)
		sort.Strings(chosen)
		answers[qid] = chosen
		for _, aid := range chosen {
			rows = append(rows, map[string]any{"poll": p.ID, "question": qid, "answer": aid})
		}
	}

	ticket := uuid.New().String()
	v.pending[ticket] = &core.Vote{PollID: p.ID, Answers: answers}
	cond := core.Condition{Table: "votes", ID: "poll", Value: p.ID}
	return core.Request{Query: QueryVote, Condition: &cond, Rows: rows, Ticket: ticket}, nil
}

// onVote handles the backend's acknowledgement of a ballot: the vote is
// recorded and the results are shown.
func (v *voting) onVote(ctx context.Context, a page.Actions, res core.Result) error {
	vote, ok := v.pending[res.Ticket]
	if !ok {
		return fmt.Errorf("vote acknowledgement for unknown ballot %q", res.Ticket)
	}
	delete(v.pending, res.Ticket)
	if !res.Payload.IsAck() {
		return fmt.Errorf("unexpected vote result %q", res.Payload.Name)
	}

	vote.SessionID = a.SessionID()
	if v.history != nil {
		if err := v.history.RecordVote(ctx, vote); err != nil {
			v.logger.Error("failed to record vote", slog.String("poll", vote.PollID), slog.Any("error", err))
		}
	}
	v.logger.Info("vote recorded", slog.String("poll", vote.PollID), slog.Int("questions", len(vote.Answers)))

	if err := a.Activate(ctx, SectionPoll, StateResults, ResultsSeeds(vote.PollID)...); err != nil {
		return err
	}
	a.Publish(DetailContainer, CountTarget, ThanksView())
	return nil
}
