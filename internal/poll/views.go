package poll

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/a-h/templ"

	"github.com/leapstack-labs/ballotbox/internal/page"
	"github.com/leapstack-labs/ballotbox/internal/pagestate"
	"github.com/leapstack-labs/ballotbox/internal/poll/components"
	"github.com/leapstack-labs/ballotbox/pkg/core"
)

// AnswersTarget is the element holding the answers of a question.
func AnswersTarget(questionID string) string {
	return "answers-" + questionID
}

// ActivatePath is the endpoint that activates a page state.
func ActivatePath(section, name string, params url.Values) string {
	p := "/api/state/" + url.PathEscape(section) + "/" + url.PathEscape(name)
	if len(params) > 0 {
		p += "?" + params.Encode()
	}
	return p
}

func post(path string) string {
	return "@post('" + path + "')"
}

// DetailShell is shown in the detail container while a poll loads.
func DetailShell() templ.Component {
	return components.DetailShell(HeaderTarget, QuestionsTarget, CountTarget)
}

// TableView renders any tabular payload. Rows with an id link to the
// poll they name.
func TableView(_ string, payload core.Payload) (page.Fragment, error) {
	polls, err := decodeRows[Poll](payload.Table)
	if err != nil {
		return page.Fragment{}, err
	}
	return page.Fragment{Component: components.PollTable(tableModel(payload.Table, polls)), Artifact: pagestate.Artifact{Value: polls}}, nil
}

func tableModel(t *core.Table, polls []Poll) components.Table {
	var m components.Table
	if t == nil {
		return m
	}
	for _, col := range t.Header {
		if !col.Hidden {
			m.Headers = append(m.Headers, col.Label())
		}
	}
	for i, cells := range t.Body {
		var row components.Row
		if i < len(polls) && polls[i].ID != "" {
			row.Action = post(ActivatePath(SectionPoll, StateDetail, url.Values{"poll": {polls[i].ID}}))
		}
		for j, col := range t.Header {
			if col.Hidden {
				continue
			}
			var cell any
			if j < len(cells) {
				cell = cells[j]
			}
			row.Cells = append(row.Cells, core.Condition{Value: cell}.ValueString())
		}
		m.Rows = append(m.Rows, row)
	}
	return m
}

// HeaderView renders the poll title. Its artifact is the Poll.
func HeaderView(_ string, payload core.Payload) (page.Fragment, error) {
	polls, err := decodeRows[Poll](payload.Table)
	if err != nil {
		return page.Fragment{}, err
	}
	if len(polls) == 0 {
		return page.Fragment{}, fmt.Errorf("poll query returned no rows")
	}
	p := polls[0]
	c := components.PollHeader(p.Title, p.Description, p.Closes)
	return page.Fragment{Target: HeaderTarget, Component: c, Artifact: pagestate.Artifact{Value: p}}, nil
}

// QuestionsView renders the ballot form with an empty answers element per
// question, and reveals one answers condition per question.
func QuestionsView(_ string, payload core.Payload) (page.Fragment, error) {
	questions, err := decodeRows[Question](payload.Table)
	if err != nil {
		return page.Fragment{}, err
	}

	selection := make(map[string][]string, len(questions))
	reveal := make([]core.Condition, 0, len(questions))
	for _, q := range questions {
		selection[q.ID] = []string{}
		reveal = append(reveal, answersCondition(q.ID))
	}
	signals, err := json.Marshal(map[string]any{"selection": selection})
	if err != nil {
		return page.Fragment{}, err
	}

	c := components.Ballot(string(signals), ballotQuestions(questions), post("/api/vote"))
	return page.Fragment{
		Target:    QuestionsTarget,
		Component: c,
		Artifact: pagestate.Artifact{
			Value:  questions,
			Reveal: map[string][]core.Condition{QueryAnswers: reveal},
		},
	}, nil
}

func ballotQuestions(questions []Question) []components.Question {
	out := make([]components.Question, 0, len(questions))
	for _, q := range questions {
		out = append(out, components.Question{ID: q.ID, Text: q.Text, AnswersID: AnswersTarget(q.ID)})
	}
	return out
}

// AnswersView renders the options of one question into its answers
// element.
func AnswersView(_ string, payload core.Payload) (page.Fragment, error) {
	answers, err := decodeRows[Answer](payload.Table)
	if err != nil {
		return page.Fragment{}, err
	}
	if len(answers) == 0 {
		return page.Fragment{Artifact: pagestate.Artifact{Value: answers}}, nil
	}
	qid := answers[0].Question
	options := make([]components.Option, 0, len(answers))
	for _, a := range answers {
		options = append(options, components.Option{ID: a.ID, Text: a.Text})
	}
	c := components.AnswerOptions(qid, options)
	return page.Fragment{Target: AnswersTarget(qid), Component: c, Artifact: pagestate.Artifact{Value: answers}}, nil
}

// CountView renders vote counts as bars sized by their share of the
// question's votes.
func CountView(target string) page.ViewFunc {
	return func(_ string, payload core.Payload) (page.Fragment, error) {
		tallies, err := decodeRows[Tally](payload.Table)
		if err != nil {
			return page.Fragment{}, err
		}
		return page.Fragment{Target: target, Component: tallyBars(tallies), Artifact: pagestate.Artifact{Value: tallies}}, nil
	}
}

func tallyBars(tallies []Tally) templ.Component {
	totals := make(map[string]int)
	var order []string
	for _, t := range tallies {
		if _, seen := totals[t.Question]; !seen {
			order = append(order, t.Question)
		}
		totals[t.Question] += t.Votes
	}
	groups := make([]components.TallyGroup, 0, len(order))
	for _, q := range order {
		g := components.TallyGroup{Question: q}
		for _, t := range tallies {
			if t.Question != q {
				continue
			}
			pct := 0
			if totals[q] > 0 {
				pct = t.Votes * 100 / totals[q]
			}
			g.Bars = append(g.Bars, components.Bar{Text: t.Text, Votes: t.Votes, Percent: pct})
		}
		groups = append(groups, g)
	}
	return components.Tallies(groups)
}

// ThanksView acknowledges a recorded vote.
func ThanksView() templ.Component {
	return components.Thanks()
}

// ErrorView explains a repeated vote and defers everything else to the
// page's default alert.
func ErrorView(err error) templ.Component {
	if errors.Is(err, ErrAlreadyVoted) {
		return page.Alert("You have already voted on this poll.")
	}
	return page.ErrorView(err)
}
