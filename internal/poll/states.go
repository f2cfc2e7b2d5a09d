package poll

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/leapstack-labs/ballotbox/internal/pagestate"
	"github.com/leapstack-labs/ballotbox/pkg/core"
)

// Sections, page states and element ids of the voting page.
const (
	SectionPolls = "polls"
	SectionPoll  = "poll"

	StateList    = "list"
	StateDetail  = "detail"
	StateResults = "results"

	ListContainer   = "polls"
	DetailContainer = "poll-detail"

	HeaderTarget    = "poll-header"
	QuestionsTarget = "poll-questions"
	CountTarget     = "poll-count"
	ErrorTarget     = "page-error"
)

// Query names understood by the backend.
const (
	QueryPolls     = "polls"
	QueryPoll      = "poll"
	QueryQuestions = "questions"
	QueryAnswers   = "answers"
	QueryCount     = "count"
	QueryVote      = "vote"
)

// ErrMissingParam reports an activation without the parameters its page
// state is seeded from.
var ErrMissingParam = errors.New("poll: missing parameter")

// Definitions declares the page states of the voting page.
func Definitions(pageSize int) []pagestate.Definition {
	list := pagestate.Step(QueryPolls, pagestate.NoCondition{})
	list.Window = pagestate.Window{Count: pageSize}

	return []pagestate.Definition{
		{
			Section:   SectionPolls,
			Name:      StateList,
			Container: ListContainer,
			Isolated:  true,
			Steps:     []pagestate.QueryStep{list},
		},
		{
			Section:   SectionPoll,
			Name:      StateDetail,
			Container: DetailContainer,
			Steps: []pagestate.QueryStep{
				pagestate.Step(QueryPoll, pagestate.Conditional{}),
				pagestate.Step(QueryQuestions, pagestate.Conditional{}),
				pagestate.Step(QueryAnswers, pagestate.Conditional{}),
			},
		},
		{
			Section:   SectionPoll,
			Name:      StateResults,
			Container: DetailContainer,
			Isolated:  true,
			Steps: []pagestate.QueryStep{
				pagestate.Step(QueryPoll, pagestate.Conditional{}),
				pagestate.Step(QueryCount, pagestate.Conditional{}),
			},
		},
	}
}

func pollCondition(id string) core.Condition {
	return core.Condition{Table: "polls", ID: "id", Value: id}
}

func questionsCondition(pollID string) core.Condition {
	return core.Condition{Table: "questions", ID: "poll", Value: pollID}
}

func answersCondition(questionID string) core.Condition {
	return core.Condition{Table: "answers", ID: "question", Value: questionID}
}

func countCondition(pollID string) core.Condition {
	return core.Condition{Table: "votes", ID: "poll", Value: pollID}
}

// DetailSeeds seeds poll/detail for one poll. Answers are revealed by the
// questions result.
func DetailSeeds(pollID string) [][]core.Condition {
	return [][]core.Condition{
		{pollCondition(pollID)},
		{questionsCondition(pollID)},
		nil,
	}
}

// ResultsSeeds seeds poll/results for one poll.
func ResultsSeeds(pollID string) [][]core.Condition {
	return [][]core.Condition{
		{pollCondition(pollID)},
		{countCondition(pollID)},
	}
}

// Seeds builds the seeds of a page state from request parameters.
func Seeds(section, name string, params url.Values) ([][]core.Condition, error) {
	switch {
	case section == SectionPolls && name == StateList:
		return nil, nil
	case section == SectionPoll && (name == StateDetail || name == StateResults):
		id := params.Get("poll")
		if id == "" {
			return nil, fmt.Errorf("%w: poll", ErrMissingParam)
		}
		if name == StateDetail {
			return DetailSeeds(id), nil
		}
		return ResultsSeeds(id), nil
	default:
		return nil, fmt.Errorf("%w: %s/%s", pagestate.ErrUnknownState, section, name)
	}
}
