package poll

import (
	"fmt"
	"sort"

	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/ballotbox/internal/pagestate"
	"github.com/leapstack-labs/ballotbox/pkg/core"
)

// Poll is one row of the polls and poll queries.
type Poll struct {
	ID          string `mapstructure:"id"`
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
	Closes      string `mapstructure:"closes"`
}

// Question is one row of the questions query. Max of zero means every
// answer may be chosen.
type Question struct {
	ID   string `mapstructure:"id"`
	Text string `mapstructure:"text"`
	Min  int    `mapstructure:"min"`
	Max  int    `mapstructure:"max"`
}

// Bounds returns how many of n answers must be chosen.
func (q Question) Bounds(n int) (lo, hi int) {
	lo, hi = q.Min, q.Max
	if hi <= 0 || hi > n {
		hi = n
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

// Requirement describes Bounds for people.
func (q Question) Requirement(n int) string {
	lo, hi := q.Bounds(n)
	switch {
	case lo == hi && lo == 1:
		return "exactly one answer"
	case lo == hi:
		return fmt.Sprintf("exactly %d answers", lo)
	case lo == 0:
		return fmt.Sprintf("at most %d answers", hi)
	default:
		return fmt.Sprintf("between %d and %d answers", lo, hi)
	}
}

// Answer is one row of the answers query.
type Answer struct {
	ID       string `mapstructure:"id"`
	Question string `mapstructure:"question"`
	Text     string `mapstructure:"text"`
}

// Tally is one row of the count query.
type Tally struct {
	Question string `mapstructure:"question"`
	Answer   string `mapstructure:"answer"`
	Text     string `mapstructure:"text"`
	Votes    int    `mapstructure:"votes"`
}

// decodeRows decodes the rows of a tabular payload into T.
func decodeRows[T any](t *core.Table) ([]T, error) {
	var out []T
	if t == nil {
		return out, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(t.Rows()); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return out, nil
}

// pollOf finds the poll loaded into results.
func pollOf(results map[string]pagestate.Artifact) (Poll, bool) {
	for _, art := range results {
		if p, ok := art.Value.(Poll); ok {
			return p, true
		}
	}
	return Poll{}, false
}

// questionsOf returns the questions loaded into results, in id order.
func questionsOf(results map[string]pagestate.Artifact) []Question {
	var out []Question
	for _, art := range results {
		if qs, ok := art.Value.([]Question); ok {
			out = append(out, qs...)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// answersOf returns the answers loaded into results, keyed by question id.
func answersOf(results map[string]pagestate.Artifact) map[string][]Answer {
	out := make(map[string][]Answer)
	for _, art := range results {
		if as, ok := art.Value.([]Answer); ok {
			for _, a := range as {
				out[a.Question] = append(out[a.Question], a)
			}
		}
	}
	return out
}
