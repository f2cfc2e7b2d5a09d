package output

import "time"

// QueryOutput is the JSON shape of the query command.
type QueryOutput struct {
	Query   string           `json:"query" yaml:"query"`
	Ticket  string           `json:"ticket" yaml:"ticket"`
	Name    string           `json:"name,omitempty" yaml:"name,omitempty"`
	Type    string           `json:"type,omitempty" yaml:"type,omitempty"`
	Columns []string         `json:"columns,omitempty" yaml:"columns,omitempty"`
	Rows    []map[string]any `json:"rows,omitempty" yaml:"rows,omitempty"`
}

// RegionOutput is one rendered region of a page.
type RegionOutput struct {
	ID       string `json:"id"`
	Owner    string `json:"owner"`
	Version  uint64 `json:"version"`
	Markdown string `json:"markdown"`
}

// StepOutput is one query step of a page state.
type StepOutput struct {
	Query string `json:"query"`
	State string `json:"state"`
}

// RenderOutput is the JSON shape of the render command.
type RenderOutput struct {
	Section  string         `json:"section"`
	State    string         `json:"state"`
	Complete bool           `json:"complete"`
	Steps    []StepOutput   `json:"steps"`
	Regions  []RegionOutput `json:"regions"`
}

// VisitInfo is one recorded poll visit.
type VisitInfo struct {
	PollID    string    `json:"poll_id"`
	VisitedAt time.Time `json:"visited_at"`
}

// VoteInfo is one recorded ballot.
type VoteInfo struct {
	PollID      string              `json:"poll_id"`
	Answers     map[string][]string `json:"answers"`
	SubmittedAt time.Time           `json:"submitted_at"`
}

// HistoryOutput is the JSON shape of the history command.
type HistoryOutput struct {
	Session string      `json:"session"`
	Visits  []VisitInfo `json:"visits"`
	Votes   []VoteInfo  `json:"votes"`
}
