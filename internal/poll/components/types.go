// Package components holds the templ components of the voting page.
package components

import (
	"fmt"

	"github.com/a-h/templ"
)

// Table is a tabular result ready to display.
type Table struct {
	Headers []string
	Rows    []Row
}

// Row is one table row. Action, when set, runs on click.
type Row struct {
	Action string
	Cells  []string
}

// Question is one fieldset of the ballot.
type Question struct {
	ID        string
	Text      string
	AnswersID string
}

// Option is one answer that can be ticked.
type Option struct {
	ID   string
	Text string
}

// TallyGroup holds the bars of one question.
type TallyGroup struct {
	Question string
	Bars     []Bar
}

// Bar is the share of one answer.
type Bar struct {
	Text    string
	Votes   int
	Percent int
}

func barStyle(percent int) templ.SafeCSS {
	return templ.SafeCSS(fmt.Sprintf("width: %d%%", percent))
}
