package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/ballotbox/internal/cli/output"
	"github.com/leapstack-labs/ballotbox/internal/rpc"
	"github.com/leapstack-labs/ballotbox/pkg/core"
)

func renderResult(w io.Writer, res core.Result, format string) error {
	cols, results := resultRows(res.Payload)

	switch format {
	case "json":
		return renderJSON(w, queryOutput(res, cols, results))
	case "yaml", "yml":
		return renderYAML(w, queryOutput(res, cols, results))
	case "xml":
		return renderXML(w, results)
	case "md", "markdown":
		if res.Payload.IsAck() {
			return renderAck(w, res)
		}
		return renderMarkdown(w, cols, results)
	case "table", "":
		if res.Payload.IsAck() {
			return renderAck(w, res)
		}
		return renderTable(w, cols, results)
	default:
		return fmt.Errorf("unknown format %q (expected table, json, yaml, md or xml)", format)
	}
}

// resultRows returns the visible columns of a payload and its rows.
func resultRows(p core.Payload) ([]string, []map[string]any) {
	if p.Table == nil {
		return nil, nil
	}
	var cols []string
	for _, col := range p.Table.Header {
		if !col.Hidden {
			cols = append(cols, col.Name)
		}
	}
	return cols, p.Table.Rows()
}

func queryOutput(res core.Result, cols []string, results []map[string]any) output.QueryOutput {
	return output.QueryOutput{
		Query:   res.Query,
		Ticket:  res.Ticket,
		Name:    res.Payload.Name,
		Type:    res.Payload.Type,
		Columns: cols,
		Rows:    results,
	}
}

func renderAck(w io.Writer, res core.Result) error {
	_, err := fmt.Fprintf(w, "%s: %s\n", res.Query, res.Payload.Type)
	return err
}

func renderTable(w io.Writer, cols []string, results []map[string]any) error {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	// Header
	headerRow := make(table.Row, len(cols))
	for i, col := range cols {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	// Rows
	for _, result := range results {
		row := make(table.Row, len(cols))
		for i, col := range cols {
			row[i] = formatValue(result[col])
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(results))
	return nil
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// renderXML writes rows in the form the backend reads them.
func renderXML(w io.Writer, results []map[string]any) error {
	doc, err := rpc.MarshalRows(results)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, doc)
	return err
}

func renderMarkdown(w io.Writer, cols []string, results []map[string]any) error {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	// Header
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(cols, " | "))
	// Separator
	seps := make([]string, len(cols))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	// Rows
	for _, result := range results {
		values := make([]string, len(cols))
		for i, col := range cols {
			values[i] = strings.ReplaceAll(formatValue(result[col]), "|", `\|`)
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(values, " | "))
	}
	return nil
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}
