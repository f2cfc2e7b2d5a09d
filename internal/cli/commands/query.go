package commands

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/ballotbox/pkg/core"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format   string
	Table    string
	ID       string
	Value    string
	Simple   string
	Operator int
	Replace  bool
	Count    int
	Start    int
	Rows     []string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query NAME",
		Short: "Send one query to the backend",
		Long: `Send a single named query to the scripting backend and print its result.

A condition can be attached with --table, --id and --value. Rows for
commands such as "vote" are given with --row as comma-separated
key=value pairs.`,
		Example: `  # List open polls
  ballotbox query polls

  # Fetch the questions of one poll as JSON
  ballotbox query questions --table question --id poll --value p1 -f json

  # Cast a ballot
  ballotbox query vote --row poll=p1,question=q1,answer=a2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args[0], opts)
		},
	}

	// Flags
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, yaml, md, xml")
	cmd.Flags().StringVar(&opts.Table, "table", "", "Condition table")
	cmd.Flags().StringVar(&opts.ID, "id", "", "Condition column")
	cmd.Flags().StringVar(&opts.Value, "value", "", "Condition value")
	cmd.Flags().StringVar(&opts.Simple, "simple", "", "Condition simple expression")
	cmd.Flags().IntVar(&opts.Operator, "operator", 0, "Condition operator code")
	cmd.Flags().BoolVar(&opts.Replace, "replace", false, "Drop conditions the backend holds for this query")
	cmd.Flags().IntVar(&opts.Count, "count", 0, "Rows per page (default: backend.page_size)")
	cmd.Flags().IntVar(&opts.Start, "start", 0, "First row to return")
	cmd.Flags().StringArrayVar(&opts.Rows, "row", nil, "Row to send as key=value pairs (repeatable)")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "yaml", "md", "xml"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runQuery(cmd *cobra.Command, name string, opts *QueryOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	req, err := buildRequest(name, opts)
	if err != nil {
		return err
	}

	res, err := cmdCtx.Client.Do(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	return renderResult(cmd.OutOrStdout(), res, opts.Format)
}

// buildRequest turns command options into a backend request.
func buildRequest(name string, opts *QueryOptions) (core.Request, error) {
	req := core.Request{
		Query:   name,
		Count:   opts.Count,
		Start:   opts.Start,
		Replace: opts.Replace,
		Ticket:  uuid.New().String(),
	}

	if opts.Table != "" || opts.ID != "" {
		if opts.Table == "" || opts.ID == "" {
			return core.Request{}, fmt.Errorf("a condition needs both --table and --id")
		}
		req.Condition = &core.Condition{
			Table:    opts.Table,
			ID:       opts.ID,
			Value:    opts.Value,
			Simple:   opts.Simple,
			Operator: opts.Operator,
		}
	}

	for _, spec := range opts.Rows {
		row, err := parseRow(spec)
		if err != nil {
			return core.Request{}, err
		}
		req.Rows = append(req.Rows, row)
	}

	return req, nil
}

// parseRow parses "key=value,key=value".
func parseRow(spec string) (map[string]any, error) {
	row := make(map[string]any)
	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid row %q: expected key=value pairs", spec)
		}
		row[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if len(row) == 0 {
		return nil, fmt.Errorf("invalid row %q: no values", spec)
	}
	return row, nil
}
