package core

// Column describes one column of a tabular result.
type Column struct {
	Name   string `json:"name" mapstructure:"name"`
	Title  string `json:"title,omitempty" mapstructure:"title"`
	Type   string `json:"type,omitempty" mapstructure:"type"`
	Hidden bool   `json:"hidden,omitempty" mapstructure:"hidden"`
}

// Label returns the column title, falling back to its name.
func (c Column) Label() string {
	if c.Title != "" {
		return c.Title
	}
	return c.Name
}

// Table is the tabular part of a query result.
type Table struct {
	Header []Column `json:"header" mapstructure:"header"`
	Body   [][]any  `json:"body" mapstructure:"body"`
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	if t == nil {
		return -1
	}
	for i, col := range t.Header {
		if col.Name == name {
			return i
		}
	}
	return -1
}

// Rows returns the body as maps keyed by column name.
func (t *Table) Rows() []map[string]any {
	if t == nil {
		return nil
	}
	rows := make([]map[string]any, 0, len(t.Body))
	for _, cells := range t.Body {
		row := make(map[string]any, len(t.Header))
		for i, col := range t.Header {
			if i < len(cells) {
				row[col.Name] = cells[i]
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// Payload is a decoded backend result. Tabular results carry Table;
// command acknowledgements (such as "add_rows") carry Type instead.
type Payload struct {
	ID    string         `json:"id,omitempty" mapstructure:"id"`
	Name  string         `json:"name" mapstructure:"name"`
	Type  string         `json:"type,omitempty" mapstructure:"type"`
	Table *Table         `json:"table,omitempty" mapstructure:"table"`
	Raw   map[string]any `json:"-" mapstructure:"-"`
}

// IsAck reports whether the payload acknowledges a command rather than
// carrying rows.
func (p Payload) IsAck() bool {
	return p.Type != "" && p.Table == nil
}

// Request is one dispatch to the backend.
type Request struct {
	Query     string
	Condition *Condition
	Rows      []map[string]any
	Count     int
	Start     int
	Format    string
	// Replace asks the backend to drop the condition set it has accumulated
	// for this query before applying Condition.
	Replace bool
	// Ticket identifies this dispatch; results echo it back.
	Ticket string
}

// Result is a backend response correlated to the request that produced it.
type Result struct {
	Query   string
	Ticket  string
	Payload Payload
}
