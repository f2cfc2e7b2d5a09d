package rpc

import (
	"encoding/xml"
	"fmt"
	"sort"

	"github.com/leapstack-labs/ballotbox/pkg/core"
)

type conditionXML struct {
	XMLName  xml.Name `xml:"condition"`
	Table    string   `xml:"table,attr"`
	ID       string   `xml:"id,attr"`
	Value    string   `xml:"value,attr"`
	Simple   string   `xml:"simple,attr,omitempty"`
	Operator int      `xml:"operator,attr,omitempty"`
}

type conditionsXML struct {
	XMLName    xml.Name       `xml:"conditions"`
	Conditions []conditionXML `xml:"condition"`
}

type rowXML struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

type rowsXML struct {
	XMLName xml.Name `xml:"rows"`
	Rows    []rowXML `xml:"row"`
}

// MarshalCondition serializes one condition the way the backend reads the
// condition form field.
func MarshalCondition(c core.Condition) (string, error) {
	doc := conditionsXML{Conditions: []conditionXML{{
		Table:    c.Table,
		ID:       c.ID,
		Value:    c.ValueString(),
		Simple:   c.Simple,
		Operator: c.Operator,
	}}}
	out, err := xml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal condition %s: %w", c, err)
	}
	return string(out), nil
}

// UnmarshalConditions parses a condition form field. Values come back as
// strings.
func UnmarshalConditions(data string) ([]core.Condition, error) {
	var doc conditionsXML
	if err := xml.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("unmarshal conditions: %w", err)
	}
	out := make([]core.Condition, 0, len(doc.Conditions))
	for _, c := range doc.Conditions {
		out = append(out, core.Condition{
			Table:    c.Table,
			ID:       c.ID,
			Value:    c.Value,
			Simple:   c.Simple,
			Operator: c.Operator,
		})
	}
	return out, nil
}

// MarshalRows serializes rows for commands such as add_rows. Each row
// becomes one element with its columns as attributes, sorted by name.
func MarshalRows(rows []map[string]any) (string, error) {
	doc := rowsXML{Rows: make([]rowXML, 0, len(rows))}
	for _, row := range rows {
		names := make([]string, 0, len(row))
		for name := range row {
			names = append(names, name)
		}
		sort.Strings(names)

		r := rowXML{Attrs: make([]xml.Attr, 0, len(names))}
		for _, name := range names {
			r.Attrs = append(r.Attrs, xml.Attr{
				Name:  xml.Name{Local: name},
				Value: core.Condition{Value: row[name]}.ValueString(),
			})
		}
		doc.Rows = append(doc.Rows, r)
	}
	out, err := xml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal rows: %w", err)
	}
	return string(out), nil
}

// UnmarshalRows parses a rows form field.
func UnmarshalRows(data string) ([]map[string]string, error) {
	var doc rowsXML
	if err := xml.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("unmarshal rows: %w", err)
	}
	out := make([]map[string]string, 0, len(doc.Rows))
	for _, r := range doc.Rows {
		row := make(map[string]string, len(r.Attrs))
		for _, a := range r.Attrs {
			row[a.Name.Local] = a.Value
		}
		out = append(out, row)
	}
	return out, nil
}
