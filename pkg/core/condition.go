package core

import (
	"fmt"
	"strconv"
)

// Condition is a server-side filter descriptor attached to a query.
// Conditions on a query are revealed to the backend one at a time, in slice
// order. Ready records whether the condition has been sent during the
// current activation of the page state that owns it.
type Condition struct {
	Table    string `json:"table" mapstructure:"table" yaml:"table"`
	ID       string `json:"id" mapstructure:"id" yaml:"id"`
	Value    any    `json:"value" mapstructure:"value" yaml:"value"`
	Simple   string `json:"simple,omitempty" mapstructure:"simple" yaml:"simple,omitempty"`
	Operator int    `json:"operator,omitempty" mapstructure:"operator" yaml:"operator,omitempty"`
	Ready    bool   `json:"-" mapstructure:"-" yaml:"-"`
}

// ValueString returns the condition value in the form the backend expects.
func (c Condition) ValueString() string {
	switch v := c.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Fresh returns a copy of the condition that has not been sent yet.
func (c Condition) Fresh() Condition {
	c.Ready = false
	return c
}

// String implements fmt.Stringer.
func (c Condition) String() string {
	return c.Table + "." + c.ID + "=" + c.ValueString()
}

// CloneConditions copies a condition slice. A nil slice stays nil.
func CloneConditions(conds []Condition) []Condition {
	if conds == nil {
		return nil
	}
	out := make([]Condition, len(conds))
	copy(out, conds)
	return out
}
