// Package models defines the domain types for FlowCRM.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Operator names a comparison applied by a FilterRule.
type Operator string

// Supported operators.
const (
	OpContains    Operator = "contains"
	OpEquals      Operator = "equals"
	OpStartsWith  Operator = "startsWith"
	OpBefore      Operator = "before"
	OpAfter       Operator = "after"
	OpBetween     Operator = "between"
	OpGreaterThan Operator = "greaterThan"
	OpLessThan    Operator = "lessThan"
	OpIn          Operator = "in"
)

// Operators lists every known operator in display order.
var Operators = []Operator{
	OpContains, OpEquals, OpStartsWith,
	OpBefore, OpAfter, OpBetween,
	OpGreaterThan, OpLessThan, OpIn,
}

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	for _, o := range Operators {
		if o == op {
			return true
		}
	}
	return false
}

// Logic joins a rule to the rule before it. The zero value means "no
// connector" and is only legal on the first rule of a sequence.
type Logic string

const (
	LogicNone Logic = ""
	LogicAnd  Logic = "AND"
	LogicOr   Logic = "OR"
)

// MarshalJSON encodes LogicNone as null.
func (l Logic) MarshalJSON() ([]byte, error) {
	if l == LogicNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(l))
}

// UnmarshalJSON decodes null (or "") as LogicNone.
func (l *Logic) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*l = LogicNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("logic: %w", err)
	}
	*l = Logic(s)
	return nil
}

// RuleID is an opaque rule identifier. Clients send either strings or
// millisecond timestamps.
type RuleID string

// FilterRule is one field/operator/value tuple in a filter chain.
type FilterRule struct {
	ID       RuleID   `json:"id"`
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
	Value2   any      `json:"value2,omitempty"`
	Logic    Logic    `json:"logic"`

	// numericID records that ID arrived as a JSON number, so it is
	// written back as one.
	numericID bool
}

type ruleFields FilterRule

// MarshalJSON writes the id in the JSON form it was read in.
func (r FilterRule) MarshalJSON() ([]byte, error) {
	var id json.RawMessage
	switch {
	case r.ID == "":
		id = json.RawMessage("null")
	case r.numericID:
		id = json.RawMessage(r.ID)
	default:
		b, err := json.Marshal(string(r.ID))
		if err != nil {
			return nil, err
		}
		id = b
	}
	return json.Marshal(struct {
		ID json.RawMessage `json:"id"`
		ruleFields
	}{id, ruleFields(r)})
}

// UnmarshalJSON accepts string, number and null ids.
func (r *FilterRule) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID json.RawMessage `json:"id"`
		ruleFields
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	rule := FilterRule(aux.ruleFields)
	rule.ID, rule.numericID = "", false

	raw := bytes.TrimSpace(aux.ID)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("rule id: %w", err)
		}
		rule.ID = RuleID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("rule id: %w", err)
		}
		rule.ID, rule.numericID = RuleID(n.String()), true
	}
	*r = rule
	return nil
}
