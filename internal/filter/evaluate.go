// Package filter implements rule evaluation and left-fold combination of
// filter rules over record collections.
package filter

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/starford/flowcrm/internal/models"
)

// dateLayouts are tried in order when a string is compared as a date.
// Values without a zone are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Evaluate reports whether fieldValue satisfies rule.
//
// It never panics and never errors. A missing field (nil, nil pointer or
// zero time) never matches, nor does an unknown operator. Dates and
// numbers that fail to parse on either side make the comparison false:
// the rule excludes the record instead of aborting the pass.
func Evaluate(fieldValue any, rule models.FilterRule) bool {
	fieldValue, ok := deref(fieldValue)
	if !ok {
		return false
	}

	switch rule.Operator {
	case models.OpContains:
		want, ok := ruleString(rule.Value)
		return ok && strings.Contains(strings.ToLower(stringify(fieldValue)), strings.ToLower(want))

	case models.OpEquals:
		want, ok := ruleString(rule.Value)
		return ok && strings.ToLower(stringify(fieldValue)) == strings.ToLower(want)

	case models.OpStartsWith:
		want, ok := ruleString(rule.Value)
		return ok && strings.HasPrefix(strings.ToLower(stringify(fieldValue)), strings.ToLower(want))

	case models.OpBefore:
		got, ok1 := toTime(fieldValue)
		bound, ok2 := toTime(rule.Value)
		return ok1 && ok2 && got.Before(bound)

	case models.OpAfter:
		got, ok1 := toTime(fieldValue)
		bound, ok2 := toTime(rule.Value)
		return ok1 && ok2 && got.After(bound)

	case models.OpBetween:
		if isNumeric(fieldValue) {
			x, ok1 := toNumber(fieldValue)
			lo, ok2 := toNumber(rule.Value)
			hi, ok3 := toNumber(rule.Value2)
			return ok1 && ok2 && ok3 && x >= lo && x <= hi
		}
		got, ok1 := toTime(fieldValue)
		lo, ok2 := toTime(rule.Value)
		hi, ok3 := toTime(rule.Value2)
		return ok1 && ok2 && ok3 && !got.Before(lo) && !got.After(hi)

	case models.OpGreaterThan:
		x, ok1 := toNumber(fieldValue)
		bound, ok2 := toNumber(rule.Value)
		return ok1 && ok2 && x > bound

	case models.OpLessThan:
		x, ok1 := toNumber(fieldValue)
		bound, ok2 := toNumber(rule.Value)
		return ok1 && ok2 && x < bound

	case models.OpIn:
		// Single-value, case-sensitive equality. Not set membership.
		want, ok := ruleString(rule.Value)
		return ok && stringify(fieldValue) == want

	default:
		return false
	}
}

// deref unwraps pointers and reports false for values that count as missing.
func deref(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	out := rv.Interface()
	if t, ok := out.(time.Time); ok && t.IsZero() {
		return nil, false
	}
	return out, true
}

// ruleString stringifies a rule operand. A nil operand never matches.
func ruleString(v any) (string, bool) {
	v, ok := deref(v)
	if !ok {
		return "", false
	}
	return stringify(v), true
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case []string:
		return strings.Join(x, ",")
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			if item == nil {
				parts = append(parts, "")
				continue
			}
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, ",")
	case fmt.Stringer:
		return x.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	case reflect.String:
		return rv.String()
	}
	return fmt.Sprint(v)
}

func isNumeric(v any) bool {
	if _, ok := v.(json.Number); ok {
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// toNumber converts v to a float. Blank strings and NaN do not convert.
func toNumber(v any) (float64, bool) {
	v, ok := deref(v)
	if !ok {
		return 0, false
	}
	var f float64
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case bool:
		if x {
			f = 1
		}
	case time.Time:
		f = float64(x.UnixMilli())
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			f = float64(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			f = float64(rv.Uint())
		case reflect.Float32, reflect.Float64:
			f = rv.Float()
		default:
			return 0, false
		}
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// toTime converts v to a time. Numbers are read as Unix milliseconds.
func toTime(v any) (time.Time, bool) {
	v, ok := deref(v)
	if !ok {
		return time.Time{}, false
	}
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}
	if isNumeric(v) {
		ms, ok := toNumber(v)
		if !ok || math.IsInf(ms, 0) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(ms)).UTC(), true
	}
	return time.Time{}, false
}
