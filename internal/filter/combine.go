package filter

import "github.com/starford/flowcrm/internal/models"

// Getter resolves a named field on a record. ok is false when the record
// has no such field.
type Getter[T any] func(record T, field string) (value any, ok bool)

// Apply returns the records that satisfy rules, in input order. The input
// slice is never modified; with no rules it is returned as is.
func Apply[T any](records []T, rules []models.FilterRule, get Getter[T]) []T {
	if len(rules) == 0 {
		return records
	}
	out := make([]T, 0, len(records))
	for _, rec := range records {
		if Match(rec, rules, get) {
			out = append(out, rec)
		}
	}
	return out
}

// Match folds rules left to right over a single record. rule[i].Logic
// joins rule i to the accumulated result of rules 0..i-1; there is no
// precedence, so A OR B AND C reads as (A OR B) AND C. Only an exact
// "AND" connector conjoins; anything else, including a missing connector,
// disjoins. Every predicate is evaluated; nothing short-circuits.
func Match[T any](record T, rules []models.FilterRule, get Getter[T]) bool {
	result := false
	for i, rule := range rules {
		hit := false
		if v, ok := get(record, rule.Field); ok {
			hit = Evaluate(v, rule)
		}
		switch {
		case i == 0:
			result = hit
		case rule.Logic == models.LogicAnd:
			result = result && hit
		default:
			result = result || hit
		}
	}
	return result
}

// MapGetter reads fields from loosely typed field maps.
func MapGetter(record map[string]any, field string) (any, bool) {
	v, ok := record[field]
	return v, ok
}

// ApplyMaps is Apply over field maps.
func ApplyMaps(records []map[string]any, rules []models.FilterRule) []map[string]any {
	return Apply(records, rules, MapGetter)
}
