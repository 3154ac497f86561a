package filter

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/starford/flowcrm/internal/apperr"
	"github.com/starford/flowcrm/internal/models"
)

// Kind is the semantic type of a field.
type Kind string

const (
	KindText   Kind = "text"
	KindNumber Kind = "number"
	KindDate   Kind = "date"
	KindList   Kind = "list"
)

// Field describes one filterable attribute of T.
type Field[T any] struct {
	Label     string
	Kind      Kind
	Operators []models.Operator
	Get       func(T) any
}

// FieldInfo is the serialisable description of a field.
type FieldInfo struct {
	Name      string            `json:"name"`
	Label     string            `json:"label"`
	Kind      Kind              `json:"kind"`
	Operators []models.Operator `json:"operators"`
}

// Schema is the lookup table from field name to typed accessor for one
// entity kind. Rules are checked against it before they run, so a typo in
// a field name is reported instead of silently matching nothing.
type Schema[T any] struct {
	Type   models.ViewType
	fields map[string]Field[T]
	order  []string
	search []string
}

// NewSchema creates an empty schema. searchFields are the fields scanned by
// the quick-search pre-pass; they are added with Add like any other field.
func NewSchema[T any](typ models.ViewType, searchFields ...string) *Schema[T] {
	return &Schema[T]{
		Type:   typ,
		fields: make(map[string]Field[T]),
		search: searchFields,
	}
}

// Add registers a field and returns s for chaining.
func (s *Schema[T]) Add(name string, f Field[T]) *Schema[T] {
	if _, dup := s.fields[name]; !dup {
		s.order = append(s.order, name)
	}
	s.fields[name] = f
	return s
}

// Lookup returns the named field.
func (s *Schema[T]) Lookup(name string) (Field[T], bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Fields describes every field in registration order.
func (s *Schema[T]) Fields() []FieldInfo {
	out := make([]FieldInfo, 0, len(s.order))
	for _, name := range s.order {
		f := s.fields[name]
		out = append(out, FieldInfo{
			Name:      name,
			Label:     f.Label,
			Kind:      f.Kind,
			Operators: slices.Clone(f.Operators),
		})
	}
	return out
}

// Getter returns a Getter backed by the schema's accessors.
func (s *Schema[T]) Getter() Getter[T] {
	return func(rec T, field string) (any, bool) {
		f, ok := s.fields[field]
		if !ok {
			return nil, false
		}
		return f.Get(rec), true
	}
}

// Validate checks that rules form a well-formed chain over known fields.
// All problems are reported; the returned error wraps apperr.ErrValidation.
func (s *Schema[T]) Validate(rules []models.FilterRule) error {
	var errs []error
	for i, r := range rules {
		if err := s.validateRule(i, r); err != nil {
			errs = append(errs, fmt.Errorf("rule %d: %w", i, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", apperr.ErrValidation, errors.Join(errs...))
}

func (s *Schema[T]) validateRule(i int, r models.FilterRule) error {
	f, ok := s.fields[r.Field]
	if !ok {
		return fmt.Errorf("unknown %s field %q", s.Type, r.Field)
	}
	if !r.Operator.Valid() {
		return fmt.Errorf("unknown operator %q", r.Operator)
	}
	if !slices.Contains(f.Operators, r.Operator) {
		return fmt.Errorf("operator %q not supported on field %q", r.Operator, r.Field)
	}
	switch {
	case i == 0 && r.Logic != models.LogicNone:
		return fmt.Errorf("first rule cannot carry logic %q", r.Logic)
	case i > 0 && r.Logic != models.LogicAnd && r.Logic != models.LogicOr:
		return fmt.Errorf("logic must be AND or OR, got %q", r.Logic)
	}
	if r.Operator == models.OpBetween && isBlank(r.Value2) {
		return errors.New("between requires value2")
	}
	return nil
}

func isBlank(v any) bool {
	v, ok := deref(v)
	if !ok {
		return true
	}
	s, isStr := v.(string)
	return isStr && strings.TrimSpace(s) == ""
}

// Compile validates rules and binds them to the schema.
func (s *Schema[T]) Compile(rules []models.FilterRule) (*Query[T], error) {
	if err := s.Validate(rules); err != nil {
		return nil, err
	}
	return &Query[T]{schema: s, rules: slices.Clone(rules)}, nil
}

// Query is a validated rule chain with an optional quick-search term.
type Query[T any] struct {
	schema *Schema[T]
	rules  []models.FilterRule
	term   string
}

// Rules returns a copy of the bound rules.
func (q *Query[T]) Rules() []models.FilterRule {
	return slices.Clone(q.rules)
}

// Search returns a copy of q that first keeps only records whose search
// fields contain term (case-insensitive). A blank term disables the pass.
func (q *Query[T]) Search(term string) *Query[T] {
	cp := *q
	cp.term = strings.ToLower(strings.TrimSpace(term))
	return &cp
}

// Filter applies the quick search, then the rules.
func (q *Query[T]) Filter(records []T) []T {
	src := records
	if q.term != "" {
		src = make([]T, 0, len(records))
		for _, rec := range records {
			if q.matchesTerm(rec) {
				src = append(src, rec)
			}
		}
	}
	return Apply(src, q.rules, q.schema.Getter())
}

func (q *Query[T]) matchesTerm(rec T) bool {
	for _, name := range q.schema.search {
		f, ok := q.schema.fields[name]
		if !ok {
			continue
		}
		v, ok := deref(f.Get(rec))
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(stringify(v)), q.term) {
			return true
		}
	}
	return false
}
