package filter

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/starford/flowcrm/internal/apperr"
	"github.com/starford/flowcrm/internal/models"
)

func sampleContacts() []models.Contact {
	return []models.Contact{
		{ID: 1, Name: "Ada Lovelace", Email: "ada@acme.io", Company: "ACME Corp", Tags: []string{"vip"},
			CreatedAt: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)},
		{ID: 2, Name: "Grace Hopper", Email: "grace@globex.com", Company: "Globex", Tags: []string{"lead"},
			CreatedAt: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{ID: 3, Name: "Alan Turing", Email: "alan@acme.io", Company: "ACME Corp",
			CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func ids(cs []models.Contact) []int64 {
	out := make([]int64, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}

func TestSchema_ValidateRejectsUnknownField(t *testing.T) {
	err := Contacts.Validate([]models.FilterRule{{Field: "nickname", Operator: models.OpEquals, Value: "x"}})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if !strings.Contains(err.Error(), "nickname") {
		t.Errorf("error should name the field: %v", err)
	}
}

func TestSchema_ValidateOperatorPerField(t *testing.T) {
	err := Deals.Validate([]models.FilterRule{{Field: "stage", Operator: models.OpContains, Value: "q"}})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("contains on stage should be rejected, got %v", err)
	}
	err = Deals.Validate([]models.FilterRule{{Field: "stage", Operator: models.OpIn, Value: "qualified"}})
	if err != nil {
		t.Errorf("in on stage should pass: %v", err)
	}
}

func TestSchema_ValidateLogicInvariant(t *testing.T) {
	cases := []struct {
		name  string
		rules []models.FilterRule
		ok    bool
	}{
		{"first with logic", []models.FilterRule{
			{Field: "name", Operator: models.OpContains, Value: "a", Logic: models.LogicAnd},
		}, false},
		{"second without logic", []models.FilterRule{
			{Field: "name", Operator: models.OpContains, Value: "a"},
			{Field: "email", Operator: models.OpContains, Value: "b"},
		}, false},
		{"second with bad logic", []models.FilterRule{
			{Field: "name", Operator: models.OpContains, Value: "a"},
			{Field: "email", Operator: models.OpContains, Value: "b", Logic: "XOR"},
		}, false},
		{"well formed", []models.FilterRule{
			{Field: "name", Operator: models.OpContains, Value: "a"},
			{Field: "email", Operator: models.OpContains, Value: "b", Logic: models.LogicOr},
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Contacts.Validate(tc.rules)
			if (err == nil) != tc.ok {
				t.Errorf("Validate err = %v, want ok=%v", err, tc.ok)
			}
		})
	}
}

func TestSchema_ValidateBetweenNeedsUpperBound(t *testing.T) {
	err := Contacts.Validate([]models.FilterRule{
		{Field: "createdAt", Operator: models.OpBetween, Value: "2024-01-01", Value2: ""},
	})
	if err == nil {
		t.Error("between without value2 should fail")
	}
}

func TestQuery_FilterTypedRecords(t *testing.T) {
	q, err := Contacts.Compile([]models.FilterRule{
		{Field: "company", Operator: models.OpEquals, Value: "acme corp"},
		{Field: "createdAt", Operator: models.OpAfter, Value: "2024-02-01", Logic: models.LogicAnd},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	got := ids(q.Filter(sampleContacts()))
	if len(got) != 1 || got[0] != 3 {
		t.Errorf("ids = %v, want [3]", got)
	}
}

func TestQuery_TagsContains(t *testing.T) {
	q, err := Contacts.Compile([]models.FilterRule{{Field: "tags", Operator: models.OpContains, Value: "VIP"}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	got := ids(q.Filter(sampleContacts()))
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("ids = %v, want [1]", got)
	}
}

func TestQuery_SearchIsAndedWithRules(t *testing.T) {
	q, err := Contacts.Compile([]models.FilterRule{{Field: "company", Operator: models.OpContains, Value: "acme"}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	got := ids(q.Search("  ALAN ").Filter(sampleContacts()))
	if len(got) != 1 || got[0] != 3 {
		t.Errorf("ids = %v, want [3]", got)
	}

	// Search alone: no rules, term on email.
	q, _ = Contacts.Compile(nil)
	got = ids(q.Search("globex").Filter(sampleContacts()))
	if len(got) != 1 || got[0] != 2 {
		t.Errorf("ids = %v, want [2]", got)
	}

	// Blank term disables the pass.
	got = ids(q.Search("   ").Filter(sampleContacts()))
	if len(got) != 3 {
		t.Errorf("blank search kept %d records, want 3", len(got))
	}
}

func TestQuery_SearchDoesNotAlterOriginal(t *testing.T) {
	q, _ := Contacts.Compile(nil)
	_ = q.Search("ada")
	if got := len(q.Filter(sampleContacts())); got != 3 {
		t.Errorf("original query filtered to %d, want 3", got)
	}
}

func TestDealsSchema_NumericBetween(t *testing.T) {
	deals := []models.Deal{
		{ID: 1, Probability: 5},
		{ID: 2, Probability: 10},
		{ID: 3, Probability: 50},
		{ID: 4, Probability: 90},
		{ID: 5, Probability: 95},
	}
	q, err := Deals.Compile([]models.FilterRule{
		{Field: "probability", Operator: models.OpBetween, Value: "10", Value2: "90"},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	got := q.Filter(deals)
	if len(got) != 3 || got[0].ID != 2 || got[2].ID != 4 {
		t.Errorf("got %+v, want ids 2,3,4", got)
	}
}

func TestDescribe(t *testing.T) {
	fields, ok := Describe(models.ViewDeals)
	if !ok {
		t.Fatal("deals schema missing")
	}
	if fields[0].Name != "title" || len(fields) != 6 {
		t.Errorf("fields = %+v", fields)
	}
	if _, ok := Describe("tasks"); ok {
		t.Error("tasks should have no schema")
	}
}
