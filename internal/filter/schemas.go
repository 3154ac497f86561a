package filter

import "github.com/starford/flowcrm/internal/models"

var (
	textOps   = []models.Operator{models.OpContains, models.OpEquals, models.OpStartsWith}
	dateOps   = []models.Operator{models.OpBefore, models.OpAfter, models.OpBetween}
	numberOps = []models.Operator{models.OpEquals, models.OpGreaterThan, models.OpLessThan, models.OpBetween}
)

// Contacts is the field table for contact records.
var Contacts = NewSchema[models.Contact](models.ViewContacts, "name", "email", "company").
	Add("name", Field[models.Contact]{Label: "Name", Kind: KindText, Operators: textOps,
		Get: func(c models.Contact) any { return c.Name }}).
	Add("email", Field[models.Contact]{Label: "Email", Kind: KindText, Operators: textOps,
		Get: func(c models.Contact) any { return c.Email }}).
	Add("company", Field[models.Contact]{Label: "Company", Kind: KindText, Operators: textOps,
		Get: func(c models.Contact) any { return c.Company }}).
	Add("position", Field[models.Contact]{Label: "Position", Kind: KindText, Operators: textOps,
		Get: func(c models.Contact) any { return c.Position }}).
	Add("tags", Field[models.Contact]{Label: "Tags", Kind: KindList,
		Operators: []models.Operator{models.OpContains, models.OpEquals},
		Get:       func(c models.Contact) any { return c.Tags }}).
	Add("lastActivity", Field[models.Contact]{Label: "Last Activity", Kind: KindDate, Operators: dateOps,
		Get: func(c models.Contact) any { return c.LastActivity }}).
	Add("createdAt", Field[models.Contact]{Label: "Created Date", Kind: KindDate, Operators: dateOps,
		Get: func(c models.Contact) any { return c.CreatedAt }})

// Deals is the field table for deal records.
var Deals = NewSchema[models.Deal](models.ViewDeals, "title", "stage").
	Add("title", Field[models.Deal]{Label: "Title", Kind: KindText, Operators: textOps,
		Get: func(d models.Deal) any { return d.Title }}).
	Add("value", Field[models.Deal]{Label: "Value", Kind: KindNumber, Operators: numberOps,
		Get: func(d models.Deal) any { return d.Value }}).
	Add("stage", Field[models.Deal]{Label: "Stage", Kind: KindText,
		Operators: []models.Operator{models.OpEquals, models.OpIn},
		Get:       func(d models.Deal) any { return d.Stage }}).
	Add("probability", Field[models.Deal]{Label: "Probability", Kind: KindNumber, Operators: numberOps,
		Get: func(d models.Deal) any { return d.Probability }}).
	Add("expectedCloseDate", Field[models.Deal]{Label: "Expected Close", Kind: KindDate, Operators: dateOps,
		Get: func(d models.Deal) any { return d.ExpectedCloseDate }}).
	Add("createdAt", Field[models.Deal]{Label: "Created Date", Kind: KindDate, Operators: dateOps,
		Get: func(d models.Deal) any { return d.CreatedAt }})

// Describe returns the field table for a view type.
func Describe(t models.ViewType) ([]FieldInfo, bool) {
	switch t {
	case models.ViewContacts:
		return Contacts.Fields(), true
	case models.ViewDeals:
		return Deals.Fields(), true
	}
	return nil, false
}

// ValidateFor validates rules against the schema of t.
func ValidateFor(t models.ViewType, rules []models.FilterRule) error {
	switch t {
	case models.ViewContacts:
		return Contacts.Validate(rules)
	case models.ViewDeals:
		return Deals.Validate(rules)
	}
	return nil
}
