package models

import "time"

// ViewType is the entity kind a saved view applies to.
type ViewType string

const (
	ViewContacts ViewType = "contacts"
	ViewDeals    ViewType = "deals"
)

// Valid reports whether t is a known view type.
func (t ViewType) Valid() bool {
	return t == ViewContacts || t == ViewDeals
}

// SavedView is a named, typed, persisted FilterRule sequence.
type SavedView struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Type        ViewType     `json:"type"`
	Filters     []FilterRule `json:"filters"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Clone returns a deep copy of v. Rule values are scalars in practice,
// so copying the slice is enough.
func (v SavedView) Clone() SavedView {
	out := v
	if v.Filters != nil {
		out.Filters = make([]FilterRule, len(v.Filters))
		copy(out.Filters, v.Filters)
	}
	return out
}

// ViewInput is the caller-supplied envelope for creating a view.
type ViewInput struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Type        ViewType     `json:"type"`
	Filters     []FilterRule `json:"filters"`
}

// ViewPatch carries a partial update. Nil fields are left untouched.
type ViewPatch struct {
	Name        *string       `json:"name,omitempty"`
	Description *string       `json:"description,omitempty"`
	Type        *ViewType     `json:"type,omitempty"`
	Filters     *[]FilterRule `json:"filters,omitempty"`
}
