package api

import (
	"github.com/starford/flowcrm/internal/filter"
	"github.com/starford/flowcrm/internal/models"
	"github.com/starford/flowcrm/internal/viewservice"
)

// SavedView is the view response type (aliased from the domain layer).
type SavedView = models.SavedView

// CreateViewRequest is the request body for saving a view.
type CreateViewRequest = models.ViewInput

// UpdateViewRequest is the request body for updating a view. Omitted
// fields keep their current value.
type UpdateViewRequest = models.ViewPatch

// FilterRequest is the request body for the filter endpoints.
type FilterRequest = viewservice.FilterRequest

// ViewListResponse wraps saved view listings.
type ViewListResponse struct {
	Views []models.SavedView `json:"views" validate:"required"`
}

// ContactListResponse wraps filtered contacts.
type ContactListResponse struct {
	Contacts []models.Contact `json:"contacts" validate:"required"`
	Total    int              `json:"total" example:"3" validate:"required"`
}

// DealListResponse wraps filtered deals.
type DealListResponse struct {
	Deals []models.Deal `json:"deals" validate:"required"`
	Total int           `json:"total" example:"3" validate:"required"`
}

// SchemaResponse describes the filterable fields of one entity type.
type SchemaResponse struct {
	Type   models.ViewType    `json:"type" example:"contacts" validate:"required"`
	Fields []filter.FieldInfo `json:"fields" validate:"required"`
}
