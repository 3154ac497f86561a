package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/flowcrm/internal/apperr"
	"github.com/starford/flowcrm/internal/filter"
	"github.com/starford/flowcrm/internal/models"
	"github.com/starford/flowcrm/internal/viewservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *viewservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *viewservice.Service) *Handler {
	return &Handler{svc: svc}
}

// writeServiceError maps domain errors to HTTP statuses. Unknown errors are
// logged with msg and reported as 500.
func writeServiceError(w http.ResponseWriter, msg string, err error, attrs ...any) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	default:
		slog.Error(msg, append(attrs, slog.String("error", err.Error()))...)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func viewID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func writeView(w http.ResponseWriter, status int, v models.SavedView) {
	w.Header().Set("ETag", `"`+viewservice.Checksum(v)+`"`)
	writeJSON(w, status, v)
}

// ListViews handles GET /api/views.
//
//	@Summary		List saved views of one entity type
//	@Tags			views
//	@Produce		json
//	@Param			type	query		string	true	"Entity type"	Enums(contacts, deals)
//	@Success		200		{object}	ViewListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/views [get]
func (h *Handler) ListViews(w http.ResponseWriter, r *http.Request) {
	typ := models.ViewType(r.URL.Query().Get("type"))
	views, err := h.svc.ListViews(r.Context(), typ)
	if err != nil {
		writeServiceError(w, "list views failed", err, slog.String("type", string(typ)))
		return
	}
	writeJSON(w, http.StatusOK, ViewListResponse{Views: views})
}

// CreateView handles POST /api/views.
//
//	@Summary		Save a new view
//	@Tags			views
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateViewRequest	true	"View to create"
//	@Success		201		{object}	SavedView
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/views [post]
func (h *Handler) CreateView(w http.ResponseWriter, r *http.Request) {
	var req CreateViewRequest
	if !readJSON(w, r, &req) {
		return
	}
	v, err := h.svc.SaveView(r.Context(), req)
	if err != nil {
		writeServiceError(w, "create view failed", err, slog.String("name", req.Name))
		return
	}
	writeView(w, http.StatusCreated, v)
}

// GetView handles GET /api/views/{id}.
//
//	@Summary		Get a saved view
//	@Tags			views
//	@Produce		json
//	@Param			id	path		int	true	"View id"
//	@Success		200	{object}	SavedView
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/views/{id} [get]
func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	id, ok := viewID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid view id"))
		return
	}
	v, err := h.svc.GetView(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get view failed", err, slog.Int64("id", id))
		return
	}
	writeView(w, http.StatusOK, v)
}

// UpdateView handles PUT /api/views/{id}.
//
//	@Summary		Update a saved view with optimistic concurrency
//	@Tags			views
//	@Accept			json
//	@Produce		json
//	@Param			id			path		int					true	"View id"
//	@Param			If-Match	header		string				false	"ETag from a previous read"
//	@Param			body		body		UpdateViewRequest	true	"Fields to change"
//	@Success		200			{object}	SavedView
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/views/{id} [put]
func (h *Handler) UpdateView(w http.ResponseWriter, r *http.Request) {
	id, ok := viewID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid view id"))
		return
	}
	var patch UpdateViewRequest
	if !readJSON(w, r, &patch) {
		return
	}
	v, err := h.svc.UpdateView(r.Context(), id, patch, r.Header.Get("If-Match"))
	if err != nil {
		writeServiceError(w, "update view failed", err, slog.Int64("id", id))
		return
	}
	writeView(w, http.StatusOK, v)
}

// DeleteView handles DELETE /api/views/{id}.
//
//	@Summary		Delete a saved view
//	@Tags			views
//	@Param			id	path	int	true	"View id"
//	@Success		204	"View deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/views/{id} [delete]
func (h *Handler) DeleteView(w http.ResponseWriter, r *http.Request) {
	id, ok := viewID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid view id"))
		return
	}
	if err := h.svc.DeleteView(r.Context(), id); err != nil {
		writeServiceError(w, "delete view failed", err, slog.Int64("id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// queryRequest builds a FilterRequest from ?q= and ?view= parameters.
func queryRequest(r *http.Request) (FilterRequest, bool) {
	q := r.URL.Query()
	req := FilterRequest{Query: q.Get("q")}
	if raw := q.Get("view"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return req, false
		}
		req.ViewID = id
	}
	return req, true
}

func decodeFilter(w http.ResponseWriter, r *http.Request) (FilterRequest, bool) {
	var req FilterRequest
	if !readJSON(w, r, &req) {
		return req, false
	}
	return req, true
}

// ListContacts handles GET /api/contacts.
//
//	@Summary		List contacts, optionally through a saved view
//	@Tags			records
//	@Produce		json
//	@Param			q		query		string	false	"Quick search on name, email and company"
//	@Param			view	query		int		false	"Saved view id"
//	@Success		200		{object}	ContactListResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/contacts [get]
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	req, ok := queryRequest(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid view id"))
		return
	}
	h.filterContacts(w, r, req)
}

// FilterContacts handles POST /api/contacts/filter.
//
//	@Summary		Filter contacts with ad-hoc rules
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			body	body		FilterRequest	true	"Rules, quick search and/or view id"
//	@Success		200		{object}	ContactListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/contacts/filter [post]
func (h *Handler) FilterContacts(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeFilter(w, r)
	if !ok {
		return
	}
	h.filterContacts(w, r, req)
}

func (h *Handler) filterContacts(w http.ResponseWriter, r *http.Request, req FilterRequest) {
	contacts, err := h.svc.FilterContacts(r.Context(), req)
	if err != nil {
		writeServiceError(w, "filter contacts failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ContactListResponse{Contacts: contacts, Total: len(contacts)})
}

// ListDeals handles GET /api/deals.
//
//	@Summary		List deals, optionally through a saved view
//	@Tags			records
//	@Produce		json
//	@Param			q		query		string	false	"Quick search on title and stage"
//	@Param			view	query		int		false	"Saved view id"
//	@Success		200		{object}	DealListResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/deals [get]
func (h *Handler) ListDeals(w http.ResponseWriter, r *http.Request) {
	req, ok := queryRequest(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid view id"))
		return
	}
	h.filterDeals(w, r, req)
}

// FilterDeals handles POST /api/deals/filter.
//
//	@Summary		Filter deals with ad-hoc rules
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			body	body		FilterRequest	true	"Rules, quick search and/or view id"
//	@Success		200		{object}	DealListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/deals/filter [post]
func (h *Handler) FilterDeals(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeFilter(w, r)
	if !ok {
		return
	}
	h.filterDeals(w, r, req)
}

func (h *Handler) filterDeals(w http.ResponseWriter, r *http.Request, req FilterRequest) {
	deals, err := h.svc.FilterDeals(r.Context(), req)
	if err != nil {
		writeServiceError(w, "filter deals failed", err)
		return
	}
	writeJSON(w, http.StatusOK, DealListResponse{Deals: deals, Total: len(deals)})
}

// Schema handles GET /api/schema/{type}.
//
//	@Summary		Filterable fields and operators for an entity type
//	@Tags			views
//	@Produce		json
//	@Param			type	path		string	true	"Entity type"	Enums(contacts, deals)
//	@Success		200		{object}	SchemaResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/schema/{type} [get]
func (h *Handler) Schema(w http.ResponseWriter, r *http.Request) {
	typ := models.ViewType(chi.URLParam(r, "type"))
	fields, ok := filter.Describe(typ)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("unknown entity type"))
		return
	}
	writeJSON(w, http.StatusOK, SchemaResponse{Type: typ, Fields: fields})
}
