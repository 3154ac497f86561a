package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/flowcrm/internal/viewservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *viewservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Saved views.
	r.Get("/views", h.ListViews)
	r.Post("/views", h.CreateView)
	r.Get("/views/{id}", h.GetView)
	r.Put("/views/{id}", h.UpdateView)
	r.Delete("/views/{id}", h.DeleteView)

	// Records.
	r.Get("/contacts", h.ListContacts)
	r.Post("/contacts/filter", h.FilterContacts)
	r.Get("/deals", h.ListDeals)
	r.Post("/deals/filter", h.FilterDeals)

	// Rule editor metadata.
	r.Get("/schema/{type}", h.Schema)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
