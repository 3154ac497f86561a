// Package viewservice coordinates saved views, field schemas and records.
package viewservice

import (
	"context"
	"fmt"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/flowcrm/internal/apperr"
	"github.com/starford/flowcrm/internal/checksum"
	"github.com/starford/flowcrm/internal/filter"
	"github.com/starford/flowcrm/internal/models"
	"github.com/starford/flowcrm/internal/records"
	"github.com/starford/flowcrm/internal/viewstore"
)

// View event kinds passed to a Notifier.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Notifier receives view mutations, e.g. to fan them out over SSE.
type Notifier interface {
	PublishViewEvent(kind string, v models.SavedView)
}

// FilterRequest selects records either by a saved view or by ad-hoc rules.
// ViewID takes precedence over Rules. Query is the quick-search term.
type FilterRequest struct {
	Rules  []models.FilterRule `json:"rules"`
	ViewID int64               `json:"viewId,omitempty"`
	Query  string              `json:"q,omitempty"`
}

// Service is the caller layer around the view store.
type Service struct {
	store   *viewstore.Store
	records *records.Repository
	notify  Notifier
	newID   func() string
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier registers n to receive view events.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notify = n }
}

// New creates a service over store and repo.
func New(store *viewstore.Store, repo *records.Repository, opts ...Option) *Service {
	s := &Service{store: store, records: repo, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checksum returns the hex SHA-256 of the view's JSON form. It is used as
// the view's ETag.
func Checksum(v models.SavedView) string {
	sum, err := checksum.JSON(v)
	if err != nil {
		return ""
	}
	return sum
}

// ListViews returns the saved views of one type.
func (s *Service) ListViews(ctx context.Context, typ models.ViewType) ([]models.SavedView, error) {
	if err := validation.Validate(typ, validation.Required, typeRule); err != nil {
		return nil, invalid("type", err)
	}
	return s.store.List(ctx, typ)
}

// GetView returns a single view.
func (s *Service) GetView(ctx context.Context, id int64) (models.SavedView, error) {
	return s.store.Get(ctx, id)
}

// SaveView validates in and stores it as a new view.
func (s *Service) SaveView(ctx context.Context, in models.ViewInput) (models.SavedView, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Filters = s.normalize(in.Filters)
	if err := validateInput(in); err != nil {
		return models.SavedView{}, err
	}

	v, err := s.store.Save(ctx, in)
	if err != nil {
		return models.SavedView{}, err
	}
	s.publish(EventCreated, v)
	return v, nil
}

// UpdateView applies patch to the view with id. A non-empty ifMatch must
// equal the Checksum of the stored view at the moment of the write.
func (s *Service) UpdateView(ctx context.Context, id int64, patch models.ViewPatch, ifMatch string) (models.SavedView, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	if patch.Filters != nil {
		filled := s.normalize(*patch.Filters)
		patch.Filters = &filled
	}
	etag := strings.Trim(ifMatch, `"`)

	v, err := s.store.Update(ctx, id, patch, func(current, next models.SavedView) error {
		if etag != "" && etag != Checksum(current) {
			return apperr.ErrConflict
		}
		return validateInput(models.ViewInput{
			Name:        next.Name,
			Description: next.Description,
			Type:        next.Type,
			Filters:     next.Filters,
		})
	})
	if err != nil {
		return models.SavedView{}, err
	}
	s.publish(EventUpdated, v)
	return v, nil
}

// DeleteView removes the view with id.
func (s *Service) DeleteView(ctx context.Context, id int64) error {
	v, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(EventDeleted, v)
	return nil
}

// FilterContacts returns the contacts selected by req.
func (s *Service) FilterContacts(ctx context.Context, req FilterRequest) ([]models.Contact, error) {
	rules, err := s.resolveRules(ctx, models.ViewContacts, req)
	if err != nil {
		return nil, err
	}
	q, err := filter.Contacts.Compile(rules)
	if err != nil {
		return nil, err
	}
	return q.Search(req.Query).Filter(s.records.Contacts()), nil
}

// FilterDeals returns the deals selected by req.
func (s *Service) FilterDeals(ctx context.Context, req FilterRequest) ([]models.Deal, error) {
	rules, err := s.resolveRules(ctx, models.ViewDeals, req)
	if err != nil {
		return nil, err
	}
	q, err := filter.Deals.Compile(rules)
	if err != nil {
		return nil, err
	}
	return q.Search(req.Query).Filter(s.records.Deals()), nil
}

func (s *Service) resolveRules(ctx context.Context, typ models.ViewType, req FilterRequest) ([]models.FilterRule, error) {
	if req.ViewID == 0 {
		rules := slices.Clone(req.Rules)
		if len(rules) > 0 {
			rules[0].Logic = models.LogicNone
		}
		return rules, nil
	}
	v, err := s.store.Get(ctx, req.ViewID)
	if err != nil {
		return nil, err
	}
	if v.Type != typ {
		return nil, fmt.Errorf("%w: view %d applies to %s, not %s", apperr.ErrValidation, v.ID, v.Type, typ)
	}
	return v.Filters, nil
}

// normalize fills missing rule ids and drops the connector of the first
// rule, which is left behind when a rule editor removes the head rule.
func (s *Service) normalize(rules []models.FilterRule) []models.FilterRule {
	out := make([]models.FilterRule, len(rules))
	for i, r := range rules {
		if r.ID == "" {
			r.ID = models.RuleID(s.newID())
		}
		if i == 0 {
			r.Logic = models.LogicNone
		}
		out[i] = r
	}
	return out
}

func (s *Service) publish(kind string, v models.SavedView) {
	if s.notify != nil {
		s.notify.PublishViewEvent(kind, v)
	}
}

var typeRule = validation.In(models.ViewContacts, models.ViewDeals).Error("must be contacts or deals")

func validateInput(in models.ViewInput) error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&in.Type, validation.Required, typeRule),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrValidation, err)
	}
	return filter.ValidateFor(in.Type, in.Filters)
}

func invalid(field string, err error) error {
	return fmt.Errorf("%w: %s: %w", apperr.ErrValidation, field, err)
}
