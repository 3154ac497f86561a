// Package testutil provides shared test helpers for building services over
// in-memory storage.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/starford/flowcrm/internal/models"
	"github.com/starford/flowcrm/internal/records"
	"github.com/starford/flowcrm/internal/storage"
	"github.com/starford/flowcrm/internal/viewservice"
	"github.com/starford/flowcrm/internal/viewstore"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Day parses a YYYY-MM-DD date in UTC.
func Day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// Seed is a small fixed record set:
//   - contacts: Sarah Johnson (TechCorp, 2024-01-01), Mike Chen (ACME Corp, 2024-02-01)
//   - deals: Big 5000/80%, Small 500/80%, Cold 9000/10%
func Seed() records.Seed {
	return records.Seed{
		Contacts: []models.Contact{
			{ID: 1, Name: "Sarah Johnson", Email: "sarah@techcorp.com", Company: "TechCorp",
				Tags: []string{"vip"}, CreatedAt: Day("2024-01-01")},
			{ID: 2, Name: "Mike Chen", Email: "mike@acme.io", Company: "ACME Corp",
				CreatedAt: Day("2024-02-01")},
		},
		Deals: []models.Deal{
			{ID: 1, Title: "Big", Value: 5000, Stage: models.StageNegotiation, Probability: 80},
			{ID: 2, Title: "Small", Value: 500, Stage: models.StageProposal, Probability: 80},
			{ID: 3, Title: "Cold", Value: 9000, Stage: models.StageProspect, Probability: 10},
		},
	}
}

// Service returns a view service over a fresh MemorySlot and Seed().
func Service(t *testing.T, opts ...viewservice.Option) (*viewservice.Service, *storage.MemorySlot) {
	t.Helper()
	slot := storage.NewMemorySlot(nil)
	store := viewstore.New(context.Background(), slot, Logger())
	return viewservice.New(store, records.FromSeed(Seed()), opts...), slot
}
