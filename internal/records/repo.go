// Package records holds the contact and deal records that saved views are
// applied to. Records are read from a YAML seed file and kept in memory.
package records

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/starford/flowcrm/internal/checksum"
	"github.com/starford/flowcrm/internal/models"
)

// Seed is the on-disk layout of the seed file.
type Seed struct {
	Contacts []models.Contact `yaml:"contacts"`
	Deals    []models.Deal    `yaml:"deals"`
}

// Parse decodes a YAML seed document.
func Parse(data []byte) (Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Seed{}, fmt.Errorf("records: parse seed: %w", err)
	}
	return s, nil
}

// Repository is a read-mostly, in-memory record set.
type Repository struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	contacts []models.Contact
	deals    []models.Deal
	checksum string
}

// New returns an empty repository backed by the seed file at path.
// Call Reload to read it. An empty path keeps the repository empty.
func New(path string, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{path: path, logger: logger}
}

// Load is New followed by Reload.
func Load(path string, logger *slog.Logger) (*Repository, error) {
	r := New(path, logger)
	if _, err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// FromSeed returns a repository holding s that is never reloaded.
func FromSeed(s Seed) *Repository {
	r := New("", nil)
	r.swap(s, "")
	return r
}

// Path returns the seed file path.
func (r *Repository) Path() string { return r.path }

// Reload re-reads the seed file. It reports whether the records changed;
// an unchanged checksum leaves the current set in place. A missing file
// empties the repository.
func (r *Repository) Reload() (bool, error) {
	if r.path == "" {
		return false, nil
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("records: seed file missing", slog.String("path", r.path))
			return r.swap(Seed{}, ""), nil
		}
		return false, fmt.Errorf("records: read seed: %w", err)
	}

	cs := checksum.Sum(data)
	r.mu.RLock()
	same := cs == r.checksum
	r.mu.RUnlock()
	if same {
		return false, nil
	}

	seed, err := Parse(data)
	if err != nil {
		return false, err
	}
	changed := r.swap(seed, cs)
	r.logger.Info("records: loaded",
		slog.String("path", r.path),
		slog.Int("contacts", len(seed.Contacts)),
		slog.Int("deals", len(seed.Deals)))
	return changed, nil
}

func (r *Repository) swap(s Seed, cs string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cs != "" && cs == r.checksum {
		return false
	}
	if cs == "" && r.checksum == "" && len(r.contacts) == 0 && len(r.deals) == 0 &&
		len(s.Contacts) == 0 && len(s.Deals) == 0 {
		return false
	}
	r.contacts = s.Contacts
	r.deals = s.Deals
	r.checksum = cs
	return true
}

// Contacts returns a copy of the contact list.
func (r *Repository) Contacts() []models.Contact {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneContacts(r.contacts)
}

// Deals returns a copy of the deal list.
func (r *Repository) Deals() []models.Deal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneDeals(r.deals)
}

// Snapshot returns copies of both lists taken under one lock.
func (r *Repository) Snapshot() ([]models.Contact, []models.Deal) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneContacts(r.contacts), cloneDeals(r.deals)
}

// Checksum returns the checksum of the loaded seed, or "" when empty.
func (r *Repository) Checksum() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.checksum
}

func cloneContacts(in []models.Contact) []models.Contact {
	out := make([]models.Contact, len(in))
	for i, c := range in {
		c.Tags = slices.Clone(c.Tags)
		out[i] = c
	}
	return out
}

func cloneDeals(in []models.Deal) []models.Deal {
	out := make([]models.Deal, len(in))
	copy(out, in)
	return out
}
