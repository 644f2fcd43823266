package tariff

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// TariffStore manages tariff persistence and retrieval
type TariffStore interface {
	// Add a new tariff
	Add(t *Tariff) error

	// Get a tariff by ID
	Get(id string) (*Tariff, error)

	// List all active tariffs
	ListActive() ([]*Tariff, error)

	// Update an existing tariff
	Update(t *Tariff) error

	// Delete a tariff
	Delete(id string) error
}

// InMemoryTariffStore implements TariffStore using an in-memory map
type InMemoryTariffStore struct {
	tariffs map[string]*Tariff
	mu      sync.RWMutex
}

// NewInMemoryTariffStore creates a new in-memory tariff store
func NewInMemoryTariffStore() *InMemoryTariffStore {
	return &InMemoryTariffStore{
		tariffs: make(map[string]*Tariff),
	}
}

// Add adds a new tariff to the store and stamps its timestamps
func (s *InMemoryTariffStore) Add(t *Tariff) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tariffs[t.ID]; exists {
		return fmt.Errorf("%w: %s", ErrTariffExists, t.ID)
	}

	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.tariffs[t.ID] = t
	return nil
}

// Get retrieves a tariff by ID
func (s *InMemoryTariffStore) Get(id string) (*Tariff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.tariffs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTariffNotFound, id)
	}
	return t, nil
}

// ListActive returns all active tariffs, oldest first
func (s *InMemoryTariffStore) ListActive() ([]*Tariff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*Tariff
	for _, t := range s.tariffs {
		if t.Active {
			active = append(active, t)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active, nil
}

// Update replaces an existing tariff, preserving its CreatedAt timestamp
func (s *InMemoryTariffStore) Update(t *Tariff) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.tariffs[t.ID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrTariffNotFound, t.ID)
	}

	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now()
	s.tariffs[t.ID] = t
	return nil
}

// Delete removes a tariff from the store
func (s *InMemoryTariffStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tariffs[id]; !exists {
		return fmt.Errorf("%w: %s", ErrTariffNotFound, id)
	}

	delete(s.tariffs, id)
	return nil
}
