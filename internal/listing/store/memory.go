// Package store provides listing persistence: an in-memory implementation for
// unit tests and dev mode, and a Postgres implementation for deployments.
package store

import (
	"context"
	"fmt"
	"sync"

	"twinsale/internal/listing/models"
	id "twinsale/pkg/domain"
	"twinsale/pkg/platform/sentinel"
)

// InMemory keeps listings and their append-only records in maps. The store
// mutex is the per-listing serialization point demanded by the bid and ticket
// engines: Execute holds it across validate and mutate.
type InMemory struct {
	mu       sync.RWMutex
	listings map[id.ListingID]*models.Listing
	bids     map[id.ListingID][]*models.Bid
	entries  map[id.ListingID][]*models.RaffleEntry
}

func NewInMemory() *InMemory {
	return &InMemory{
		listings: make(map[id.ListingID]*models.Listing),
		bids:     make(map[id.ListingID][]*models.Bid),
		entries:  make(map[id.ListingID][]*models.RaffleEntry),
	}
}

func (s *InMemory) Create(ctx context.Context, l *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.listings[l.ID]; exists {
		return fmt.Errorf("listing %s: %w", l.ID, sentinel.ErrConflict)
	}
	s.listings[l.ID] = l.Clone()
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, listingID id.ListingID) (*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[listingID]
	if !ok {
		return nil, fmt.Errorf("listing %s: %w", listingID, sentinel.ErrNotFound)
	}
	return l.Clone(), nil
}

// ListActive returns active listings, optionally filtered by category.
func (s *InMemory) ListActive(ctx context.Context, category string) ([]*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Listing
	for _, l := range s.listings {
		if l.Status != id.ListingActive {
			continue
		}
		if category != "" && l.Category != category {
			continue
		}
		out = append(out, l.Clone())
	}
	return out, nil
}

// Execute runs validate then mutate on a listing while holding the store
// lock, so no concurrent Execute on the same listing can interleave between
// the check and the write. Returns the post-mutation snapshot.
func (s *InMemory) Execute(ctx context.Context, listingID id.ListingID,
	validate func(*models.Listing) error,
	mutate func(*models.Listing),
) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[listingID]
	if !ok {
		return nil, fmt.Errorf("listing %s: %w", listingID, sentinel.ErrNotFound)
	}
	if err := validate(l); err != nil {
		return nil, err
	}
	mutate(l)
	return l.Clone(), nil
}

func (s *InMemory) Delete(ctx context.Context, listingID id.ListingID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[listingID]; !ok {
		return fmt.Errorf("listing %s: %w", listingID, sentinel.ErrNotFound)
	}
	delete(s.listings, listingID)
	delete(s.bids, listingID)
	delete(s.entries, listingID)
	return nil
}

func (s *InMemory) AppendBid(ctx context.Context, b *models.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bids[b.ListingID] = append(s.bids[b.ListingID], b)
	return nil
}

func (s *InMemory) ListBids(ctx context.Context, listingID id.ListingID) ([]*models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Bid, len(s.bids[listingID]))
	copy(out, s.bids[listingID])
	return out, nil
}

func (s *InMemory) AppendEntry(ctx context.Context, e *models.RaffleEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ListingID] = append(s.entries[e.ListingID], e)
	return nil
}

func (s *InMemory) ListEntries(ctx context.Context, listingID id.ListingID) ([]*models.RaffleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.RaffleEntry, len(s.entries[listingID]))
	copy(out, s.entries[listingID])
	return out, nil
}

// Counts reports table sizes for the admin surface.
func (s *InMemory) Counts(ctx context.Context) (listings, bids, entries int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, bs := range s.bids {
		bids += len(bs)
	}
	for _, es := range s.entries {
		entries += len(es)
	}
	return len(s.listings), bids, entries, nil
}
