// Package store provides verification-session persistence: an in-memory
// implementation for unit tests and dev mode, and a Postgres implementation
// for deployments.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"twinsale/internal/verification/models"
	id "twinsale/pkg/domain"
	"twinsale/pkg/platform/sentinel"
)

// InMemory keeps sessions in maps keyed by listing. The store mutex is the
// serialization point for Ensure and Execute: the check and the write never
// interleave with a concurrent call on the same listing.
type InMemory struct {
	mu       sync.RWMutex
	sessions map[id.ListingID]*models.VerificationSession
}

func NewInMemory() *InMemory {
	return &InMemory{sessions: make(map[id.ListingID]*models.VerificationSession)}
}

// Ensure returns the session for a listing, creating it if absent. Sessions
// are created lazily on first upload, so the upsert has to be atomic.
func (s *InMemory) Ensure(ctx context.Context, candidate *models.VerificationSession) (*models.VerificationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[candidate.ListingID]; ok {
		return existing.Clone(), nil
	}
	s.sessions[candidate.ListingID] = candidate.Clone()
	return candidate.Clone(), nil
}

func (s *InMemory) FindByListing(ctx context.Context, listingID id.ListingID) (*models.VerificationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[listingID]
	if !ok {
		return nil, fmt.Errorf("verification session for listing %s: %w", listingID, sentinel.ErrNotFound)
	}
	return sess.Clone(), nil
}

// Execute runs validate then mutate on a session while holding the store
// lock. Returns the post-mutation snapshot.
func (s *InMemory) Execute(ctx context.Context, listingID id.ListingID,
	validate func(*models.VerificationSession) error,
	mutate func(*models.VerificationSession),
) (*models.VerificationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[listingID]
	if !ok {
		return nil, fmt.Errorf("verification session for listing %s: %w", listingID, sentinel.ErrNotFound)
	}
	if err := validate(sess); err != nil {
		return nil, err
	}
	mutate(sess)
	return sess.Clone(), nil
}

// ListExpired returns open sessions whose expiry is at or before now. The
// sweeper re-checks expiry under Execute before acting on each one.
func (s *InMemory) ListExpired(ctx context.Context, now time.Time) ([]*models.VerificationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.VerificationSession
	for _, sess := range s.sessions {
		if sess.Status == id.SessionOpen && sess.Expired(now) {
			out = append(out, sess.Clone())
		}
	}
	return out, nil
}

// Counts reports session totals per status for the admin surface.
func (s *InMemory) Counts(ctx context.Context) (map[id.SessionStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.SessionStatus]int)
	for _, sess := range s.sessions {
		out[sess.Status]++
	}
	return out, nil
}
