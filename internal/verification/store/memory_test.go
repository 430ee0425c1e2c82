package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"twinsale/internal/verification/models"
	id "twinsale/pkg/domain"
	"twinsale/pkg/platform/sentinel"
)

type SessionStoreSuite struct {
	suite.Suite
	store *InMemory
}

func TestSessionStoreSuite(t *testing.T) {
	suite.Run(t, new(SessionStoreSuite))
}

func (s *SessionStoreSuite) SetupTest() {
	s.store = NewInMemory()
}

func testTime() time.Time {
	return time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)
}

func (s *SessionStoreSuite) newSession(listingID id.ListingID) *models.VerificationSession {
	now := testTime()
	return models.NewSession(id.NewSessionID(), listingID, now.Add(24*time.Hour), now)
}

func (s *SessionStoreSuite) TestEnsure() {
	ctx := context.Background()
	listingID := id.NewListingID()

	s.Run("creates on first call", func() {
		sess, err := s.store.Ensure(ctx, s.newSession(listingID))
		s.Require().NoError(err)
		s.Equal(id.SessionOpen, sess.Status)
	})

	s.Run("returns the existing session on later calls", func() {
		first, err := s.store.FindByListing(ctx, listingID)
		s.Require().NoError(err)

		again, err := s.store.Ensure(ctx, s.newSession(listingID))
		s.Require().NoError(err)
		s.Equal(first.ID, again.ID, "candidate is discarded when a session exists")
	})

	s.Run("concurrent callers converge on one session", func() {
		target := id.NewListingID()
		const goroutines = 50
		ids := make([]id.SessionID, goroutines)

		var wg sync.WaitGroup
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sess, err := s.store.Ensure(ctx, s.newSession(target))
				if err == nil {
					ids[i] = sess.ID
				}
			}(i)
		}
		wg.Wait()

		for i := 1; i < goroutines; i++ {
			s.Equal(ids[0], ids[i])
		}
	})
}

func (s *SessionStoreSuite) TestExecute() {
	ctx := context.Background()
	listingID := id.NewListingID()
	_, err := s.store.Ensure(ctx, s.newSession(listingID))
	s.Require().NoError(err)

	s.Run("mutation is visible to later reads", func() {
		actor := id.NewUserID()
		_, err := s.store.Execute(ctx, listingID,
			func(sess *models.VerificationSession) error { return sess.CanUpload() },
			func(sess *models.VerificationSession) {
				sess.SetSelfie(id.RoleBuyer, actor, "ref-1", testTime())
			},
		)
		s.Require().NoError(err)

		found, err := s.store.FindByListing(ctx, listingID)
		s.Require().NoError(err)
		s.Equal("ref-1", found.BuyerSelfie)
	})

	s.Run("validate failure leaves state untouched", func() {
		_, err := s.store.Execute(ctx, listingID,
			func(sess *models.VerificationSession) error { return sentinel.ErrInvalidState },
			func(sess *models.VerificationSession) { sess.BuyerSelfie = "clobbered" },
		)
		s.ErrorIs(err, sentinel.ErrInvalidState)

		found, err := s.store.FindByListing(ctx, listingID)
		s.Require().NoError(err)
		s.Equal("ref-1", found.BuyerSelfie)
	})

	s.Run("unknown listing yields not found", func() {
		_, err := s.store.Execute(ctx, id.NewListingID(),
			func(sess *models.VerificationSession) error { return nil },
			func(sess *models.VerificationSession) {},
		)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("snapshots never alias live state", func() {
		found, err := s.store.FindByListing(ctx, listingID)
		s.Require().NoError(err)
		found.BuyerSelfie = "mutated copy"

		again, err := s.store.FindByListing(ctx, listingID)
		s.Require().NoError(err)
		s.Equal("ref-1", again.BuyerSelfie)
	})
}

func (s *SessionStoreSuite) TestListExpired() {
	ctx := context.Background()
	now := testTime()

	past := models.NewSession(id.NewSessionID(), id.NewListingID(), now.Add(-time.Minute), now.Add(-25*time.Hour))
	future := models.NewSession(id.NewSessionID(), id.NewListingID(), now.Add(time.Hour), now)
	for _, sess := range []*models.VerificationSession{past, future} {
		_, err := s.store.Ensure(ctx, sess)
		s.Require().NoError(err)
	}

	expired, err := s.store.ListExpired(ctx, now)
	s.Require().NoError(err)
	s.Require().Len(expired, 1)
	s.Equal(past.ListingID, expired[0].ListingID)

	_, err = s.store.Execute(ctx, past.ListingID,
		func(sess *models.VerificationSession) error { return sess.CanClean(now) },
		func(sess *models.VerificationSession) { sess.ApplyCleanup(now) },
	)
	s.Require().NoError(err)

	expired, err = s.store.ListExpired(ctx, now)
	s.Require().NoError(err)
	s.Empty(expired, "terminal sessions drop out of the expiry scan")
}
