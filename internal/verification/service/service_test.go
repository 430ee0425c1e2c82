package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"twinsale/internal/blob"
	listingmodels "twinsale/internal/listing/models"
	listingstore "twinsale/internal/listing/store"
	"twinsale/internal/retention"
	"twinsale/internal/verification/store"
	id "twinsale/pkg/domain"
	dErrors "twinsale/pkg/domain-errors"
	"twinsale/pkg/requestcontext"
)

type VerificationServiceSuite struct {
	suite.Suite
	sessions *store.InMemory
	listings *listingstore.InMemory
	blobs    *blob.Memory
	service  *Service
	seller   id.UserID
	buyer    id.UserID
}

func TestVerificationServiceSuite(t *testing.T) {
	suite.Run(t, new(VerificationServiceSuite))
}

func (s *VerificationServiceSuite) SetupTest() {
	s.sessions = store.NewInMemory()
	s.listings = listingstore.NewInMemory()
	s.blobs = blob.NewMemory()
	s.service = New(s.sessions, s.listings, s.blobs)
	s.seller = id.NewUserID()
	s.buyer = id.NewUserID()
}

func (s *VerificationServiceSuite) asUser(userID id.UserID) context.Context {
	return requestcontext.WithUserID(context.Background(), userID)
}

func (s *VerificationServiceSuite) newListing() id.ListingID {
	l, err := listingmodels.NewAuction(id.NewListingID(), s.seller, "Road bike",
		decimal.RequireFromString("100"), time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.listings.Create(context.Background(), l))
	return l.ID
}

func (s *VerificationServiceSuite) upload(actor id.UserID, listingID id.ListingID, role id.VerificationRole) *Snapshot {
	snap, err := s.service.UploadSelfie(s.asUser(actor), listingID, role, []byte("selfie-of-"+actor.String()))
	s.Require().NoError(err)
	return snap
}

func (s *VerificationServiceSuite) TestUploadSelfie() {
	s.Run("creates the session lazily on first upload", func() {
		listingID := s.newListing()
		snap := s.upload(s.buyer, listingID, id.RoleBuyer)

		s.Equal(id.SessionOpen, snap.Session.Status)
		s.NotEmpty(snap.Session.BuyerSelfie)
		s.Empty(snap.Session.SellerSelfie)
		s.False(snap.MutuallyVerified)
		s.Equal(1, s.blobs.Len())
	})

	s.Run("second side completes the handshake", func() {
		listingID := s.newListing()
		s.upload(s.buyer, listingID, id.RoleBuyer)
		snap := s.upload(s.seller, listingID, id.RoleSeller)

		s.True(snap.MutuallyVerified)
	})

	s.Run("one side never affects the other slot", func() {
		listingID := s.newListing()
		s.upload(s.seller, listingID, id.RoleSeller)
		snap := s.upload(s.seller, listingID, id.RoleSeller)

		s.Empty(snap.Session.BuyerSelfie)
		s.NotEmpty(snap.Session.SellerSelfie)
	})

	s.Run("replacing a selfie deletes the superseded blob", func() {
		listingID := s.newListing()
		s.upload(s.buyer, listingID, id.RoleBuyer)
		first := s.blobs.Len()
		s.upload(s.buyer, listingID, id.RoleBuyer)

		s.Equal(first, s.blobs.Len(), "old blob removed when replaced")
	})

	s.Run("rejects anonymous callers", func() {
		listingID := s.newListing()
		_, err := s.service.UploadSelfie(context.Background(), listingID, id.RoleBuyer, []byte("x"))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects empty image", func() {
		listingID := s.newListing()
		_, err := s.service.UploadSelfie(s.asUser(s.buyer), listingID, id.RoleBuyer, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects unknown listing", func() {
		_, err := s.service.UploadSelfie(s.asUser(s.buyer), id.NewListingID(), id.RoleBuyer, []byte("x"))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("only the seller may claim the seller role", func() {
		listingID := s.newListing()
		_, err := s.service.UploadSelfie(s.asUser(s.buyer), listingID, id.RoleSeller, []byte("x"))
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("rejects upload after completion and leaves no blob behind", func() {
		listingID := s.newListing()
		s.upload(s.buyer, listingID, id.RoleBuyer)
		s.upload(s.seller, listingID, id.RoleSeller)
		_, err := s.service.CompleteTransaction(s.asUser(s.buyer), listingID)
		s.Require().NoError(err)

		before := s.blobs.Len()
		_, err = s.service.UploadSelfie(s.asUser(s.buyer), listingID, id.RoleBuyer, []byte("late"))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal(before, s.blobs.Len(), "rejected upload must not leave an orphan blob")
	})
}

func (s *VerificationServiceSuite) TestMeetupLocationGating() {
	s.Run("location hidden until mutually verified", func() {
		listingID := s.newListing()
		s.upload(s.buyer, listingID, id.RoleBuyer)
		_, err := s.service.SetMeetupLocation(s.asUser(s.buyer), listingID, "Central station, platform 4")
		s.Require().NoError(err)

		snap, err := s.service.GetSession(s.asUser(s.buyer), listingID)
		s.Require().NoError(err)
		s.False(snap.MutuallyVerified)
		s.Empty(snap.MeetupLocation)
	})

	s.Run("location disclosed to participants once both verify", func() {
		listingID := s.newListing()
		s.upload(s.buyer, listingID, id.RoleBuyer)
		s.upload(s.seller, listingID, id.RoleSeller)
		_, err := s.service.SetMeetupLocation(s.asUser(s.seller), listingID, "Central station, platform 4")
		s.Require().NoError(err)

		snap, err := s.service.GetSession(s.asUser(s.buyer), listingID)
		s.Require().NoError(err)
		s.True(snap.MutuallyVerified)
		s.Equal("Central station, platform 4", snap.MeetupLocation)
	})

	s.Run("location stays hidden from outsiders", func() {
		listingID := s.newListing()
		s.upload(s.buyer, listingID, id.RoleBuyer)
		s.upload(s.seller, listingID, id.RoleSeller)
		_, err := s.service.SetMeetupLocation(s.asUser(s.seller), listingID, "Central station")
		s.Require().NoError(err)

		snap, err := s.service.GetSession(s.asUser(id.NewUserID()), listingID)
		s.Require().NoError(err)
		s.Empty(snap.MeetupLocation)
	})

	s.Run("only participants may set the location", func() {
		listingID := s.newListing()
		s.upload(s.buyer, listingID, id.RoleBuyer)

		_, err := s.service.SetMeetupLocation(s.asUser(id.NewUserID()), listingID, "Somewhere")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *VerificationServiceSuite) TestCompleteTransaction() {
	s.Run("rejects before mutual verification", func() {
		listingID := s.newListing()
		s.upload(s.buyer, listingID, id.RoleBuyer)

		_, err := s.service.CompleteTransaction(s.asUser(s.buyer), listingID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("rejects non-participants", func() {
		listingID := s.newListing()
		s.upload(s.buyer, listingID, id.RoleBuyer)
		s.upload(s.seller, listingID, id.RoleSeller)

		_, err := s.service.CompleteTransaction(s.asUser(id.NewUserID()), listingID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("wipes selfies, marks session completed and listing sold", func() {
		listingID := s.newListing()
		s.upload(s.buyer, listingID, id.RoleBuyer)
		s.upload(s.seller, listingID, id.RoleSeller)

		snap, err := s.service.CompleteTransaction(s.asUser(s.seller), listingID)
		s.Require().NoError(err)
		s.Equal(id.SessionCompleted, snap.Session.Status)
		s.Empty(snap.Session.BuyerSelfie)
		s.Empty(snap.Session.SellerSelfie)
		s.False(snap.MutuallyVerified, "verification is revoked permanently on completion")

		l, err := s.listings.FindByID(context.Background(), listingID)
		s.Require().NoError(err)
		s.Equal(id.ListingSold, l.Status)

		s.Zero(s.blobs.Len(), "no selfie blob survives completion")
	})

	s.Run("is one-shot", func() {
		listingID := s.newListing()
		s.upload(s.buyer, listingID, id.RoleBuyer)
		s.upload(s.seller, listingID, id.RoleSeller)

		_, err := s.service.CompleteTransaction(s.asUser(s.buyer), listingID)
		s.Require().NoError(err)
		_, err = s.service.CompleteTransaction(s.asUser(s.buyer), listingID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

// A retention sweep of an expired-but-verified session races the finalizer.
// Whoever wins, the listing and session must land together: a rejected
// completion never leaves the listing sold, and no selfie blob survives.
func (s *VerificationServiceSuite) TestFinalizerAndSweeperNeverSplitTheWrite() {
	sharedTx := newInMemoryStoreTx()
	svc := New(s.sessions, s.listings, s.blobs,
		WithTx(sharedTx),
		WithSessionTTL(time.Minute),
	)
	sweeper := retention.NewSweeper(s.sessions, s.blobs, retention.WithTx(sharedTx))
	sweepAt := time.Now().UTC().Add(time.Hour)

	for i := 0; i < 25; i++ {
		listingID := s.newListing()
		_, err := svc.UploadSelfie(s.asUser(s.buyer), listingID, id.RoleBuyer, []byte("buyer selfie"))
		s.Require().NoError(err)
		_, err = svc.UploadSelfie(s.asUser(s.seller), listingID, id.RoleSeller, []byte("seller selfie"))
		s.Require().NoError(err)

		var (
			wg          sync.WaitGroup
			completeErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, completeErr = svc.CompleteTransaction(s.asUser(s.buyer), listingID)
		}()
		go func() {
			defer wg.Done()
			sweeper.SweepAt(context.Background(), sweepAt)
		}()
		wg.Wait()

		l, err := s.listings.FindByID(context.Background(), listingID)
		s.Require().NoError(err)
		got, err := s.sessions.FindByListing(context.Background(), listingID)
		s.Require().NoError(err)

		if completeErr != nil {
			s.Require().True(dErrors.HasCode(completeErr, dErrors.CodeConflict))
			s.Equal(id.ListingActive, l.Status, "rejected completion must not leave the listing sold")
			s.Equal(id.SessionCleaned, got.Status)
		} else {
			s.Equal(id.ListingSold, l.Status)
			s.Equal(id.SessionCompleted, got.Status)
		}
		s.Zero(s.blobs.Len(), "every selfie blob is destroyed whichever side wins")
	}
}
