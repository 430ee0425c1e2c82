package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"twinsale/internal/blob"
	listingmodels "twinsale/internal/listing/models"
	listingstore "twinsale/internal/listing/store"
	"twinsale/internal/verification/service"
	"twinsale/internal/verification/store"
	id "twinsale/pkg/domain"
	"twinsale/pkg/testutil"
)

type VerificationHandlerSuite struct {
	suite.Suite
	router   *chi.Mux
	listings *listingstore.InMemory
	seller   id.UserID
	buyer    id.UserID
}

func TestVerificationHandlerSuite(t *testing.T) {
	suite.Run(t, new(VerificationHandlerSuite))
}

func (s *VerificationHandlerSuite) SetupTest() {
	s.listings = listingstore.NewInMemory()
	svc := service.New(store.NewInMemory(), s.listings, blob.NewMemory())
	h := New(svc, slog.Default())
	s.router = chi.NewRouter()
	h.Register(s.router)
	s.seller = id.NewUserID()
	s.buyer = id.NewUserID()
}

func (s *VerificationHandlerSuite) newListing() id.ListingID {
	l, err := listingmodels.NewAuction(id.NewListingID(), s.seller, "Road bike",
		decimal.RequireFromString("100"), time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.listings.Create(context.Background(), l))
	return l.ID
}

func (s *VerificationHandlerSuite) upload(actor id.UserID, listingID id.ListingID, role string) sessionResponse {
	req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPost,
		fmt.Sprintf("/listings/%s/verification/selfie", listingID),
		map[string]any{"role": role, "image": []byte("selfie bytes")}), actor)
	rr := testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	return *testutil.UnmarshalResponse[sessionResponse](s.T(), rr)
}

func (s *VerificationHandlerSuite) TestUploadSelfie() {
	s.Run("first upload opens the session", func() {
		listingID := s.newListing()
		resp := s.upload(s.buyer, listingID, "buyer")

		s.Equal("open", resp.Status)
		s.True(resp.BuyerVerified)
		s.False(resp.SellerVerified)
		s.False(resp.MutuallyVerified)
	})

	s.Run("both uploads flip the mutual flag", func() {
		listingID := s.newListing()
		s.upload(s.buyer, listingID, "buyer")
		resp := s.upload(s.seller, listingID, "seller")

		s.True(resp.MutuallyVerified)
	})

	s.Run("rejects an unknown role", func() {
		listingID := s.newListing()
		req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPost,
			fmt.Sprintf("/listings/%s/verification/selfie", listingID),
			map[string]any{"role": "witness", "image": []byte("x")}), s.buyer)
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("rejects anonymous callers", func() {
		listingID := s.newListing()
		req := testutil.NewJSONRequest(s.T(), http.MethodPost,
			fmt.Sprintf("/listings/%s/verification/selfie", listingID),
			map[string]any{"role": "buyer", "image": []byte("x")})
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusUnauthorized, rr.Code)
	})
}

func (s *VerificationHandlerSuite) TestLocationGating() {
	listingID := s.newListing()
	s.upload(s.buyer, listingID, "buyer")

	setLocation := func(actor id.UserID) *http.Request {
		return testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPut,
			fmt.Sprintf("/listings/%s/verification/location", listingID),
			map[string]any{"location": "Central station, platform 4"}), actor)
	}
	getSession := func(actor id.UserID) sessionResponse {
		req := testutil.WithActor(testutil.NewRequest(s.T(), http.MethodGet,
			fmt.Sprintf("/listings/%s/verification", listingID)), actor)
		rr := testutil.DoRequest(s.router, req)
		s.Require().Equal(http.StatusOK, rr.Code)
		return *testutil.UnmarshalResponse[sessionResponse](s.T(), rr)
	}

	s.Run("participant sets the location but nobody sees it yet", func() {
		rr := testutil.DoRequest(s.router, setLocation(s.buyer))
		s.Require().Equal(http.StatusOK, rr.Code)
		s.Empty(getSession(s.buyer).MeetupLocation)
	})

	s.Run("location appears once both sides verified", func() {
		s.upload(s.seller, listingID, "seller")
		s.Equal("Central station, platform 4", getSession(s.buyer).MeetupLocation)
		s.Equal("Central station, platform 4", getSession(s.seller).MeetupLocation)
	})

	s.Run("outsiders never see the location", func() {
		s.Empty(getSession(id.NewUserID()).MeetupLocation)
	})
}

func (s *VerificationHandlerSuite) TestCompleteTransaction() {
	listingID := s.newListing()
	complete := func(actor id.UserID) *http.Request {
		return testutil.WithActor(testutil.NewRequest(s.T(), http.MethodPost,
			fmt.Sprintf("/listings/%s/verification/complete", listingID)), actor)
	}

	s.Run("409 before mutual verification", func() {
		s.upload(s.buyer, listingID, "buyer")
		rr := testutil.DoRequest(s.router, complete(s.buyer))
		s.Equal(http.StatusConflict, rr.Code)
	})

	s.Run("completes and reports the terminal session", func() {
		s.upload(s.seller, listingID, "seller")
		rr := testutil.DoRequest(s.router, complete(s.buyer))
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		resp := testutil.UnmarshalResponse[sessionResponse](s.T(), rr)
		s.Equal("completed", resp.Status)
		s.False(resp.BuyerVerified)
		s.False(resp.SellerVerified)
		s.False(resp.MutuallyVerified)

		l, err := s.listings.FindByID(context.Background(), listingID)
		s.Require().NoError(err)
		s.Equal(id.ListingSold, l.Status)
	})

	s.Run("404 for a listing with no session", func() {
		req := testutil.WithActor(testutil.NewRequest(s.T(), http.MethodPost,
			fmt.Sprintf("/listings/%s/verification/complete", s.newListing())), s.buyer)
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusNotFound, rr.Code)
	})
}
