package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"twinsale/internal/listing/service"
	"twinsale/internal/listing/store"
	id "twinsale/pkg/domain"
	"twinsale/pkg/testutil"
)

type ListingHandlerSuite struct {
	suite.Suite
	router *chi.Mux
	seller id.UserID
}

func TestListingHandlerSuite(t *testing.T) {
	suite.Run(t, new(ListingHandlerSuite))
}

func (s *ListingHandlerSuite) SetupTest() {
	svc := service.New(store.NewInMemory())
	h := New(svc, slog.Default())
	s.router = chi.NewRouter()
	h.Register(s.router)
	s.seller = id.NewUserID()
}

func (s *ListingHandlerSuite) createListing(body map[string]any) listingResponse {
	req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPost, "/listings", body), s.seller)
	rr := testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	return *testutil.UnmarshalResponse[listingResponse](s.T(), rr)
}

func (s *ListingHandlerSuite) createAuction(startingPrice string) listingResponse {
	return s.createListing(map[string]any{
		"kind":           "auction",
		"title":          "Road bike",
		"category":       "sports",
		"starting_price": startingPrice,
	})
}

func (s *ListingHandlerSuite) createRaffle(totalTickets int) listingResponse {
	return s.createListing(map[string]any{
		"kind":          "raffle",
		"title":         "Game console",
		"ticket_price":  "5",
		"total_tickets": totalTickets,
	})
}

func (s *ListingHandlerSuite) TestCreate() {
	s.Run("creates an auction", func() {
		resp := s.createAuction("100")
		s.Equal("auction", resp.Kind)
		s.Equal("active", resp.Status)
		s.Require().NotNil(resp.CurrentPrice)
		s.Equal("100", *resp.CurrentPrice)
		s.Nil(resp.TicketPrice)
	})

	s.Run("creates a raffle", func() {
		resp := s.createRaffle(10)
		s.Equal("raffle", resp.Kind)
		s.Require().NotNil(resp.TotalTickets)
		s.Equal(10, *resp.TotalTickets)
		s.Nil(resp.CurrentPrice)
	})

	s.Run("rejects unknown kind", func() {
		req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPost, "/listings",
			map[string]any{"kind": "lottery", "title": "x"}), s.seller)
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusBadRequest, rr.Code)
		s.Equal("invalid_input", testutil.UnmarshalErrorResponse(s.T(), rr)["error"])
	})

	s.Run("rejects anonymous callers", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/listings",
			map[string]any{"kind": "auction", "title": "x", "starting_price": "1"})
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusUnauthorized, rr.Code)
	})
}

func (s *ListingHandlerSuite) TestGetAndList() {
	created := s.createAuction("100")

	s.Run("returns the listing by id", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/listings/"+created.ID)
		rr := testutil.DoRequest(s.router, req)
		s.Require().Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[listingResponse](s.T(), rr)
		s.Equal(created.ID, resp.ID)
	})

	s.Run("404 for unknown listing", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/listings/"+id.NewListingID().String())
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusNotFound, rr.Code)
	})

	s.Run("400 for malformed id", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/listings/not-a-uuid")
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("filters the catalog by category", func() {
		s.createListing(map[string]any{
			"kind": "auction", "title": "Lamp", "category": "furniture", "starting_price": "20",
		})
		req := testutil.NewRequest(s.T(), http.MethodGet, "/listings?category=furniture")
		rr := testutil.DoRequest(s.router, req)
		s.Require().Equal(http.StatusOK, rr.Code)

		resp := testutil.UnmarshalResponse[struct {
			Listings []listingResponse `json:"listings"`
		}](s.T(), rr)
		s.Len(resp.Listings, 1)
		s.Equal("Lamp", resp.Listings[0].Title)
	})
}

func (s *ListingHandlerSuite) TestPlaceBid() {
	created := s.createAuction("100")
	bidder := id.NewUserID()

	bid := func(amount string) *http.Request {
		return testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPost,
			fmt.Sprintf("/listings/%s/bids", created.ID),
			map[string]any{"amount": amount}), bidder)
	}

	s.Run("accepts a higher bid and echoes the new state", func() {
		rr := testutil.DoRequest(s.router, bid("150"))
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		resp := testutil.UnmarshalResponse[listingResponse](s.T(), rr)
		s.Equal("150", *resp.CurrentPrice)
		s.Equal(1, *resp.BidCount)
	})

	s.Run("409 when the bid is no longer the highest", func() {
		rr := testutil.DoRequest(s.router, bid("120"))
		s.Equal(http.StatusConflict, rr.Code)
		s.Equal("conflict", testutil.UnmarshalErrorResponse(s.T(), rr)["error"])
	})
}

func (s *ListingHandlerSuite) TestRaffleFlow() {
	created := s.createRaffle(2)
	buyer := id.NewUserID()

	buy := func(actor id.UserID) *http.Request {
		return testutil.WithActor(testutil.NewRequest(s.T(), http.MethodPost,
			fmt.Sprintf("/listings/%s/tickets", created.ID)), actor)
	}

	s.Run("sells until capacity, then 409", func() {
		rr := testutil.DoRequest(s.router, buy(buyer))
		s.Require().Equal(http.StatusOK, rr.Code)
		rr = testutil.DoRequest(s.router, buy(buyer))
		s.Require().Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[listingResponse](s.T(), rr)
		s.Equal(2, *resp.TicketsSold)

		rr = testutil.DoRequest(s.router, buy(buyer))
		s.Equal(http.StatusConflict, rr.Code)
	})

	s.Run("draw is seller-only, then closes the raffle", func() {
		draw := func(actor id.UserID) *http.Request {
			return testutil.WithActor(testutil.NewRequest(s.T(), http.MethodPost,
				fmt.Sprintf("/listings/%s/draw", created.ID)), actor)
		}

		rr := testutil.DoRequest(s.router, draw(buyer))
		s.Equal(http.StatusForbidden, rr.Code)

		rr = testutil.DoRequest(s.router, draw(s.seller))
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		resp := testutil.UnmarshalResponse[listingResponse](s.T(), rr)
		s.Equal("sold", resp.Status)
		s.Require().NotNil(resp.WinnerID)
		s.Equal(buyer.String(), *resp.WinnerID)
	})
}

func (s *ListingHandlerSuite) TestUpdateAndRemove() {
	created := s.createAuction("100")

	s.Run("owner updates the listing", func() {
		req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPut,
			"/listings/"+created.ID,
			map[string]any{"title": "Faster road bike", "category": "sports"}), s.seller)
		rr := testutil.DoRequest(s.router, req)
		s.Require().Equal(http.StatusOK, rr.Code)
		s.Equal("Faster road bike", testutil.UnmarshalResponse[listingResponse](s.T(), rr).Title)
	})

	s.Run("non-owner cannot remove", func() {
		req := testutil.WithActor(testutil.NewRequest(s.T(), http.MethodDelete,
			"/listings/"+created.ID), id.NewUserID())
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusForbidden, rr.Code)
	})

	s.Run("owner removes the listing", func() {
		req := testutil.WithActor(testutil.NewRequest(s.T(), http.MethodDelete,
			"/listings/"+created.ID), s.seller)
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusNoContent, rr.Code)
	})
}
