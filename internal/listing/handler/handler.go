// Package handler exposes the listing lifecycle and the bid and ticket
// engines over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"twinsale/internal/listing/models"
	"twinsale/internal/listing/service"
	id "twinsale/pkg/domain"
	dErrors "twinsale/pkg/domain-errors"
	"twinsale/pkg/platform/httputil"
)

// Service is the listing surface the handler needs.
type Service interface {
	CreateAuction(ctx context.Context, in service.CreateAuctionInput) (*models.Listing, error)
	CreateRaffle(ctx context.Context, in service.CreateRaffleInput) (*models.Listing, error)
	Get(ctx context.Context, listingID id.ListingID) (*models.Listing, error)
	ListActive(ctx context.Context, category string) ([]*models.Listing, error)
	Update(ctx context.Context, listingID id.ListingID, in service.UpdateInput) (*models.Listing, error)
	Remove(ctx context.Context, listingID id.ListingID) error
	PlaceBid(ctx context.Context, listingID id.ListingID, amount decimal.Decimal) (*models.Listing, error)
	BuyTicket(ctx context.Context, listingID id.ListingID) (*models.Listing, error)
	DrawWinner(ctx context.Context, listingID id.ListingID) (*models.Listing, error)
}

// Handler handles listing endpoints. Routes are registered on an
// already-authenticated router; identity arrives via request context.
type Handler struct {
	listings Service
	logger   *slog.Logger
}

func New(listings Service, logger *slog.Logger) *Handler {
	return &Handler{listings: listings, logger: logger}
}

// Register registers the listing routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/listings", h.handleCreate)
	r.Get("/listings", h.handleList)
	r.Get("/listings/{listingID}", h.handleGet)
	r.Put("/listings/{listingID}", h.handleUpdate)
	r.Delete("/listings/{listingID}", h.handleRemove)
	r.Post("/listings/{listingID}/bids", h.handlePlaceBid)
	r.Post("/listings/{listingID}/tickets", h.handleBuyTicket)
	r.Post("/listings/{listingID}/draw", h.handleDrawWinner)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	kind, err := id.ParseListingKind(req.Kind)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var l *models.Listing
	switch kind {
	case id.KindAuction:
		l, err = h.listings.CreateAuction(r.Context(), service.CreateAuctionInput{
			Title:         req.Title,
			Description:   req.Description,
			Category:      req.Category,
			ImageURL:      req.ImageURL,
			StartingPrice: req.StartingPrice.Decimal,
		})
	case id.KindRaffle:
		if !req.TicketPrice.Valid {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "ticket price is required"))
			return
		}
		l, err = h.listings.CreateRaffle(r.Context(), service.CreateRaffleInput{
			Title:        req.Title,
			Description:  req.Description,
			Category:     req.Category,
			ImageURL:     req.ImageURL,
			TicketPrice:  req.TicketPrice.Decimal,
			TotalTickets: req.TotalTickets,
		})
	}
	if err != nil {
		h.writeServiceError(w, r, "create listing", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toListingResponse(l))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	listings, err := h.listings.ListActive(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		h.writeServiceError(w, r, "list listings", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"listings": toListingResponses(listings)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	listingID, ok := h.listingID(w, r)
	if !ok {
		return
	}
	l, err := h.listings.Get(r.Context(), listingID)
	if err != nil {
		h.writeServiceError(w, r, "get listing", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListingResponse(l))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	listingID, ok := h.listingID(w, r)
	if !ok {
		return
	}
	var req updateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	l, err := h.listings.Update(r.Context(), listingID, service.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		h.writeServiceError(w, r, "update listing", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListingResponse(l))
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	listingID, ok := h.listingID(w, r)
	if !ok {
		return
	}
	if err := h.listings.Remove(r.Context(), listingID); err != nil {
		h.writeServiceError(w, r, "remove listing", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePlaceBid(w http.ResponseWriter, r *http.Request) {
	listingID, ok := h.listingID(w, r)
	if !ok {
		return
	}
	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	l, err := h.listings.PlaceBid(r.Context(), listingID, req.Amount)
	if err != nil {
		h.writeServiceError(w, r, "place bid", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListingResponse(l))
}

func (h *Handler) handleBuyTicket(w http.ResponseWriter, r *http.Request) {
	listingID, ok := h.listingID(w, r)
	if !ok {
		return
	}
	l, err := h.listings.BuyTicket(r.Context(), listingID)
	if err != nil {
		h.writeServiceError(w, r, "buy ticket", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListingResponse(l))
}

func (h *Handler) handleDrawWinner(w http.ResponseWriter, r *http.Request) {
	listingID, ok := h.listingID(w, r)
	if !ok {
		return
	}
	l, err := h.listings.DrawWinner(r.Context(), listingID)
	if err != nil {
		h.writeServiceError(w, r, "draw winner", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListingResponse(l))
}

func (h *Handler) listingID(w http.ResponseWriter, r *http.Request) (id.ListingID, bool) {
	listingID, err := id.ParseListingID(chi.URLParam(r, "listingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ListingID{}, false
	}
	return listingID, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(r.Context(), "listing operation failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
	}
	httputil.WriteError(w, err)
}
