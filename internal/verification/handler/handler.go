// Package handler exposes the verification handshake and the transaction
// finalizer over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"twinsale/internal/verification/service"
	id "twinsale/pkg/domain"
	dErrors "twinsale/pkg/domain-errors"
	"twinsale/pkg/platform/httputil"
)

// Service is the verification surface the handler needs.
type Service interface {
	UploadSelfie(ctx context.Context, listingID id.ListingID, role id.VerificationRole, image []byte) (*service.Snapshot, error)
	GetSession(ctx context.Context, listingID id.ListingID) (*service.Snapshot, error)
	SetMeetupLocation(ctx context.Context, listingID id.ListingID, location string) (*service.Snapshot, error)
	CompleteTransaction(ctx context.Context, listingID id.ListingID) (*service.Snapshot, error)
}

// Handler handles verification endpoints, nested under a listing.
type Handler struct {
	verification Service
	logger       *slog.Logger
}

func New(verification Service, logger *slog.Logger) *Handler {
	return &Handler{verification: verification, logger: logger}
}

// Register registers the verification routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/listings/{listingID}/verification", h.handleGetSession)
	r.Post("/listings/{listingID}/verification/selfie", h.handleUploadSelfie)
	r.Put("/listings/{listingID}/verification/location", h.handleSetLocation)
	r.Post("/listings/{listingID}/verification/complete", h.handleComplete)
}

// uploadSelfieRequest carries the captured image as base64; encoding/json
// decodes []byte from base64 strings natively.
type uploadSelfieRequest struct {
	Role  string `json:"role"`
	Image []byte `json:"image"`
}

type setLocationRequest struct {
	Location string `json:"location"`
}

// sessionResponse is the session snapshot. Selfie content never leaves the
// server; only presence flags are exposed. MeetupLocation appears only when
// the caller has passed the mutual-verification gate.
type sessionResponse struct {
	ListingID        string    `json:"listing_id"`
	Status           string    `json:"status"`
	BuyerVerified    bool      `json:"buyer_verified"`
	SellerVerified   bool      `json:"seller_verified"`
	MutuallyVerified bool      `json:"mutually_verified"`
	MeetupLocation   string    `json:"meetup_location,omitempty"`
	ExpiresAt        time.Time `json:"expires_at"`
}

func toSessionResponse(snap *service.Snapshot) sessionResponse {
	sess := snap.Session
	return sessionResponse{
		ListingID:        sess.ListingID.String(),
		Status:           sess.Status.String(),
		BuyerVerified:    sess.BuyerSelfie != "",
		SellerVerified:   sess.SellerSelfie != "",
		MutuallyVerified: snap.MutuallyVerified,
		MeetupLocation:   snap.MeetupLocation,
		ExpiresAt:        sess.ExpiresAt,
	}
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	listingID, ok := h.listingID(w, r)
	if !ok {
		return
	}
	snap, err := h.verification.GetSession(r.Context(), listingID)
	if err != nil {
		h.writeServiceError(w, r, "get session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(snap))
}

func (h *Handler) handleUploadSelfie(w http.ResponseWriter, r *http.Request) {
	listingID, ok := h.listingID(w, r)
	if !ok {
		return
	}
	var req uploadSelfieRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	role, err := id.ParseVerificationRole(req.Role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	snap, err := h.verification.UploadSelfie(r.Context(), listingID, role, req.Image)
	if err != nil {
		h.writeServiceError(w, r, "upload selfie", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(snap))
}

func (h *Handler) handleSetLocation(w http.ResponseWriter, r *http.Request) {
	listingID, ok := h.listingID(w, r)
	if !ok {
		return
	}
	var req setLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	snap, err := h.verification.SetMeetupLocation(r.Context(), listingID, req.Location)
	if err != nil {
		h.writeServiceError(w, r, "set meetup location", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(snap))
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	listingID, ok := h.listingID(w, r)
	if !ok {
		return
	}
	snap, err := h.verification.CompleteTransaction(r.Context(), listingID)
	if err != nil {
		h.writeServiceError(w, r, "complete transaction", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(snap))
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
		h.logger.ErrorContext(r.Context(), "verification operation failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
	}
	httputil.WriteError(w, err)
}
