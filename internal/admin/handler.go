// Package admin exposes operational read-only endpoints, gated by the admin
// token middleware.
package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	id "twinsale/pkg/domain"
	dErrors "twinsale/pkg/domain-errors"
	"twinsale/pkg/platform/httputil"
)

// ListingCounter reports listing-domain table sizes.
type ListingCounter interface {
	Counts(ctx context.Context) (listings, bids, entries int, err error)
}

// SessionCounter reports verification sessions per status.
type SessionCounter interface {
	Counts(ctx context.Context) (map[id.SessionStatus]int, error)
}

// Handler serves marketplace totals for dashboards.
type Handler struct {
	listings ListingCounter
	sessions SessionCounter
	logger   *slog.Logger
}

func New(listings ListingCounter, sessions SessionCounter, logger *slog.Logger) *Handler {
	return &Handler{listings: listings, sessions: sessions, logger: logger}
}

// Register registers the admin routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/stats", h.handleStats)
}

type statsResponse struct {
	Listings          int            `json:"listings"`
	Bids              int            `json:"bids"`
	RaffleEntries     int            `json:"raffle_entries"`
	SessionsByStatus  map[string]int `json:"sessions_by_status"`
	OpenSessions      int            `json:"open_sessions"`
	CompletedSessions int            `json:"completed_sessions"`
	CleanedSessions   int            `json:"cleaned_sessions"`
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	listings, bids, entries, err := h.listings.Counts(ctx)
	if err != nil {
		h.writeInternal(w, r, err)
		return
	}
	sessions, err := h.sessions.Counts(ctx)
	if err != nil {
		h.writeInternal(w, r, err)
		return
	}

	resp := statsResponse{
		Listings:          listings,
		Bids:              bids,
		RaffleEntries:     entries,
		SessionsByStatus:  make(map[string]int, len(sessions)),
		OpenSessions:      sessions[id.SessionOpen],
		CompletedSessions: sessions[id.SessionCompleted],
		CleanedSessions:   sessions[id.SessionCleaned],
	}
	for status, n := range sessions {
		resp.SessionsByStatus[status.String()] = n
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "failed to gather stats",
		slog.String("error", err.Error()))
	httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to gather stats"))
}
