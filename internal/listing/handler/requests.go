package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"twinsale/internal/listing/models"
	id "twinsale/pkg/domain"
)

// createListingRequest covers both sale mechanisms; kind selects which price
// fields apply. Amounts travel as decimal strings to avoid float drift.
type createListingRequest struct {
	Kind          string              `json:"kind"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Category      string              `json:"category"`
	ImageURL      string              `json:"image_url"`
	StartingPrice decimal.NullDecimal `json:"starting_price"`
	TicketPrice   decimal.NullDecimal `json:"ticket_price"`
	TotalTickets  int                 `json:"total_tickets"`
}

type updateListingRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type placeBidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// listingResponse is the snapshot echoed back after every mutation so the
// caller can render state without re-querying.
type listingResponse struct {
	ID          string `json:"id"`
	SellerID    string `json:"seller_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`

	CurrentPrice *string `json:"current_price,omitempty"`
	BidCount     *int    `json:"bid_count,omitempty"`

	TicketPrice  *string `json:"ticket_price,omitempty"`
	TotalTickets *int    `json:"total_tickets,omitempty"`
	TicketsSold  *int    `json:"tickets_sold,omitempty"`
	WinnerID     *string `json:"winner_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toListingResponse(l *models.Listing) listingResponse {
	resp := listingResponse{
		ID:          l.ID.String(),
		SellerID:    l.SellerID.String(),
		Title:       l.Title,
		Description: l.Description,
		Category:    l.Category,
		ImageURL:    l.ImageURL,
		Kind:        l.Kind.String(),
		Status:      l.Status.String(),
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
	switch l.Kind {
	case id.KindAuction:
		price := l.CurrentPrice.String()
		resp.CurrentPrice = &price
		count := l.BidCount
		resp.BidCount = &count
	case id.KindRaffle:
		price := l.TicketPrice.String()
		resp.TicketPrice = &price
		total := l.TotalTickets
		resp.TotalTickets = &total
		sold := l.TicketsSold
		resp.TicketsSold = &sold
		if l.Winner != nil {
			w := l.Winner.String()
			resp.WinnerID = &w
		}
	}
	return resp
}

func toListingResponses(listings []*models.Listing) []listingResponse {
	out := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, toListingResponse(l))
	}
	return out
}
