package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "twinsale/pkg/domain"
	dErrors "twinsale/pkg/domain-errors"
)

// Listing is a single sale offer. Kind is immutable after creation; Status
// only moves active -> sold. The auction fields and the raffle fields are
// mutually exclusive, selected by Kind.
type Listing struct {
	ID          id.ListingID
	SellerID    id.UserID
	Title       string
	Description string
	Category    string
	ImageURL    string
	Kind        id.ListingKind
	Status      id.ListingStatus

	// Auction state. CurrentPrice never decreases; BidCount counts accepted
	// bids only.
	CurrentPrice decimal.Decimal
	BidCount     int

	// Raffle state. TicketsSold never exceeds TotalTickets.
	TicketPrice  decimal.Decimal
	TotalTickets int
	TicketsSold  int
	Winner       *id.UserID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAuction creates an active auction listing at the seller's starting price.
func NewAuction(listingID id.ListingID, seller id.UserID, title string, startingPrice decimal.Decimal, now time.Time) (*Listing, error) {
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "title is required")
	}
	if startingPrice.IsNegative() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "starting price cannot be negative")
	}
	return &Listing{
		ID:           listingID,
		SellerID:     seller,
		Title:        title,
		Kind:         id.KindAuction,
		Status:       id.ListingActive,
		CurrentPrice: startingPrice,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NewRaffle creates an active raffle listing with fixed ticket price and
// capacity.
func NewRaffle(listingID id.ListingID, seller id.UserID, title string, ticketPrice decimal.Decimal, totalTickets int, now time.Time) (*Listing, error) {
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "title is required")
	}
	if !ticketPrice.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "ticket price must be positive")
	}
	if totalTickets <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "total tickets must be positive")
	}
	return &Listing{
		ID:           listingID,
		SellerID:     seller,
		Title:        title,
		Kind:         id.KindRaffle,
		Status:       id.ListingActive,
		TicketPrice:  ticketPrice,
		TotalTickets: totalTickets,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CanBid validates a bid proposal against current state. The caller must hold
// the listing's serialization point (store Execute) so the check stays valid
// through the mutation.
func (l *Listing) CanBid(amount decimal.Decimal) error {
	if l.Kind != id.KindAuction {
		return dErrors.New(dErrors.CodeInvalidInput, "listing is not an auction")
	}
	if l.Status != id.ListingActive {
		return dErrors.New(dErrors.CodeInvariantViolation, "listing is no longer active")
	}
	if amount.Cmp(l.CurrentPrice) <= 0 {
		return dErrors.New(dErrors.CodeConflict, "bid too low")
	}
	return nil
}

// ApplyBid records an accepted bid. Call only after CanBid under the same
// lock.
func (l *Listing) ApplyBid(amount decimal.Decimal, now time.Time) {
	l.CurrentPrice = amount
	l.BidCount++
	l.UpdatedAt = now
}

// CanSellTicket validates a ticket purchase against remaining capacity.
func (l *Listing) CanSellTicket() error {
	if l.Kind != id.KindRaffle {
		return dErrors.New(dErrors.CodeInvalidInput, "listing is not a raffle")
	}
	if l.Status != id.ListingActive {
		return dErrors.New(dErrors.CodeInvariantViolation, "listing is no longer active")
	}
	if l.TicketsSold >= l.TotalTickets {
		return dErrors.New(dErrors.CodeConflict, "sold out")
	}
	return nil
}

// ApplyTicketSale records one sold ticket. Call only after CanSellTicket
// under the same lock.
func (l *Listing) ApplyTicketSale(now time.Time) {
	l.TicketsSold++
	l.UpdatedAt = now
}

// CanDraw validates a winner draw request.
func (l *Listing) CanDraw(requester id.UserID) error {
	if l.Kind != id.KindRaffle {
		return dErrors.New(dErrors.CodeInvalidInput, "listing is not a raffle")
	}
	if l.SellerID != requester {
		return dErrors.New(dErrors.CodeForbidden, "only the seller can draw a winner")
	}
	if l.Status != id.ListingActive {
		return dErrors.New(dErrors.CodeConflict, "winner already drawn")
	}
	return nil
}

// ApplyWinner records the drawn winner and closes the raffle.
func (l *Listing) ApplyWinner(winner id.UserID, now time.Time) {
	l.Winner = &winner
	l.Status = id.ListingSold
	l.UpdatedAt = now
}

// CanMarkSold validates the transaction-finalizer transition.
func (l *Listing) CanMarkSold() error {
	if l.Status != id.ListingActive {
		return dErrors.New(dErrors.CodeConflict, "listing is already sold")
	}
	return nil
}

// MarkSold flips the listing to sold.
func (l *Listing) MarkSold(now time.Time) {
	l.Status = id.ListingSold
	l.UpdatedAt = now
}

// CanModify validates an owner-driven edit or removal. Kind never changes:
// switching mechanism would orphan bids or entries.
func (l *Listing) CanModify(actor id.UserID) error {
	if l.SellerID != actor {
		return dErrors.New(dErrors.CodeForbidden, "only the seller can modify this listing")
	}
	if l.Status != id.ListingActive {
		return dErrors.New(dErrors.CodeConflict, "listing is no longer active")
	}
	return nil
}

// Clone returns a deep copy so store snapshots never alias live state.
func (l *Listing) Clone() *Listing {
	cp := *l
	if l.Winner != nil {
		w := *l.Winner
		cp.Winner = &w
	}
	return &cp
}
