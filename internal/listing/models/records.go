package models

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	id "twinsale/pkg/domain"
)

// Bid is an accepted price proposal on an auction listing. Append-only:
// never mutated, never deleted. IDs are ULIDs so the table sorts by time.
type Bid struct {
	ID        string
	ListingID id.ListingID
	BidderID  id.UserID
	Amount    decimal.Decimal
	PlacedAt  time.Time
}

// NewBid builds an accepted-bid record.
func NewBid(listingID id.ListingID, bidder id.UserID, amount decimal.Decimal, now time.Time) *Bid {
	return &Bid{
		ID:        newRecordID(now),
		ListingID: listingID,
		BidderID:  bidder,
		Amount:    amount,
		PlacedAt:  now,
	}
}

// RaffleEntry is one purchased chance in a raffle. Append-only; a buyer may
// hold several entries and each counts in the draw.
type RaffleEntry struct {
	ID          string
	ListingID   id.ListingID
	BuyerID     id.UserID
	PurchasedAt time.Time
}

// NewRaffleEntry builds an accepted-purchase record.
func NewRaffleEntry(listingID id.ListingID, buyer id.UserID, now time.Time) *RaffleEntry {
	return &RaffleEntry{
		ID:          newRecordID(now),
		ListingID:   listingID,
		BuyerID:     buyer,
		PurchasedAt: now,
	}
}

func newRecordID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}
