package service

import (
	"context"

	"twinsale/internal/listing/models"
	id "twinsale/pkg/domain"
)

// ListingStore is the persistence surface the listing service needs. Both the
// in-memory and the Postgres stores implement it.
//
// Execute is the per-listing serialization point: implementations hold a lock
// (mutex or SELECT ... FOR UPDATE) across validate and mutate so conditional
// updates cannot act on a stale read. A plain read-then-write is not a valid
// implementation.
type ListingStore interface {
	Create(ctx context.Context, l *models.Listing) error
	FindByID(ctx context.Context, listingID id.ListingID) (*models.Listing, error)
	ListActive(ctx context.Context, category string) ([]*models.Listing, error)
	Execute(ctx context.Context, listingID id.ListingID,
		validate func(*models.Listing) error,
		mutate func(*models.Listing)) (*models.Listing, error)
	Delete(ctx context.Context, listingID id.ListingID) error

	AppendBid(ctx context.Context, b *models.Bid) error
	ListBids(ctx context.Context, listingID id.ListingID) ([]*models.Bid, error)
	AppendEntry(ctx context.Context, e *models.RaffleEntry) error
	ListEntries(ctx context.Context, listingID id.ListingID) ([]*models.RaffleEntry, error)
}

// StoreTx provides a transactional boundary for multi-write operations
// (counter update + record append). Implementations wrap a database
// transaction or, in-memory, a coarse lock.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}
