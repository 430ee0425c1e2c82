package service

import (
	"context"
	"time"

	listingmodels "twinsale/internal/listing/models"
	"twinsale/internal/verification/models"
	id "twinsale/pkg/domain"
)

// SessionStore is the persistence surface the verification service needs.
//
// Execute is the per-session serialization point: implementations hold a lock
// (mutex or SELECT ... FOR UPDATE) across validate and mutate so uploads,
// completion and sweeper cleanup on the same listing cannot interleave.
type SessionStore interface {
	Ensure(ctx context.Context, candidate *models.VerificationSession) (*models.VerificationSession, error)
	FindByListing(ctx context.Context, listingID id.ListingID) (*models.VerificationSession, error)
	Execute(ctx context.Context, listingID id.ListingID,
		validate func(*models.VerificationSession) error,
		mutate func(*models.VerificationSession)) (*models.VerificationSession, error)
	ListExpired(ctx context.Context, now time.Time) ([]*models.VerificationSession, error)
}

// ListingStore is the slice of listing persistence the finalizer needs to
// flip a listing to sold inside the same transaction as the session wipe.
type ListingStore interface {
	FindByID(ctx context.Context, listingID id.ListingID) (*listingmodels.Listing, error)
	Execute(ctx context.Context, listingID id.ListingID,
		validate func(*listingmodels.Listing) error,
		mutate func(*listingmodels.Listing)) (*listingmodels.Listing, error)
}

// StoreTx provides the transactional boundary spanning the session store and
// the listing store for the finalizer's two-record unit.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}
