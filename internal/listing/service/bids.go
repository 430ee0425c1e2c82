package service

import (
	"context"

	"github.com/shopspring/decimal"

	"twinsale/internal/listing/models"
	id "twinsale/pkg/domain"
	dErrors "twinsale/pkg/domain-errors"
	"twinsale/pkg/requestcontext"
)

// PlaceBid accepts a bid on an auction listing if it is still strictly above
// the current price at commit time.
//
// The price re-check and the counter update run inside store.Execute, which
// holds the listing's lock for the duration, and the bid record is appended in
// the same transaction. Two bids computed from the same stale price therefore
// cannot both succeed: the second revalidates against the committed price and
// gets "bid too low".
func (s *Service) PlaceBid(ctx context.Context, listingID id.ListingID, amount decimal.Decimal) (*models.Listing, error) {
	bidder, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "bid amount must be positive")
	}

	now := requestcontext.Now(ctx)

	var snapshot *models.Listing
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		l, err := s.listings.Execute(txCtx, listingID,
			func(l *models.Listing) error {
				return l.CanBid(amount)
			},
			func(l *models.Listing) {
				l.ApplyBid(amount, now)
			},
		)
		if err != nil {
			return wrapListingErr(err)
		}
		if err := s.listings.AppendBid(txCtx, models.NewBid(listingID, bidder, amount, now)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record bid")
		}
		snapshot = l
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) && s.metrics != nil {
			s.metrics.IncrementBidsRejected()
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementBidsAccepted()
	}
	s.logger.InfoContext(ctx, "bid accepted",
		"listing_id", listingID.String(),
		"amount", amount.String(),
		"bid_count", snapshot.BidCount,
	)
	return snapshot, nil
}
