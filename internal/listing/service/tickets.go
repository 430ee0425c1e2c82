package service

import (
	"context"

	"twinsale/internal/listing/models"
	id "twinsale/pkg/domain"
	dErrors "twinsale/pkg/domain-errors"
	"twinsale/pkg/requestcontext"
)

// BuyTicket sells one raffle ticket if capacity remains at commit time.
//
// Overselling is a hard invariant violation, so just like PlaceBid the
// capacity check and the increment happen under the listing's lock, with the
// entry row appended in the same transaction. "Sold out" is detected there,
// never from a prior read.
func (s *Service) BuyTicket(ctx context.Context, listingID id.ListingID) (*models.Listing, error) {
	buyer, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)

	var snapshot *models.Listing
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		l, err := s.listings.Execute(txCtx, listingID,
			func(l *models.Listing) error {
				return l.CanSellTicket()
			},
			func(l *models.Listing) {
				l.ApplyTicketSale(now)
			},
		)
		if err != nil {
			return wrapListingErr(err)
		}
		if err := s.listings.AppendEntry(txCtx, models.NewRaffleEntry(listingID, buyer, now)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record raffle entry")
		}
		snapshot = l
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) && s.metrics != nil {
			s.metrics.IncrementSellouts()
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementTicketsSold()
	}
	s.logger.InfoContext(ctx, "ticket sold",
		"listing_id", listingID.String(),
		"tickets_sold", snapshot.TicketsSold,
		"total_tickets", snapshot.TotalTickets,
	)
	return snapshot, nil
}

// DrawWinner picks a uniform random raffle entry and closes the listing.
// Seller only; one-shot — a second draw finds the listing sold and returns a
// conflict. Buyers with several tickets get proportionally more chances
// because the draw indexes the full entry list, not distinct buyers.
func (s *Service) DrawWinner(ctx context.Context, listingID id.ListingID) (*models.Listing, error) {
	requester, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)

	var snapshot *models.Listing
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		// Take the listing lock first: ticket purchases need the same lock,
		// so the entry list cannot grow under us for the rest of the
		// transaction.
		if _, err := s.listings.Execute(txCtx, listingID,
			func(l *models.Listing) error { return l.CanDraw(requester) },
			func(l *models.Listing) {},
		); err != nil {
			return wrapListingErr(err)
		}

		entries, err := s.listings.ListEntries(txCtx, listingID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load raffle entries")
		}
		if len(entries) == 0 {
			return dErrors.New(dErrors.CodeConflict, "no tickets sold yet")
		}

		idx, err := s.drawRand(len(entries))
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "winner draw failed")
		}
		winner := entries[idx].BuyerID

		l, err := s.listings.Execute(txCtx, listingID,
			func(l *models.Listing) error { return l.CanDraw(requester) },
			func(l *models.Listing) { l.ApplyWinner(winner, now) },
		)
		if err != nil {
			return wrapListingErr(err)
		}
		snapshot = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementWinnersDrawn()
	}
	s.logger.InfoContext(ctx, "raffle winner drawn",
		"listing_id", listingID.String(),
		"winner_id", snapshot.Winner.String(),
		"entries", snapshot.TicketsSold,
	)
	return snapshot, nil
}
