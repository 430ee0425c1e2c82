// Package service implements the listing lifecycle and the bid and ticket
// engines.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	listingmetrics "twinsale/internal/listing/metrics"
	"twinsale/internal/listing/models"
	id "twinsale/pkg/domain"
	dErrors "twinsale/pkg/domain-errors"
	"twinsale/pkg/platform/sentinel"
	"twinsale/pkg/requestcontext"
)

// Service orchestrates listing lifecycle, bidding, and raffle ticketing.
type Service struct {
	listings ListingStore
	metrics  *listingmetrics.Metrics
	logger   *slog.Logger
	tx       StoreTx
	drawRand func(n int) (int, error)
}

type serviceConfig struct {
	metrics  *listingmetrics.Metrics
	logger   *slog.Logger
	tx       StoreTx
	drawRand func(n int) (int, error)
}

// Option configures optional service dependencies.
type Option func(*serviceConfig)

func WithMetrics(m *listingmetrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = l }
}

func WithTx(tx StoreTx) Option {
	return func(c *serviceConfig) { c.tx = tx }
}

// WithDrawRand overrides the winner-draw RNG. Tests use it for deterministic
// draws; production keeps the crypto/rand default.
func WithDrawRand(fn func(n int) (int, error)) Option {
	return func(c *serviceConfig) { c.drawRand = fn }
}

func New(listings ListingStore, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.tx == nil {
		cfg.tx = newInMemoryStoreTx()
	}
	if cfg.drawRand == nil {
		cfg.drawRand = cryptoRandIndex
	}
	return &Service{
		listings: listings,
		metrics:  cfg.metrics,
		logger:   cfg.logger,
		tx:       cfg.tx,
		drawRand: cfg.drawRand,
	}
}

// cryptoRandIndex draws a uniform index in [0, n). The winner draw is
// fairness-sensitive, so it uses a CSPRNG rather than math/rand.
func cryptoRandIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// CreateAuctionInput carries seller input for a new auction listing.
type CreateAuctionInput struct {
	Title         string
	Description   string
	Category      string
	ImageURL      string
	StartingPrice decimal.Decimal
}

// CreateRaffleInput carries seller input for a new raffle listing.
type CreateRaffleInput struct {
	Title       string
	Description string
	Category    string
	ImageURL    string
	TicketPrice decimal.Decimal
	// TotalTickets defaults to DefaultRaffleTickets when zero.
	TotalTickets int
}

// DefaultRaffleTickets is the capacity used when the seller does not choose
// one.
const DefaultRaffleTickets = 50

// CreateAuction creates an auction listing owned by the calling seller.
func (s *Service) CreateAuction(ctx context.Context, in CreateAuctionInput) (*models.Listing, error) {
	seller, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	l, err := models.NewAuction(id.NewListingID(), seller, strings.TrimSpace(in.Title),
		in.StartingPrice, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	l.Description = in.Description
	l.Category = in.Category
	l.ImageURL = in.ImageURL

	if err := s.listings.Create(ctx, l); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create listing")
	}
	return l, nil
}

// CreateRaffle creates a raffle listing owned by the calling seller.
func (s *Service) CreateRaffle(ctx context.Context, in CreateRaffleInput) (*models.Listing, error) {
	seller, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	total := in.TotalTickets
	if total == 0 {
		total = DefaultRaffleTickets
	}
	l, err := models.NewRaffle(id.NewListingID(), seller, strings.TrimSpace(in.Title),
		in.TicketPrice, total, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	l.Description = in.Description
	l.Category = in.Category
	l.ImageURL = in.ImageURL

	if err := s.listings.Create(ctx, l); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create listing")
	}
	return l, nil
}

// Get retrieves a listing snapshot.
func (s *Service) Get(ctx context.Context, listingID id.ListingID) (*models.Listing, error) {
	l, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, wrapListingErr(err)
	}
	return l, nil
}

// ListActive returns active listings, optionally filtered by category.
func (s *Service) ListActive(ctx context.Context, category string) ([]*models.Listing, error) {
	out, err := s.listings.ListActive(ctx, category)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list listings")
	}
	return out, nil
}

// UpdateInput carries the editable listing fields. Kind is deliberately
// absent: changing the sale mechanism would break active bids or entries.
type UpdateInput struct {
	Title       string
	Description string
	Category    string
}

// Update edits an active listing. Owner only.
func (s *Service) Update(ctx context.Context, listingID id.ListingID, in UpdateInput) (*models.Listing, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "title is required")
	}

	now := requestcontext.Now(ctx)
	l, err := s.listings.Execute(ctx, listingID,
		func(l *models.Listing) error {
			return l.CanModify(actor)
		},
		func(l *models.Listing) {
			l.Title = title
			l.Description = in.Description
			l.Category = in.Category
			l.UpdatedAt = now
		},
	)
	if err != nil {
		return nil, wrapListingErr(err)
	}
	return l, nil
}

// Remove deletes an active listing. Owner only; sold listings stay for the
// record.
func (s *Service) Remove(ctx context.Context, listingID id.ListingID) error {
	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		l, err := s.listings.FindByID(txCtx, listingID)
		if err != nil {
			return wrapListingErr(err)
		}
		if err := l.CanModify(actor); err != nil {
			return err
		}
		if err := s.listings.Delete(txCtx, listingID); err != nil {
			return wrapListingErr(err)
		}
		return nil
	})
	return err
}

func requireActor(ctx context.Context) (id.UserID, error) {
	actor := requestcontext.UserID(ctx)
	if actor.IsNil() {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	return actor, nil
}

// wrapListingErr translates store sentinel errors into domain errors.
func wrapListingErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "listing not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "listing conflict")
	default:
		var de *dErrors.DomainError
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "listing store failure")
	}
}
