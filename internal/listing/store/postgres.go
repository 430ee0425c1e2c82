package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"twinsale/internal/listing/models"
	id "twinsale/pkg/domain"
	"twinsale/pkg/platform/sentinel"
	txcontext "twinsale/pkg/platform/tx"
)

const listingColumns = `id, seller_id, title, description, category, image_url, kind, status,
	current_price, bid_count, ticket_price, total_tickets, tickets_sold, winner_id,
	created_at, updated_at`

// Postgres persists listings, bids and raffle entries. Execute takes a
// SELECT ... FOR UPDATE row lock so concurrent bid/ticket mutations on the
// same listing serialize while different listings proceed in parallel.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) Create(ctx context.Context, l *models.Listing) error {
	query := `
		INSERT INTO listings (` + listingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(l.ID), uuid.UUID(l.SellerID), l.Title, l.Description, l.Category, l.ImageURL,
		l.Kind.String(), l.Status.String(),
		nullDecimal(l.Kind == id.KindAuction, l.CurrentPrice), l.BidCount,
		nullDecimal(l.Kind == id.KindRaffle, l.TicketPrice), nullInt(l.Kind == id.KindRaffle, l.TotalTickets),
		l.TicketsSold, nullUserID(l.Winner),
		l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, listingID id.ListingID) (*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	return scanListing(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(listingID)))
}

func (s *Postgres) ListActive(ctx context.Context, category string) ([]*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE status = 'active'`
	args := []any{}
	if category != "" {
		query += ` AND category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active listings: %w", err)
	}
	defer rows.Close()

	var out []*models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Execute re-reads the listing under a row lock, validates, mutates, and
// writes the result back — all in one transaction. When the context already
// carries a transaction (service RunInTx), the row lock extends to the end of
// that transaction so appended bid/entry rows commit atomically with the
// counter update.
func (s *Postgres) Execute(ctx context.Context, listingID id.ListingID,
	validate func(*models.Listing) error,
	mutate func(*models.Listing),
) (*models.Listing, error) {
	if _, ok := txcontext.From(ctx); ok {
		return s.executeLocked(ctx, listingID, validate, mutate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin execute tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	l, err := s.executeLocked(txcontext.WithTx(ctx, tx), listingID, validate, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit execute tx: %w", err)
	}
	return l, nil
}

func (s *Postgres) executeLocked(ctx context.Context, listingID id.ListingID,
	validate func(*models.Listing) error,
	mutate func(*models.Listing),
) (*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1 FOR UPDATE`
	l, err := scanListing(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(listingID)))
	if err != nil {
		return nil, err
	}
	if err := validate(l); err != nil {
		return nil, err
	}
	mutate(l)

	update := `
		UPDATE listings SET
			title = $2, description = $3, category = $4, image_url = $5, status = $6,
			current_price = $7, bid_count = $8, tickets_sold = $9, winner_id = $10,
			updated_at = $11
		WHERE id = $1
	`
	_, err = s.execer(ctx).ExecContext(ctx, update,
		uuid.UUID(l.ID), l.Title, l.Description, l.Category, l.ImageURL, l.Status.String(),
		nullDecimal(l.Kind == id.KindAuction, l.CurrentPrice), l.BidCount,
		l.TicketsSold, nullUserID(l.Winner), l.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update listing: %w", err)
	}
	return l, nil
}

func (s *Postgres) Delete(ctx context.Context, listingID id.ListingID) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM listings WHERE id = $1`, uuid.UUID(listingID))
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("listing %s: %w", listingID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Postgres) AppendBid(ctx context.Context, b *models.Bid) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO bids (id, listing_id, bidder_id, amount, placed_at)
		VALUES ($1, $2, $3, $4, $5)
	`, b.ID, uuid.UUID(b.ListingID), uuid.UUID(b.BidderID), b.Amount, b.PlacedAt)
	if err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}
	return nil
}

func (s *Postgres) ListBids(ctx context.Context, listingID id.ListingID) ([]*models.Bid, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, listing_id, bidder_id, amount, placed_at
		FROM bids WHERE listing_id = $1 ORDER BY id
	`, uuid.UUID(listingID))
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	defer rows.Close()

	var out []*models.Bid
	for rows.Next() {
		var (
			b         models.Bid
			listingID uuid.UUID
			bidderID  uuid.UUID
		)
		if err := rows.Scan(&b.ID, &listingID, &bidderID, &b.Amount, &b.PlacedAt); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		b.ListingID = id.ListingID(listingID)
		b.BidderID = id.UserID(bidderID)
		out = append(out, &b)
	}
	return out, rows.Err()
}

func (s *Postgres) AppendEntry(ctx context.Context, e *models.RaffleEntry) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO raffle_entries (id, listing_id, buyer_id, purchased_at)
		VALUES ($1, $2, $3, $4)
	`, e.ID, uuid.UUID(e.ListingID), uuid.UUID(e.BuyerID), e.PurchasedAt)
	if err != nil {
		return fmt.Errorf("insert raffle entry: %w", err)
	}
	return nil
}

func (s *Postgres) ListEntries(ctx context.Context, listingID id.ListingID) ([]*models.RaffleEntry, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, listing_id, buyer_id, purchased_at
		FROM raffle_entries WHERE listing_id = $1 ORDER BY id
	`, uuid.UUID(listingID))
	if err != nil {
		return nil, fmt.Errorf("list raffle entries: %w", err)
	}
	defer rows.Close()

	var out []*models.RaffleEntry
	for rows.Next() {
		var (
			e         models.RaffleEntry
			listingID uuid.UUID
			buyerID   uuid.UUID
		)
		if err := rows.Scan(&e.ID, &listingID, &buyerID, &e.PurchasedAt); err != nil {
			return nil, fmt.Errorf("scan raffle entry: %w", err)
		}
		e.ListingID = id.ListingID(listingID)
		e.BuyerID = id.UserID(buyerID)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Counts reports table sizes for the admin surface.
func (s *Postgres) Counts(ctx context.Context) (listings, bids, entries int, err error) {
	err = s.execer(ctx).QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM listings),
			(SELECT count(*) FROM bids),
			(SELECT count(*) FROM raffle_entries)
	`).Scan(&listings, &bids, &entries)
	if err != nil {
		err = fmt.Errorf("count listings: %w", err)
	}
	return
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*models.Listing, error) {
	var (
		l            models.Listing
		listingID    uuid.UUID
		sellerID     uuid.UUID
		kind         string
		status       string
		currentPrice decimal.NullDecimal
		ticketPrice  decimal.NullDecimal
		totalTickets sql.NullInt64
		winnerID     uuid.NullUUID
	)
	err := row.Scan(&listingID, &sellerID, &l.Title, &l.Description, &l.Category, &l.ImageURL,
		&kind, &status, &currentPrice, &l.BidCount, &ticketPrice, &totalTickets,
		&l.TicketsSold, &winnerID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("listing: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan listing: %w", err)
	}

	l.ID = id.ListingID(listingID)
	l.SellerID = id.UserID(sellerID)
	l.Kind = id.ListingKind(kind)
	l.Status = id.ListingStatus(status)
	if currentPrice.Valid {
		l.CurrentPrice = currentPrice.Decimal
	}
	if ticketPrice.Valid {
		l.TicketPrice = ticketPrice.Decimal
	}
	if totalTickets.Valid {
		l.TotalTickets = int(totalTickets.Int64)
	}
	if winnerID.Valid {
		w := id.UserID(winnerID.UUID)
		l.Winner = &w
	}
	return &l, nil
}

func nullDecimal(valid bool, d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: valid}
}

func nullInt(valid bool, n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: valid}
}

func nullUserID(u *id.UserID) uuid.NullUUID {
	if u == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*u), Valid: true}
}
