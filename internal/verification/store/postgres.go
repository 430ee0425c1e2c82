package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"twinsale/internal/verification/models"
	id "twinsale/pkg/domain"
	"twinsale/pkg/platform/sentinel"
	txcontext "twinsale/pkg/platform/tx"
)

const sessionColumns = `id, listing_id, buyer_id, seller_id, buyer_selfie, seller_selfie,
	meetup_location, status, expires_at, created_at, updated_at`

// Postgres persists verification sessions. Execute takes a SELECT ... FOR
// UPDATE row lock on the session so selfie uploads, completion and sweeper
// cleanup of the same listing serialize against each other.
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

// Ensure returns the session for a listing, inserting the candidate if none
// exists yet. The unique listing_id constraint makes the upsert race-free:
// whichever insert lands first wins and everyone reads that row back.
func (s *Postgres) Ensure(ctx context.Context, candidate *models.VerificationSession) (*models.VerificationSession, error) {
	query := `
		INSERT INTO verification_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (listing_id) DO NOTHING
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(candidate.ID), uuid.UUID(candidate.ListingID),
		nullUserID(candidate.BuyerID), nullUserID(candidate.SellerID),
		nullString(candidate.BuyerSelfie), nullString(candidate.SellerSelfie),
		candidate.MeetupLocation, candidate.Status.String(),
		candidate.ExpiresAt, candidate.CreatedAt, candidate.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert verification session: %w", err)
	}
	return s.FindByListing(ctx, candidate.ListingID)
}

func (s *Postgres) FindByListing(ctx context.Context, listingID id.ListingID) (*models.VerificationSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM verification_sessions WHERE listing_id = $1`
	return scanSession(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(listingID)))
}

// Execute re-reads the session under a row lock, validates, mutates, and
// writes the result back in one transaction. When the context already carries
// a transaction (service RunInTx), the lock extends to the end of that
// transaction so the session wipe commits atomically with the listing flip.
func (s *Postgres) Execute(ctx context.Context, listingID id.ListingID,
	validate func(*models.VerificationSession) error,
	mutate func(*models.VerificationSession),
) (*models.VerificationSession, error) {
	if _, ok := txcontext.From(ctx); ok {
		return s.executeLocked(ctx, listingID, validate, mutate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin execute tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sess, err := s.executeLocked(txcontext.WithTx(ctx, tx), listingID, validate, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit execute tx: %w", err)
	}
	return sess, nil
}

func (s *Postgres) executeLocked(ctx context.Context, listingID id.ListingID,
	validate func(*models.VerificationSession) error,
	mutate func(*models.VerificationSession),
) (*models.VerificationSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM verification_sessions WHERE listing_id = $1 FOR UPDATE`
	sess, err := scanSession(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(listingID)))
	if err != nil {
		return nil, err
	}
	if err := validate(sess); err != nil {
		return nil, err
	}
	mutate(sess)

	update := `
		UPDATE verification_sessions SET
			buyer_id = $2, seller_id = $3, buyer_selfie = $4, seller_selfie = $5,
			meetup_location = $6, status = $7, updated_at = $8
		WHERE id = $1
	`
	_, err = s.execer(ctx).ExecContext(ctx, update,
		uuid.UUID(sess.ID),
		nullUserID(sess.BuyerID), nullUserID(sess.SellerID),
		nullString(sess.BuyerSelfie), nullString(sess.SellerSelfie),
		sess.MeetupLocation, sess.Status.String(), sess.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update verification session: %w", err)
	}
	return sess, nil
}

// ListExpired returns open sessions whose expiry is at or before now. The
// partial expiry index keeps this cheap as terminal sessions accumulate.
func (s *Postgres) ListExpired(ctx context.Context, now time.Time) ([]*models.VerificationSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM verification_sessions
		WHERE status = 'open' AND expires_at <= $1 ORDER BY expires_at`
	rows, err := s.execer(ctx).QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list expired sessions: %w", err)
	}
	defer rows.Close()

	var out []*models.VerificationSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Counts reports session totals per status for the admin surface.
func (s *Postgres) Counts(ctx context.Context) (map[id.SessionStatus]int, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT status, count(*) FROM verification_sessions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count verification sessions: %w", err)
	}
	defer rows.Close()

	out := make(map[id.SessionStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan session count: %w", err)
		}
		out[id.SessionStatus(status)] = n
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.VerificationSession, error) {
	var (
		sess         models.VerificationSession
		sessionID    uuid.UUID
		listingID    uuid.UUID
		buyerID      uuid.NullUUID
		sellerID     uuid.NullUUID
		buyerSelfie  sql.NullString
		sellerSelfie sql.NullString
		status       string
	)
	err := row.Scan(&sessionID, &listingID, &buyerID, &sellerID, &buyerSelfie, &sellerSelfie,
		&sess.MeetupLocation, &status, &sess.ExpiresAt, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("verification session: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan verification session: %w", err)
	}

	sess.ID = id.SessionID(sessionID)
	sess.ListingID = id.ListingID(listingID)
	if buyerID.Valid {
		u := id.UserID(buyerID.UUID)
		sess.BuyerID = &u
	}
	if sellerID.Valid {
		u := id.UserID(sellerID.UUID)
		sess.SellerID = &u
	}
	sess.BuyerSelfie = buyerSelfie.String
	sess.SellerSelfie = sellerSelfie.String
	sess.Status = id.SessionStatus(status)
	return &sess, nil
}

func nullUserID(u *id.UserID) uuid.NullUUID {
	if u == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*u), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
