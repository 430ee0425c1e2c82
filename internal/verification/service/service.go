// Package service implements the mutual selfie-verification handshake and the
// transaction finalizer.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"twinsale/internal/blob"
	listingmodels "twinsale/internal/listing/models"
	verificationmetrics "twinsale/internal/verification/metrics"
	"twinsale/internal/verification/models"
	id "twinsale/pkg/domain"
	dErrors "twinsale/pkg/domain-errors"
	"twinsale/pkg/platform/sentinel"
	"twinsale/pkg/requestcontext"
)

// DefaultSessionTTL bounds how long an open session may hold selfies before
// the retention sweeper destroys them.
const DefaultSessionTTL = 24 * time.Hour

// Service orchestrates selfie uploads, location disclosure, and completion.
type Service struct {
	sessions SessionStore
	listings ListingStore
	blobs    blob.Store
	metrics  *verificationmetrics.Metrics
	logger   *slog.Logger
	tx       StoreTx
	ttl      time.Duration
}

type serviceConfig struct {
	metrics *verificationmetrics.Metrics
	logger  *slog.Logger
	tx      StoreTx
	ttl     time.Duration
}

// Option configures optional service dependencies.
type Option func(*serviceConfig)

func WithMetrics(m *verificationmetrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = l }
}

func WithTx(tx StoreTx) Option {
	return func(c *serviceConfig) { c.tx = tx }
}

// WithSessionTTL overrides the retention window for newly created sessions.
func WithSessionTTL(ttl time.Duration) Option {
	return func(c *serviceConfig) { c.ttl = ttl }
}

func New(sessions SessionStore, listings ListingStore, blobs blob.Store, opts ...Option) *Service {
	cfg := &serviceConfig{ttl: DefaultSessionTTL}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.tx == nil {
		cfg.tx = newInMemoryStoreTx()
	}
	return &Service{
		sessions: sessions,
		listings: listings,
		blobs:    blobs,
		metrics:  cfg.metrics,
		logger:   cfg.logger,
		tx:       cfg.tx,
		ttl:      cfg.ttl,
	}
}

// Snapshot is the read view of a session. MeetupLocation is populated only
// when the mutual-verification gate passes for the requesting actor.
type Snapshot struct {
	Session          *models.VerificationSession
	MutuallyVerified bool
	MeetupLocation   string
}

func (s *Service) snapshot(sess *models.VerificationSession, actor id.UserID) *Snapshot {
	snap := &Snapshot{
		Session:          sess,
		MutuallyVerified: sess.MutuallyVerified(),
	}
	if snap.MutuallyVerified && sess.IsParticipant(actor) {
		snap.MeetupLocation = sess.MeetupLocation
	}
	return snap
}

// UploadSelfie stores the image encrypted in the blob store and fills the
// actor's role slot, creating the session on first use. Replacing an earlier
// selfie deletes the superseded blob best-effort.
func (s *Service) UploadSelfie(ctx context.Context, listingID id.ListingID, role id.VerificationRole, image []byte) (*Snapshot, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "selfie image is required")
	}

	l, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, wrapSessionErr(err)
	}
	if role == id.RoleSeller && l.SellerID != actor {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the seller can verify as seller")
	}
	if role == id.RoleBuyer && l.SellerID == actor {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "seller cannot verify as buyer")
	}
	if l.Status != id.ListingActive {
		return nil, dErrors.New(dErrors.CodeConflict, "listing is no longer active")
	}

	now := requestcontext.Now(ctx)
	candidate := models.NewSession(id.NewSessionID(), listingID, now.Add(s.ttl), now)
	if _, err := s.sessions.Ensure(ctx, candidate); err != nil {
		return nil, wrapSessionErr(err)
	}

	ref, err := s.blobs.Put(ctx, image)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store selfie")
	}

	// The slot write runs under the shared StoreTx so it cannot land between
	// the finalizer's lock step and its wipe, which would orphan this blob.
	var (
		previous string
		sess     *models.VerificationSession
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		updated, err := s.sessions.Execute(txCtx, listingID,
			func(sess *models.VerificationSession) error {
				return sess.CanUpload()
			},
			func(sess *models.VerificationSession) {
				previous = sess.SetSelfie(role, actor, ref, now)
			},
		)
		if err != nil {
			return err
		}
		sess = updated
		return nil
	})
	if err != nil {
		// The blob exists but the session rejected the ref; remove it so no
		// unreferenced selfie rests in the store.
		s.deleteBlob(ctx, ref)
		return nil, wrapSessionErr(err)
	}

	if previous != "" && previous != ref {
		s.deleteBlob(ctx, previous)
	}

	if s.metrics != nil {
		s.metrics.IncrementSelfiesUploaded()
	}
	s.logger.InfoContext(ctx, "selfie uploaded",
		slog.String("listing_id", listingID.String()),
		slog.String("role", role.String()),
		slog.String("request_id", requestcontext.RequestID(ctx)),
	)
	return s.snapshot(sess, actor), nil
}

// GetSession returns the session snapshot for a listing. The meetup location
// is disclosed only to participants of a mutually verified session.
func (s *Service) GetSession(ctx context.Context, listingID id.ListingID) (*Snapshot, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.FindByListing(ctx, listingID)
	if err != nil {
		return nil, wrapSessionErr(err)
	}
	return s.snapshot(sess, actor), nil
}

// SetMeetupLocation records where the exchange will happen. Participant-only;
// disclosure to the other side still waits for mutual verification.
func (s *Service) SetMeetupLocation(ctx context.Context, listingID id.ListingID, location string) (*Snapshot, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if location == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "meetup location is required")
	}

	now := requestcontext.Now(ctx)
	sess, err := s.sessions.Execute(ctx, listingID,
		func(sess *models.VerificationSession) error {
			if sess.Status.Terminal() {
				return dErrors.New(dErrors.CodeConflict, "verification session is closed")
			}
			if !sess.IsParticipant(actor) {
				return dErrors.New(dErrors.CodeForbidden, "only session participants can set the meetup location")
			}
			return nil
		},
		func(sess *models.VerificationSession) {
			sess.MeetupLocation = location
			sess.UpdatedAt = now
		},
	)
	if err != nil {
		return nil, wrapSessionErr(err)
	}
	return s.snapshot(sess, actor), nil
}

// CompleteTransaction is the explicit finalizer: once both sides have
// verified, it wipes the session's selfies and flips the listing to sold in
// one transaction. A crash leaves either both writes or neither.
func (s *Service) CompleteTransaction(ctx context.Context, listingID id.ListingID) (*Snapshot, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var (
		finalSess *models.VerificationSession
		refs      []string
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		// Lock the session row first (no-op mutate keeps the row lock until
		// commit) so the wipe below cannot fail after the listing flips.
		if _, err := s.sessions.Execute(txCtx, listingID,
			func(sess *models.VerificationSession) error {
				if !sess.IsParticipant(actor) {
					return dErrors.New(dErrors.CodeForbidden, "only session participants can complete the transaction")
				}
				if err := sess.CanComplete(); err != nil {
					return err
				}
				refs = sess.SelfieRefs()
				return nil
			},
			func(sess *models.VerificationSession) {},
		); err != nil {
			return wrapSessionErr(err)
		}

		if _, err := s.listings.Execute(txCtx, listingID,
			func(l *listingmodels.Listing) error { return l.CanMarkSold() },
			func(l *listingmodels.Listing) { l.MarkSold(now) },
		); err != nil {
			return wrapSessionErr(err)
		}

		sess, err := s.sessions.Execute(txCtx, listingID,
			func(sess *models.VerificationSession) error { return sess.CanComplete() },
			func(sess *models.VerificationSession) { sess.ApplyCompletion(now) },
		)
		if err != nil {
			return wrapSessionErr(err)
		}
		finalSess = sess
		return nil
	})
	if err != nil {
		if s.metrics != nil && dErrors.HasCode(err, dErrors.CodeConflict) {
			s.metrics.IncrementCompletionsRejected()
		}
		return nil, err
	}

	// Blob deletion happens after commit: the refs are already wiped from the
	// record, and the payloads are encrypted at rest, so a failed delete
	// leaves ciphertext only. Counted so operators can react.
	for _, ref := range refs {
		s.deleteBlob(ctx, ref)
	}

	if s.metrics != nil {
		s.metrics.IncrementSessionsCompleted()
	}
	s.logger.InfoContext(ctx, "transaction completed",
		slog.String("listing_id", listingID.String()),
		slog.String("request_id", requestcontext.RequestID(ctx)),
	)
	return s.snapshot(finalSess, actor), nil
}

func (s *Service) deleteBlob(ctx context.Context, ref string) {
	if err := s.blobs.Delete(ctx, ref); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementOrphanedBlobsReported()
		}
		s.logger.WarnContext(ctx, "failed to delete selfie blob",
			slog.String("ref", ref),
			slog.String("error", err.Error()),
		)
	}
}

func requireActor(ctx context.Context) (id.UserID, error) {
	actor := requestcontext.UserID(ctx)
	if actor.IsNil() {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	return actor, nil
}

// wrapSessionErr translates store sentinel errors into domain errors.
func wrapSessionErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "conflict")
	default:
		var de *dErrors.DomainError
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "verification store failure")
	}
}
