package models

import (
	"time"

	id "twinsale/pkg/domain"
	dErrors "twinsale/pkg/domain-errors"
)

// VerificationSession tracks the mutual selfie handshake for one listing.
// Exactly one session exists per listing, created lazily on first upload.
//
// The selfie slots are payload of the open state: both terminal states
// (completed, cleaned) guarantee the slots are empty and stay empty. The
// slots hold opaque blob references, never image bytes.
type VerificationSession struct {
	ID        id.SessionID
	ListingID id.ListingID

	// Participant identities, filled in as each side acts. Nil until the
	// corresponding role has uploaded a selfie.
	BuyerID  *id.UserID
	SellerID *id.UserID

	BuyerSelfie  string
	SellerSelfie string

	// MeetupLocation is disclosed to participants only once MutuallyVerified
	// holds. Stored in clear; the gating is a read-side concern.
	MeetupLocation string

	Status    id.SessionStatus
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSession creates an open session for a listing with the given expiry.
func NewSession(sessionID id.SessionID, listingID id.ListingID, expiresAt, now time.Time) *VerificationSession {
	return &VerificationSession{
		ID:        sessionID,
		ListingID: listingID,
		Status:    id.SessionOpen,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MutuallyVerified reports whether both sides have uploaded a selfie. Derived
// on every read, never stored: wiping a slot immediately revokes it.
func (s *VerificationSession) MutuallyVerified() bool {
	return s.Status == id.SessionOpen && s.BuyerSelfie != "" && s.SellerSelfie != ""
}

// CanUpload validates a selfie upload. Either slot may be filled or refilled
// in any open sub-state; terminal sessions never accept another selfie.
func (s *VerificationSession) CanUpload() error {
	if s.Status.Terminal() {
		return dErrors.New(dErrors.CodeConflict, "verification session is closed")
	}
	return nil
}

// SetSelfie fills the role's slot and records the actor as that role's
// participant. Replacing an existing reference is allowed while open; the
// caller owns deleting the replaced blob.
func (s *VerificationSession) SetSelfie(role id.VerificationRole, actor id.UserID, ref string, now time.Time) string {
	var previous string
	switch role {
	case id.RoleBuyer:
		previous = s.BuyerSelfie
		s.BuyerSelfie = ref
		s.BuyerID = &actor
	case id.RoleSeller:
		previous = s.SellerSelfie
		s.SellerSelfie = ref
		s.SellerID = &actor
	}
	s.UpdatedAt = now
	return previous
}

// IsParticipant reports whether the actor has acted in this session as either
// role.
func (s *VerificationSession) IsParticipant(actor id.UserID) bool {
	if s.BuyerID != nil && *s.BuyerID == actor {
		return true
	}
	if s.SellerID != nil && *s.SellerID == actor {
		return true
	}
	return false
}

// CanComplete validates the user-driven terminal transition.
func (s *VerificationSession) CanComplete() error {
	if s.Status.Terminal() {
		return dErrors.New(dErrors.CodeConflict, "verification session is closed")
	}
	if !s.MutuallyVerified() {
		return dErrors.New(dErrors.CodeConflict, "both parties must verify before completing")
	}
	return nil
}

// ApplyCompletion wipes both selfie slots and marks the session completed.
// Call only after CanComplete under the same lock.
func (s *VerificationSession) ApplyCompletion(now time.Time) {
	s.BuyerSelfie = ""
	s.SellerSelfie = ""
	s.Status = id.SessionCompleted
	s.UpdatedAt = now
}

// CanClean validates the time-driven terminal transition.
func (s *VerificationSession) CanClean(now time.Time) error {
	if s.Status.Terminal() {
		return dErrors.New(dErrors.CodeConflict, "verification session is closed")
	}
	if !s.Expired(now) {
		return dErrors.New(dErrors.CodeConflict, "verification session has not expired")
	}
	return nil
}

// ApplyCleanup wipes both selfie slots and marks the session cleaned. The
// cleaned status records that time ran out rather than the deal closing.
func (s *VerificationSession) ApplyCleanup(now time.Time) {
	s.BuyerSelfie = ""
	s.SellerSelfie = ""
	s.Status = id.SessionCleaned
	s.UpdatedAt = now
}

// Expired reports whether the session's retention window has passed.
func (s *VerificationSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SelfieRefs returns the blob references currently held, if any.
func (s *VerificationSession) SelfieRefs() []string {
	refs := make([]string, 0, 2)
	if s.BuyerSelfie != "" {
		refs = append(refs, s.BuyerSelfie)
	}
	if s.SellerSelfie != "" {
		refs = append(refs, s.SellerSelfie)
	}
	return refs
}

// Clone returns a deep copy so store snapshots never alias live state.
func (s *VerificationSession) Clone() *VerificationSession {
	cp := *s
	if s.BuyerID != nil {
		v := *s.BuyerID
		cp.BuyerID = &v
	}
	if s.SellerID != nil {
		v := *s.SellerID
		cp.SellerID = &v
	}
	return &cp
}
