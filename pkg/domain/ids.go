// Package domain holds typed identifiers and small enums shared by every
// service. Typed IDs prevent cross-type assignment at compile time; parse
// constructors enforce validity at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "twinsale/pkg/domain-errors"
)

// UserID identifies a user. Emails are a mutable user attribute, never a key.
type UserID uuid.UUID

// ListingID identifies a sale offer (auction or raffle).
type ListingID uuid.UUID

// SessionID identifies a verification session. Sessions are keyed 1:1 by
// listing, so this is mostly a surrogate for audit rows.
type SessionID uuid.UUID

// NewUserID returns a fresh random user ID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewListingID returns a fresh random listing ID.
func NewListingID() ListingID { return ListingID(uuid.New()) }

// NewSessionID returns a fresh random session ID.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// ParseUserID constructs a UserID from external input.
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

// ParseListingID constructs a ListingID from external input.
func ParseListingID(s string) (ListingID, error) {
	u, err := parseUUID(s, "listing id")
	return ListingID(u), err
}

// ParseSessionID constructs a SessionID from external input.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session id")
	return SessionID(u), err
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", what)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s", what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be nil", what)
	}
	return u, nil
}

func (u UserID) String() string    { return uuid.UUID(u).String() }
func (l ListingID) String() string { return uuid.UUID(l).String() }
func (s SessionID) String() string { return uuid.UUID(s).String() }

// IsNil reports whether the ID is the zero UUID.
func (u UserID) IsNil() bool    { return uuid.UUID(u) == uuid.Nil }
func (l ListingID) IsNil() bool { return uuid.UUID(l) == uuid.Nil }
func (s SessionID) IsNil() bool { return uuid.UUID(s) == uuid.Nil }
