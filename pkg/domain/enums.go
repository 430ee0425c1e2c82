package domain

import dErrors "twinsale/pkg/domain-errors"

// ListingKind is the sale mechanism of a listing. Immutable after creation:
// switching mechanism would orphan bids or raffle entries.
type ListingKind string

const (
	KindAuction ListingKind = "auction"
	KindRaffle  ListingKind = "raffle"
)

var validKinds = map[ListingKind]bool{
	KindAuction: true,
	KindRaffle:  true,
}

// ParseListingKind constructs a ListingKind from external input.
//
// Usage: call from handlers when parsing requests; direct casting bypasses
// validation.
func ParseListingKind(s string) (ListingKind, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "listing kind cannot be empty")
	}
	k := ListingKind(s)
	if !validKinds[k] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid listing kind")
	}
	return k, nil
}

func (k ListingKind) IsValid() bool  { return validKinds[k] }
func (k ListingKind) String() string { return string(k) }

// ListingStatus is monotonic: active -> sold, never back.
type ListingStatus string

const (
	ListingActive ListingStatus = "active"
	ListingSold   ListingStatus = "sold"
)

func (s ListingStatus) String() string { return string(s) }

// VerificationRole names which side of the exchange an actor plays in a
// verification session.
type VerificationRole string

const (
	RoleBuyer  VerificationRole = "buyer"
	RoleSeller VerificationRole = "seller"
)

// ParseVerificationRole constructs a VerificationRole from external input.
func ParseVerificationRole(s string) (VerificationRole, error) {
	switch VerificationRole(s) {
	case RoleBuyer:
		return RoleBuyer, nil
	case RoleSeller:
		return RoleSeller, nil
	case "":
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
}

func (r VerificationRole) String() string { return string(r) }

// SessionStatus is the tagged state of a verification session. The selfie
// slots are payload of the open state only; both terminal states guarantee
// the slots are empty. Cleaned records that time ran out, completed that the
// deal closed — the distinction is kept for audit.
type SessionStatus string

const (
	SessionOpen      SessionStatus = "open"
	SessionCompleted SessionStatus = "completed"
	SessionCleaned   SessionStatus = "cleaned"
)

// Terminal reports whether the session can never accept another selfie.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCleaned
}

func (s SessionStatus) String() string { return string(s) }
