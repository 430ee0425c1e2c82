package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and the blob layer return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: listing/session/blob does not exist in the store
// - ErrConflict: conditional write lost (bid too low at commit, raffle sold out)
// - ErrExpired: session past its expiry timestamp
// - ErrInvalidState: entity in wrong state for the requested operation
//   (upload after completion, draw on a sold listing)
// - ErrUnavailable: backing store temporarily unreachable
//
// For validation errors (bad input, wrong listing kind), use
// pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
