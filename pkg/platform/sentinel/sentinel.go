package sentinel

import "errors"

// Sentinel errors for persistence facts. Stores return these (optionally wrapped)
// and the matching service translates them into coded domain errors.
//
//   - ErrNotFound: the record does not exist
//   - ErrConflict: a conditional write lost (stale version, overlapping lock)
//   - ErrExpired: the record's deadline has passed
//   - ErrInvalidState: the record is in the wrong state for the requested write
//   - ErrUnavailable: the backing service could not be reached
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
