package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and the treasury return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: unique constraint violated
// - ErrAlreadyUsed: resource already consumed (policy already purchased)
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrInsufficientFunds: a transfer or funding check had too little value
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrAlreadyUsed       = errors.New("already used")
	ErrInvalidState      = errors.New("invalid state")
	ErrInsufficientFunds = errors.New("insufficient funds")
)
