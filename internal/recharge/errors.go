package recharge

import "errors"

// Terminal outcomes of the transaction processor, matched by handlers
// with errors.Is and mapped to HTTP statuses. Wrapped variants carry
// the human-readable reason.
var (
	ErrValidation          = errors.New("validation failed")
	ErrCatalogNotFound     = errors.New("catalog item not found")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrSettlementFailed    = errors.New("settlement failed")
	ErrSettlementPending   = errors.New("settlement pending")
	ErrConcurrentConflict  = errors.New("wallet was updated concurrently")
	ErrDuplicateRequest    = errors.New("request with this key is already in flight")
	ErrStorageUnavailable  = errors.New("storage unavailable")
)
