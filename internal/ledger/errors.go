package ledger

import "errors"

var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("contract not found")
	ErrInvalidQuantity  = errors.New("invalid withdrawal quantity")
	ErrAlreadyCompleted = errors.New("contract already completed")
)
