package types

import "errors"

// Error kinds shared by controllers and handlers. Callers wrap them with
// context and match with errors.Is.
var (
	ErrValidation             = errors.New("validation error")
	ErrStore                  = errors.New("store error")
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInvalidPayload         = errors.New("invalid voucher payload")
	ErrAlreadyRedeemed        = errors.New("voucher already redeemed")
	ErrAlreadyCompleted       = errors.New("mission already completed")
	ErrConcurrentModification = errors.New("concurrent modification")
)
