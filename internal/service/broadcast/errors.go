package broadcast

import "errors"

// Sentinel errors for the broadcast service layer.
var (
	ErrNotFound   = errors.New("webhook not found")
	ErrForbidden  = errors.New("not allowed")
	ErrValidation = errors.New("invalid request")
)
