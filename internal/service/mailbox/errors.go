package mailbox

import "errors"

// Sentinel errors for the mailbox service layer.
var (
	ErrNotFound   = errors.New("message not found")
	ErrForbidden  = errors.New("not allowed")
	ErrValidation = errors.New("invalid request")
)
