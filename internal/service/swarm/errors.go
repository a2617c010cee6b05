package swarm

import "errors"

// Sentinel errors for the swarm service layer.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("invalid request")
)
