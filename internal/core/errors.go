package core

import "errors"

// Error codes carried on systemFailure envelopes. All failures are
// connection-local: they never touch registry state for other
// connections.
const (
	ErrCodeMissingUsername   = "missingUsername"
	ErrCodeDuplicateUsername = "duplicateUsername"
	ErrCodeUnregistered      = "unregistered"
	ErrCodeInternal          = "internalError"
)

var (
	ErrMissingUsername       = errors.New("missing username or room id")
	ErrDuplicateUsername     = errors.New("duplicate username in room")
	ErrAlreadyRegistered     = errors.New("connection already registered")
	ErrUnregistered          = errors.New("connection not registered")
	ErrInternalInconsistency = errors.New("user record missing for registered session")
)
