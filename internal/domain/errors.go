package domain

import "errors"

var (
	// ErrConnectionFailure is fatal: the monitor loop ends and the daemon shuts down
	ErrConnectionFailure = errors.New("player connection failure")

	// ErrCommandRejected is returned for a command the player refuses in its
	// current state (e.g. seeking while stopped). Callers discard it.
	ErrCommandRejected = errors.New("player rejected command")
)
