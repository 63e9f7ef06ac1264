package node

import "errors"

var (
	// ErrNoTransport indicates the target transport is not attached.
	ErrNoTransport = errors.New("transport not attached")
)
