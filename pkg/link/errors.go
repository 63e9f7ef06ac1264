package link

import "errors"

var (
	// ErrScheme indicates an unsupported endpoint URL scheme.
	ErrScheme = errors.New("unsupported link scheme")
	// ErrClosed indicates the listener was closed.
	ErrClosed = errors.New("link listener closed")
)
