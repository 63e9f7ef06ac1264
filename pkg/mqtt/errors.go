package mqtt

import "errors"

var (
	// ErrTimeout indicates the broker did not respond in time.
	ErrTimeout = errors.New("mqtt timeout")
)
