package flash

import "errors"

var (
	// ErrProtected rejects writes outside the application region.
	ErrProtected = errors.New("flash page protected")
	// ErrBadAddr rejects addresses beyond the flash.
	ErrBadAddr = errors.New("flash address out of range")
	// ErrPageSize rejects a write page of the wrong length.
	ErrPageSize = errors.New("invalid flash page size")
	// ErrBusy is returned when an operation is triggered while busy.
	ErrBusy = errors.New("flash controller busy")
	// ErrImageSize rejects an image larger than the flash.
	ErrImageSize = errors.New("image larger than flash")
)
