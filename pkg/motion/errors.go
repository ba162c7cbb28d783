package motion

import "errors"

// Common errors
var (
	ErrHeadingUnavailable = errors.New("heading not available yet")
	ErrRotationTimeout    = errors.New("rotation timed out before reaching target")
	ErrBusy               = errors.New("another motion command is in progress")
	ErrInvalidRotation    = errors.New("invalid rotation request")
)
