package reference

import "errors"

// Sentinel kinds for reference table lookups.
var (
	ErrUnknownGame = errors.New("game not found in metadata")
)
