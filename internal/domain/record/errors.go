package record

import "errors"

// Sentinel kinds for reconstruction errors.
var (
	// ErrDataIntegrity marks an event referencing a player or club with no
	// matching appearance-derived interval.
	ErrDataIntegrity = errors.New("game data integrity violation")

	// ErrDegenerateRating marks a club rating that cannot be averaged
	// because the roster reports zero total minutes.
	ErrDegenerateRating = errors.New("degenerate club rating")
)
