package sentinel

import "errors"

// Dependency errors. Stores return these, optionally wrapped, and the service
// translates them into domain errors once.
var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyUsed = errors.New("already used")
)
