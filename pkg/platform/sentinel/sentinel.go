package sentinel

import "errors"

// Sentinel dependency errors. Stores and collaborators return these (optionally
// wrapped) so services can translate them into domain errors exactly once.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
