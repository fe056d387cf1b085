// Package store persists verifiable credentials. Stores are append-only:
// there is no update or delete path.
package store

import "errors"

// ErrInvalidCredential is returned for a nil credential or one with no holder.
var ErrInvalidCredential = errors.New("credential requires a student id")
