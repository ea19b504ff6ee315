// Package types holds small value objects shared across modules.
package types

import "github.com/google/uuid"

// ID is an opaque entity identifier (requests, drivers, riders, rides).
type ID string

// NewID returns a fresh random identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string { return string(id) }
