// Package ids provides the identifier generators used across the
// builder. Elements get ULIDs so ids sort by creation time, which keeps
// debug output readable; pages and websites keep UUIDs for parity with
// records created before the ULID switch.
package ids

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Generator produces globally-unique string identifiers.
type Generator interface {
	NewID() string
}

// ULIDGenerator issues lexicographically sortable ids.
type ULIDGenerator struct{}

// NewID returns a fresh ULID string.
func (ULIDGenerator) NewID() string {
	return ulid.Make().String()
}

// UUIDGenerator issues random (v4) UUID strings.
type UUIDGenerator struct{}

// NewID returns a fresh UUID string.
func (UUIDGenerator) NewID() string {
	return uuid.New().String()
}

// NewElementID is the default generator for element ids.
func NewElementID() string {
	return ulid.Make().String()
}

// NewPageID is the default generator for page ids.
func NewPageID() string {
	return uuid.New().String()
}
