// README: Common identifier and coordinate value objects used across modules.
package types

import (
	"strings"

	"github.com/google/uuid"
)

type ID string

// NewID returns a 32-char lowercase hex id.
func NewID() ID {
	return ID(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func (id ID) String() string { return string(id) }

// IDPtr returns nil for the empty id.
func IDPtr(id ID) *ID {
	if id == "" {
		return nil
	}
	return &id
}

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point lies within WGS84 bounds.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
