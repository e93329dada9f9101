// README: Identifier, coordinate, and place value objects.
package types

import (
	"strings"

	"github.com/google/uuid"
)

type ID string

// NewID returns a random id without dashes (32 hex chars).
func NewID() ID {
	return ID(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func (id ID) String() string {
	return string(id)
}

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}

// Place is an address with optional coordinates.
type Place struct {
	Address     string `json:"address"`
	Coordinates *Point `json:"coordinates,omitempty"`
}
