package model

import (
	"strings"

	"github.com/vanboompow/efb-212-sub001/internal/efberr"
	"github.com/vanboompow/efb-212-sub001/internal/geodesy"
)

// Airport is a row of the airport table.
type Airport struct {
	ICAO        string             `json:"icao"`
	Name        string             `json:"name"`
	Coordinate  geodesy.Coordinate `json:"coordinate"`
	ElevationFt float64            `json:"elevation_ft"`
}

// NormalizeICAO upper-cases and trims an identifier.
func NormalizeICAO(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Usable reports whether the row has the fields the geospatial index needs.
func (a Airport) Usable() bool {
	return a.ICAO != "" && a.Coordinate.Valid()
}

// ValidateStationID accepts 3 or 4 alphanumeric characters, the shape of
// ICAO and FAA location identifiers. id must already be normalized.
func ValidateStationID(id string) error {
	if len(id) < 3 || len(id) > 4 {
		return efberr.New(efberr.InvalidInput, "model: station id", "station id must be 3 or 4 characters, got "+quote(id))
	}
	for _, r := range id {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return efberr.New(efberr.InvalidInput, "model: station id", "station id must be alphanumeric, got "+quote(id))
		}
	}
	return nil
}
