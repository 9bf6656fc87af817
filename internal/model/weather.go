package model

import (
	"time"

	"github.com/vanboompow/efb-212-sub001/internal/efberr"
)

// FlightCategory is the VFR/MVFR/IFR/LIFR ceiling and visibility class.
type FlightCategory string

const (
	CategoryVFR  FlightCategory = "VFR"
	CategoryMVFR FlightCategory = "MVFR"
	CategoryIFR  FlightCategory = "IFR"
	CategoryLIFR FlightCategory = "LIFR"
)

// ParseFlightCategory accepts the four canonical spellings in any case.
func ParseFlightCategory(s string) (FlightCategory, error) {
	switch FlightCategory(upper(s)) {
	case CategoryVFR:
		return CategoryVFR, nil
	case CategoryMVFR:
		return CategoryMVFR, nil
	case CategoryIFR:
		return CategoryIFR, nil
	case CategoryLIFR:
		return CategoryLIFR, nil
	default:
		return "", efberr.New(efberr.InvalidInput, "model: flight category", "unknown flight category "+quote(s))
	}
}

// CategoryFor derives the category from ceiling (ft AGL) and visibility
// (statute miles) using the FAA thresholds. The lower of the two wins.
func CategoryFor(ceilingFt int, visibilitySM float64) FlightCategory {
	switch {
	case ceilingFt < 500 || visibilitySM < 1:
		return CategoryLIFR
	case ceilingFt < 1000 || visibilitySM < 3:
		return CategoryIFR
	case ceilingFt <= 3000 || visibilitySM <= 5:
		return CategoryMVFR
	default:
		return CategoryVFR
	}
}

// WeatherObservation is the cached METAR for one station.
//
// FetchedAt is the local clock time of the successful fetch. ObservedAt is
// the report time embedded in the METAR; it is display-only and never used
// for staleness.
type WeatherObservation struct {
	StationID      string         `json:"station_id"`
	RawMETAR       *string        `json:"raw_metar,omitempty"`
	FlightCategory FlightCategory `json:"flight_category"`
	FetchedAt      time.Time      `json:"fetched_at"`
	ObservedAt     time.Time      `json:"observed_at,omitempty"`
}

// Raw returns the raw METAR text or "" when absent.
func (o WeatherObservation) Raw() string {
	if o.RawMETAR == nil {
		return ""
	}
	return *o.RawMETAR
}
