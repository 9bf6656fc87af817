// Package airportdata imports the airport table from public datasets: the
// OurAirports airports.csv and the FAA airports shapefile.
package airportdata

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/vanboompow/efb-212-sub001/internal/efberr"
	"github.com/vanboompow/efb-212-sub001/internal/fetcher"
	"github.com/vanboompow/efb-212-sub001/internal/geodesy"
	"github.com/vanboompow/efb-212-sub001/internal/model"
)

// Stats counts the outcome of a parse.
type Stats struct {
	Read     int `json:"read"`
	Accepted int `json:"accepted"`
	Skipped  int `json:"skipped"`
}

// excludedTypes are OurAirports facility types that never belong in the
// airport table.
var excludedTypes = map[string]bool{
	"closed":      true,
	"heliport":    true,
	"balloonport": true,
}

// requiredColumns must appear in the header of an airports.csv.
var requiredColumns = []string{"ident", "latitude_deg", "longitude_deg"}

// ParseOurAirports reads an OurAirports airports.csv stream. Rows without
// a usable identifier or coordinate are skipped, as are closed fields and
// heliports. A header missing a required column is rejected as invalid
// input.
func ParseOurAirports(ctx context.Context, r io.Reader) ([]model.Airport, Stats, error) {
	rows, errs := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{TrimSpace: true})

	var (
		out     []model.Airport
		stats   Stats
		missing string
	)
	for row := range rows {
		if stats.Read == 0 {
			missing = missingColumn(row)
		}
		stats.Read++
		if missing != "" {
			continue
		}
		a, ok := ourAirportsRow(row)
		if !ok {
			stats.Skipped++
			continue
		}
		out = append(out, a)
		stats.Accepted++
	}
	if err := <-errs; err != nil {
		return nil, stats, eris.Wrap(err, "airportdata: parse ourairports")
	}
	if missing != "" {
		return nil, stats, efberr.New(efberr.InvalidInput, "airportdata: parse ourairports", "missing column "+missing)
	}
	return out, stats, nil
}

func missingColumn(row fetcher.Row) string {
	for _, col := range requiredColumns {
		if !row.Has(col) {
			return col
		}
	}
	return ""
}

func ourAirportsRow(row fetcher.Row) (model.Airport, bool) {
	if excludedTypes[strings.ToLower(row.Get("type"))] {
		return model.Airport{}, false
	}
	icao := pickIdent(row.Get("icao_code"), row.Get("gps_code"), row.Get("ident"))
	if icao == "" {
		return model.Airport{}, false
	}
	lat, err := strconv.ParseFloat(row.Get("latitude_deg"), 64)
	if err != nil {
		return model.Airport{}, false
	}
	lon, err := strconv.ParseFloat(row.Get("longitude_deg"), 64)
	if err != nil {
		return model.Airport{}, false
	}
	a := model.Airport{
		ICAO:        icao,
		Name:        row.Get("name"),
		Coordinate:  geodesy.NewCoordinate(lat, lon),
		ElevationFt: parseElevation(row.Get("elevation_ft")),
	}
	return a, a.Usable()
}

// pickIdent returns the first candidate that is a valid station id.
func pickIdent(candidates ...string) string {
	for _, c := range candidates {
		id := model.NormalizeICAO(c)
		if id != "" && model.ValidateStationID(id) == nil {
			return id
		}
	}
	return ""
}

// parseElevation treats a blank or malformed elevation as sea level.
func parseElevation(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
