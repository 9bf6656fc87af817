package airportdata

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vanboompow/efb-212-sub001/internal/geodesy"
	"github.com/vanboompow/efb-212-sub001/internal/model"
)

// ShapefileExts are the members of a shapefile set the parser needs.
var ShapefileExts = []string{".shp", ".shx", ".dbf"}

// ParseFAAShapefile reads point records from an FAA airports shapefile.
// The ICAO_ID attribute is preferred over IDENT. The geometry supplies the
// coordinate; records without a point are skipped.
func ParseFAAShapefile(shpPath string) ([]model.Airport, Stats, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, Stats{}, eris.Wrapf(err, "airportdata: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	attr := func(name string) string {
		idx, ok := fieldIdx[name]
		if !ok {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	var (
		out   []model.Airport
		stats Stats
	)
	for reader.Next() {
		stats.Read++
		_, shape := reader.Shape()
		pt, ok := shape.(*shp.Point)
		if !ok {
			stats.Skipped++
			continue
		}
		icao := pickIdent(attr("icao_id"), attr("ident"))
		a := model.Airport{
			ICAO:        icao,
			Name:        attr("name"),
			Coordinate:  geodesy.NewCoordinate(pt.Y, pt.X),
			ElevationFt: parseElevation(attr("elevation")),
		}
		if !a.Usable() {
			stats.Skipped++
			continue
		}
		out = append(out, a)
		stats.Accepted++
	}

	if stats.Skipped > 0 {
		zap.L().Debug("airportdata: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", stats.Skipped),
		)
	}
	return out, stats, nil
}
